// Package contract implements the Data Contract entity: document-type
// descriptors, index descriptors, token configs, and groups.
package contract

import (
	"sort"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/tree"
)

// IndexProperty is one property within a compound index, in sort order.
type IndexProperty struct {
	Name       string
	Descending bool
}

// IndexDescriptor describes one index declared on a document type.
type IndexDescriptor struct {
	Name       string
	Properties []IndexProperty
	Unique     bool
}

func (idx *IndexDescriptor) MarshalCanonical(w *codec.Writer) {
	w.PutString(idx.Name)
	w.PutVarUint(uint64(len(idx.Properties)))
	for _, p := range idx.Properties {
		w.PutString(p.Name)
		w.PutBool(p.Descending)
	}
	w.PutBool(idx.Unique)
}

func (idx *IndexDescriptor) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if idx.Name, err = r.String(); err != nil {
		return err
	}
	n, err := r.VarUint()
	if err != nil {
		return err
	}
	idx.Properties = make([]IndexProperty, n)
	for i := range idx.Properties {
		if idx.Properties[i].Name, err = r.String(); err != nil {
			return err
		}
		if idx.Properties[i].Descending, err = r.Bool(); err != nil {
			return err
		}
	}
	idx.Unique, err = r.Bool()
	return err
}

// DocumentTypeDescriptor describes one document type within a contract:
// its declared indices and whether historical revisions are retained.
type DocumentTypeDescriptor struct {
	Name         string
	Indices      []*IndexDescriptor
	KeepsHistory bool
	Documents    bool // true for document-bearing types; false for pure-token-config types
}

func (d *DocumentTypeDescriptor) MarshalCanonical(w *codec.Writer) {
	w.PutString(d.Name)
	w.PutVarUint(uint64(len(d.Indices)))
	for _, idx := range d.Indices {
		idx.MarshalCanonical(w)
	}
	w.PutBool(d.KeepsHistory)
	w.PutBool(d.Documents)
}

func (d *DocumentTypeDescriptor) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if d.Name, err = r.String(); err != nil {
		return err
	}
	n, err := r.VarUint()
	if err != nil {
		return err
	}
	d.Indices = make([]*IndexDescriptor, n)
	for i := range d.Indices {
		idx := &IndexDescriptor{}
		if err := idx.UnmarshalCanonical(r); err != nil {
			return err
		}
		d.Indices[i] = idx
	}
	if d.KeepsHistory, err = r.Bool(); err != nil {
		return err
	}
	d.Documents, err = r.Bool()
	return err
}

// TokenConfig describes a token defined by this contract: per-token
// balance sum subtrees, total-supply sum, pricing/distribution
// schedules — the config half; runtime state lives in pkg/domain/token.
type TokenConfig struct {
	Position      uint16
	BaseSupply    uint64
	MaxSupply     uint64 // 0 means uncapped
	Decimals      uint8
}

func (tc *TokenConfig) MarshalCanonical(w *codec.Writer) {
	w.PutUint32(uint32(tc.Position))
	w.PutUint64(tc.BaseSupply)
	w.PutUint64(tc.MaxSupply)
	w.PutUint8(tc.Decimals)
}

func (tc *TokenConfig) UnmarshalCanonical(r *codec.Reader) error {
	pos, err := r.Uint32()
	if err != nil {
		return err
	}
	tc.Position = uint16(pos)
	if tc.BaseSupply, err = r.Uint64(); err != nil {
		return err
	}
	if tc.MaxSupply, err = r.Uint64(); err != nil {
		return err
	}
	tc.Decimals, err = r.Uint8()
	return err
}

// Group is a multi-party signing coalition with a member-weight threshold,
// used to authorize privileged contract/token actions.
type Group struct {
	Position  uint16
	Members   map[string]uint32 // identity id (string(bytes)) -> weight
	Threshold uint32
}

// Contract is the persisted entity at path ["data-contracts"], key=id.
type Contract struct {
	ID            []byte
	OwnerID       []byte
	Version       uint32
	ReadOnly      bool
	DocumentTypes []*DocumentTypeDescriptor
	Tokens        []*TokenConfig
	Groups        []*Group
}

func (c *Contract) MarshalCanonical(w *codec.Writer) {
	w.PutBytes(c.ID)
	w.PutBytes(c.OwnerID)
	w.PutUint32(c.Version)
	w.PutBool(c.ReadOnly)
	w.PutVarUint(uint64(len(c.DocumentTypes)))
	for _, dt := range c.DocumentTypes {
		dt.MarshalCanonical(w)
	}
	w.PutVarUint(uint64(len(c.Tokens)))
	for _, tok := range c.Tokens {
		tok.MarshalCanonical(w)
	}
	w.PutVarUint(uint64(len(c.Groups)))
	for _, g := range c.Groups {
		w.PutUint32(uint32(g.Position))
		w.PutVarUint(uint64(len(g.Members)))
		members := make([]string, 0, len(g.Members))
		for member := range g.Members {
			members = append(members, member)
		}
		sort.Strings(members)
		for _, member := range members {
			w.PutBytes([]byte(member))
			w.PutUint32(g.Members[member])
		}
		w.PutUint32(g.Threshold)
	}
}

func (c *Contract) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if c.ID, err = r.Bytes(); err != nil {
		return err
	}
	if c.OwnerID, err = r.Bytes(); err != nil {
		return err
	}
	if c.Version, err = r.Uint32(); err != nil {
		return err
	}
	if c.ReadOnly, err = r.Bool(); err != nil {
		return err
	}
	nd, err := r.VarUint()
	if err != nil {
		return err
	}
	c.DocumentTypes = make([]*DocumentTypeDescriptor, nd)
	for i := range c.DocumentTypes {
		dt := &DocumentTypeDescriptor{}
		if err := dt.UnmarshalCanonical(r); err != nil {
			return err
		}
		c.DocumentTypes[i] = dt
	}
	nt, err := r.VarUint()
	if err != nil {
		return err
	}
	c.Tokens = make([]*TokenConfig, nt)
	for i := range c.Tokens {
		tok := &TokenConfig{}
		if err := tok.UnmarshalCanonical(r); err != nil {
			return err
		}
		c.Tokens[i] = tok
	}
	ng, err := r.VarUint()
	if err != nil {
		return err
	}
	c.Groups = make([]*Group, ng)
	for i := range c.Groups {
		g := &Group{Members: map[string]uint32{}}
		pos, err := r.Uint32()
		if err != nil {
			return err
		}
		g.Position = uint16(pos)
		nm, err := r.VarUint()
		if err != nil {
			return err
		}
		for j := uint64(0); j < nm; j++ {
			member, err := r.Bytes()
			if err != nil {
				return err
			}
			weight, err := r.Uint32()
			if err != nil {
				return err
			}
			g.Members[string(member)] = weight
		}
		if g.Threshold, err = r.Uint32(); err != nil {
			return err
		}
		c.Groups[i] = g
	}
	return nil
}

// DocumentType looks up a document type descriptor by name.
func (c *Contract) DocumentType(name string) (*DocumentTypeDescriptor, bool) {
	for _, dt := range c.DocumentTypes {
		if dt.Name == name {
			return dt, true
		}
	}
	return nil, false
}

var contractsPath = tree.NewPath("data-contracts")

// ContractsPath returns the top-level data-contracts subtree path.
func ContractsPath() tree.Path { return contractsPath }

// DocumentsPath returns the per-contract, per-document-type subtree path
// documents of this contract/type are stored under.
func DocumentsPath(contractID []byte, documentType string) tree.Path {
	return tree.NewPath("documents").Append(contractID).Append([]byte(documentType))
}

// IndexPath returns the subtree path for one named index on a document
// type, the location document-batch processing materializes reference
// entries into.
func IndexPath(contractID []byte, documentType, indexName string) tree.Path {
	return DocumentsPath(contractID, documentType).Append(tree.PathSeg("by-index")).Append(tree.PathSeg(indexName))
}
