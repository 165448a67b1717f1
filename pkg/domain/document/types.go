// Package document implements the Document entity: schema-free property
// bags anchored to a data contract's document type,
// with materialized index entries and optional history retention.
package document

import (
	"github.com/meridianchain/drive/pkg/codec"
	contractpkg "github.com/meridianchain/drive/pkg/domain/contract"
	"github.com/meridianchain/drive/pkg/tree"
)

// Property is one scalar field of a document, stored as its canonical
// encoded form so index key construction stays independent of the value's
// original Go type.
type Property struct {
	Name  string
	Value []byte
}

// Document is the persisted entity at path
// ["documents", contractID, documentType], key=id.
type Document struct {
	ID           []byte
	ContractID   []byte
	DocumentType string
	OwnerID      []byte
	Revision     uint64
	CreatedEpoch uint64
	UpdatedEpoch uint64
	Properties   []Property

	// Price is non-zero only for documents listed for sale via a token
	// trade.
	Price uint64
}

func (d *Document) MarshalCanonical(w *codec.Writer) {
	w.PutBytes(d.ID)
	w.PutBytes(d.ContractID)
	w.PutString(d.DocumentType)
	w.PutBytes(d.OwnerID)
	w.PutUint64(d.Revision)
	w.PutUint64(d.CreatedEpoch)
	w.PutUint64(d.UpdatedEpoch)
	w.PutVarUint(uint64(len(d.Properties)))
	for _, p := range d.Properties {
		w.PutString(p.Name)
		w.PutBytes(p.Value)
	}
	w.PutUint64(d.Price)
}

func (d *Document) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if d.ID, err = r.Bytes(); err != nil {
		return err
	}
	if d.ContractID, err = r.Bytes(); err != nil {
		return err
	}
	if d.DocumentType, err = r.String(); err != nil {
		return err
	}
	if d.OwnerID, err = r.Bytes(); err != nil {
		return err
	}
	if d.Revision, err = r.Uint64(); err != nil {
		return err
	}
	if d.CreatedEpoch, err = r.Uint64(); err != nil {
		return err
	}
	if d.UpdatedEpoch, err = r.Uint64(); err != nil {
		return err
	}
	n, err := r.VarUint()
	if err != nil {
		return err
	}
	d.Properties = make([]Property, n)
	for i := range d.Properties {
		if d.Properties[i].Name, err = r.String(); err != nil {
			return err
		}
		if d.Properties[i].Value, err = r.Bytes(); err != nil {
			return err
		}
	}
	d.Price, err = r.Uint64()
	return err
}

// Get returns the named property's value and whether it was present.
func (d *Document) Get(name string) ([]byte, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Set replaces or appends the named property.
func (d *Document) Set(name string, value []byte) {
	for i := range d.Properties {
		if d.Properties[i].Name == name {
			d.Properties[i].Value = value
			return
		}
	}
	d.Properties = append(d.Properties, Property{Name: name, Value: value})
}

// DocumentsPath returns the per-contract/per-type documents subtree path.
func DocumentsPath(contractID []byte, documentType string) tree.Path {
	return contractpkg.DocumentsPath(contractID, documentType)
}

// historyPrefix marks the subtree key under which superseded revisions of
// a history-retaining document type are kept: one subtree per document at
// historyPrefix/documentID, keyed by the big-endian revision number.
var historyPrefix = []byte{0xFF}

// HistoryPath returns the subtree path storing past revisions of one
// document, for document types with KeepsHistory set.
func HistoryPath(contractID []byte, documentType string, documentID []byte) tree.Path {
	return DocumentsPath(contractID, documentType).Append(historyPrefix).Append(documentID)
}

// indexEntryKey builds the composite index key for a document under one
// index descriptor: the concatenation of its indexed property values in
// declared order, each length-prefixed so no property's bytes can bleed
// into the next, followed by the document id to keep non-unique index
// entries distinct.
func indexEntryKey(idx *contractpkg.IndexDescriptor, doc *Document) []byte {
	w := codec.NewWriter(64)
	for _, prop := range idx.Properties {
		val, _ := doc.Get(prop.Name)
		w.PutBytes(val)
	}
	if !idx.Unique {
		w.PutBytes(doc.ID)
	}
	return w.Bytes()
}
