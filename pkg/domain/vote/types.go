// Package vote implements contested document-index resolution: masternode
// voting over which contender wins a unique index slot
// multiple identities tried to claim simultaneously, plus generic
// multi-party group-signature threshold checks used elsewhere.
package vote

import (
	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/tree"
)

// Choice is the closed set of ballot choices a masternode can cast.
type Choice uint8

const (
	ChoiceDocument Choice = iota
	ChoiceAbstain
	ChoiceLock
)

// Contender is one identity's pending document competing for a contested
// index slot.
type Contender struct {
	DocumentID []byte
	OwnerID    []byte
	Votes      uint64
}

// ContestedResource is the persisted entity at path
// ["contested-resources"], key=ID (a hash of contract/type/index/key).
type ContestedResource struct {
	ID           []byte
	ContractID   []byte
	DocumentType string
	IndexName    string
	IndexKey     []byte
	EndEpoch     uint64
	Contenders   []*Contender
	LockVotes    uint64
	AbstainVotes uint64
}

func (r *ContestedResource) MarshalCanonical(w *codec.Writer) {
	w.PutBytes(r.ID)
	w.PutBytes(r.ContractID)
	w.PutString(r.DocumentType)
	w.PutString(r.IndexName)
	w.PutBytes(r.IndexKey)
	w.PutUint64(r.EndEpoch)
	w.PutVarUint(uint64(len(r.Contenders)))
	for _, c := range r.Contenders {
		w.PutBytes(c.DocumentID)
		w.PutBytes(c.OwnerID)
		w.PutUint64(c.Votes)
	}
	w.PutUint64(r.LockVotes)
	w.PutUint64(r.AbstainVotes)
}

func (r *ContestedResource) UnmarshalCanonical(rd *codec.Reader) error {
	var err error
	if r.ID, err = rd.Bytes(); err != nil {
		return err
	}
	if r.ContractID, err = rd.Bytes(); err != nil {
		return err
	}
	if r.DocumentType, err = rd.String(); err != nil {
		return err
	}
	if r.IndexName, err = rd.String(); err != nil {
		return err
	}
	if r.IndexKey, err = rd.Bytes(); err != nil {
		return err
	}
	if r.EndEpoch, err = rd.Uint64(); err != nil {
		return err
	}
	n, err := rd.VarUint()
	if err != nil {
		return err
	}
	r.Contenders = make([]*Contender, n)
	for i := range r.Contenders {
		c := &Contender{}
		if c.DocumentID, err = rd.Bytes(); err != nil {
			return err
		}
		if c.OwnerID, err = rd.Bytes(); err != nil {
			return err
		}
		if c.Votes, err = rd.Uint64(); err != nil {
			return err
		}
		r.Contenders[i] = c
	}
	if r.LockVotes, err = rd.Uint64(); err != nil {
		return err
	}
	r.AbstainVotes, err = rd.Uint64()
	return err
}

func (r *ContestedResource) contender(documentID []byte) *Contender {
	for _, c := range r.Contenders {
		if string(c.DocumentID) == string(documentID) {
			return c
		}
	}
	return nil
}

// Leader returns the contender currently holding the most votes, or nil
// if there are no contenders.
func (r *ContestedResource) Leader() *Contender {
	var best *Contender
	for _, c := range r.Contenders {
		if best == nil || c.Votes > best.Votes {
			best = c
		}
	}
	return best
}

// Record is one masternode's ballot for a resource, kept to prevent
// double-voting and to let a masternode change its vote before the
// resource's end epoch.
type Record struct {
	Choice     Choice
	DocumentID []byte // set only when Choice == ChoiceDocument
	CastEpoch  uint64
}

func (v *Record) MarshalCanonical(w *codec.Writer) {
	w.PutTag(uint8(v.Choice))
	w.PutOptionalBytes(v.DocumentID, v.DocumentID != nil)
	w.PutUint64(v.CastEpoch)
}

func (v *Record) UnmarshalCanonical(r *codec.Reader) error {
	tag, err := r.Tag()
	if err != nil {
		return err
	}
	v.Choice = Choice(tag)
	docID, _, err := r.OptionalBytes()
	if err != nil {
		return err
	}
	v.DocumentID = docID
	v.CastEpoch, err = r.Uint64()
	return err
}

var resourcesPath = tree.NewPath("contested-resources")
var queuePath = tree.NewPath("contested-resources-by-end-epoch")
var votesPath = tree.NewPath("contested-resource-votes")

// ResourcesPath returns the top-level contested-resources subtree path.
func ResourcesPath() tree.Path { return resourcesPath }

// QueuePath returns the end-epoch ordered queue subtree path.
func QueuePath() tree.Path { return queuePath }

// VotesPath returns the per-resource votes subtree path for resourceID.
func VotesPath(resourceID []byte) tree.Path { return votesPath.Append(resourceID) }

// QueueKey builds the sortable (endEpoch, resourceID) queue key: a
// fixed-width big-endian epoch prefix keeps queue entries ordered by
// expiry under the tree's lexicographic key sort.
func QueueKey(endEpoch uint64, resourceID []byte) []byte {
	w := codec.NewWriter(8 + len(resourceID))
	w.PutUint64(endEpoch)
	w.PutFixedBytes(resourceID)
	return w.Bytes()
}
