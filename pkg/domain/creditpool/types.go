// Package creditpool implements per-epoch fee pool accounting and
// proposer payout: processing/storage fee pools funded
// by every transition's fee settlement, proposer block-count tracking for
// pro-rata payout, and the protocol-version upgrade vote carried on every
// block.
package creditpool

import (
	"sort"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/tree"
)

// EpochInfo is the persisted per-epoch record at path ["credit-pools"],
// key=big-endian epoch index.
type EpochInfo struct {
	Index             uint64
	StartHeight       uint64
	ProtocolVersion    uint32
	FeeMultiplePermille uint64 // user-fee-increase-permille baseline for the epoch
	ProcessingFeePool uint64
	StorageFeePool    uint64
	TotalBlocks       uint64
	ProposerBlocks    map[string]uint64 // proposer id (string(bytes)) -> blocks proposed
	VersionVotes      map[uint32]uint64 // desired next protocol version -> vote count
	Paid              bool
}

func (e *EpochInfo) MarshalCanonical(w *codec.Writer) {
	w.PutUint64(e.Index)
	w.PutUint64(e.StartHeight)
	w.PutUint32(e.ProtocolVersion)
	w.PutUint64(e.FeeMultiplePermille)
	w.PutUint64(e.ProcessingFeePool)
	w.PutUint64(e.StorageFeePool)
	w.PutUint64(e.TotalBlocks)
	w.PutVarUint(uint64(len(e.ProposerBlocks)))
	proposers := make([]string, 0, len(e.ProposerBlocks))
	for id := range e.ProposerBlocks {
		proposers = append(proposers, id)
	}
	sort.Strings(proposers)
	for _, id := range proposers {
		w.PutBytes([]byte(id))
		w.PutUint64(e.ProposerBlocks[id])
	}
	w.PutVarUint(uint64(len(e.VersionVotes)))
	versions := make([]uint32, 0, len(e.VersionVotes))
	for v := range e.VersionVotes {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	for _, v := range versions {
		w.PutUint32(v)
		w.PutUint64(e.VersionVotes[v])
	}
	w.PutBool(e.Paid)
}

func (e *EpochInfo) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if e.Index, err = r.Uint64(); err != nil {
		return err
	}
	if e.StartHeight, err = r.Uint64(); err != nil {
		return err
	}
	if e.ProtocolVersion, err = r.Uint32(); err != nil {
		return err
	}
	if e.FeeMultiplePermille, err = r.Uint64(); err != nil {
		return err
	}
	if e.ProcessingFeePool, err = r.Uint64(); err != nil {
		return err
	}
	if e.StorageFeePool, err = r.Uint64(); err != nil {
		return err
	}
	if e.TotalBlocks, err = r.Uint64(); err != nil {
		return err
	}
	np, err := r.VarUint()
	if err != nil {
		return err
	}
	e.ProposerBlocks = make(map[string]uint64, np)
	for i := uint64(0); i < np; i++ {
		id, err := r.Bytes()
		if err != nil {
			return err
		}
		n, err := r.Uint64()
		if err != nil {
			return err
		}
		e.ProposerBlocks[string(id)] = n
	}
	nv, err := r.VarUint()
	if err != nil {
		return err
	}
	e.VersionVotes = make(map[uint32]uint64, nv)
	for i := uint64(0); i < nv; i++ {
		v, err := r.Uint32()
		if err != nil {
			return err
		}
		n, err := r.Uint64()
		if err != nil {
			return err
		}
		e.VersionVotes[v] = n
	}
	e.Paid, err = r.Bool()
	return err
}

// Meta is the persisted singleton record at path {}, key="credit-pool-meta".
type Meta struct {
	CurrentEpoch   uint64
	UnpaidEpoch    uint64 // oldest epoch not yet paid out
	ProtocolVersion uint32
}

func (m *Meta) MarshalCanonical(w *codec.Writer) {
	w.PutUint64(m.CurrentEpoch)
	w.PutUint64(m.UnpaidEpoch)
	w.PutUint32(m.ProtocolVersion)
}

func (m *Meta) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if m.CurrentEpoch, err = r.Uint64(); err != nil {
		return err
	}
	if m.UnpaidEpoch, err = r.Uint64(); err != nil {
		return err
	}
	m.ProtocolVersion, err = r.Uint32()
	return err
}

var epochsPath = tree.NewPath("credit-pools")

// EpochsPath returns the top-level per-epoch records subtree path.
func EpochsPath() tree.Path { return epochsPath }

// EpochKey returns the sortable key for epoch index.
func EpochKey(index uint64) []byte {
	w := codec.NewWriter(8)
	w.PutUint64(index)
	return w.Bytes()
}

var metaKey = []byte("credit-pool-meta")

// MetaKey returns the top-level key the singleton Meta record is stored
// under.
func MetaKey() []byte { return metaKey }
