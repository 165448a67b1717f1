package creditpool

import (
	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/domain/identity"
	"github.com/meridianchain/drive/pkg/protocolerr"
	"github.com/meridianchain/drive/pkg/tree"
)

// UpgradeThresholdPermille is the supermajority fraction of a epoch's
// blocks that must carry the same desired next protocol version for the
// network to upgrade at the epoch boundary.
const UpgradeThresholdPermille = 750

// Store layers credit-pool accounting over the authenticated tree store.
type Store struct {
	tree *tree.Store
}

func NewStore(t *tree.Store) *Store { return &Store{tree: t} }

// Bootstrap creates the top-level credit-pools subtree and its meta
// singleton, and opens epoch 0.
func Bootstrap(t *tree.Store, genesisProtocolVersion uint32) error {
	b := tree.NewBatch().InsertOrReplace(tree.Path{}, []byte("credit-pools"), tree.NewSubtree(tree.KindTree))
	if err := t.ApplyBatch(b); err != nil {
		return err
	}
	meta := &Meta{ProtocolVersion: genesisProtocolVersion}
	epoch := &EpochInfo{ProtocolVersion: genesisProtocolVersion, ProposerBlocks: map[string]uint64{}, VersionVotes: map[uint32]uint64{}}
	b2 := tree.NewBatch().
		Insert(tree.Path{}, MetaKey(), tree.NewItem(codec.Encode(meta))).
		Insert(EpochsPath(), EpochKey(0), tree.NewItem(codec.Encode(epoch)))
	return t.ApplyBatch(b2)
}

// GetMeta fetches the credit-pool singleton state.
func (s *Store) GetMeta() (*Meta, error) {
	el, err := s.tree.Get(tree.Path{}, MetaKey())
	if err != nil {
		return nil, err
	}
	m := &Meta{}
	if err := codec.Decode(el.Item, m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetEpoch fetches a single epoch's record.
func (s *Store) GetEpoch(index uint64) (*EpochInfo, error) {
	el, err := s.tree.Get(EpochsPath(), EpochKey(index))
	if err != nil {
		return nil, err
	}
	e := &EpochInfo{}
	if err := codec.Decode(el.Item, e); err != nil {
		return nil, err
	}
	return e, nil
}

// RecordBlock folds one block's settled fees, proposer identity, and
// desired-next-protocol-version vote into the current epoch. Fee
// settlement credits the pools every block, not just at epoch close.
func (s *Store) RecordBlock(proposerID []byte, processingFee, storageFee uint64, desiredProtocolVersion uint32, blockHeight uint64) error {
	meta, err := s.GetMeta()
	if err != nil {
		return err
	}
	epoch, err := s.GetEpoch(meta.CurrentEpoch)
	if err != nil {
		return err
	}
	epoch.ProcessingFeePool += processingFee
	epoch.StorageFeePool += storageFee
	epoch.TotalBlocks++
	epoch.ProposerBlocks[string(proposerID)]++
	epoch.VersionVotes[desiredProtocolVersion]++

	return s.tree.ApplyBatch(tree.NewBatch().Replace(EpochsPath(), EpochKey(epoch.Index), tree.NewItem(codec.Encode(epoch))))
}

// FinalizeEpoch closes the current epoch, decides whether a protocol
// version upgrade reached supermajority support, and opens the next
// epoch. Returns protocolerr.KindInternalInvariant if the recorded vote
// tally exceeds the epoch's own block count — a corrupted-accounting
// condition that must abort the block rather than silently upgrade on
// bad data.
func (s *Store) FinalizeEpoch(nextStartHeight uint64, nextFeeMultiplePermille uint64) error {
	meta, err := s.GetMeta()
	if err != nil {
		return err
	}
	epoch, err := s.GetEpoch(meta.CurrentEpoch)
	if err != nil {
		return err
	}

	var votesSum uint64
	nextVersion := epoch.ProtocolVersion
	for v, n := range epoch.VersionVotes {
		votesSum += n
		if n*1000 >= epoch.TotalBlocks*UpgradeThresholdPermille {
			nextVersion = v
		}
	}
	if votesSum > epoch.TotalBlocks {
		return protocolerr.New(protocolerr.KindInternalInvariant, "epoch protocol-version vote tally exceeds block count")
	}

	meta.CurrentEpoch++
	meta.ProtocolVersion = nextVersion
	nextEpoch := &EpochInfo{
		Index: meta.CurrentEpoch, StartHeight: nextStartHeight, ProtocolVersion: nextVersion,
		FeeMultiplePermille: nextFeeMultiplePermille,
		ProposerBlocks:      map[string]uint64{}, VersionVotes: map[uint32]uint64{},
	}
	b := tree.NewBatch().
		Replace(tree.Path{}, MetaKey(), tree.NewItem(codec.Encode(meta))).
		Insert(EpochsPath(), EpochKey(meta.CurrentEpoch), tree.NewItem(codec.Encode(nextEpoch)))
	return s.tree.ApplyBatch(b)
}

// PayoutResult is one proposer's share of an epoch's fee pools.
type PayoutResult struct {
	ProposerID []byte
	Amount     uint64
}

// PayoutEpoch computes each proposer's pro-rata share of epochIndex's
// combined fee pools and credits every share to the proposer's identity
// balance in a single batch: epoch payout is one atomic operation, never
// a loop of independent transfers.
func (s *Store) PayoutEpoch(epochIndex uint64, identities *identity.Store) ([]PayoutResult, error) {
	epoch, err := s.GetEpoch(epochIndex)
	if err != nil {
		return nil, err
	}
	if epoch.Paid || epoch.TotalBlocks == 0 {
		epoch.Paid = true
		return nil, s.tree.ApplyBatch(tree.NewBatch().Replace(EpochsPath(), EpochKey(epochIndex), tree.NewItem(codec.Encode(epoch))))
	}
	pool := epoch.ProcessingFeePool + epoch.StorageFeePool

	var results []PayoutResult
	b := tree.NewBatch()
	for proposerID, blocks := range epoch.ProposerBlocks {
		share := pool * blocks / epoch.TotalBlocks
		if share == 0 {
			continue
		}
		ident, err := identities.Get([]byte(proposerID))
		if err != nil {
			return nil, err
		}
		ident.Balance += share
		ident.Revision++
		b.Replace(identity.IdentitiesPath(), ident.ID, tree.NewItem(codec.Encode(ident)))
		b.Replace(identity.BalancesPath(), ident.ID, tree.NewSumItem(int64(ident.Balance)))
		results = append(results, PayoutResult{ProposerID: []byte(proposerID), Amount: share})
	}

	meta, err := s.GetMeta()
	if err != nil {
		return nil, err
	}
	meta.UnpaidEpoch = epochIndex + 1
	epoch.Paid = true
	b.Replace(tree.Path{}, MetaKey(), tree.NewItem(codec.Encode(meta)))
	b.Replace(EpochsPath(), EpochKey(epochIndex), tree.NewItem(codec.Encode(epoch)))

	if err := s.tree.ApplyBatch(b); err != nil {
		return nil, err
	}
	return results, nil
}
