package assetlock

import (
	"encoding/hex"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/consensuserr"
	"github.com/meridianchain/drive/pkg/tree"
)

// Store layers asset-lock operations over the authenticated tree store.
type Store struct {
	tree *tree.Store
}

func NewStore(t *tree.Store) *Store { return &Store{tree: t} }

// Bootstrap creates the top-level asset-locks subtree.
func Bootstrap(t *tree.Store) error {
	return t.ApplyBatch(tree.NewBatch().InsertOrReplace(tree.Path{}, []byte("asset-locks"), tree.NewSubtree(tree.KindTree)))
}

func ruleID(key []byte) string { return hex.EncodeToString(key) }

// Get fetches and decodes an asset lock by outpoint.
func (s *Store) Get(outpoint Outpoint) (*AssetLock, error) {
	key := outpoint.encode()
	el, err := s.tree.Get(AssetLocksPath(), key)
	if err != nil {
		if treeErr, ok := err.(*tree.Error); ok && treeErr.Kind == tree.FailurePathKeyNotFound {
			return nil, consensuserr.New(consensuserr.KindAssetLockNotFound, "asset-lock-must-exist", ruleID(key))
		}
		return nil, err
	}
	a := &AssetLock{}
	if err := codec.Decode(el.Item, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Register records a new asset lock available for top-ups, failing if the
// outpoint has already been registered (an asset lock transaction can
// only be registered once, though it may be partially spent many times).
func (s *Store) Register(outpoint Outpoint, identityID []byte, totalAmount uint64) error {
	a := &AssetLock{Outpoint: outpoint, IdentityID: identityID, TotalAmount: totalAmount}
	return s.tree.ApplyBatch(tree.NewBatch().Insert(AssetLocksPath(), outpoint.encode(), tree.NewItem(codec.Encode(a))))
}

// Consume spends amount from the lock's remaining balance, failing with
// asset-lock-already-fully-consumed if the lock has no remaining balance
// and insufficient-balance if amount exceeds what remains.
func (s *Store) Consume(outpoint Outpoint, amount uint64) (remaining uint64, err error) {
	a, err := s.Get(outpoint)
	if err != nil {
		return 0, err
	}
	if a.Remaining() == 0 {
		return 0, consensuserr.New(consensuserr.KindAssetLockAlreadyFullyConsumed, "asset-lock-has-remaining-balance", ruleID(outpoint.encode()))
	}
	if amount > a.Remaining() {
		return 0, consensuserr.New(consensuserr.KindInsufficientBalance, "asset-lock-sufficient-remaining", ruleID(outpoint.encode()))
	}
	a.UsedAmount += amount
	if err := s.tree.ApplyBatch(tree.NewBatch().Replace(AssetLocksPath(), outpoint.encode(), tree.NewItem(codec.Encode(a)))); err != nil {
		return 0, err
	}
	return a.Remaining(), nil
}
