package withdrawal

import (
	"encoding/hex"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/consensuserr"
	"github.com/meridianchain/drive/pkg/protocolerr"
	"github.com/meridianchain/drive/pkg/tree"
)

// Store layers withdrawal-queue operations over the authenticated tree
// store.
type Store struct {
	tree *tree.Store
}

func NewStore(t *tree.Store) *Store { return &Store{tree: t} }

// Bootstrap creates the top-level withdrawal-queue subtree.
func Bootstrap(t *tree.Store) error {
	return t.ApplyBatch(tree.NewBatch().InsertOrReplace(tree.Path{}, []byte("withdrawal-queue"), tree.NewSubtree(tree.KindTree)))
}

func ruleID(id []byte) string { return hex.EncodeToString(id) }

// Get fetches and decodes a queued withdrawal by id.
func (s *Store) Get(id []byte) (*Withdrawal, error) {
	el, err := s.tree.Get(QueuePath(), id)
	if err != nil {
		if treeErr, ok := err.(*tree.Error); ok && treeErr.Kind == tree.FailurePathKeyNotFound {
			return nil, protocolerr.New(protocolerr.KindInternalInvariant, "withdrawal-must-exist: "+ruleID(id))
		}
		return nil, err
	}
	w := &Withdrawal{}
	if err := codec.Decode(el.Item, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Queue validates and inserts a new withdrawal request for the
// identity-credit-withdrawal transition. The identity balance debit
// itself is the caller's responsibility (pkg/pipeline), since the credit
// side belongs to pkg/domain/identity, not here.
func (s *Store) Queue(w *Withdrawal) error {
	if w.Amount == 0 {
		return consensuserr.New(consensuserr.KindInvalidWithdrawalAmount, "withdrawal-amount-positive", ruleID(w.ID))
	}
	if w.CoreFeePerByte == 0 {
		return consensuserr.New(consensuserr.KindInvalidWithdrawalCoreFee, "withdrawal-core-fee-positive", ruleID(w.ID))
	}
	if len(w.OutputScript) < minOutputScriptLen || len(w.OutputScript) > maxOutputScriptLen {
		return consensuserr.New(consensuserr.KindInvalidWithdrawalOutputScript, "withdrawal-output-script-well-formed", ruleID(w.ID))
	}
	if w.Pooling != PoolingNever {
		return consensuserr.New(consensuserr.KindInvalidWithdrawalPooling, "withdrawal-pooling-must-be-never", ruleID(w.ID))
	}
	w.Status = StatusQueued
	return s.tree.ApplyBatch(tree.NewBatch().Insert(QueuePath(), w.ID, tree.NewItem(codec.Encode(w))))
}

// MarkBroadcast transitions a queued withdrawal to broadcast, called once
// the core-chain transaction paying it out has been submitted.
func (s *Store) MarkBroadcast(id []byte) error {
	w, err := s.Get(id)
	if err != nil {
		return err
	}
	w.Status = StatusBroadcast
	return s.tree.ApplyBatch(tree.NewBatch().Replace(QueuePath(), id, tree.NewItem(codec.Encode(w))))
}
