package identity

import (
	"encoding/hex"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/consensuserr"
	"github.com/meridianchain/drive/pkg/tree"
)

// Store layers identity operations over the authenticated tree store.
type Store struct {
	tree *tree.Store
}

// NewStore wraps t as an identity store.
func NewStore(t *tree.Store) *Store { return &Store{tree: t} }

// Bootstrap creates the identities, identity-balances, and
// identity-public-key-hashes top-level subtrees. Called once during
// genesis wiring, before any identity-create transition is processed.
func Bootstrap(t *tree.Store) error {
	b := tree.NewBatch().
		InsertOrReplace(tree.Path{}, []byte("identities"), tree.NewSubtree(tree.KindTree)).
		InsertOrReplace(tree.Path{}, []byte("identity-balances"), tree.NewSubtree(tree.KindSumTree)).
		InsertOrReplace(tree.Path{}, []byte("identity-public-key-hashes"), tree.NewSubtree(tree.KindTree))
	return t.ApplyBatch(b)
}

func ruleID(id []byte) string { return hex.EncodeToString(id) }

// Get fetches and decodes the identity with the given id.
func (s *Store) Get(id []byte) (*Identity, error) {
	el, err := s.tree.Get(IdentitiesPath(), id)
	if err != nil {
		if treeErr, ok := err.(*tree.Error); ok && treeErr.Kind == tree.FailurePathKeyNotFound {
			return nil, consensuserr.New(consensuserr.KindIdentityNotFound, "identity-must-exist", ruleID(id))
		}
		return nil, err
	}
	ident := &Identity{}
	if err := codec.Decode(el.Item, ident); err != nil {
		return nil, err
	}
	return ident, nil
}

// Create inserts a new identity, its balance sum entry, and one
// public-key-hash index entry per key.
func (s *Store) Create(ident *Identity) error {
	if !ident.HasMasterAuthenticationKey() {
		return consensuserr.New(consensuserr.KindInvalidSignature, "identity-requires-master-authentication-key", ruleID(ident.ID))
	}
	b := tree.NewBatch().
		Insert(IdentitiesPath(), ident.ID, tree.NewItem(codec.Encode(ident))).
		Insert(BalancesPath(), ident.ID, tree.NewSumItem(int64(ident.Balance)))
	for _, k := range ident.Keys {
		b.Insert(PublicKeyHashIndexPath(), k.Data, tree.NewReference(IdentitiesPath(), ident.ID))
	}
	return s.tree.ApplyBatch(b)
}

// CreditTransfer moves amount credits from fromID to toID, failing with
// the identity-insufficient-balance consensus error rather than letting
// either balance underflow.
func (s *Store) CreditTransfer(fromID, toID []byte, amount uint64) error {
	from, err := s.Get(fromID)
	if err != nil {
		return err
	}
	to, err := s.Get(toID)
	if err != nil {
		return err
	}
	if from.Balance < amount {
		return consensuserr.New(consensuserr.KindIdentityInsufficientBalance, "credit-transfer-balance", ruleID(fromID))
	}
	from.Balance -= amount
	to.Balance += amount
	from.Revision++
	to.Revision++

	b := tree.NewBatch().
		Replace(IdentitiesPath(), fromID, tree.NewItem(codec.Encode(from))).
		Replace(IdentitiesPath(), toID, tree.NewItem(codec.Encode(to))).
		Replace(BalancesPath(), fromID, tree.NewSumItem(int64(from.Balance))).
		Replace(BalancesPath(), toID, tree.NewSumItem(int64(to.Balance)))
	return s.tree.ApplyBatch(b)
}

// TopUp credits amount to an identity's balance funded by an asset lock
//.
func (s *Store) TopUp(id []byte, amount uint64) error {
	ident, err := s.Get(id)
	if err != nil {
		return err
	}
	ident.Balance += amount
	ident.Revision++
	b := tree.NewBatch().
		Replace(IdentitiesPath(), id, tree.NewItem(codec.Encode(ident))).
		Replace(BalancesPath(), id, tree.NewSumItem(int64(ident.Balance)))
	return s.tree.ApplyBatch(b)
}

// AddKeys appends new public keys to an identity.
func (s *Store) AddKeys(id []byte, newKeys []*Key) error {
	ident, err := s.Get(id)
	if err != nil {
		return err
	}
	ident.Keys = append(ident.Keys, newKeys...)
	ident.Revision++

	b := tree.NewBatch().Replace(IdentitiesPath(), id, tree.NewItem(codec.Encode(ident)))
	for _, k := range newKeys {
		b.Insert(PublicKeyHashIndexPath(), k.Data, tree.NewReference(IdentitiesPath(), id))
	}
	return s.tree.ApplyBatch(b)
}

// DisableKeys marks the given key ids as disabled at disabledAtMs,
// rejecting the operation if doing so would leave the identity without
// any enabled master authentication key.
func (s *Store) DisableKeys(id []byte, keyIDs []uint32, disabledAtMs uint64) error {
	ident, err := s.Get(id)
	if err != nil {
		return err
	}
	toDisable := make(map[uint32]bool, len(keyIDs))
	for _, kid := range keyIDs {
		toDisable[kid] = true
	}
	for _, k := range ident.Keys {
		if toDisable[k.ID] {
			k.DisabledAtMs = disabledAtMs
		}
	}
	if !ident.HasMasterAuthenticationKey() {
		return consensuserr.New(consensuserr.KindInvalidSignature, "identity-requires-master-authentication-key", ruleID(id))
	}
	ident.Revision++
	return s.tree.ApplyBatch(tree.NewBatch().Replace(IdentitiesPath(), id, tree.NewItem(codec.Encode(ident))))
}

// CheckAndBumpNonce validates that nonce is strictly greater than the
// identity's stored nonce and at most 1000 above it and, if so, stores it.
func (s *Store) CheckAndBumpNonce(id []byte, nonce uint64) error {
	ident, err := s.Get(id)
	if err != nil {
		return err
	}
	if nonce <= ident.Nonce {
		return consensuserr.New(consensuserr.KindInvalidNonce, "nonce-strictly-increasing", ruleID(id))
	}
	if nonce > ident.Nonce+1000 {
		return consensuserr.New(consensuserr.KindNonceOutOfBounds, "nonce-window", ruleID(id))
	}
	ident.Nonce = nonce
	return s.tree.ApplyBatch(tree.NewBatch().Replace(IdentitiesPath(), id, tree.NewItem(codec.Encode(ident))))
}
