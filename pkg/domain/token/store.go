package token

import (
	"encoding/hex"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/consensuserr"
	"github.com/meridianchain/drive/pkg/tree"
)

// Store layers token operations over the authenticated tree store.
type Store struct {
	tree *tree.Store
}

func NewStore(t *tree.Store) *Store { return &Store{tree: t} }

// Bootstrap creates the top-level tokens subtree.
func Bootstrap(t *tree.Store) error {
	return t.ApplyBatch(tree.NewBatch().InsertOrReplace(tree.Path{}, []byte("tokens"), tree.NewSubtree(tree.KindTree)))
}

func ruleID(id []byte) string { return hex.EncodeToString(id) }

func (s *Store) parentPath(contractID []byte, position uint16) (tree.Path, []byte) {
	p := tokenPath(contractID, position)
	return p[:len(p)-1], p[len(p)-1]
}

// Get fetches and decodes a token's state.
func (s *Store) Get(contractID []byte, position uint16) (*State, error) {
	el, err := s.tree.Get(StatePath(contractID, position), []byte("state"))
	if err != nil {
		return nil, err
	}
	st := &State{}
	if err := codec.Decode(el.Item, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Create provisions a new token's subtree chain and its initial state.
func (s *Store) Create(st *State) error {
	contractsTokensPath := tree.NewPath("tokens")
	if err := s.tree.ApplyBatch(tree.NewBatch().InsertOrReplace(contractsTokensPath, st.ContractID, tree.NewSubtree(tree.KindTree))); err != nil {
		return err
	}
	parent, key := s.parentPath(st.ContractID, st.Position)
	if err := s.tree.ApplyBatch(tree.NewBatch().InsertOrReplace(parent, key, tree.NewSubtree(tree.KindTree))); err != nil {
		return err
	}
	tp := StatePath(st.ContractID, st.Position)
	b := tree.NewBatch().
		Insert(tp, []byte("state"), tree.NewItem(codec.Encode(st))).
		InsertOrReplace(tp, []byte("balances"), tree.NewSubtree(tree.KindSumTree)).
		InsertOrReplace(tp, []byte("frozen"), tree.NewSubtree(tree.KindTree)).
		InsertOrReplace(tp, []byte("claims"), tree.NewSubtree(tree.KindTree))
	return s.tree.ApplyBatch(b)
}

func (s *Store) balanceOf(contractID []byte, position uint16, identity []byte) uint64 {
	el, err := s.tree.Get(BalancesPath(contractID, position), identity)
	if err != nil {
		return 0
	}
	if el.SumValue < 0 {
		return 0
	}
	return uint64(el.SumValue)
}

func (s *Store) isFrozen(contractID []byte, position uint16, identity []byte) bool {
	_, err := s.tree.Get(FrozenPath(contractID, position), identity)
	return err == nil
}

// Mint increases total supply and credits toIdentity's balance, rejecting
// the operation if it would exceed a configured supply cap.
func (s *Store) Mint(contractID []byte, position uint16, toIdentity []byte, amount uint64) error {
	st, err := s.Get(contractID, position)
	if err != nil {
		return err
	}
	if st.MaxSupply != 0 && st.TotalSupply+amount > st.MaxSupply {
		return consensuserr.New(consensuserr.KindInvalidTokenSupplyCapExceeded, "token-supply-cap", ruleID(contractID))
	}
	st.TotalSupply += amount
	bal := s.balanceOf(contractID, position, toIdentity)

	b := tree.NewBatch().Replace(StatePath(contractID, position), []byte("state"), tree.NewItem(codec.Encode(st)))
	upsertSum(b, BalancesPath(contractID, position), toIdentity, int64(bal+amount), bal != 0)
	return s.tree.ApplyBatch(b)
}

// Transfer moves amount tokens from one identity to another, carrying an
// optional note bounded by MaxNoteSize.
func (s *Store) Transfer(contractID []byte, position uint16, from, to []byte, amount uint64, note []byte) error {
	if string(from) == string(to) {
		return consensuserr.New(consensuserr.KindInvalidTokenTransferToSelf, "token-transfer-distinct-identities", ruleID(from))
	}
	if len(note) > MaxNoteSize {
		return consensuserr.New(consensuserr.KindInvalidTokenNoteTooBig, "token-note-max-size", ruleID(from))
	}
	st, err := s.Get(contractID, position)
	if err != nil {
		return err
	}
	if st.Paused {
		return consensuserr.New(consensuserr.KindTokenPaused, "token-not-paused", ruleID(contractID))
	}
	if s.isFrozen(contractID, position, from) || s.isFrozen(contractID, position, to) {
		return consensuserr.New(consensuserr.KindTokenFrozen, "token-identity-not-frozen", ruleID(from))
	}
	fromBal := s.balanceOf(contractID, position, from)
	if fromBal < amount {
		return consensuserr.New(consensuserr.KindInsufficientBalance, "token-transfer-balance", ruleID(from))
	}
	toBal := s.balanceOf(contractID, position, to)

	b := tree.NewBatch()
	balPath := BalancesPath(contractID, position)
	upsertSum(b, balPath, from, int64(fromBal-amount), true)
	upsertSum(b, balPath, to, int64(toBal+amount), toBal != 0)
	return s.tree.ApplyBatch(b)
}

// Burn reduces total supply and debits fromIdentity's balance, failing with
// insufficient-balance if the identity does not hold enough to burn.
func (s *Store) Burn(contractID []byte, position uint16, fromIdentity []byte, amount uint64) error {
	st, err := s.Get(contractID, position)
	if err != nil {
		return err
	}
	bal := s.balanceOf(contractID, position, fromIdentity)
	if bal < amount {
		return consensuserr.New(consensuserr.KindInsufficientBalance, "token-burn-balance", ruleID(fromIdentity))
	}
	st.TotalSupply -= amount

	b := tree.NewBatch().Replace(StatePath(contractID, position), []byte("state"), tree.NewItem(codec.Encode(st)))
	upsertSum(b, BalancesPath(contractID, position), fromIdentity, int64(bal-amount), true)
	return s.tree.ApplyBatch(b)
}

// SetDistribution configures or clears (dist == nil) the token's perpetual
// distribution schedule.
func (s *Store) SetDistribution(contractID []byte, position uint16, dist *Distribution) error {
	st, err := s.Get(contractID, position)
	if err != nil {
		return err
	}
	st.Distribution = dist
	return s.tree.ApplyBatch(tree.NewBatch().Replace(StatePath(contractID, position), []byte("state"), tree.NewItem(codec.Encode(st))))
}

// Freeze/Unfreeze toggle whether an identity may send or receive this token.
func (s *Store) Freeze(contractID []byte, position uint16, identity []byte) error {
	return s.tree.ApplyBatch(tree.NewBatch().InsertOrReplace(FrozenPath(contractID, position), identity, tree.NewItem(nil)))
}

func (s *Store) Unfreeze(contractID []byte, position uint16, identity []byte) error {
	return s.tree.ApplyBatch(tree.NewBatch().Delete(FrozenPath(contractID, position), identity))
}

// Pause/Unpause toggle whether any transfer of this token is allowed.
func (s *Store) Pause(contractID []byte, position uint16) error {
	return s.setPaused(contractID, position, true)
}

func (s *Store) Unpause(contractID []byte, position uint16) error {
	return s.setPaused(contractID, position, false)
}

func (s *Store) setPaused(contractID []byte, position uint16, paused bool) error {
	st, err := s.Get(contractID, position)
	if err != nil {
		return err
	}
	st.Paused = paused
	return s.tree.ApplyBatch(tree.NewBatch().Replace(StatePath(contractID, position), []byte("state"), tree.NewItem(codec.Encode(st))))
}

// UpdatePrice sets the direct-purchase price (0 delists the token).
func (s *Store) UpdatePrice(contractID []byte, position uint16, price uint64) error {
	st, err := s.Get(contractID, position)
	if err != nil {
		return err
	}
	st.Price = price
	return s.tree.ApplyBatch(tree.NewBatch().Replace(StatePath(contractID, position), []byte("state"), tree.NewItem(codec.Encode(st))))
}

// Claim mints an identity's accrued perpetual-distribution reward, failing
// with invalid-token-claim-no-current-rewards if no whole interval has
// elapsed since its last claim.
func (s *Store) Claim(contractID []byte, position uint16, identity []byte, currentEpoch uint64) error {
	st, err := s.Get(contractID, position)
	if err != nil {
		return err
	}
	if st.Distribution == nil || st.Distribution.IntervalEpochs == 0 {
		return consensuserr.New(consensuserr.KindInvalidTokenClaimNoRewards, "token-has-distribution", ruleID(contractID))
	}

	lastClaim := uint64(0)
	if el, err := s.tree.Get(ClaimsPath(contractID, position), identity); err == nil {
		r := codec.NewReader(el.Item)
		if v, err := r.Uint64(); err == nil {
			lastClaim = v
		}
	}
	if currentEpoch <= lastClaim {
		return consensuserr.New(consensuserr.KindInvalidTokenClaimNoRewards, "token-claim-interval-elapsed", ruleID(identity))
	}
	intervals := (currentEpoch - lastClaim) / st.Distribution.IntervalEpochs
	if intervals == 0 {
		return consensuserr.New(consensuserr.KindInvalidTokenClaimNoRewards, "token-claim-interval-elapsed", ruleID(identity))
	}
	amount := intervals * st.Distribution.AmountPerInterval
	if st.MaxSupply != 0 && st.TotalSupply+amount > st.MaxSupply {
		return consensuserr.New(consensuserr.KindInvalidTokenSupplyCapExceeded, "token-supply-cap", ruleID(contractID))
	}
	st.TotalSupply += amount
	bal := s.balanceOf(contractID, position, identity)

	w := codec.NewWriter(8)
	w.PutUint64(currentEpoch)

	b := tree.NewBatch().
		Replace(StatePath(contractID, position), []byte("state"), tree.NewItem(codec.Encode(st))).
		InsertOrReplace(ClaimsPath(contractID, position), identity, tree.NewItem(w.Bytes()))
	upsertSum(b, BalancesPath(contractID, position), identity, int64(bal+amount), bal != 0)
	return s.tree.ApplyBatch(b)
}

func upsertSum(b *tree.Batch, path tree.Path, key []byte, value int64, existed bool) {
	if existed {
		b.Replace(path, key, tree.NewSumItem(value))
	} else {
		b.Insert(path, key, tree.NewSumItem(value))
	}
}
