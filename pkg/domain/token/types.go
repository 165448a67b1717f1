// Package token implements per-contract token state: supply,
// per-identity balances, freeze/pause controls, direct-purchase
// pricing, and perpetual distribution claims.
package token

import (
	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/tree"
)

// MaxNoteSize bounds the memo attached to a transfer; a longer note
// triggers the invalid-token-note-too-big consensus error.
const MaxNoteSize = 256

// Distribution describes a perpetual, interval-based token emission:
// every IntervalEpochs, an identity that
// calls Claim may mint AmountPerInterval times the number of whole
// intervals elapsed since its last claim.
type Distribution struct {
	IntervalEpochs    uint64
	AmountPerInterval uint64
}

func (d *Distribution) MarshalCanonical(w *codec.Writer) {
	w.PutUint64(d.IntervalEpochs)
	w.PutUint64(d.AmountPerInterval)
}

func (d *Distribution) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if d.IntervalEpochs, err = r.Uint64(); err != nil {
		return err
	}
	d.AmountPerInterval, err = r.Uint64()
	return err
}

// State is the persisted per-token record at path
// ["tokens", contractID, position], key="state".
type State struct {
	ContractID   []byte
	Position     uint16
	TotalSupply  uint64
	MaxSupply    uint64 // 0 means uncapped
	Decimals     uint8
	Paused       bool
	Price        uint64 // 0 means not listed for direct purchase
	Distribution *Distribution
}

func (s *State) MarshalCanonical(w *codec.Writer) {
	w.PutBytes(s.ContractID)
	w.PutUint32(uint32(s.Position))
	w.PutUint64(s.TotalSupply)
	w.PutUint64(s.MaxSupply)
	w.PutUint8(s.Decimals)
	w.PutBool(s.Paused)
	w.PutUint64(s.Price)
	w.PutBool(s.Distribution != nil)
	if s.Distribution != nil {
		w.PutUint64(s.Distribution.IntervalEpochs)
		w.PutUint64(s.Distribution.AmountPerInterval)
	}
}

func (s *State) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if s.ContractID, err = r.Bytes(); err != nil {
		return err
	}
	pos, err := r.Uint32()
	if err != nil {
		return err
	}
	s.Position = uint16(pos)
	if s.TotalSupply, err = r.Uint64(); err != nil {
		return err
	}
	if s.MaxSupply, err = r.Uint64(); err != nil {
		return err
	}
	if s.Decimals, err = r.Uint8(); err != nil {
		return err
	}
	if s.Paused, err = r.Bool(); err != nil {
		return err
	}
	if s.Price, err = r.Uint64(); err != nil {
		return err
	}
	hasDist, err := r.Bool()
	if err != nil {
		return err
	}
	if hasDist {
		s.Distribution = &Distribution{}
		if s.Distribution.IntervalEpochs, err = r.Uint64(); err != nil {
			return err
		}
		if s.Distribution.AmountPerInterval, err = r.Uint64(); err != nil {
			return err
		}
	}
	return nil
}

func tokenPath(contractID []byte, position uint16) tree.Path {
	return tree.NewPath("tokens").Append(contractID).Append(codec.Encode(posKey(position)))
}

// StatePath returns the subtree path holding one token's state item.
func StatePath(contractID []byte, position uint16) tree.Path { return tokenPath(contractID, position) }

// BalancesPath returns the sum subtree of per-identity balances.
func BalancesPath(contractID []byte, position uint16) tree.Path {
	return tokenPath(contractID, position).Append([]byte("balances"))
}

// FrozenPath returns the subtree whose key presence marks an identity frozen.
func FrozenPath(contractID []byte, position uint16) tree.Path {
	return tokenPath(contractID, position).Append([]byte("frozen"))
}

// ClaimsPath returns the subtree tracking each identity's last distribution
// claim epoch.
func ClaimsPath(contractID []byte, position uint16) tree.Path {
	return tokenPath(contractID, position).Append([]byte("claims"))
}

type posKey uint16

func (p posKey) MarshalCanonical(w *codec.Writer) { w.PutUint32(uint32(p)) }
