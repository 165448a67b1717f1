// Package assetlock implements partial-use asset-lock outpoint tracking:
// an asset lock transaction on the core
// chain can fund more than one identity-top-up over its lifetime, so the
// engine must track how much of its locked amount has already been spent
// rather than treating each outpoint as single-use.
package assetlock

import (
	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/tree"
)

// Outpoint identifies the core-chain transaction output that funds an
// asset lock.
type Outpoint struct {
	TxID []byte // 32 bytes
	Vout uint32
}

// Key returns the outpoint's canonical tree-store key, usable by callers
// outside this package (e.g. pkg/query) that need to build a path-query
// for one asset lock without going through Store.
func (o Outpoint) Key() []byte {
	w := codec.NewWriter(36)
	w.PutFixedBytes(o.TxID)
	w.PutUint32(o.Vout)
	return w.Bytes()
}

func (o Outpoint) encode() []byte { return o.Key() }

// AssetLock is the persisted entity at path ["asset-locks"], key=outpoint.
type AssetLock struct {
	Outpoint    Outpoint
	IdentityID  []byte
	TotalAmount uint64
	UsedAmount  uint64
}

func (a *AssetLock) MarshalCanonical(w *codec.Writer) {
	w.PutFixedBytes(a.Outpoint.TxID)
	w.PutUint32(a.Outpoint.Vout)
	w.PutBytes(a.IdentityID)
	w.PutUint64(a.TotalAmount)
	w.PutUint64(a.UsedAmount)
}

func (a *AssetLock) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if a.Outpoint.TxID, err = r.FixedBytes(32); err != nil {
		return err
	}
	if a.Outpoint.Vout, err = r.Uint32(); err != nil {
		return err
	}
	if a.IdentityID, err = r.Bytes(); err != nil {
		return err
	}
	if a.TotalAmount, err = r.Uint64(); err != nil {
		return err
	}
	a.UsedAmount, err = r.Uint64()
	return err
}

// Remaining returns the unspent portion of the lock.
func (a *AssetLock) Remaining() uint64 { return a.TotalAmount - a.UsedAmount }

var assetLocksPath = tree.NewPath("asset-locks")

// AssetLocksPath returns the top-level asset-locks subtree path.
func AssetLocksPath() tree.Path { return assetLocksPath }
