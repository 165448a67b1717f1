// Package withdrawal implements the withdrawal-queue document category:
// an identity-credit
// withdrawal locks credits and queues a core-chain payout until the
// broadcast pipeline picks it up and marks it broadcast or expired.
package withdrawal

import (
	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/tree"
)

// Pooling selects how a withdrawal's core-chain transaction is batched
// with others. The source this engine is modeled on ships a pooling enum
// but hard-codes the rule that pooling must be Never; non-Never pooling
// is treated as not-yet-implemented and rejected rather than given
// invented semantics (see DESIGN.md).
type Pooling uint8

const (
	PoolingNever Pooling = iota
	PoolingPerBlock
	PoolingPerEpoch
)

// Status is the lifecycle state of a queued withdrawal.
type Status uint8

const (
	StatusQueued Status = iota
	StatusBroadcast
	StatusExpired
)

// Withdrawal is the persisted entity at path ["withdrawal-queue"], key=id.
type Withdrawal struct {
	ID             []byte
	IdentityID     []byte
	Amount         uint64
	CoreFeePerByte uint64
	OutputScript   []byte // P2PKH/P2SH script this withdrawal pays to
	Pooling        Pooling
	Status         Status
	QueuedEpoch    uint64
}

func (w *Withdrawal) MarshalCanonical(wr *codec.Writer) {
	wr.PutBytes(w.ID)
	wr.PutBytes(w.IdentityID)
	wr.PutUint64(w.Amount)
	wr.PutUint64(w.CoreFeePerByte)
	wr.PutBytes(w.OutputScript)
	wr.PutTag(uint8(w.Pooling))
	wr.PutTag(uint8(w.Status))
	wr.PutUint64(w.QueuedEpoch)
}

func (w *Withdrawal) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if w.ID, err = r.Bytes(); err != nil {
		return err
	}
	if w.IdentityID, err = r.Bytes(); err != nil {
		return err
	}
	if w.Amount, err = r.Uint64(); err != nil {
		return err
	}
	if w.CoreFeePerByte, err = r.Uint64(); err != nil {
		return err
	}
	if w.OutputScript, err = r.Bytes(); err != nil {
		return err
	}
	tag, err := r.Tag()
	if err != nil {
		return err
	}
	w.Pooling = Pooling(tag)
	if tag, err = r.Tag(); err != nil {
		return err
	}
	w.Status = Status(tag)
	w.QueuedEpoch, err = r.Uint64()
	return err
}

// minOutputScriptLen/maxOutputScriptLen bound the core-chain output
// script forms this engine accepts: P2PKH (25 bytes) through P2SH-sized
// redeem script references, up to a generous ceiling that still rejects
// obviously-malformed scripts.
const (
	minOutputScriptLen = 20
	maxOutputScriptLen = 256
)

var queuePath = tree.NewPath("withdrawal-queue")

// QueuePath returns the top-level withdrawal-queue subtree path.
func QueuePath() tree.Path { return queuePath }
