package pipeline

import (
	"github.com/meridianchain/drive/pkg/consensuserr"
	"github.com/meridianchain/drive/pkg/fees"
)

// Status is the closed set of per-transition results a block-outcome
// record carries.
type Status uint8

const (
	// StatusApplied means every stage succeeded and state was mutated.
	StatusApplied Status = iota
	// StatusRejected means a consensus error fired during validation;
	// no domain state changed. A rejection in state validation still
	// bumps the nonce and charges a fixed minimum fee; a rejection in
	// signature verification does neither.
	StatusRejected
	// StatusNonceBump covers the narrower case where even the nonce
	// check itself failed (stale/out-of-window nonce): the transition
	// is dropped with no fee charged at all, since there is no reliable
	// signer-balance state to charge against without a valid nonce.
	StatusNonceBump
)

// FixedRejectionFeeUnits is the processing-unit cost charged for a
// transition that reached state-validation but was rejected by a
// consensus error, independent of the fee schedule's normal per-operation
// accounting.
const FixedRejectionFeeUnits = 1

// Outcome is the per-transition result folded into the block outcome.
type Outcome struct {
	Status       Status
	ConsensusErr *consensuserr.Error // non-nil iff Status == StatusRejected
	Fee          fees.Result
	Events       []string // human-readable event tags, surfaced as ABCI events
}
