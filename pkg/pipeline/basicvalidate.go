package pipeline

import "github.com/meridianchain/drive/pkg/protocolerr"

// MaxUserFeeIncreasePermille bounds how far a signer may inflate their own
// fee above the schedule's base cost; transitions outside this range are
// malformed rather than merely rejected, since a schedule-breaking fee
// multiplier could otherwise be used to manipulate epoch pool accounting.
const MaxUserFeeIncreasePermille = 10_000 // +1000%

// BasicValidate performs the transition's structural sanity checks,
// ahead of any state lookup: malformed input here aborts
// the block, the same as a decode failure, since it reflects a proposer
// that accepted structurally invalid input into the block.
func BasicValidate(env *Envelope) error {
	if len(env.SignerID) == 0 {
		return protocolerr.New(protocolerr.KindMalformedTransition, "transition signer id must not be empty")
	}
	if env.UserFeeIncreasePermille > MaxUserFeeIncreasePermille {
		return protocolerr.New(protocolerr.KindMalformedTransition, "transition user fee increase out of bounds")
	}
	if len(env.Body) == 0 {
		return protocolerr.New(protocolerr.KindMalformedTransition, "transition body must not be empty")
	}
	return nil
}
