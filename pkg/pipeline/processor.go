package pipeline

import (
	"github.com/meridianchain/drive/pkg/consensuserr"
	"github.com/meridianchain/drive/pkg/domain/creditpool"
)

// kindName renders a Kind for metric labels; unlike String() it doesn't
// need to be exhaustive at the type-registry level, just stable.
func kindName(k Kind) string {
	names := [...]string{
		"identity_create", "identity_top_up", "identity_update",
		"identity_credit_transfer", "identity_credit_withdrawal",
		"data_contract_create", "data_contract_update",
		"document_batch", "token_batch", "masternode_vote",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

func statusName(s Status) string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusNonceBump:
		return "nonce_bump"
	default:
		return "rejected"
	}
}

// BlockInput carries what the consensus driver hands the processor for
// one block.
type BlockInput struct {
	Height                  uint64
	TimeMs                  uint64
	ProposerProTxHash       []byte
	ProposedProtocolVersion uint32
	Transitions             [][]byte
}

// BlockResult carries what the processor hands back to the consensus
// driver.
type BlockResult struct {
	Outcomes          []*Outcome
	WithdrawalsQueued [][]byte // ids of withdrawal documents emitted this block
	ProtocolVersion   uint32   // the current epoch's protocol version after this block
	EpochChanged      bool
	EpochIndex        uint64
}

// EpochLengthBlocks is how many blocks make up one epoch; the processor
// finalizes the closing epoch and pays out the oldest unpaid one whenever
// block height crosses a multiple of this constant. A real deployment
// reads this from pkg/config rather than hard-coding it, but the
// processor itself is agnostic to the exact value, so ProcessBlock takes
// it as a parameter.
func epochBoundary(height, epochLengthBlocks uint64) bool {
	return epochLengthBlocks > 0 && height > 0 && height%epochLengthBlocks == 0
}

// ProcessBlock runs one block's ordered transitions through the full
// pipeline inside what the caller is expected to
// treat as a single write-transaction on the tree store, then folds in
// epoch-boundary accounting. A non-nil error
// here is always a protocolerr: it means the block itself cannot be
// applied and must abort, as distinct from any individual transition's
// StatusRejected outcome.
func (p *Processor) ProcessBlock(in BlockInput, epochLengthBlocks uint64) (*BlockResult, error) {
	meta, err := p.CreditPool.GetMeta()
	if err != nil {
		return nil, err
	}

	result := &BlockResult{
		Outcomes:        make([]*Outcome, 0, len(in.Transitions)),
		ProtocolVersion: meta.ProtocolVersion,
		EpochIndex:      meta.CurrentEpoch,
	}

	var processingFee, storageFee uint64
	for _, raw := range in.Transitions {
		env, err := DecodeEnvelope(p.Registry, raw)
		if err != nil {
			return nil, err
		}
		if err := BasicValidate(env); err != nil {
			return nil, err
		}
		if err := VerifySignature(p.Identities, env); err != nil {
			if ce, ok := err.(*consensuserr.Error); ok {
				result.Outcomes = append(result.Outcomes, &Outcome{Status: StatusRejected, ConsensusErr: ce})
				if p.Metrics != nil {
					p.Metrics.TransitionsTotal.WithLabelValues(kindName(env.Kind), "rejected").Inc()
				}
				continue
			}
			return nil, err
		}

		outcome, err := p.ApplyTransition(env, in.Height, meta.CurrentEpoch)
		if err != nil {
			return nil, err
		}
		processingFee += outcome.Fee.ProcessingFeePoolCredit
		storageFee += outcome.Fee.StorageFeePoolCredit
		if outcome.Status == StatusApplied && env.Kind == KindIdentityCreditWithdrawal {
			result.WithdrawalsQueued = append(result.WithdrawalsQueued, append(append([]byte{}, env.SignerID...), hexIDBytes(env.Nonce)...))
		}
		if p.Metrics != nil {
			p.Metrics.TransitionsTotal.WithLabelValues(kindName(env.Kind), statusName(outcome.Status)).Inc()
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if err := p.CreditPool.RecordBlock(in.ProposerProTxHash, processingFee, storageFee, in.ProposedProtocolVersion, in.Height); err != nil {
		return nil, err
	}

	if p.Metrics != nil {
		p.Metrics.BlocksProcessed.Inc()
		p.Metrics.FeeCreditsTotal.WithLabelValues("processing").Add(float64(processingFee))
		p.Metrics.FeeCreditsTotal.WithLabelValues("storage").Add(float64(storageFee))
		p.Metrics.TreeHeight.Set(float64(in.Height))
	}

	if epochBoundary(in.Height, epochLengthBlocks) {
		if err := p.runEpochChange(in.Height, meta, &result.ProtocolVersion); err != nil {
			return nil, err
		}
		result.EpochChanged = true
		result.EpochIndex = meta.CurrentEpoch + 1
		if p.Metrics != nil {
			p.Metrics.EpochChangesTotal.Inc()
		}
	}

	return result, nil
}

// runEpochChange performs the three epoch-boundary steps the closing
// epoch's block triggers: finalize the
// closing epoch (rolling the protocol-version upgrade vote), pay out the
// oldest unpaid epoch pro-rata by proposer block count, and report the
// resulting current protocol version back to the caller. The fee
// multiplier is carried forward unchanged; nothing in this pipeline
// varies it block-to-block.
func (p *Processor) runEpochChange(height uint64, meta *creditpool.Meta, protocolVersionOut *uint32) error {
	closing, err := p.CreditPool.GetEpoch(meta.CurrentEpoch)
	if err != nil {
		return err
	}
	if err := p.CreditPool.FinalizeEpoch(height+1, closing.FeeMultiplePermille); err != nil {
		return err
	}
	newMeta, err := p.CreditPool.GetMeta()
	if err != nil {
		return err
	}
	if _, err := p.CreditPool.PayoutEpoch(newMeta.UnpaidEpoch, p.Identities); err != nil {
		return err
	}
	*protocolVersionOut = newMeta.ProtocolVersion
	return nil
}
