package pipeline

import (
	"github.com/meridianchain/drive/pkg/consensuserr"
	"github.com/meridianchain/drive/pkg/domain/assetlock"
	"github.com/meridianchain/drive/pkg/domain/contract"
	"github.com/meridianchain/drive/pkg/domain/creditpool"
	"github.com/meridianchain/drive/pkg/domain/document"
	"github.com/meridianchain/drive/pkg/domain/identity"
	"github.com/meridianchain/drive/pkg/domain/token"
	"github.com/meridianchain/drive/pkg/domain/vote"
	"github.com/meridianchain/drive/pkg/domain/withdrawal"
	"github.com/meridianchain/drive/pkg/fees"
	"github.com/meridianchain/drive/pkg/metrics"
	"github.com/meridianchain/drive/pkg/protocolerr"
	"github.com/meridianchain/drive/pkg/versioning"
)

// Processor owns every domain store the pipeline dispatches into, plus
// the version registry and fee schedules it needs to settle each
// transition. It is the sole caller of the domain layer; nothing else
// writes to the tree store directly.
type Processor struct {
	Registry  *versioning.Registry
	Schedules []fees.Schedule

	Identities  *identity.Store
	Contracts   *contract.Store
	Documents   *document.Store
	Tokens      *token.Store
	Votes       *vote.Store
	AssetLocks  *assetlock.Store
	Withdrawals *withdrawal.Store
	CreditPool  *creditpool.Store

	// Metrics is optional; nil disables recording (used in tests).
	Metrics *metrics.Registry
}

// NewProcessor wires a Processor from its already-open domain stores.
func NewProcessor(
	registry *versioning.Registry,
	schedules []fees.Schedule,
	identities *identity.Store,
	contracts *contract.Store,
	documents *document.Store,
	tokens *token.Store,
	votes *vote.Store,
	assetLocks *assetlock.Store,
	withdrawals *withdrawal.Store,
	creditPool *creditpool.Store,
) *Processor {
	return &Processor{
		Registry: registry, Schedules: schedules,
		Identities: identities, Contracts: contracts, Documents: documents,
		Tokens: tokens, Votes: votes, AssetLocks: assetLocks,
		Withdrawals: withdrawals, CreditPool: creditPool,
	}
}

// SetMetrics attaches a metrics registry; nil is a valid value that
// disables recording (useful in tests that don't want a live registry).
func (p *Processor) SetMetrics(m *metrics.Registry) { p.Metrics = m }

// ApplyTransition runs one already-decoded transition through stages 4-8
// (nonce, stateful validation, apply, fee settlement). Stages 1-3 (decode,
// basic validation, signature) must already have succeeded by the time
// this is called: a protocolerr here aborts the whole block, while a
// consensuserr is folded into a StatusRejected Outcome rather than
// propagated, since only the proposer's block construction is ever at
// fault for the former and only the signer for the latter.
func (p *Processor) ApplyTransition(env *Envelope, blockHeight, currentEpoch uint64) (*Outcome, error) {
	sched, err := fees.ForVersion(p.Schedules, env.ProtocolVersion)
	if err != nil {
		return nil, protocolerr.Wrap(protocolerr.KindUnknownVersion, "no fee schedule for transition protocol version", err)
	}

	if err := CheckAndBumpNonce(p.Identities, env); err != nil {
		if _, ok := err.(*consensuserr.Error); ok {
			return &Outcome{Status: StatusNonceBump}, nil
		}
		return nil, err
	}

	storage, proc, applyErr := p.dispatch(env, currentEpoch)
	if applyErr != nil {
		ce, ok := applyErr.(*consensuserr.Error)
		if !ok {
			return nil, applyErr
		}
		rejected := fees.Settle(sched, fees.StorageDelta{}, fees.ProcessingUnits{HashOps: FixedRejectionFeeUnits}, currentEpoch, 0)
		// A rejected transition still pays its fixed fee if it can; a
		// signer too poor even for that still just rejects, it never
		// aborts the block.
		_ = p.debitSigner(env.SignerID, rejected.TotalFee)
		return &Outcome{Status: StatusRejected, ConsensusErr: ce, Fee: rejected}, nil
	}

	result := fees.Settle(sched, storage, proc, currentEpoch, env.UserFeeIncreasePermille)
	if env.Kind != KindIdentityCreate && env.Kind != KindIdentityTopUp {
		if err := p.debitSigner(env.SignerID, result.TotalFee); err != nil {
			return &Outcome{Status: StatusRejected, ConsensusErr: err.(*consensuserr.Error), Fee: fees.Result{}}, nil
		}
	}
	return &Outcome{Status: StatusApplied, Fee: result}, nil
}

// debitSigner charges total credits against the signer's balance,
// reporting insufficient-balance as a consensus error rather than a
// protocol error: an underfunded signer rejects their own transition,
// it does not abort the block.
func (p *Processor) debitSigner(signerID []byte, total uint64) error {
	ident, err := p.Identities.Get(signerID)
	if err != nil {
		return err
	}
	if ident.Balance < total {
		return consensuserr.New(consensuserr.KindIdentityInsufficientBalance, "transition-fee-balance", hexID(signerID))
	}
	return p.Identities.CreditTransfer(signerID, feePoolIdentity, total)
}

// feePoolIdentity is the reserved identity id the fee engine credits
// settled fees into before CreditPool.RecordBlock folds them into the
// epoch's processing/storage pools; it never signs a transition itself.
var feePoolIdentity = []byte("\x00fee-pool")

// dispatch decodes the transition's kind-specific body and calls the
// domain store methods that perform both stage 5 (stateful validation)
// and stage 6/7 (low-level apply): each domain store already refuses
// invalid state transitions with a typed consensus error, so the
// pipeline's job here is purely routing plus processing-cost accounting
//.
func (p *Processor) dispatch(env *Envelope, currentEpoch uint64) (fees.StorageDelta, fees.ProcessingUnits, error) {
	switch env.Kind {
	case KindIdentityCreate:
		return p.applyIdentityCreate(env)
	case KindIdentityTopUp:
		return p.applyIdentityTopUp(env)
	case KindIdentityUpdate:
		return p.applyIdentityUpdate(env)
	case KindIdentityCreditTransfer:
		return p.applyCreditTransfer(env)
	case KindIdentityCreditWithdrawal:
		return p.applyCreditWithdrawal(env, currentEpoch)
	case KindDataContractCreate:
		return p.applyContractCreate(env)
	case KindDataContractUpdate:
		return p.applyContractUpdate(env)
	case KindDocumentBatch:
		return p.applyDocumentBatch(env, currentEpoch)
	case KindTokenBatch:
		return p.applyTokenBatch(env, currentEpoch)
	case KindMasternodeVote:
		return p.applyMasternodeVote(env, currentEpoch)
	default:
		return fees.StorageDelta{}, fees.ProcessingUnits{}, protocolerr.New(protocolerr.KindMalformedTransition, "unknown transition kind")
	}
}

func (p *Processor) applyIdentityCreate(env *Envelope) (fees.StorageDelta, fees.ProcessingUnits, error) {
	body := &IdentityCreateBody{}
	if err := decodeBody(env, body); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	if err := p.Identities.Create(body.Identity); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	return fees.StorageDelta{AddedBytes: estimateSize(body.Identity)}, fees.ProcessingUnits{HashOps: 1}, nil
}

func (p *Processor) applyIdentityTopUp(env *Envelope) (fees.StorageDelta, fees.ProcessingUnits, error) {
	body := &IdentityTopUpBody{}
	if err := decodeBody(env, body); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	remaining, err := p.AssetLocks.Consume(body.Outpoint, body.Amount)
	if err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	if err := p.Identities.TopUp(env.SignerID, body.Amount); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	_ = remaining
	return fees.StorageDelta{ReplacedBytes: 8}, fees.ProcessingUnits{HashOps: 1, BalanceFetchOps: 1}, nil
}

func (p *Processor) applyIdentityUpdate(env *Envelope) (fees.StorageDelta, fees.ProcessingUnits, error) {
	body := &IdentityUpdateBody{}
	if err := decodeBody(env, body); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	var storage fees.StorageDelta
	if len(body.AddKeys) > 0 {
		if err := p.Identities.AddKeys(env.SignerID, body.AddKeys); err != nil {
			return fees.StorageDelta{}, fees.ProcessingUnits{}, err
		}
		for _, k := range body.AddKeys {
			storage.AddedBytes += uint64(len(k.Data)) + 16
		}
	}
	if len(body.DisableKeyIDs) > 0 {
		if err := p.Identities.DisableKeys(env.SignerID, body.DisableKeyIDs, body.DisabledAtMs); err != nil {
			return fees.StorageDelta{}, fees.ProcessingUnits{}, err
		}
	}
	return storage, fees.ProcessingUnits{HashOps: uint64(len(body.AddKeys) + len(body.DisableKeyIDs))}, nil
}

func (p *Processor) applyCreditTransfer(env *Envelope) (fees.StorageDelta, fees.ProcessingUnits, error) {
	body := &CreditTransferBody{}
	if err := decodeBody(env, body); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	if err := p.Identities.CreditTransfer(env.SignerID, body.ToID, body.Amount); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	return fees.StorageDelta{}, fees.ProcessingUnits{BalanceFetchOps: 2}, nil
}

func (p *Processor) applyCreditWithdrawal(env *Envelope, currentEpoch uint64) (fees.StorageDelta, fees.ProcessingUnits, error) {
	body := &CreditWithdrawalBody{}
	if err := decodeBody(env, body); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	if err := p.Identities.CreditTransfer(env.SignerID, feePoolIdentity, body.Amount); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	w := &withdrawal.Withdrawal{
		ID:             append(append([]byte{}, env.SignerID...), hexIDBytes(env.Nonce)...),
		IdentityID:     env.SignerID,
		Amount:         body.Amount,
		CoreFeePerByte: body.CoreFeePerByte,
		OutputScript:   body.OutputScript,
		Pooling:        body.Pooling,
		QueuedEpoch:    currentEpoch,
	}
	if err := p.Withdrawals.Queue(w); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	return fees.StorageDelta{AddedBytes: uint64(len(body.OutputScript)) + 48}, fees.ProcessingUnits{BalanceFetchOps: 1, HashOps: 1}, nil
}

func (p *Processor) applyContractCreate(env *Envelope) (fees.StorageDelta, fees.ProcessingUnits, error) {
	body := &DataContractCreateBody{}
	if err := decodeBody(env, body); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	if err := p.Contracts.Create(body.Contract); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	return fees.StorageDelta{AddedBytes: estimateContractSize(body.Contract)}, fees.ProcessingUnits{HashOps: uint64(len(body.Contract.DocumentTypes)) + 1}, nil
}

func (p *Processor) applyContractUpdate(env *Envelope) (fees.StorageDelta, fees.ProcessingUnits, error) {
	body := &DataContractUpdateBody{}
	if err := decodeBody(env, body); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	if err := p.Contracts.Update(body.Contract, body.AllowConfigChange); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	return fees.StorageDelta{ReplacedBytes: estimateContractSize(body.Contract)}, fees.ProcessingUnits{HashOps: 1}, nil
}

func (p *Processor) applyDocumentBatch(env *Envelope, currentEpoch uint64) (fees.StorageDelta, fees.ProcessingUnits, error) {
	body := &DocumentBatchBody{}
	if err := decodeBody(env, body); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	if len(body.Actions) == 0 {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, protocolerr.New(protocolerr.KindMalformedTransition, "document batch must not be empty")
	}
	var storage fees.StorageDelta
	proc := fees.ProcessingUnits{SeekOps: uint64(len(body.Actions))}
	for _, a := range body.Actions {
		switch a.Op {
		case DocOpCreate:
			if err := p.Documents.Create(a.Document, currentEpoch); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
			storage.AddedBytes += estimateDocumentSize(a.Document)
		case DocOpReplace:
			if err := p.Documents.Replace(a.Document, currentEpoch); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
			storage.ReplacedBytes += estimateDocumentSize(a.Document)
		case DocOpDelete:
			if err := p.Documents.Delete(body.ContractID, a.DocumentType, a.DocumentID); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
			storage.RemovedBytes += 64
		case DocOpTransfer:
			if err := p.Documents.Transfer(body.ContractID, a.DocumentType, a.DocumentID, a.NewOwnerID, currentEpoch); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
		case DocOpUpdatePrice:
			if err := p.Documents.UpdatePrice(body.ContractID, a.DocumentType, a.DocumentID, a.Price, currentEpoch); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
		case DocOpPurchase:
			if err := p.Documents.Purchase(body.ContractID, a.DocumentType, a.DocumentID, a.BuyerID, currentEpoch); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
		default:
			return fees.StorageDelta{}, fees.ProcessingUnits{}, protocolerr.New(protocolerr.KindMalformedTransition, "unknown document action")
		}
	}
	return storage, proc, nil
}

func (p *Processor) applyTokenBatch(env *Envelope, currentEpoch uint64) (fees.StorageDelta, fees.ProcessingUnits, error) {
	body := &TokenBatchBody{}
	if err := decodeBody(env, body); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	if len(body.Actions) == 0 {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, protocolerr.New(protocolerr.KindMalformedTransition, "token batch must not be empty")
	}
	proc := fees.ProcessingUnits{SeekOps: uint64(len(body.Actions))}
	for _, a := range body.Actions {
		switch a.Op {
		case TokenOpMint:
			if err := p.Tokens.Mint(body.ContractID, a.Position, a.ToIdentity, a.Amount); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
		case TokenOpBurn:
			if err := p.Tokens.Burn(body.ContractID, a.Position, a.FromIdentity, a.Amount); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
		case TokenOpFreeze:
			if err := p.Tokens.Freeze(body.ContractID, a.Position, a.ToIdentity); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
		case TokenOpUnfreeze:
			if err := p.Tokens.Unfreeze(body.ContractID, a.Position, a.ToIdentity); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
		case TokenOpTransfer:
			if len(a.Note) > maxTokenNoteBytes {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, consensuserr.New(consensuserr.KindInvalidTokenNoteTooBig, "token-note-size", hexID(a.FromIdentity))
			}
			if string(a.FromIdentity) == string(a.ToIdentity) {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, consensuserr.New(consensuserr.KindInvalidTokenTransferToSelf, "token-transfer-distinct-parties", hexID(a.FromIdentity))
			}
			if err := p.Tokens.Transfer(body.ContractID, a.Position, a.FromIdentity, a.ToIdentity, a.Amount, a.Note); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
		case TokenOpSetPrice:
			if err := p.Tokens.UpdatePrice(body.ContractID, a.Position, a.Price); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
		case TokenOpClaim:
			if err := p.Tokens.Claim(body.ContractID, a.Position, a.ToIdentity, currentEpoch); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
		case TokenOpSetDistribution:
			if err := p.Tokens.SetDistribution(body.ContractID, a.Position, a.Distribution); err != nil {
				return fees.StorageDelta{}, fees.ProcessingUnits{}, err
			}
		default:
			return fees.StorageDelta{}, fees.ProcessingUnits{}, protocolerr.New(protocolerr.KindMalformedTransition, "unknown token action")
		}
	}
	return fees.StorageDelta{ReplacedBytes: uint64(len(body.Actions)) * 8}, proc, nil
}

func (p *Processor) applyMasternodeVote(env *Envelope, currentEpoch uint64) (fees.StorageDelta, fees.ProcessingUnits, error) {
	body := &MasternodeVoteBody{}
	if err := decodeBody(env, body); err != nil {
		return fees.StorageDelta{}, fees.ProcessingUnits{}, err
	}
	switch body.Action {
	case VoteActionOpen:
		r := body.Resource
		if len(r.Contenders) == 0 {
			return fees.StorageDelta{}, fees.ProcessingUnits{}, protocolerr.New(protocolerr.KindMalformedTransition, "contested resource open with no contender")
		}
		if err := p.Votes.Open(r.ContractID, r.DocumentType, r.IndexName, r.IndexKey, r.Contenders[0].DocumentID, r.Contenders[0].OwnerID, r.EndEpoch); err != nil {
			return fees.StorageDelta{}, fees.ProcessingUnits{}, err
		}
		return fees.StorageDelta{AddedBytes: 96}, fees.ProcessingUnits{HashOps: 1}, nil
	case VoteActionCast:
		if err := p.Votes.CastVote(body.Cast.ResourceID, env.SignerID, body.Cast.Choice, body.Cast.DocumentID, currentEpoch, true); err != nil {
			return fees.StorageDelta{}, fees.ProcessingUnits{}, err
		}
		return fees.StorageDelta{ReplacedBytes: 32}, fees.ProcessingUnits{HashOps: 1}, nil
	default:
		return fees.StorageDelta{}, fees.ProcessingUnits{}, protocolerr.New(protocolerr.KindMalformedTransition, "unknown masternode vote action")
	}
}

const maxTokenNoteBytes = 256

func hexIDBytes(nonce uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(nonce >> (8 * (7 - i)))
	}
	return b
}

func estimateSize(ident *identity.Identity) uint64 {
	n := uint64(48)
	for _, k := range ident.Keys {
		n += uint64(len(k.Data)) + 16
	}
	return n
}

func estimateContractSize(c *contract.Contract) uint64 {
	n := uint64(32)
	for _, dt := range c.DocumentTypes {
		n += uint64(len(dt.Name)) + 16
		for _, idx := range dt.Indices {
			n += uint64(len(idx.Name)) + 8
		}
	}
	return n
}

func estimateDocumentSize(d *document.Document) uint64 {
	n := uint64(64)
	for _, prop := range d.Properties {
		n += uint64(len(prop.Name)) + uint64(len(prop.Value))
	}
	return n
}
