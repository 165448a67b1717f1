// Package abci adapts the state-transition pipeline and proof-producing
// query server to CometBFT's ABCI Application interface: CheckTx runs the
// stateless decode/basic-validate prefix only, FinalizeBlock opens a
// block-scoped tree write-transaction and drives the whole pipeline for
// the block's transitions, Commit flushes that transaction to durable
// storage and reports the new authenticated tree root as the app hash,
// and Query answers proof and unproven lookups by path.
package abci

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/meridianchain/drive/pkg/domain/assetlock"
	"github.com/meridianchain/drive/pkg/domain/contract"
	"github.com/meridianchain/drive/pkg/domain/creditpool"
	"github.com/meridianchain/drive/pkg/domain/identity"
	"github.com/meridianchain/drive/pkg/domain/token"
	"github.com/meridianchain/drive/pkg/domain/vote"
	"github.com/meridianchain/drive/pkg/domain/withdrawal"
	"github.com/meridianchain/drive/pkg/pipeline"
	"github.com/meridianchain/drive/pkg/protocolerr"
	"github.com/meridianchain/drive/pkg/query"
	"github.com/meridianchain/drive/pkg/tree"
)

// FeePoolIdentityID is the reserved identity id every settled transition
// fee is credited into. It carries a synthetic master authentication key
// so it satisfies identity.Store.Create's invariant, but it never signs
// anything itself — nothing ever resolves a signature against it.
var FeePoolIdentityID = []byte("\x00fee-pool")

// Application wraps a pipeline.Processor and a query.Server behind the
// ABCI interface. One Application is long-lived for the process; Commit
// is the only place app state advances height.
type Application struct {
	mu sync.Mutex

	tree                   *tree.Store
	proc                   *pipeline.Processor
	queries                *query.Server
	epochLengthBlocks      uint64
	chainID                string
	genesisProtocolVersion uint32

	logger *log.Logger

	lastHeight   int64
	lastAppHash  []byte
	pendingBlock pipeline.BlockInput
}

// NewApplication wires an Application over a tree store and Processor; the
// store's top-level subtrees are bootstrapped later, by InitChain. meta is passed through to query.NewServer.
func NewApplication(t *tree.Store, proc *pipeline.Processor, epochLengthBlocks uint64, chainID string, genesisProtocolVersion uint32, meta func() query.Metadata) *Application {
	return &Application{
		tree:                   t,
		proc:                   proc,
		queries:                query.NewServer(t, meta),
		epochLengthBlocks:      epochLengthBlocks,
		chainID:                chainID,
		genesisProtocolVersion: genesisProtocolVersion,
		logger:                 log.New(log.Writer(), "[abci] ", log.LstdFlags),
	}
}

// Bootstrap creates every domain store's top-level subtrees and the
// reserved fee-pool identity. Called once from InitChain, before any
// transition is ever applied. contract.Bootstrap also provisions the
// shared "documents" subtree document.Store writes into.
func Bootstrap(t *tree.Store, genesisProtocolVersion uint32) error {
	for _, fn := range []func(*tree.Store) error{
		identity.Bootstrap,
		contract.Bootstrap,
		token.Bootstrap,
		vote.Bootstrap,
		assetlock.Bootstrap,
		withdrawal.Bootstrap,
	} {
		if err := fn(t); err != nil {
			return fmt.Errorf("abci: bootstrap: %w", err)
		}
	}
	if err := creditpool.Bootstrap(t, genesisProtocolVersion); err != nil {
		return fmt.Errorf("abci: bootstrap credit pool: %w", err)
	}
	idents := identity.NewStore(t)
	feePool := &identity.Identity{
		ID:      FeePoolIdentityID,
		Balance: 0,
		Keys: []*identity.Key{
			{ID: 0, Purpose: identity.PurposeAuthentication, Security: identity.SecurityMaster},
		},
	}
	if err := idents.Create(feePool); err != nil {
		return fmt.Errorf("abci: bootstrap fee pool identity: %w", err)
	}
	return nil
}

// Info reports the application's last committed height and app hash so
// CometBFT can decide whether to replay or resume from here.
func (a *Application) Info(ctx context.Context, req *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &abcitypes.ResponseInfo{
		Data:             "meridianchain state engine",
		Version:          "1.0.0",
		AppVersion:       1,
		LastBlockHeight:  a.lastHeight,
		LastBlockAppHash: a.lastAppHash,
	}, nil
}

// CheckTx runs the stateless prefix of the pipeline (decode, version
// gating, basic structural validation) without touching any domain store,
// so the mempool can reject malformed transitions before they reach a
// block. Everything past basic validation — signature, nonce, state — is
// deferred to FinalizeBlock, since it depends on state that may change
// between CheckTx and the transition's eventual block.
func (a *Application) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	env, err := pipeline.DecodeEnvelope(a.proc.Registry, req.Tx)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: err.Error()}, nil
	}
	if err := pipeline.BasicValidate(env); err != nil {
		return &abcitypes.ResponseCheckTx{Code: 2, Log: err.Error()}, nil
	}
	return &abcitypes.ResponseCheckTx{Code: 0, GasWanted: 1, GasUsed: 1}, nil
}

// FinalizeBlock runs every transition in the block through the full
// pipeline and reports one ExecTxResult per transition, in order.
func (a *Application) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pendingBlock = pipeline.BlockInput{
		Height:                  uint64(req.Height),
		TimeMs:                  uint64(req.Time.UnixMilli()),
		ProposerProTxHash:       req.ProposerAddress,
		ProposedProtocolVersion: 0,
		Transitions:             req.Txs,
	}

	// One write-transaction spans every transition in the block plus any
	// epoch-change operations: nothing reaches the backing KV until
	// Commit, and an abort here discards the lot rather than leaving a
	// partially-applied block on disk.
	a.tree.BeginBlock()

	result, err := a.proc.ProcessBlock(a.pendingBlock, a.epochLengthBlocks)
	if err != nil {
		a.tree.Discard()
		if perr, ok := err.(*protocolerr.Error); ok {
			return nil, fmt.Errorf("abci: block %d aborted: %s: %w", req.Height, perr.Kind, perr)
		}
		return nil, err
	}

	txResults := make([]*abcitypes.ExecTxResult, len(result.Outcomes))
	for i, outcome := range result.Outcomes {
		txResults[i] = &abcitypes.ExecTxResult{
			Code:   outcomeCode(outcome),
			Log:    outcomeLog(outcome),
			Events: outcomeEvents(outcome),
		}
	}

	if result.EpochChanged {
		a.logger.Printf("epoch changed at height %d, new epoch index %d", req.Height, result.EpochIndex)
	}

	return &abcitypes.ResponseFinalizeBlock{
		TxResults: txResults,
	}, nil
}

// Commit is where the block's write-transaction actually reaches durable
// storage: every ApplyBatch call FinalizeBlock made for this block only
// staged its writes in memory, so this flushes them to the backing KV in
// one batch before reporting the new root digest as the app hash.
func (a *Application) Commit(ctx context.Context, req *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.tree.Commit(); err != nil {
		return nil, fmt.Errorf("abci: commit block %d: %w", a.pendingBlock.Height, err)
	}
	root, err := a.tree.RootDigest()
	if err != nil {
		return nil, fmt.Errorf("abci: commit root digest: %w", err)
	}
	a.lastHeight = int64(a.pendingBlock.Height)
	a.lastAppHash = root
	return &abcitypes.ResponseCommit{}, nil
}

// InitChain bootstraps domain storage for a fresh chain. It is a no-op if
// the tree already carries a credit-pool meta record, so restarting an
// already-initialized node never re-bootstraps.
func (a *Application) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	creditPool := creditpool.NewStore(a.tree)
	if _, err := creditPool.GetMeta(); err != nil {
		if err := Bootstrap(a.tree, a.genesisProtocolVersion); err != nil {
			return nil, err
		}
	}
	return &abcitypes.ResponseInitChain{}, nil
}

// Query dispatches a path-based read to pkg/query, mirroring the query
// paths pkg/query/builders.go exposes. "/prove/..." paths return opaque
// proof bytes; "/get/..." paths return the decoded element directly for
// callers that trust this node and don't need to verify.
func (a *Application) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	switch {
	case bytes.HasPrefix([]byte(req.Path), []byte("/prove/identity")):
		path, key := query.GetIdentity(req.Data)
		proof, _, err := a.queries.ProveKey(path, key)
		return queryResponse(proof, err)
	case bytes.HasPrefix([]byte(req.Path), []byte("/prove/contract")):
		path, key := query.ContractByID(req.Data)
		proof, _, err := a.queries.ProveKey(path, key)
		return queryResponse(proof, err)
	case bytes.HasPrefix([]byte(req.Path), []byte("/get/identity")):
		path, key := query.GetIdentity(req.Data)
		el, _, err := a.queries.FetchKey(path, key)
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		return &abcitypes.ResponseQuery{Code: 0, Value: el.Item}, nil
	default:
		return &abcitypes.ResponseQuery{Code: 1, Log: fmt.Sprintf("unknown query path %q", req.Path)}, nil
	}
}

func queryResponse(value []byte, err error) (*abcitypes.ResponseQuery, error) {
	if err != nil {
		return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
	}
	return &abcitypes.ResponseQuery{Code: 0, Value: value}, nil
}

func outcomeCode(o *pipeline.Outcome) uint32 {
	switch o.Status {
	case pipeline.StatusApplied:
		return 0
	case pipeline.StatusNonceBump:
		return 10
	default:
		return 20
	}
}

func outcomeLog(o *pipeline.Outcome) string {
	if o.ConsensusErr != nil {
		return o.ConsensusErr.Error()
	}
	return ""
}

func outcomeEvents(o *pipeline.Outcome) []abcitypes.Event {
	attrs := []abcitypes.EventAttribute{
		{Key: "fee_total", Value: fmt.Sprintf("%d", o.Fee.TotalFee)},
	}
	if o.ConsensusErr != nil {
		attrs = append(attrs, abcitypes.EventAttribute{Key: "consensus_error", Value: string(o.ConsensusErr.Kind)})
	}
	return []abcitypes.Event{{Type: "transition", Attributes: attrs}}
}

// PrepareProposal passes transactions through unchanged: block
// construction ordering is left to CometBFT's mempool, not reordered here.
func (a *Application) PrepareProposal(ctx context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	return &abcitypes.ResponsePrepareProposal{Txs: req.Txs}, nil
}

// ProcessProposal accepts any proposal whose transitions all decode and
// basic-validate; anything else is rejected before the expensive full
// pipeline run in FinalizeBlock.
func (a *Application) ProcessProposal(ctx context.Context, req *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	for _, raw := range req.Txs {
		env, err := pipeline.DecodeEnvelope(a.proc.Registry, raw)
		if err != nil {
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
		if err := pipeline.BasicValidate(env); err != nil {
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
	}
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

func (a *Application) ExtendVote(ctx context.Context, req *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (a *Application) VerifyVoteExtension(ctx context.Context, req *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

// ListSnapshots, OfferSnapshot, LoadSnapshotChunk and ApplySnapshotChunk
// are unimplemented: state-sync snapshotting of the tree store is left
// for a follow-up once the storage engine has a native snapshot export.
func (a *Application) ListSnapshots(ctx context.Context, req *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (a *Application) OfferSnapshot(ctx context.Context, req *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{Result: abcitypes.ResponseOfferSnapshot_ABORT}, nil
}

func (a *Application) LoadSnapshotChunk(ctx context.Context, req *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (a *Application) ApplySnapshotChunk(ctx context.Context, req *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{Result: abcitypes.ResponseApplySnapshotChunk_ABORT}, nil
}
