// Package pipeline implements the state-transition processor:
// an ordered list of versioned transitions is decoded, structurally
// validated, signature- and nonce-checked, then applied against the
// domain stores one at a time, each producing a per-transition outcome
// and settled fee, with epoch-boundary accounting folded in per block.
package pipeline

import (
	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/domain/assetlock"
	"github.com/meridianchain/drive/pkg/domain/contract"
	"github.com/meridianchain/drive/pkg/domain/document"
	"github.com/meridianchain/drive/pkg/domain/identity"
	"github.com/meridianchain/drive/pkg/domain/token"
	"github.com/meridianchain/drive/pkg/domain/vote"
	"github.com/meridianchain/drive/pkg/domain/withdrawal"
)

// Kind is the closed set of state-transition kinds a block may carry.
type Kind uint8

const (
	KindIdentityCreate Kind = iota
	KindIdentityTopUp
	KindIdentityUpdate
	KindIdentityCreditTransfer
	KindIdentityCreditWithdrawal
	KindDataContractCreate
	KindDataContractUpdate
	KindDocumentBatch
	KindTokenBatch
	KindMasternodeVote
)

// Envelope is the common wrapper every transition carries: protocol
// version for version-gated decoding, the signing
// identity and key, a strictly-increasing nonce, a user-declared fee
// multiplier, and a kind-specific body.
type Envelope struct {
	ProtocolVersion         uint32
	Kind                    Kind
	SignerID                []byte
	SignaturePublicKeyID    uint32
	Nonce                   uint64
	UserFeeIncreasePermille uint64
	Body                    []byte
	Signature               []byte
}

func (e *Envelope) marshal(w *codec.Writer, includeSignature bool) {
	w.PutUint32(e.ProtocolVersion)
	w.PutTag(uint8(e.Kind))
	w.PutBytes(e.SignerID)
	w.PutUint32(e.SignaturePublicKeyID)
	w.PutUint64(e.Nonce)
	w.PutUint64(e.UserFeeIncreasePermille)
	w.PutBytes(e.Body)
	if includeSignature {
		w.PutBytes(e.Signature)
	} else {
		w.PutBytes(nil)
	}
}

func (e *Envelope) MarshalCanonical(w *codec.Writer) { e.marshal(w, true) }

func (e *Envelope) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if e.ProtocolVersion, err = r.Uint32(); err != nil {
		return err
	}
	tag, err := r.Tag()
	if err != nil {
		return err
	}
	e.Kind = Kind(tag)
	if e.SignerID, err = r.Bytes(); err != nil {
		return err
	}
	if e.SignaturePublicKeyID, err = r.Uint32(); err != nil {
		return err
	}
	if e.Nonce, err = r.Uint64(); err != nil {
		return err
	}
	if e.UserFeeIncreasePermille, err = r.Uint64(); err != nil {
		return err
	}
	if e.Body, err = r.Bytes(); err != nil {
		return err
	}
	e.Signature, err = r.Bytes()
	return err
}

// SignableBytes returns the canonical encoding a signer signs over: the
// envelope with its Signature field zeroed.
func (e *Envelope) SignableBytes() []byte {
	w := codec.NewWriter(128)
	e.marshal(w, false)
	return w.Bytes()
}

// DocOp is one action within a document-batch transition.
type DocOp uint8

const (
	DocOpCreate DocOp = iota
	DocOpReplace
	DocOpDelete
	DocOpTransfer
	DocOpUpdatePrice
	DocOpPurchase
)

// DocumentAction is one per-document operation inside a document-batch
// transition.
type DocumentAction struct {
	Op           DocOp
	DocumentType string
	Document     *document.Document // populated for Create/Replace
	DocumentID   []byte             // populated for Delete/Transfer/UpdatePrice/Purchase
	NewOwnerID   []byte             // Transfer
	Price        uint64             // UpdatePrice
	BuyerID      []byte             // Purchase
}

func (a *DocumentAction) MarshalCanonical(w *codec.Writer) {
	w.PutTag(uint8(a.Op))
	w.PutString(a.DocumentType)
	w.PutBool(a.Document != nil)
	if a.Document != nil {
		a.Document.MarshalCanonical(w)
	}
	w.PutBytes(a.DocumentID)
	w.PutBytes(a.NewOwnerID)
	w.PutUint64(a.Price)
	w.PutBytes(a.BuyerID)
}

func (a *DocumentAction) UnmarshalCanonical(r *codec.Reader) error {
	tag, err := r.Tag()
	if err != nil {
		return err
	}
	a.Op = DocOp(tag)
	if a.DocumentType, err = r.String(); err != nil {
		return err
	}
	hasDoc, err := r.Bool()
	if err != nil {
		return err
	}
	if hasDoc {
		a.Document = &document.Document{}
		if err := a.Document.UnmarshalCanonical(r); err != nil {
			return err
		}
	}
	if a.DocumentID, err = r.Bytes(); err != nil {
		return err
	}
	if a.NewOwnerID, err = r.Bytes(); err != nil {
		return err
	}
	if a.Price, err = r.Uint64(); err != nil {
		return err
	}
	a.BuyerID, err = r.Bytes()
	return err
}

// DocumentBatchBody is the body of a KindDocumentBatch transition.
type DocumentBatchBody struct {
	ContractID []byte
	Actions    []*DocumentAction
}

func (b *DocumentBatchBody) MarshalCanonical(w *codec.Writer) {
	w.PutBytes(b.ContractID)
	w.PutVarUint(uint64(len(b.Actions)))
	for _, a := range b.Actions {
		a.MarshalCanonical(w)
	}
}

func (b *DocumentBatchBody) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if b.ContractID, err = r.Bytes(); err != nil {
		return err
	}
	n, err := r.VarUint()
	if err != nil {
		return err
	}
	b.Actions = make([]*DocumentAction, n)
	for i := range b.Actions {
		a := &DocumentAction{}
		if err := a.UnmarshalCanonical(r); err != nil {
			return err
		}
		b.Actions[i] = a
	}
	return nil
}

// TokenOp is one action within a token-batch transition.
type TokenOp uint8

const (
	TokenOpMint TokenOp = iota
	TokenOpBurn
	TokenOpFreeze
	TokenOpUnfreeze
	TokenOpTransfer
	TokenOpSetPrice
	TokenOpClaim
	TokenOpSetDistribution
)

// TokenAction is one per-token operation inside a token-batch transition.
type TokenAction struct {
	Op           TokenOp
	Position     uint16
	Amount       uint64
	ToIdentity   []byte
	FromIdentity []byte
	Note         []byte
	Price        uint64
	Distribution *token.Distribution
}

func (a *TokenAction) MarshalCanonical(w *codec.Writer) {
	w.PutTag(uint8(a.Op))
	w.PutUint32(uint32(a.Position))
	w.PutUint64(a.Amount)
	w.PutBytes(a.ToIdentity)
	w.PutBytes(a.FromIdentity)
	w.PutBytes(a.Note)
	w.PutUint64(a.Price)
	w.PutBool(a.Distribution != nil)
	if a.Distribution != nil {
		a.Distribution.MarshalCanonical(w)
	}
}

func (a *TokenAction) UnmarshalCanonical(r *codec.Reader) error {
	tag, err := r.Tag()
	if err != nil {
		return err
	}
	a.Op = TokenOp(tag)
	pos, err := r.Uint32()
	if err != nil {
		return err
	}
	a.Position = uint16(pos)
	if a.Amount, err = r.Uint64(); err != nil {
		return err
	}
	if a.ToIdentity, err = r.Bytes(); err != nil {
		return err
	}
	if a.FromIdentity, err = r.Bytes(); err != nil {
		return err
	}
	if a.Note, err = r.Bytes(); err != nil {
		return err
	}
	if a.Price, err = r.Uint64(); err != nil {
		return err
	}
	hasDist, err := r.Bool()
	if err != nil {
		return err
	}
	if hasDist {
		a.Distribution = &token.Distribution{}
		if err := a.Distribution.UnmarshalCanonical(r); err != nil {
			return err
		}
	}
	return nil
}

// TokenBatchBody is the body of a KindTokenBatch transition.
type TokenBatchBody struct {
	ContractID []byte
	Actions    []*TokenAction
}

func (b *TokenBatchBody) MarshalCanonical(w *codec.Writer) {
	w.PutBytes(b.ContractID)
	w.PutVarUint(uint64(len(b.Actions)))
	for _, a := range b.Actions {
		a.MarshalCanonical(w)
	}
}

func (b *TokenBatchBody) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if b.ContractID, err = r.Bytes(); err != nil {
		return err
	}
	n, err := r.VarUint()
	if err != nil {
		return err
	}
	b.Actions = make([]*TokenAction, n)
	for i := range b.Actions {
		a := &TokenAction{}
		if err := a.UnmarshalCanonical(r); err != nil {
			return err
		}
		b.Actions[i] = a
	}
	return nil
}

// IdentityCreateBody is the body of a KindIdentityCreate transition.
type IdentityCreateBody struct {
	Identity *identity.Identity
}

func (b *IdentityCreateBody) MarshalCanonical(w *codec.Writer)    { b.Identity.MarshalCanonical(w) }
func (b *IdentityCreateBody) UnmarshalCanonical(r *codec.Reader) error {
	b.Identity = &identity.Identity{}
	return b.Identity.UnmarshalCanonical(r)
}

// IdentityTopUpBody is the body of a KindIdentityTopUp transition: an
// asset lock partially or fully consumed to credit the signer's balance.
type IdentityTopUpBody struct {
	Outpoint assetlock.Outpoint
	Amount   uint64
}

func (b *IdentityTopUpBody) MarshalCanonical(w *codec.Writer) {
	w.PutFixedBytes(b.Outpoint.TxID)
	w.PutUint32(b.Outpoint.Vout)
	w.PutUint64(b.Amount)
}

func (b *IdentityTopUpBody) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if b.Outpoint.TxID, err = r.FixedBytes(32); err != nil {
		return err
	}
	if b.Outpoint.Vout, err = r.Uint32(); err != nil {
		return err
	}
	b.Amount, err = r.Uint64()
	return err
}

// IdentityUpdateBody is the body of a KindIdentityUpdate transition.
type IdentityUpdateBody struct {
	AddKeys       []*identity.Key
	DisableKeyIDs []uint32
	DisabledAtMs  uint64
}

func (b *IdentityUpdateBody) MarshalCanonical(w *codec.Writer) {
	w.PutVarUint(uint64(len(b.AddKeys)))
	for _, k := range b.AddKeys {
		k.MarshalCanonical(w)
	}
	w.PutVarUint(uint64(len(b.DisableKeyIDs)))
	for _, id := range b.DisableKeyIDs {
		w.PutUint32(id)
	}
	w.PutUint64(b.DisabledAtMs)
}

func (b *IdentityUpdateBody) UnmarshalCanonical(r *codec.Reader) error {
	n, err := r.VarUint()
	if err != nil {
		return err
	}
	b.AddKeys = make([]*identity.Key, n)
	for i := range b.AddKeys {
		k := &identity.Key{}
		if err := k.UnmarshalCanonical(r); err != nil {
			return err
		}
		b.AddKeys[i] = k
	}
	nd, err := r.VarUint()
	if err != nil {
		return err
	}
	b.DisableKeyIDs = make([]uint32, nd)
	for i := range b.DisableKeyIDs {
		if b.DisableKeyIDs[i], err = r.Uint32(); err != nil {
			return err
		}
	}
	b.DisabledAtMs, err = r.Uint64()
	return err
}

// CreditTransferBody is the body of a KindIdentityCreditTransfer transition.
type CreditTransferBody struct {
	ToID   []byte
	Amount uint64
}

func (b *CreditTransferBody) MarshalCanonical(w *codec.Writer) {
	w.PutBytes(b.ToID)
	w.PutUint64(b.Amount)
}

func (b *CreditTransferBody) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if b.ToID, err = r.Bytes(); err != nil {
		return err
	}
	b.Amount, err = r.Uint64()
	return err
}

// CreditWithdrawalBody is the body of a KindIdentityCreditWithdrawal
// transition.
type CreditWithdrawalBody struct {
	Amount         uint64
	CoreFeePerByte uint64
	OutputScript   []byte
	Pooling        withdrawal.Pooling
}

func (b *CreditWithdrawalBody) MarshalCanonical(w *codec.Writer) {
	w.PutUint64(b.Amount)
	w.PutUint64(b.CoreFeePerByte)
	w.PutBytes(b.OutputScript)
	w.PutTag(uint8(b.Pooling))
}

func (b *CreditWithdrawalBody) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if b.Amount, err = r.Uint64(); err != nil {
		return err
	}
	if b.CoreFeePerByte, err = r.Uint64(); err != nil {
		return err
	}
	if b.OutputScript, err = r.Bytes(); err != nil {
		return err
	}
	tag, err := r.Tag()
	if err != nil {
		return err
	}
	b.Pooling = withdrawal.Pooling(tag)
	return nil
}

// DataContractCreateBody is the body of a KindDataContractCreate transition.
type DataContractCreateBody struct {
	Contract *contract.Contract
}

func (b *DataContractCreateBody) MarshalCanonical(w *codec.Writer) { b.Contract.MarshalCanonical(w) }
func (b *DataContractCreateBody) UnmarshalCanonical(r *codec.Reader) error {
	b.Contract = &contract.Contract{}
	return b.Contract.UnmarshalCanonical(r)
}

// DataContractUpdateBody is the body of a KindDataContractUpdate transition.
type DataContractUpdateBody struct {
	Contract           *contract.Contract
	AllowConfigChange  bool
}

func (b *DataContractUpdateBody) MarshalCanonical(w *codec.Writer) {
	b.Contract.MarshalCanonical(w)
	w.PutBool(b.AllowConfigChange)
}

func (b *DataContractUpdateBody) UnmarshalCanonical(r *codec.Reader) error {
	b.Contract = &contract.Contract{}
	if err := b.Contract.UnmarshalCanonical(r); err != nil {
		return err
	}
	var err error
	b.AllowConfigChange, err = r.Bool()
	return err
}

// VoteAction distinguishes opening a new contested-resource contender from
// casting a vote on an existing one within a single masternode-vote
// transition.
type VoteAction uint8

const (
	VoteActionOpen VoteAction = iota
	VoteActionCast
)

// MasternodeVoteBody is the body of a KindMasternodeVote transition. Every
// masternode-vote also carries the voter's desired protocol version on the
// wire; the pipeline does not add it to the epoch's version tally, which
// counts only each block's proposed protocol version.
type MasternodeVoteBody struct {
	Action   VoteAction
	Resource vote.ContestedResource // Action == Open: ID/ContractID/DocumentType/IndexName/IndexKey/EndEpoch populated by the opener
	Cast     CastVote

	DesiredProtocolVersion uint32
}

// CastVote is the body of a VoteActionCast.
type CastVote struct {
	ResourceID []byte
	Choice     vote.Choice
	DocumentID []byte
}

func (b *MasternodeVoteBody) MarshalCanonical(w *codec.Writer) {
	w.PutTag(uint8(b.Action))
	w.PutBytes(b.Resource.ID)
	w.PutBytes(b.Resource.ContractID)
	w.PutString(b.Resource.DocumentType)
	w.PutString(b.Resource.IndexName)
	w.PutBytes(b.Resource.IndexKey)
	w.PutUint64(b.Resource.EndEpoch)
	w.PutBytes(b.Cast.ResourceID)
	w.PutTag(uint8(b.Cast.Choice))
	w.PutBytes(b.Cast.DocumentID)
	w.PutUint32(b.DesiredProtocolVersion)
}

func (b *MasternodeVoteBody) UnmarshalCanonical(r *codec.Reader) error {
	tag, err := r.Tag()
	if err != nil {
		return err
	}
	b.Action = VoteAction(tag)
	if b.Resource.ID, err = r.Bytes(); err != nil {
		return err
	}
	if b.Resource.ContractID, err = r.Bytes(); err != nil {
		return err
	}
	if b.Resource.DocumentType, err = r.String(); err != nil {
		return err
	}
	if b.Resource.IndexName, err = r.String(); err != nil {
		return err
	}
	if b.Resource.IndexKey, err = r.Bytes(); err != nil {
		return err
	}
	if b.Resource.EndEpoch, err = r.Uint64(); err != nil {
		return err
	}
	if b.Cast.ResourceID, err = r.Bytes(); err != nil {
		return err
	}
	if tag, err = r.Tag(); err != nil {
		return err
	}
	b.Cast.Choice = vote.Choice(tag)
	if b.Cast.DocumentID, err = r.Bytes(); err != nil {
		return err
	}
	b.DesiredProtocolVersion, err = r.Uint32()
	return err
}
