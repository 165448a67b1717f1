// Package consensuserr holds the consensus error taxonomy: a
// closed set of reasons a single transition is invalid. Consensus errors
// never abort the block; they become the transition's failure outcome and
// the nonce-bump/fixed-fee behavior applies.
package consensuserr

import "fmt"

// Kind enumerates the closed set of consensus failure kinds.
type Kind string

const (
	KindInvalidSignature               Kind = "invalid-signature"
	KindInvalidSignatureSecurityLevel  Kind = "invalid-signature-security-level"
	KindInvalidNonce                   Kind = "invalid-nonce"
	KindNonceOutOfBounds               Kind = "nonce-out-of-bounds"
	KindInsufficientBalance            Kind = "insufficient-balance"
	KindIdentityInsufficientBalance    Kind = "identity-insufficient-balance"
	KindIdentityNotFound               Kind = "identity-not-found"
	KindDataContractNotPresent         Kind = "data-contract-not-present"
	KindDuplicateUniqueIndex           Kind = "duplicate-unique-index"
	KindDocumentAlreadyExists          Kind = "document-already-exists"
	KindDocumentNotForContract         Kind = "document-not-for-contract"
	KindContractIsReadonly             Kind = "contract-is-readonly"
	KindContractConfigUpdateForbidden  Kind = "contract-config-update-forbidden"
	KindInvalidWithdrawalAmount        Kind = "invalid-identity-credit-withdrawal-amount"
	KindInvalidWithdrawalCoreFee       Kind = "invalid-identity-credit-withdrawal-core-fee"
	KindInvalidWithdrawalOutputScript  Kind = "invalid-identity-credit-withdrawal-output-script"
	KindInvalidWithdrawalPooling       Kind = "invalid-identity-credit-withdrawal-pooling"
	KindInvalidTokenNoteTooBig         Kind = "invalid-token-note-too-big"
	KindInvalidTokenTransferToSelf     Kind = "invalid-token-transfer-to-self"
	KindInvalidTokenClaimNoRewards     Kind = "invalid-token-claim-no-current-rewards"
	KindInvalidTokenSupplyCapExceeded  Kind = "invalid-token-supply-cap-exceeded"
	KindTokenFrozen                    Kind = "token-frozen"
	KindTokenPaused                    Kind = "token-paused"
	KindGroupSignersInsufficient       Kind = "group-signers-insufficient"
	KindMasternodeVoteNotAllowed       Kind = "masternode-vote-not-allowed"
	KindContestedResourceNotFound      Kind = "contested-resource-not-found"
	KindAssetLockAlreadyFullyConsumed  Kind = "asset-lock-already-fully-consumed"
	KindAssetLockNotFound              Kind = "asset-lock-not-found"
)

// Error describes why a specific transition is invalid. It carries the
// offending ids (hex or base58 strings, kept opaque here) and the violated
// rule name so the block outcome can report both.
type Error struct {
	Kind         Kind
	Rule         string
	OffendingIDs []string
	Detail       string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("consensus error [%s] rule=%q ids=%v: %s", e.Kind, e.Rule, e.OffendingIDs, e.Detail)
	}
	return fmt.Sprintf("consensus error [%s] rule=%q ids=%v", e.Kind, e.Rule, e.OffendingIDs)
}

// New constructs a consensus Error.
func New(kind Kind, rule string, offendingIDs ...string) *Error {
	return &Error{Kind: kind, Rule: rule, OffendingIDs: offendingIDs}
}

// Detailf constructs a consensus Error with a formatted detail message.
func Detailf(kind Kind, rule string, ids []string, format string, args ...any) *Error {
	return &Error{Kind: kind, Rule: rule, OffendingIDs: ids, Detail: fmt.Sprintf(format, args...)}
}
