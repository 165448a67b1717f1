// Package verify implements the client side of proof-producing queries.
// Identity, Contract, TokenState, TokenBalance, AssetLock and Withdrawal
// each decode the server's opaque proof bytes, check it against the
// claimed root digest, and decode the proven element into a typed result;
// Absent checks a proof of absence. The other pkg/query builders (identity
// keys, documents, contested resources, epoch info and the like) have no
// verifier here. A verifier
// never consults any external service — everything it needs travels in
// the proof and the root digest the caller already trusts.
package verify

import (
	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/domain/assetlock"
	"github.com/meridianchain/drive/pkg/domain/contract"
	"github.com/meridianchain/drive/pkg/domain/identity"
	"github.com/meridianchain/drive/pkg/domain/token"
	"github.com/meridianchain/drive/pkg/domain/withdrawal"
	"github.com/meridianchain/drive/pkg/queryerr"
	"github.com/meridianchain/drive/pkg/tree"
)

// decodeProof parses opaque proof bytes into a tree.Proof, reporting
// malformed input as queryerr.KindDecodingError rather than panicking on
// a hostile or truncated payload.
func decodeProof(proofBytes []byte) (*tree.Proof, error) {
	proof := &tree.Proof{}
	if err := codec.Decode(proofBytes, proof); err != nil {
		return nil, queryerr.Newf(queryerr.KindDecodingError, "decode proof: %v", err)
	}
	return proof, nil
}

// verifyPresent runs the shared present/absent proof check and maps
// every structural failure mode to queryerr.KindIncorrectProof.
func verifyPresent(proofBytes, rootDigest []byte) (*tree.EntrySummary, error) {
	proof, err := decodeProof(proofBytes)
	if err != nil {
		return nil, err
	}
	present, entry, err := tree.Verify(proof, rootDigest)
	if err != nil {
		return nil, queryerr.Newf(queryerr.KindIncorrectProof, "%v", err)
	}
	if !present {
		return nil, queryerr.New(queryerr.KindNotFound, "proof attests absence")
	}
	return entry, nil
}

// Identity verifies a GetIdentity proof and decodes the identity.
func Identity(proofBytes, rootDigest []byte) (*identity.Identity, error) {
	entry, err := verifyPresent(proofBytes, rootDigest)
	if err != nil {
		return nil, err
	}
	if entry.Kind != tree.KindItem {
		return nil, queryerr.New(queryerr.KindIncorrectProof, "identity entry is not an item")
	}
	ident := &identity.Identity{}
	if err := codec.Decode(entry.Item, ident); err != nil {
		return nil, queryerr.Newf(queryerr.KindDecodingError, "decode identity: %v", err)
	}
	return ident, nil
}

// Contract verifies a ContractByID proof and decodes the contract.
func Contract(proofBytes, rootDigest []byte) (*contract.Contract, error) {
	entry, err := verifyPresent(proofBytes, rootDigest)
	if err != nil {
		return nil, err
	}
	if entry.Kind != tree.KindItem {
		return nil, queryerr.New(queryerr.KindIncorrectProof, "contract entry is not an item")
	}
	c := &contract.Contract{}
	if err := codec.Decode(entry.Item, c); err != nil {
		return nil, queryerr.Newf(queryerr.KindDecodingError, "decode contract: %v", err)
	}
	return c, nil
}

// TokenState verifies a TokenStatus proof and decodes the token's state.
func TokenState(proofBytes, rootDigest []byte) (*token.State, error) {
	entry, err := verifyPresent(proofBytes, rootDigest)
	if err != nil {
		return nil, err
	}
	if entry.Kind != tree.KindItem {
		return nil, queryerr.New(queryerr.KindIncorrectProof, "token state entry is not an item")
	}
	st := &token.State{}
	if err := codec.Decode(entry.Item, st); err != nil {
		return nil, queryerr.Newf(queryerr.KindDecodingError, "decode token state: %v", err)
	}
	return st, nil
}

// TokenBalance verifies a TokenBalance proof and decodes the signed sum.
func TokenBalance(proofBytes, rootDigest []byte) (int64, error) {
	entry, err := verifyPresent(proofBytes, rootDigest)
	if err != nil {
		return 0, err
	}
	if entry.Kind != tree.KindSumItem {
		return 0, queryerr.New(queryerr.KindIncorrectProof, "token balance entry is not a sum item")
	}
	return entry.SumValue, nil
}

// AssetLock verifies an AssetLockByOutpoint proof and decodes the lock.
func AssetLock(proofBytes, rootDigest []byte) (*assetlock.AssetLock, error) {
	entry, err := verifyPresent(proofBytes, rootDigest)
	if err != nil {
		return nil, err
	}
	if entry.Kind != tree.KindItem {
		return nil, queryerr.New(queryerr.KindIncorrectProof, "asset lock entry is not an item")
	}
	a := &assetlock.AssetLock{}
	if err := codec.Decode(entry.Item, a); err != nil {
		return nil, queryerr.Newf(queryerr.KindDecodingError, "decode asset lock: %v", err)
	}
	return a, nil
}

// Withdrawal verifies a WithdrawalByID proof and decodes the withdrawal.
func Withdrawal(proofBytes, rootDigest []byte) (*withdrawal.Withdrawal, error) {
	entry, err := verifyPresent(proofBytes, rootDigest)
	if err != nil {
		return nil, err
	}
	if entry.Kind != tree.KindItem {
		return nil, queryerr.New(queryerr.KindIncorrectProof, "withdrawal entry is not an item")
	}
	w := &withdrawal.Withdrawal{}
	if err := codec.Decode(entry.Item, w); err != nil {
		return nil, queryerr.Newf(queryerr.KindDecodingError, "decode withdrawal: %v", err)
	}
	return w, nil
}

// Absent verifies that a proof attests the queried key is NOT present,
// for callers that expect and want to confirm absence (e.g. checking a
// nonce window or an unclaimed index slot).
func Absent(proofBytes, rootDigest []byte) error {
	proof, err := decodeProof(proofBytes)
	if err != nil {
		return err
	}
	present, _, err := tree.Verify(proof, rootDigest)
	if err != nil {
		return queryerr.Newf(queryerr.KindIncorrectProof, "%v", err)
	}
	if present {
		return queryerr.New(queryerr.KindIncorrectProof, "proof attests presence, expected absence")
	}
	return nil
}
