// Package query builds pure path-queries against the authenticated tree
// store for every client-visible read. pkg/verify has typed verifiers for
// the identity, contract, token state, token balance, asset lock and
// withdrawal reads plus a generic absence check; the other builders have
// no verifier there. Builders never
// touch the store themselves, so the exact same function can size a
// request, drive pkg/query/server's execution, and be re-run client-side
// during verification.
package query

import (
	"github.com/meridianchain/drive/pkg/domain/assetlock"
	"github.com/meridianchain/drive/pkg/domain/contract"
	"github.com/meridianchain/drive/pkg/domain/creditpool"
	"github.com/meridianchain/drive/pkg/domain/document"
	"github.com/meridianchain/drive/pkg/domain/identity"
	"github.com/meridianchain/drive/pkg/domain/token"
	"github.com/meridianchain/drive/pkg/domain/vote"
	"github.com/meridianchain/drive/pkg/domain/withdrawal"
	"github.com/meridianchain/drive/pkg/tree"
)

// GetIdentity builds the path-query for a single identity by id.
func GetIdentity(id []byte) (tree.Path, []byte) {
	return identity.IdentitiesPath(), id
}

// IdentityKeys builds the path-query for an identity's keys: the identity
// record itself, which carries its key set. It does not query the
// public-key-hash index.
func IdentityKeys(id []byte) (tree.Path, []byte) {
	return identity.IdentitiesPath(), id
}

// IdentitiesByPublicKeyHash builds the path-query for the reverse index
// resolving a public-key hash to its owning identity id.
func IdentitiesByPublicKeyHash(hash []byte) (tree.Path, []byte) {
	return identity.PublicKeyHashIndexPath(), hash
}

// ContractByID builds the path-query for a data contract by id.
func ContractByID(id []byte) (tree.Path, []byte) {
	return contract.ContractsPath(), id
}

// DocumentByID builds the path-query for a single document.
func DocumentByID(contractID []byte, documentType string, id []byte) (tree.Path, []byte) {
	return document.DocumentsPath(contractID, documentType), id
}

// DocumentQuery builds a ranged query over a document type's primary
// subtree, or one of its declared index subtrees when indexName != "".
func DocumentQuery(contractID []byte, documentType, indexName string, items []tree.QueryItem, limit int, descending bool) *tree.Query {
	path := document.DocumentsPath(contractID, documentType)
	if indexName != "" {
		path = contract.IndexPath(contractID, documentType, indexName)
	}
	q := tree.NewQuery(path, items...).WithLimit(limit)
	if descending {
		q.Descend()
	}
	return q
}

// TokenBalance builds the path-query for one identity's balance of a
// token.
func TokenBalance(contractID []byte, position uint16, identityID []byte) (tree.Path, []byte) {
	return token.BalancesPath(contractID, position), identityID
}

// TokenStatus builds the path-query for a token's state record (supply,
// pause/distribution status).
func TokenStatus(contractID []byte, position uint16) (tree.Path, []byte) {
	return token.StatePath(contractID, position), []byte("state")
}

// AssetLockByOutpoint builds the path-query for an asset lock.
func AssetLockByOutpoint(outpoint assetlock.Outpoint) (tree.Path, []byte) {
	return assetlock.AssetLocksPath(), outpoint.Key()
}

// WithdrawalByID builds the path-query for a queued withdrawal.
func WithdrawalByID(id []byte) (tree.Path, []byte) {
	return withdrawal.QueuePath(), id
}

// ContestedResourceByID builds the path-query for a masternode-voted
// contested resource.
func ContestedResourceByID(resourceID []byte) (tree.Path, []byte) {
	return vote.ResourcesPath(), resourceID
}

// VotePollsByEndDate builds the ranged query over the contested-resource
// end-epoch queue.
func VotePollsByEndDate(items []tree.QueryItem, limit int) *tree.Query {
	return tree.NewQuery(vote.QueuePath(), items...).WithLimit(limit)
}

// EpochInfo builds the path-query for one epoch's accounting record.
func EpochInfo(index uint64) (tree.Path, []byte) {
	return creditpool.EpochsPath(), creditpool.EpochKey(index)
}

// CreditPoolMeta builds the path-query for the singleton credit-pool
// state (current epoch, unpaid-epoch pointer, current protocol version).
func CreditPoolMeta() (tree.Path, []byte) {
	return tree.Path{}, creditpool.MetaKey()
}
