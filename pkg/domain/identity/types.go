// Package identity implements the Identity entity: balance,
// revision, nonces, and public keys, stored under the tree store's
// top-level "identities" category plus its balance sum subtree and
// public-key-hash indices.
package identity

import (
	"sort"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/crypto"
	"github.com/meridianchain/drive/pkg/tree"
)

// Purpose is the closed set of roles an identity public key can serve.
type Purpose uint8

const (
	PurposeAuthentication Purpose = iota
	PurposeEncryption
	PurposeDecryption
	PurposeTransfer
	PurposeVoting
	PurposeOwner
	PurposeSystem
)

// SecurityLevel orders how sensitive an operation a key may authorize.
type SecurityLevel uint8

const (
	SecurityMaster SecurityLevel = iota
	SecurityCritical
	SecurityHigh
	SecurityMedium
)

// ContractBound optionally restricts a key to one contract, or one
// contract and document type within it.
type ContractBound struct {
	ContractID   []byte
	DocumentType string // empty means "all document types in ContractID"
}

// Key is one entry in an identity's public-key set.
type Key struct {
	ID            uint32
	Purpose       Purpose
	Security      SecurityLevel
	KeyType       crypto.KeyType
	Data          []byte
	ReadOnly      bool
	DisabledAtMs  uint64 // 0 means not disabled
	ContractBound *ContractBound
}

func (k *Key) MarshalCanonical(w *codec.Writer) {
	w.PutUint32(k.ID)
	w.PutTag(uint8(k.Purpose))
	w.PutTag(uint8(k.Security))
	w.PutTag(uint8(k.KeyType))
	w.PutBytes(k.Data)
	w.PutBool(k.ReadOnly)
	w.PutUint64(k.DisabledAtMs)
	w.PutBool(k.ContractBound != nil)
	if k.ContractBound != nil {
		w.PutBytes(k.ContractBound.ContractID)
		w.PutString(k.ContractBound.DocumentType)
	}
}

func (k *Key) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if k.ID, err = r.Uint32(); err != nil {
		return err
	}
	tag, err := r.Tag()
	if err != nil {
		return err
	}
	k.Purpose = Purpose(tag)
	if tag, err = r.Tag(); err != nil {
		return err
	}
	k.Security = SecurityLevel(tag)
	if tag, err = r.Tag(); err != nil {
		return err
	}
	k.KeyType = crypto.KeyType(tag)
	if k.Data, err = r.Bytes(); err != nil {
		return err
	}
	if k.ReadOnly, err = r.Bool(); err != nil {
		return err
	}
	if k.DisabledAtMs, err = r.Uint64(); err != nil {
		return err
	}
	hasBound, err := r.Bool()
	if err != nil {
		return err
	}
	if hasBound {
		k.ContractBound = &ContractBound{}
		if k.ContractBound.ContractID, err = r.Bytes(); err != nil {
			return err
		}
		if k.ContractBound.DocumentType, err = r.String(); err != nil {
			return err
		}
	}
	return nil
}

// Identity is the persisted entity at path ["identities"], key=id.
type Identity struct {
	ID             []byte // 32 bytes
	Revision       uint64
	Balance        uint64
	Nonce          uint64
	ContractNonces map[string]uint64 // contractID (string(bytes)) -> nonce
	Keys           []*Key
}

func (id *Identity) MarshalCanonical(w *codec.Writer) {
	w.PutBytes(id.ID)
	w.PutUint64(id.Revision)
	w.PutUint64(id.Balance)
	w.PutUint64(id.Nonce)
	w.PutVarUint(uint64(len(id.ContractNonces)))
	contractIDs := make([]string, 0, len(id.ContractNonces))
	for contractID := range id.ContractNonces {
		contractIDs = append(contractIDs, contractID)
	}
	sort.Strings(contractIDs)
	for _, contractID := range contractIDs {
		w.PutBytes([]byte(contractID))
		w.PutUint64(id.ContractNonces[contractID])
	}
	w.PutVarUint(uint64(len(id.Keys)))
	for _, k := range id.Keys {
		k.MarshalCanonical(w)
	}
}

func (id *Identity) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if id.ID, err = r.Bytes(); err != nil {
		return err
	}
	if id.Revision, err = r.Uint64(); err != nil {
		return err
	}
	if id.Balance, err = r.Uint64(); err != nil {
		return err
	}
	if id.Nonce, err = r.Uint64(); err != nil {
		return err
	}
	n, err := r.VarUint()
	if err != nil {
		return err
	}
	id.ContractNonces = make(map[string]uint64, n)
	for i := uint64(0); i < n; i++ {
		cid, err := r.Bytes()
		if err != nil {
			return err
		}
		nonce, err := r.Uint64()
		if err != nil {
			return err
		}
		id.ContractNonces[string(cid)] = nonce
	}
	nk, err := r.VarUint()
	if err != nil {
		return err
	}
	id.Keys = make([]*Key, nk)
	for i := range id.Keys {
		k := &Key{}
		if err := k.UnmarshalCanonical(r); err != nil {
			return err
		}
		id.Keys[i] = k
	}
	return nil
}

// HasMasterAuthenticationKey reports whether the identity still carries
// at least one enabled master-level authentication key. Every identity
// must hold this invariant at all times.
func (id *Identity) HasMasterAuthenticationKey() bool {
	for _, k := range id.Keys {
		if k.Purpose == PurposeAuthentication && k.Security == SecurityMaster && k.DisabledAtMs == 0 {
			return true
		}
	}
	return false
}

var identitiesPath = tree.NewPath("identities")
var balancesPath = tree.NewPath("identity-balances")
var pubKeyHashPath = tree.NewPath("identity-public-key-hashes")

// IdentitiesPath returns the top-level identities subtree path.
func IdentitiesPath() tree.Path { return identitiesPath }

// BalancesPath returns the identity balance sum subtree path.
func BalancesPath() tree.Path { return balancesPath }

// PublicKeyHashIndexPath returns the public-key-hash index subtree path.
func PublicKeyHashIndexPath() tree.Path { return pubKeyHashPath }
