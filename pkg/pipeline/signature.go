package pipeline

import (
	"github.com/meridianchain/drive/pkg/consensuserr"
	"github.com/meridianchain/drive/pkg/crypto"
	"github.com/meridianchain/drive/pkg/domain/identity"
)

// verifierFromKey builds the crypto.Verifier the key's type dictates: five
// key types, one verification routine each, dispatched on crypto.KeyType.
func verifierFromKey(k *identity.Key) (crypto.Verifier, error) {
	switch k.KeyType {
	case crypto.KeyTypeECDSASecp256k1:
		return crypto.ECDSAPublicKeyFromBytes(k.Data, false)
	case crypto.KeyTypeECDSAHash160:
		return crypto.ECDSAPublicKeyFromBytes(k.Data, true)
	case crypto.KeyTypeEDDSA25519Hash160:
		return crypto.EdDSAPublicKeyFromBytes(k.Data, true)
	case crypto.KeyTypeBLS12381:
		return crypto.BLSPublicKeyFromBytes(k.Data)
	default:
		return nil, nil // BIP13ScriptHash: authenticated out of band, not by direct signature
	}
}

// findKey locates the signing key by id among an identity's keys.
func findKey(ident *identity.Identity, keyID uint32) (*identity.Key, bool) {
	for _, k := range ident.Keys {
		if k.ID == keyID {
			return k, true
		}
	}
	return nil, false
}

// requiredPurposeAndSecurity returns the key purpose and minimum security
// level a transition kind requires of its signing key.
func requiredPurposeAndSecurity(k Kind) (identity.Purpose, identity.SecurityLevel) {
	switch k {
	case KindDataContractCreate, KindDataContractUpdate:
		return identity.PurposeAuthentication, identity.SecurityCritical
	case KindMasternodeVote:
		return identity.PurposeVoting, identity.SecurityHigh
	case KindIdentityCreditWithdrawal, KindIdentityCreditTransfer:
		return identity.PurposeTransfer, identity.SecurityCritical
	default:
		return identity.PurposeAuthentication, identity.SecurityHigh
	}
}

// VerifySignature resolves the signing identity's declared key, checks its
// purpose/security against what this transition kind requires, and
// verifies the signature over env.SignableBytes().
func VerifySignature(identities *identity.Store, env *Envelope) error {
	ident, err := identities.Get(env.SignerID)
	if err != nil {
		return err
	}
	key, ok := findKey(ident, env.SignaturePublicKeyID)
	if !ok || key.DisabledAtMs != 0 {
		return consensuserr.New(consensuserr.KindInvalidSignature, "signature-key-present-and-enabled", hexID(env.SignerID))
	}
	wantPurpose, wantSecurity := requiredPurposeAndSecurity(env.Kind)
	if key.Purpose != wantPurpose || key.Security > wantSecurity {
		return consensuserr.New(consensuserr.KindInvalidSignatureSecurityLevel, "signature-key-security-level", hexID(env.SignerID))
	}
	verifier, err := verifierFromKey(key)
	if err != nil {
		return consensuserr.New(consensuserr.KindInvalidSignature, "signature-key-well-formed", hexID(env.SignerID))
	}
	if verifier == nil {
		// BIP13ScriptHash keys authenticate a redeem script checked by the
		// transition's own witness data, not here.
		return nil
	}
	if !verifier.Verify(env.SignableBytes(), env.Signature) {
		return consensuserr.New(consensuserr.KindInvalidSignature, "signature-valid", hexID(env.SignerID))
	}
	return nil
}
