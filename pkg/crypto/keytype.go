// Package crypto provides the identity-key cryptography backing every
// signed state transition. Each key type
// is grounded on a distinct library the example pack demonstrates: BLS12-381
// via gnark-crypto, ECDSA secp256k1 via go-ethereum, and EdDSA via the
// standard library's ed25519 (no suitable third-party Ed25519 package
// appears anywhere in the corpus, so this one concern is carried on
// crypto/ed25519 — see DESIGN.md).
package crypto

import "fmt"

// KeyType is the closed set of signature schemes an identity public key
// can use.
type KeyType uint8

const (
	KeyTypeECDSASecp256k1 KeyType = iota
	KeyTypeBLS12381
	KeyTypeECDSAHash160
	KeyTypeBIP13ScriptHash
	KeyTypeEDDSA25519Hash160
)

func (k KeyType) String() string {
	switch k {
	case KeyTypeECDSASecp256k1:
		return "ecdsa-secp256k1"
	case KeyTypeBLS12381:
		return "bls12-381"
	case KeyTypeECDSAHash160:
		return "ecdsa-hash160"
	case KeyTypeBIP13ScriptHash:
		return "bip13-script-hash"
	case KeyTypeEDDSA25519Hash160:
		return "eddsa-25519-hash160"
	default:
		return fmt.Sprintf("keytype(%d)", uint8(k))
	}
}

// IsSignable reports whether this key type supports direct signature
// verification (as opposed to BIP13ScriptHash, which authenticates a
// redeem script rather than a single keypair and is validated out of
// band by the transition's witness data).
func (k KeyType) IsSignable() bool {
	return k == KeyTypeECDSASecp256k1 || k == KeyTypeBLS12381 ||
		k == KeyTypeECDSAHash160 || k == KeyTypeEDDSA25519Hash160
}

// Verifier is implemented by every key type's public key, letting the
// state-transition pipeline's signature stage dispatch on KeyType without
// a type switch at every call site.
type Verifier interface {
	KeyType() KeyType
	Verify(message, signature []byte) bool
	Bytes() []byte
}
