package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/ripemd160"
)

// EdDSAPrivateKey wraps an Ed25519 private key. No third-party Ed25519
// implementation appears anywhere in the example pack, so this one key
// type is carried on crypto/ed25519 (see DESIGN.md).
type EdDSAPrivateKey struct {
	key ed25519.PrivateKey
}

// EdDSAPublicKey wraps an Ed25519 public key, identified either directly
// or via a hash160 of the raw key.
type EdDSAPublicKey struct {
	key     ed25519.PublicKey
	hash160 bool
}

// GenerateEdDSAKeyPair produces a fresh Ed25519 key pair.
func GenerateEdDSAKeyPair() (*EdDSAPrivateKey, *EdDSAPublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: generate eddsa key: %w", err)
	}
	return &EdDSAPrivateKey{key: priv}, &EdDSAPublicKey{key: pub}, nil
}

func (sk *EdDSAPrivateKey) Bytes() []byte { return []byte(sk.key) }

func (sk *EdDSAPrivateKey) Public(hash160 bool) *EdDSAPublicKey {
	return &EdDSAPublicKey{key: sk.key.Public().(ed25519.PublicKey), hash160: hash160}
}

func (sk *EdDSAPrivateKey) Sign(message []byte) []byte { return ed25519.Sign(sk.key, message) }

func (pk *EdDSAPublicKey) KeyType() KeyType { return KeyTypeEDDSA25519Hash160 }

func (pk *EdDSAPublicKey) Bytes() []byte {
	if !pk.hash160 {
		return []byte(pk.key)
	}
	sha := sha256.Sum256(pk.key)
	r := ripemd160.New()
	r.Write(sha[:])
	return r.Sum(nil)
}

// Verify checks an Ed25519 signature directly against the raw key; the
// hash160 identity is only a naming convenience over the same keypair, so
// verification always needs the full public key, not the condensed form.
func (pk *EdDSAPublicKey) Verify(message, signature []byte) bool {
	return ed25519.Verify(pk.key, message, signature)
}

// EdDSAPublicKeyFromBytes loads a raw 32-byte Ed25519 public key.
func EdDSAPublicKeyFromBytes(b []byte, hash160Identity bool) (*EdDSAPublicKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("crypto: invalid eddsa public key size %d", len(b))
	}
	return &EdDSAPublicKey{key: ed25519.PublicKey(b), hash160: hash160Identity}, nil
}
