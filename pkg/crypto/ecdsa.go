package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
)

// ECDSAPrivateKey wraps a secp256k1 private key using go-ethereum's curve
// implementation.
type ECDSAPrivateKey struct {
	key *ecdsa.PrivateKey
}

// ECDSAPublicKey wraps a secp256k1 public key.
type ECDSAPublicKey struct {
	key     *ecdsa.PublicKey
	hash160 bool // Verify() hashes the recovered pubkey to a hash160 identity
}

// GenerateECDSAKeyPair produces a fresh secp256k1 key pair.
func GenerateECDSAKeyPair() (*ECDSAPrivateKey, *ECDSAPublicKey, error) {
	k, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: generate ecdsa key: %w", err)
	}
	return &ECDSAPrivateKey{key: k}, &ECDSAPublicKey{key: &k.PublicKey}, nil
}

// ECDSAPrivateKeyFromBytes loads a 32-byte secp256k1 scalar.
func ECDSAPrivateKeyFromBytes(b []byte) (*ECDSAPrivateKey, error) {
	k, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode ecdsa private key: %w", err)
	}
	return &ECDSAPrivateKey{key: k}, nil
}

func (sk *ECDSAPrivateKey) Bytes() []byte { return ethcrypto.FromECDSA(sk.key) }

func (sk *ECDSAPrivateKey) Public(hash160 bool) *ECDSAPublicKey {
	return &ECDSAPublicKey{key: &sk.key.PublicKey, hash160: hash160}
}

// Sign produces a 65-byte recoverable signature over sha256(message), the
// format every ECDSA-family identity key signs with in this engine (the
// recovery id lets verification recover the signer's pubkey without the
// caller needing to carry it separately).
func (sk *ECDSAPrivateKey) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	sig, err := ethcrypto.Sign(digest[:], sk.key)
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: %w", err)
	}
	return sig, nil
}

func (pk *ECDSAPublicKey) KeyType() KeyType {
	if pk.hash160 {
		return KeyTypeECDSAHash160
	}
	return KeyTypeECDSASecp256k1
}

func (pk *ECDSAPublicKey) Bytes() []byte {
	raw := ethcrypto.FromECDSAPub(pk.key)
	if !pk.hash160 {
		return raw
	}
	return hash160(raw)
}

// Verify recovers the signer's public key from signature and checks it
// matches pk (directly for KeyTypeECDSASecp256k1, or via hash160 identity
// for KeyTypeECDSAHash160).
func (pk *ECDSAPublicKey) Verify(message, signature []byte) bool {
	if len(signature) != 65 {
		return false
	}
	digest := sha256.Sum256(message)
	recovered, err := ethcrypto.SigToPub(digest[:], signature)
	if err != nil {
		return false
	}
	recoveredBytes := ethcrypto.FromECDSAPub(recovered)
	if pk.hash160 {
		return string(hash160(recoveredBytes)) == string(pk.Bytes())
	}
	return string(recoveredBytes) == string(ethcrypto.FromECDSAPub(pk.key))
}

// ECDSAPublicKeyFromBytes loads an uncompressed secp256k1 public key.
func ECDSAPublicKeyFromBytes(b []byte, hash160Identity bool) (*ECDSAPublicKey, error) {
	k, err := ethcrypto.UnmarshalPubkey(b)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode ecdsa public key: %w", err)
	}
	return &ECDSAPublicKey{key: k, hash160: hash160Identity}, nil
}

func hash160(b []byte) []byte {
	sha := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sha[:])
	return r.Sum(nil)
}
