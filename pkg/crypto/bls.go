package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Domain separation tags for the contexts this engine signs with BLS keys
//.
const (
	DomainIdentityKeySignature = "MERIDIAN_IDENTITY_SIG_V1"
	DomainStateTransition      = "MERIDIAN_STATE_TRANSITION_V1"
	DomainQuorumAttestation    = "MERIDIAN_QUORUM_ATTESTATION_V1"
)

const (
	BLSPrivateKeySize = 32
	BLSPublicKeySize  = 96
	BLSSignatureSize  = 48
)

var (
	blsInitOnce sync.Once
	blsG1Gen    bls12381.G1Affine
	blsG2Gen    bls12381.G2Affine
)

func blsInit() {
	blsInitOnce.Do(func() {
		_, _, g1, g2 := bls12381.Generators()
		blsG1Gen = g1
		blsG2Gen = g2
	})
}

// BLSPrivateKey is a BLS12-381 private scalar.
type BLSPrivateKey struct {
	scalar fr.Element
}

// BLSPublicKey is a BLS12-381 public key, a point on G2.
type BLSPublicKey struct {
	point bls12381.G2Affine
}

// BLSSignature is a BLS12-381 signature, a point on G1.
type BLSSignature struct {
	point bls12381.G1Affine
}

// GenerateBLSKeyPair produces a fresh BLS key pair using crypto/rand.
func GenerateBLSKeyPair() (*BLSPrivateKey, *BLSPublicKey, error) {
	blsInit()
	var sk fr.Element
	if _, err := sk.SetRandom(); err != nil {
		return nil, nil, fmt.Errorf("crypto: generate bls scalar: %w", err)
	}
	priv := &BLSPrivateKey{scalar: sk}
	return priv, priv.Public(), nil
}

// BLSPrivateKeyFromBytes deserializes a 32-byte scalar.
func BLSPrivateKeyFromBytes(b []byte) (*BLSPrivateKey, error) {
	blsInit()
	if len(b) != BLSPrivateKeySize {
		return nil, fmt.Errorf("crypto: invalid bls private key size %d", len(b))
	}
	var sk fr.Element
	sk.SetBytes(b)
	return &BLSPrivateKey{scalar: sk}, nil
}

func (sk *BLSPrivateKey) Bytes() []byte {
	b := sk.scalar.Bytes()
	return b[:]
}

// Public derives pk = sk * G2.
func (sk *BLSPrivateKey) Public() *BLSPublicKey {
	var pk bls12381.G2Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	pk.ScalarMultiplication(&blsG2Gen, &skBig)
	return &BLSPublicKey{point: pk}
}

// Sign computes sig = sk * H(domain || message).
func (sk *BLSPrivateKey) Sign(domain string, message []byte) *BLSSignature {
	h := hashToG1(domain, message)
	var sig bls12381.G1Affine
	var skBig big.Int
	sk.scalar.BigInt(&skBig)
	sig.ScalarMultiplication(&h, &skBig)
	return &BLSSignature{point: sig}
}

// BLSPublicKeyFromBytes deserializes a compressed G2 point.
func BLSPublicKeyFromBytes(b []byte) (*BLSPublicKey, error) {
	blsInit()
	var pk bls12381.G2Affine
	if _, err := pk.SetBytes(b); err != nil {
		return nil, fmt.Errorf("crypto: deserialize bls public key: %w", err)
	}
	return &BLSPublicKey{point: pk}, nil
}

func (pk *BLSPublicKey) KeyType() KeyType { return KeyTypeBLS12381 }

func (pk *BLSPublicKey) Bytes() []byte {
	b := pk.point.Bytes()
	return b[:]
}

// VerifyDomain checks a signature produced with the given domain tag.
func (pk *BLSPublicKey) VerifyDomain(sig *BLSSignature, domain string, message []byte) bool {
	h := hashToG1(domain, message)
	var negPk bls12381.G2Affine
	negPk.Neg(&pk.point)
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig.point, h},
		[]bls12381.G2Affine{blsG2Gen, negPk},
	)
	return err == nil && ok
}

// Verify implements Verifier using the identity-key-signature domain. Most
// call sites in the pipeline want VerifyDomain with an explicit domain;
// Verify exists so BLSPublicKey satisfies the common interface.
func (pk *BLSPublicKey) Verify(message, signature []byte) bool {
	sig, err := BLSSignatureFromBytes(signature)
	if err != nil {
		return false
	}
	return pk.VerifyDomain(sig, DomainIdentityKeySignature, message)
}

// Equal reports whether two public keys are the same G2 point.
func (pk *BLSPublicKey) Equal(other *BLSPublicKey) bool { return pk.point.Equal(&other.point) }

// BLSSignatureFromBytes deserializes a compressed G1 point.
func BLSSignatureFromBytes(b []byte) (*BLSSignature, error) {
	blsInit()
	var sig bls12381.G1Affine
	if _, err := sig.SetBytes(b); err != nil {
		return nil, fmt.Errorf("crypto: deserialize bls signature: %w", err)
	}
	return &BLSSignature{point: sig}, nil
}

func (sig *BLSSignature) Bytes() []byte {
	b := sig.point.Bytes()
	return b[:]
}

// AggregateBLSSignatures sums signatures on G1, used to compress a
// masternode quorum's individual attestations into a single signature.
func AggregateBLSSignatures(sigs []*BLSSignature) (*BLSSignature, error) {
	blsInit()
	if len(sigs) == 0 {
		return nil, errors.New("crypto: no bls signatures to aggregate")
	}
	var agg bls12381.G1Jac
	agg.FromAffine(&sigs[0].point)
	for _, s := range sigs[1:] {
		var jac bls12381.G1Jac
		jac.FromAffine(&s.point)
		agg.AddAssign(&jac)
	}
	var result bls12381.G1Affine
	result.FromJacobian(&agg)
	return &BLSSignature{point: result}, nil
}

// AggregateBLSPublicKeys sums public keys on G2.
func AggregateBLSPublicKeys(keys []*BLSPublicKey) (*BLSPublicKey, error) {
	blsInit()
	if len(keys) == 0 {
		return nil, errors.New("crypto: no bls public keys to aggregate")
	}
	var agg bls12381.G2Jac
	agg.FromAffine(&keys[0].point)
	for _, k := range keys[1:] {
		var jac bls12381.G2Jac
		jac.FromAffine(&k.point)
		agg.AddAssign(&jac)
	}
	var result bls12381.G2Affine
	result.FromJacobian(&agg)
	return &BLSPublicKey{point: result}, nil
}

// VerifyAggregateBLSSignature verifies aggSig against the aggregate of
// publicKeys, requiring every signer to have signed the same message under
// the same domain.
func VerifyAggregateBLSSignature(aggSig *BLSSignature, publicKeys []*BLSPublicKey, domain string, message []byte) bool {
	aggPk, err := AggregateBLSPublicKeys(publicKeys)
	if err != nil {
		return false
	}
	return aggPk.VerifyDomain(aggSig, domain, message)
}

// ValidateBLSPublicKeySubgroup rejects keys outside G2's prime-order
// subgroup, a rogue-key-attack precondition. Neither the pipeline's basic
// structural validation nor the identity store calls it when keys are added.
func ValidateBLSPublicKeySubgroup(b []byte) error {
	blsInit()
	if len(b) != BLSPublicKeySize {
		return fmt.Errorf("crypto: invalid bls public key size %d", len(b))
	}
	var pk bls12381.G2Affine
	if _, err := pk.SetBytes(b); err != nil {
		return fmt.Errorf("crypto: invalid bls public key encoding: %w", err)
	}
	if !pk.IsOnCurve() {
		return errors.New("crypto: bls public key not on curve")
	}
	if pk.IsInfinity() {
		return errors.New("crypto: bls public key is identity point")
	}
	if !pk.IsInSubGroup() {
		return errors.New("crypto: bls public key not in prime-order subgroup")
	}
	return nil
}

func hashToG1(domain string, message []byte) bls12381.G1Affine {
	blsInit()
	base := sha256.New()
	base.Write([]byte(domain))
	base.Write(message)
	seed := base.Sum(nil)

	for counter := uint64(0); counter < 1000; counter++ {
		h := sha256.New()
		h.Write(seed)
		binary.Write(h, binary.BigEndian, counter)
		digest := h.Sum(nil)

		var point bls12381.G1Affine
		if _, err := point.SetBytes(digest); err == nil && !point.IsInfinity() {
			return point
		}

		var scalar fr.Element
		scalar.SetBytes(digest)
		var scalarBig big.Int
		scalar.BigInt(&scalarBig)
		var result bls12381.G1Affine
		result.ScalarMultiplication(&blsG1Gen, &scalarBig)
		if !result.IsInfinity() {
			return result
		}
	}
	return blsG1Gen
}
