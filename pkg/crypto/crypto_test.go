package crypto

import "testing"

func TestBLSSignAndVerify(t *testing.T) {
	priv, pub, err := GenerateBLSKeyPair()
	if err != nil {
		t.Fatalf("generate bls key pair: %v", err)
	}
	msg := []byte("state-transition-payload")
	sig := priv.Sign(DomainStateTransition, msg)

	if !pub.VerifyDomain(sig, DomainStateTransition, msg) {
		t.Error("expected signature to verify")
	}
	if pub.VerifyDomain(sig, DomainStateTransition, []byte("tampered")) {
		t.Error("expected signature over different message to fail")
	}
	if pub.VerifyDomain(sig, DomainQuorumAttestation, msg) {
		t.Error("expected signature under different domain to fail")
	}
}

func TestBLSAggregateSignatures(t *testing.T) {
	const n = 5
	var privs []*BLSPrivateKey
	var pubs []*BLSPublicKey
	var sigs []*BLSSignature
	msg := []byte("quorum-block-attestation")

	for i := 0; i < n; i++ {
		priv, pub, err := GenerateBLSKeyPair()
		if err != nil {
			t.Fatalf("generate bls key pair %d: %v", i, err)
		}
		privs = append(privs, priv)
		pubs = append(pubs, pub)
		sigs = append(sigs, priv.Sign(DomainQuorumAttestation, msg))
	}

	aggSig, err := AggregateBLSSignatures(sigs)
	if err != nil {
		t.Fatalf("aggregate signatures: %v", err)
	}
	if !VerifyAggregateBLSSignature(aggSig, pubs, DomainQuorumAttestation, msg) {
		t.Error("expected aggregate signature to verify")
	}

	if VerifyAggregateBLSSignature(aggSig, pubs[:n-1], DomainQuorumAttestation, msg) {
		t.Error("expected verification against an incomplete key set to fail")
	}
}

func TestBLSPublicKeySubgroupValidation(t *testing.T) {
	_, pub, err := GenerateBLSKeyPair()
	if err != nil {
		t.Fatalf("generate bls key pair: %v", err)
	}
	if err := ValidateBLSPublicKeySubgroup(pub.Bytes()); err != nil {
		t.Errorf("expected valid public key, got error: %v", err)
	}
	if err := ValidateBLSPublicKeySubgroup(make([]byte, BLSPublicKeySize)); err == nil {
		t.Error("expected all-zero bytes to fail subgroup validation")
	}
}

func TestECDSASignAndVerify(t *testing.T) {
	priv, _, err := GenerateECDSAKeyPair()
	if err != nil {
		t.Fatalf("generate ecdsa key pair: %v", err)
	}
	pub := priv.Public(false)
	msg := []byte("identity-key-registration")

	sig, err := priv.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !pub.Verify(msg, sig) {
		t.Error("expected signature to verify")
	}
	if pub.Verify([]byte("tampered"), sig) {
		t.Error("expected verification of tampered message to fail")
	}
}

func TestECDSAHash160Verify(t *testing.T) {
	priv, _, err := GenerateECDSAKeyPair()
	if err != nil {
		t.Fatalf("generate ecdsa key pair: %v", err)
	}
	pub := priv.Public(true)
	if pub.KeyType() != KeyTypeECDSAHash160 {
		t.Errorf("expected hash160 key type, got %s", pub.KeyType())
	}
	msg := []byte("asset-lock-proof")
	sig, err := priv.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !pub.Verify(msg, sig) {
		t.Error("expected hash160-identified signature to verify")
	}
}

func TestEdDSASignAndVerify(t *testing.T) {
	priv, pub, err := GenerateEdDSAKeyPair()
	if err != nil {
		t.Fatalf("generate eddsa key pair: %v", err)
	}
	msg := []byte("document-submission")
	sig := priv.Sign(msg)
	if !pub.Verify(msg, sig) {
		t.Error("expected signature to verify")
	}
	if pub.Verify([]byte("tampered"), sig) {
		t.Error("expected verification of tampered message to fail")
	}
}
