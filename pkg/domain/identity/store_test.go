package identity

import (
	"testing"

	"github.com/meridianchain/drive/pkg/consensuserr"
	"github.com/meridianchain/drive/pkg/crypto"
	"github.com/meridianchain/drive/pkg/storage"
	"github.com/meridianchain/drive/pkg/tree"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ts := tree.Open(storage.NewMemory())
	if err := Bootstrap(ts); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return NewStore(ts)
}

func sampleIdentity(id byte) *Identity {
	return &Identity{
		ID:       []byte{id},
		Revision: 1,
		Balance:  1_000_000,
		Keys: []*Key{
			{ID: 1, Purpose: PurposeAuthentication, Security: SecurityMaster, KeyType: crypto.KeyTypeECDSASecp256k1, Data: []byte{id, 0xAA}},
		},
	}
}

func TestCreateAndGetIdentity(t *testing.T) {
	s := newTestStore(t)
	ident := sampleIdentity(0x01)

	if err := s.Create(ident); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ident.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Balance != 1_000_000 {
		t.Errorf("balance: got %d, want 1000000", got.Balance)
	}
}

func TestCreateWithoutMasterKeyFails(t *testing.T) {
	s := newTestStore(t)
	ident := sampleIdentity(0x02)
	ident.Keys[0].Security = SecurityHigh

	err := s.Create(ident)
	if err == nil {
		t.Fatal("expected error creating identity without master authentication key")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindInvalidSignature {
		t.Errorf("expected KindInvalidSignature, got %v", err)
	}
}

func TestCreditTransfer(t *testing.T) {
	s := newTestStore(t)
	a := sampleIdentity(0x01)
	b := sampleIdentity(0x02)
	if err := s.Create(a); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := s.Create(b); err != nil {
		t.Fatalf("create b: %v", err)
	}

	if err := s.CreditTransfer(a.ID, b.ID, 100_000); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	gotA, _ := s.Get(a.ID)
	gotB, _ := s.Get(b.ID)
	if gotA.Balance != 900_000 {
		t.Errorf("sender balance: got %d, want 900000", gotA.Balance)
	}
	if gotB.Balance != 1_100_000 {
		t.Errorf("receiver balance: got %d, want 1100000", gotB.Balance)
	}
}

func TestCreditTransferInsufficientBalance(t *testing.T) {
	s := newTestStore(t)
	a := sampleIdentity(0x01)
	b := sampleIdentity(0x02)
	s.Create(a)
	s.Create(b)

	err := s.CreditTransfer(a.ID, b.ID, 10_000_000)
	if err == nil {
		t.Fatal("expected insufficient balance error")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindIdentityInsufficientBalance {
		t.Errorf("expected KindIdentityInsufficientBalance, got %v", err)
	}
}

func TestNonceMustStrictlyIncrease(t *testing.T) {
	s := newTestStore(t)
	ident := sampleIdentity(0x01)
	s.Create(ident)

	if err := s.CheckAndBumpNonce(ident.ID, 1); err != nil {
		t.Fatalf("first nonce bump: %v", err)
	}
	err := s.CheckAndBumpNonce(ident.ID, 1)
	if err == nil {
		t.Fatal("expected error reusing the same nonce")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindInvalidNonce {
		t.Errorf("expected KindInvalidNonce, got %v", err)
	}
}

func TestDisableKeysRejectsRemovingLastMasterKey(t *testing.T) {
	s := newTestStore(t)
	ident := sampleIdentity(0x01)
	s.Create(ident)

	err := s.DisableKeys(ident.ID, []uint32{1}, 1234)
	if err == nil {
		t.Fatal("expected error disabling the only master authentication key")
	}
}
