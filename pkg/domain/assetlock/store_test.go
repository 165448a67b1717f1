package assetlock

import (
	"testing"

	"github.com/meridianchain/drive/pkg/consensuserr"
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

func sampleOutpoint(b byte) Outpoint {
	txid := make([]byte, 32)
	txid[0] = b
	return Outpoint{TxID: txid, Vout: 0}
}

func TestRegisterAndGet(t *testing.T) {
	s := newTestStore(t)
	op := sampleOutpoint(0x01)
	if err := s.Register(op, []byte{0xAA}, 1000); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := s.Get(op)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalAmount != 1000 {
		t.Errorf("total: got %d, want 1000", got.TotalAmount)
	}
}

func TestGetMissingFails(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(sampleOutpoint(0xFF))
	if err == nil {
		t.Fatal("expected asset-lock-not-found error")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindAssetLockNotFound {
		t.Errorf("expected KindAssetLockNotFound, got %v", err)
	}
}

func TestConsumePartial(t *testing.T) {
	s := newTestStore(t)
	op := sampleOutpoint(0x01)
	s.Register(op, []byte{0xAA}, 1000)

	remaining, err := s.Consume(op, 300)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if remaining != 700 {
		t.Errorf("remaining: got %d, want 700", remaining)
	}

	remaining, err = s.Consume(op, 700)
	if err != nil {
		t.Fatalf("consume rest: %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining: got %d, want 0", remaining)
	}
}

func TestConsumeAlreadyFullyConsumedFails(t *testing.T) {
	s := newTestStore(t)
	op := sampleOutpoint(0x01)
	s.Register(op, []byte{0xAA}, 500)
	s.Consume(op, 500)

	_, err := s.Consume(op, 1)
	if err == nil {
		t.Fatal("expected already-fully-consumed error")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindAssetLockAlreadyFullyConsumed {
		t.Errorf("expected KindAssetLockAlreadyFullyConsumed, got %v", err)
	}
}

func TestConsumeExceedingRemainingFails(t *testing.T) {
	s := newTestStore(t)
	op := sampleOutpoint(0x01)
	s.Register(op, []byte{0xAA}, 500)

	_, err := s.Consume(op, 600)
	if err == nil {
		t.Fatal("expected insufficient-balance error")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindInsufficientBalance {
		t.Errorf("expected KindInsufficientBalance, got %v", err)
	}
}
