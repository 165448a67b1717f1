package withdrawal

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

func sampleWithdrawal(id byte) *Withdrawal {
	return &Withdrawal{
		ID:             []byte{id},
		IdentityID:     []byte{0xAA},
		Amount:         1000,
		CoreFeePerByte: 1,
		OutputScript:   make([]byte, 25),
		Pooling:        PoolingNever,
		QueuedEpoch:    5,
	}
}

func TestQueueAndGet(t *testing.T) {
	s := newTestStore(t)
	w := sampleWithdrawal(0x01)
	if err := s.Queue(w); err != nil {
		t.Fatalf("queue: %v", err)
	}
	got, err := s.Get(w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusQueued {
		t.Errorf("status: got %v, want StatusQueued", got.Status)
	}
}

func TestQueueZeroAmountFails(t *testing.T) {
	s := newTestStore(t)
	w := sampleWithdrawal(0x01)
	w.Amount = 0
	err := s.Queue(w)
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindInvalidWithdrawalAmount {
		t.Errorf("expected KindInvalidWithdrawalAmount, got %v", err)
	}
}

func TestQueueBadOutputScriptFails(t *testing.T) {
	s := newTestStore(t)
	w := sampleWithdrawal(0x01)
	w.OutputScript = []byte{0x01}
	err := s.Queue(w)
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindInvalidWithdrawalOutputScript {
		t.Errorf("expected KindInvalidWithdrawalOutputScript, got %v", err)
	}
}

func TestQueueNonNeverPoolingFails(t *testing.T) {
	s := newTestStore(t)
	w := sampleWithdrawal(0x01)
	w.Pooling = PoolingPerBlock
	err := s.Queue(w)
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindInvalidWithdrawalPooling {
		t.Errorf("expected KindInvalidWithdrawalPooling, got %v", err)
	}
}

func TestMarkBroadcast(t *testing.T) {
	s := newTestStore(t)
	w := sampleWithdrawal(0x01)
	s.Queue(w)
	if err := s.MarkBroadcast(w.ID); err != nil {
		t.Fatalf("mark broadcast: %v", err)
	}
	got, _ := s.Get(w.ID)
	if got.Status != StatusBroadcast {
		t.Errorf("status: got %v, want StatusBroadcast", got.Status)
	}
}
