package vote

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

func TestOpenCreatesResourceWithOneContender(t *testing.T) {
	s := newTestStore(t)
	id := ResourceID([]byte{0x01}, "note", "byTitle", []byte("hello"))

	if err := s.Open([]byte{0x01}, "note", "byTitle", []byte("hello"), []byte{0xD1}, []byte{0xAA}, 100); err != nil {
		t.Fatalf("open: %v", err)
	}

	res, err := s.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(res.Contenders) != 1 {
		t.Fatalf("contenders: got %d, want 1", len(res.Contenders))
	}
}

func TestOpenAddsSecondContender(t *testing.T) {
	s := newTestStore(t)
	s.Open([]byte{0x01}, "note", "byTitle", []byte("hello"), []byte{0xD1}, []byte{0xAA}, 100)
	if err := s.Open([]byte{0x01}, "note", "byTitle", []byte("hello"), []byte{0xD2}, []byte{0xBB}, 100); err != nil {
		t.Fatalf("open second: %v", err)
	}

	id := ResourceID([]byte{0x01}, "note", "byTitle", []byte("hello"))
	res, _ := s.Get(id)
	if len(res.Contenders) != 2 {
		t.Fatalf("contenders: got %d, want 2", len(res.Contenders))
	}
}

func TestCastVoteRequiresMasternode(t *testing.T) {
	s := newTestStore(t)
	s.Open([]byte{0x01}, "note", "byTitle", []byte("hello"), []byte{0xD1}, []byte{0xAA}, 100)
	id := ResourceID([]byte{0x01}, "note", "byTitle", []byte("hello"))

	err := s.CastVote(id, []byte{0xF1}, ChoiceDocument, []byte{0xD1}, 10, false)
	if err == nil {
		t.Fatal("expected masternode-vote-not-allowed error")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindMasternodeVoteNotAllowed {
		t.Errorf("expected KindMasternodeVoteNotAllowed, got %v", err)
	}
}

func TestCastVoteTalliesAndRevote(t *testing.T) {
	s := newTestStore(t)
	s.Open([]byte{0x01}, "note", "byTitle", []byte("hello"), []byte{0xD1}, []byte{0xAA}, 100)
	s.Open([]byte{0x01}, "note", "byTitle", []byte("hello"), []byte{0xD2}, []byte{0xBB}, 100)
	id := ResourceID([]byte{0x01}, "note", "byTitle", []byte("hello"))

	if err := s.CastVote(id, []byte{0xF1}, ChoiceDocument, []byte{0xD1}, 10, true); err != nil {
		t.Fatalf("vote 1: %v", err)
	}
	res, _ := s.Get(id)
	if res.contender([]byte{0xD1}).Votes != 1 {
		t.Fatalf("expected D1 at 1 vote")
	}

	// Masternode changes its mind.
	if err := s.CastVote(id, []byte{0xF1}, ChoiceDocument, []byte{0xD2}, 11, true); err != nil {
		t.Fatalf("vote 2: %v", err)
	}
	res, _ = s.Get(id)
	if res.contender([]byte{0xD1}).Votes != 0 {
		t.Errorf("expected D1 retracted to 0, got %d", res.contender([]byte{0xD1}).Votes)
	}
	if res.contender([]byte{0xD2}).Votes != 1 {
		t.Errorf("expected D2 at 1 vote, got %d", res.contender([]byte{0xD2}).Votes)
	}
}

func TestDueForResolutionDequeues(t *testing.T) {
	s := newTestStore(t)
	s.Open([]byte{0x01}, "note", "byTitle", []byte("hello"), []byte{0xD1}, []byte{0xAA}, 100)

	due, err := s.DueForResolution(50)
	if err != nil {
		t.Fatalf("due@50: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected nothing due before end epoch, got %d", len(due))
	}

	due, err = s.DueForResolution(100)
	if err != nil {
		t.Fatalf("due@100: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected one resource due, got %d", len(due))
	}

	due, err = s.DueForResolution(100)
	if err != nil {
		t.Fatalf("due@100 again: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected queue drained after resolution, got %d", len(due))
	}
}
