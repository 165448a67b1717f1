package creditpool

import (
	"testing"

	"github.com/meridianchain/drive/pkg/crypto"
	"github.com/meridianchain/drive/pkg/domain/identity"
	"github.com/meridianchain/drive/pkg/storage"
	"github.com/meridianchain/drive/pkg/tree"
)

func newTestStores(t *testing.T) (*Store, *identity.Store) {
	t.Helper()
	ts := tree.Open(storage.NewMemory())
	if err := identity.Bootstrap(ts); err != nil {
		t.Fatalf("identity bootstrap: %v", err)
	}
	if err := Bootstrap(ts, 1); err != nil {
		t.Fatalf("creditpool bootstrap: %v", err)
	}
	return NewStore(ts), identity.NewStore(ts)
}

func sampleProposer(id byte) *identity.Identity {
	return &identity.Identity{
		ID: []byte{id}, Revision: 1,
		Keys: []*identity.Key{{ID: 1, Purpose: identity.PurposeAuthentication, Security: identity.SecurityMaster, KeyType: crypto.KeyTypeECDSASecp256k1, Data: []byte{id}}},
	}
}

func TestRecordBlockAccumulatesPool(t *testing.T) {
	s, _ := newTestStores(t)
	if err := s.RecordBlock([]byte{0x01}, 100, 200, 1, 10); err != nil {
		t.Fatalf("record: %v", err)
	}
	epoch, err := s.GetEpoch(0)
	if err != nil {
		t.Fatalf("get epoch: %v", err)
	}
	if epoch.ProcessingFeePool != 100 || epoch.StorageFeePool != 200 {
		t.Errorf("pools: got %d/%d, want 100/200", epoch.ProcessingFeePool, epoch.StorageFeePool)
	}
	if epoch.TotalBlocks != 1 {
		t.Errorf("total blocks: got %d, want 1", epoch.TotalBlocks)
	}
}

func TestFinalizeEpochUpgradesOnSupermajority(t *testing.T) {
	s, _ := newTestStores(t)
	for i := 0; i < 8; i++ {
		s.RecordBlock([]byte{0x01}, 0, 0, 2, uint64(i))
	}
	for i := 0; i < 2; i++ {
		s.RecordBlock([]byte{0x01}, 0, 0, 1, uint64(8+i))
	}
	if err := s.FinalizeEpoch(100, 1000); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	meta, err := s.GetMeta()
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta.ProtocolVersion != 2 {
		t.Errorf("protocol version: got %d, want 2 (80%% supermajority)", meta.ProtocolVersion)
	}
}

func TestFinalizeEpochNoUpgradeBelowThreshold(t *testing.T) {
	s, _ := newTestStores(t)
	for i := 0; i < 5; i++ {
		s.RecordBlock([]byte{0x01}, 0, 0, 2, uint64(i))
	}
	for i := 0; i < 5; i++ {
		s.RecordBlock([]byte{0x01}, 0, 0, 1, uint64(5+i))
	}
	if err := s.FinalizeEpoch(100, 1000); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	meta, _ := s.GetMeta()
	if meta.ProtocolVersion != 1 {
		t.Errorf("protocol version: got %d, want unchanged 1", meta.ProtocolVersion)
	}
}

func TestPayoutEpochCreditsProposersProRata(t *testing.T) {
	s, identities := newTestStores(t)
	p1 := sampleProposer(0x01)
	p2 := sampleProposer(0x02)
	identities.Create(p1)
	identities.Create(p2)

	for i := 0; i < 3; i++ {
		s.RecordBlock(p1.ID, 100, 0, 1, uint64(i))
	}
	s.RecordBlock(p2.ID, 100, 0, 1, 3)

	results, err := s.PayoutEpoch(0, identities)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: got %d, want 2", len(results))
	}

	got1, _ := identities.Get(p1.ID)
	got2, _ := identities.Get(p2.ID)
	if got1.Balance != 300 {
		t.Errorf("p1 balance: got %d, want 300 (3/4 of 400)", got1.Balance)
	}
	if got2.Balance != 100 {
		t.Errorf("p2 balance: got %d, want 100 (1/4 of 400)", got2.Balance)
	}
}

func TestPayoutEpochIsIdempotent(t *testing.T) {
	s, identities := newTestStores(t)
	p1 := sampleProposer(0x01)
	identities.Create(p1)
	s.RecordBlock(p1.ID, 100, 0, 1, 0)

	if _, err := s.PayoutEpoch(0, identities); err != nil {
		t.Fatalf("first payout: %v", err)
	}
	results, err := s.PayoutEpoch(0, identities)
	if err != nil {
		t.Fatalf("second payout: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no further payout on already-paid epoch, got %d", len(results))
	}
}
