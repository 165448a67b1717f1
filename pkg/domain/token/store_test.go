package token

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

func sampleState(contractID byte) *State {
	return &State{ContractID: []byte{contractID}, Position: 0, MaxSupply: 1_000_000, Decimals: 8}
}

func TestCreateAndMint(t *testing.T) {
	s := newTestStore(t)
	st := sampleState(0x01)
	if err := s.Create(st); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.Mint(st.ContractID, st.Position, []byte{0xAA}, 500); err != nil {
		t.Fatalf("mint: %v", err)
	}

	got, err := s.Get(st.ContractID, st.Position)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalSupply != 500 {
		t.Errorf("total supply: got %d, want 500", got.TotalSupply)
	}
	if bal := s.balanceOf(st.ContractID, st.Position, []byte{0xAA}); bal != 500 {
		t.Errorf("balance: got %d, want 500", bal)
	}
}

func TestMintExceedsSupplyCapFails(t *testing.T) {
	s := newTestStore(t)
	st := sampleState(0x01)
	s.Create(st)

	err := s.Mint(st.ContractID, st.Position, []byte{0xAA}, 2_000_000)
	if err == nil {
		t.Fatal("expected supply cap error")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindInvalidTokenSupplyCapExceeded {
		t.Errorf("expected KindInvalidTokenSupplyCapExceeded, got %v", err)
	}
}

func TestTransferToSelfFails(t *testing.T) {
	s := newTestStore(t)
	st := sampleState(0x01)
	s.Create(st)
	s.Mint(st.ContractID, st.Position, []byte{0xAA}, 100)

	err := s.Transfer(st.ContractID, st.Position, []byte{0xAA}, []byte{0xAA}, 10, nil)
	if err == nil {
		t.Fatal("expected transfer-to-self error")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindInvalidTokenTransferToSelf {
		t.Errorf("expected KindInvalidTokenTransferToSelf, got %v", err)
	}
}

func TestTransferMovesBalance(t *testing.T) {
	s := newTestStore(t)
	st := sampleState(0x01)
	s.Create(st)
	s.Mint(st.ContractID, st.Position, []byte{0xAA}, 100)

	if err := s.Transfer(st.ContractID, st.Position, []byte{0xAA}, []byte{0xBB}, 40, []byte("gift")); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal := s.balanceOf(st.ContractID, st.Position, []byte{0xAA}); bal != 60 {
		t.Errorf("sender balance: got %d, want 60", bal)
	}
	if bal := s.balanceOf(st.ContractID, st.Position, []byte{0xBB}); bal != 40 {
		t.Errorf("receiver balance: got %d, want 40", bal)
	}
}

func TestFrozenIdentityCannotTransfer(t *testing.T) {
	s := newTestStore(t)
	st := sampleState(0x01)
	s.Create(st)
	s.Mint(st.ContractID, st.Position, []byte{0xAA}, 100)
	s.Freeze(st.ContractID, st.Position, []byte{0xAA})

	err := s.Transfer(st.ContractID, st.Position, []byte{0xAA}, []byte{0xBB}, 10, nil)
	if err == nil {
		t.Fatal("expected frozen error")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindTokenFrozen {
		t.Errorf("expected KindTokenFrozen, got %v", err)
	}
}

func TestPausedTokenCannotTransfer(t *testing.T) {
	s := newTestStore(t)
	st := sampleState(0x01)
	s.Create(st)
	s.Mint(st.ContractID, st.Position, []byte{0xAA}, 100)
	s.Pause(st.ContractID, st.Position)

	err := s.Transfer(st.ContractID, st.Position, []byte{0xAA}, []byte{0xBB}, 10, nil)
	if err == nil {
		t.Fatal("expected paused error")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindTokenPaused {
		t.Errorf("expected KindTokenPaused, got %v", err)
	}
}

func TestClaimWithoutDistributionFails(t *testing.T) {
	s := newTestStore(t)
	st := sampleState(0x01)
	s.Create(st)

	err := s.Claim(st.ContractID, st.Position, []byte{0xAA}, 10)
	if err == nil {
		t.Fatal("expected no-rewards error")
	}
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindInvalidTokenClaimNoRewards {
		t.Errorf("expected KindInvalidTokenClaimNoRewards, got %v", err)
	}
}

func TestBurnReducesSupplyAndBalance(t *testing.T) {
	s := newTestStore(t)
	st := sampleState(0x01)
	s.Create(st)
	s.Mint(st.ContractID, st.Position, []byte{0xAA}, 100)

	if err := s.Burn(st.ContractID, st.Position, []byte{0xAA}, 40); err != nil {
		t.Fatalf("burn: %v", err)
	}
	got, _ := s.Get(st.ContractID, st.Position)
	if got.TotalSupply != 60 {
		t.Errorf("total supply: got %d, want 60", got.TotalSupply)
	}
	if bal := s.balanceOf(st.ContractID, st.Position, []byte{0xAA}); bal != 60 {
		t.Errorf("balance: got %d, want 60", bal)
	}
}

func TestBurnExceedingBalanceFails(t *testing.T) {
	s := newTestStore(t)
	st := sampleState(0x01)
	s.Create(st)
	s.Mint(st.ContractID, st.Position, []byte{0xAA}, 10)

	err := s.Burn(st.ContractID, st.Position, []byte{0xAA}, 20)
	if ce, ok := err.(*consensuserr.Error); !ok || ce.Kind != consensuserr.KindInsufficientBalance {
		t.Errorf("expected KindInsufficientBalance, got %v", err)
	}
}

func TestSetDistributionThenClaim(t *testing.T) {
	s := newTestStore(t)
	st := sampleState(0x01)
	s.Create(st)

	if err := s.SetDistribution(st.ContractID, st.Position, &Distribution{IntervalEpochs: 5, AmountPerInterval: 2}); err != nil {
		t.Fatalf("set distribution: %v", err)
	}
	if err := s.Claim(st.ContractID, st.Position, []byte{0xAA}, 5); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if bal := s.balanceOf(st.ContractID, st.Position, []byte{0xAA}); bal != 2 {
		t.Errorf("balance: got %d, want 2", bal)
	}
}

func TestClaimMintsAccruedReward(t *testing.T) {
	s := newTestStore(t)
	st := sampleState(0x01)
	st.Distribution = &Distribution{IntervalEpochs: 10, AmountPerInterval: 5}
	s.Create(st)

	if err := s.Claim(st.ContractID, st.Position, []byte{0xAA}, 25); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if bal := s.balanceOf(st.ContractID, st.Position, []byte{0xAA}); bal != 10 {
		t.Errorf("balance: got %d, want 10 (2 whole intervals)", bal)
	}
}
