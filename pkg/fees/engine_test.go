package fees

import "testing"

func testSchedule() Schedule {
	return Schedule{
		Version:               1,
		StorageByteCost:       100,
		ProcessingHashCost:    10,
		ProcessingSeekCost:    5,
		SignatureVerifyCost:   20,
		BalanceFetchCost:      2,
		RefundPercentPerEpoch: 5,
		StorageLifetimeEpochs: 20,
	}
}

func TestSettleBasicFee(t *testing.T) {
	sched := testSchedule()
	storage := StorageDelta{AddedBytes: 50}
	proc := ProcessingUnits{HashOps: 3, SignatureVerifyOps: 1}

	result := Settle(sched, storage, proc, 10, 0)

	wantStorage := uint64(50 * 100)
	wantProcessing := uint64(3*10 + 1*20)
	if result.StorageFee != wantStorage {
		t.Errorf("storage fee: got %d, want %d", result.StorageFee, wantStorage)
	}
	if result.ProcessingFee != wantProcessing {
		t.Errorf("processing fee: got %d, want %d", result.ProcessingFee, wantProcessing)
	}
	if result.TotalFee != wantStorage+wantProcessing {
		t.Errorf("total fee: got %d, want %d", result.TotalFee, wantStorage+wantProcessing)
	}
}

func TestSettleAppliesUserFeeIncrease(t *testing.T) {
	sched := testSchedule()
	storage := StorageDelta{AddedBytes: 10}
	proc := ProcessingUnits{}

	result := Settle(sched, storage, proc, 10, 500) // +50%

	base := uint64(10 * 100)
	want := base + base/2
	if result.TotalFee != want {
		t.Errorf("total fee with increase: got %d, want %d", result.TotalFee, want)
	}
}

func TestSettleRefundsDisplacedOwner(t *testing.T) {
	sched := testSchedule()
	storage := StorageDelta{
		AddedBytes:      0,
		ReplacedBytes:   100,
		DisplacedOwners: map[string]uint64{"owner-a": 100},
		DisplacedEpoch:  5,
	}
	result := Settle(sched, storage, ProcessingUnits{}, 10, 0)

	if len(result.Refunds) != 1 {
		t.Fatalf("expected 1 refund, got %d", len(result.Refunds))
	}
	r := result.Refunds[0]
	if string(r.OwnerID) != "owner-a" {
		t.Errorf("refund owner: got %q, want owner-a", r.OwnerID)
	}
	if r.Amount == 0 {
		t.Error("expected non-zero refund amount")
	}
}

func TestSettleNoRefundOnceLifetimeExpired(t *testing.T) {
	sched := testSchedule()
	storage := StorageDelta{
		ReplacedBytes:   100,
		DisplacedOwners: map[string]uint64{"owner-a": 100},
		DisplacedEpoch:  1,
	}
	result := Settle(sched, storage, ProcessingUnits{}, 100, 0) // far past lifetime

	if len(result.Refunds) != 0 {
		t.Errorf("expected no refunds once lifetime has expired, got %d", len(result.Refunds))
	}
}

func TestDebitInsufficientBalance(t *testing.T) {
	_, err := Debit(50, 100)
	if err != ErrInsufficientBalance {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestDebitSucceeds(t *testing.T) {
	remaining, err := Debit(100, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 60 {
		t.Errorf("remaining balance: got %d, want 60", remaining)
	}
}

func TestForVersionUnknown(t *testing.T) {
	schedules := []Schedule{testSchedule()}
	if _, err := ForVersion(schedules, 99); err == nil {
		t.Error("expected error for unknown schedule version")
	}
}

func TestLoadDefaultSchedules(t *testing.T) {
	schedules, err := LoadDefaultSchedules()
	if err != nil {
		t.Fatalf("load default schedules: %v", err)
	}
	if len(schedules) == 0 {
		t.Fatal("expected at least one default schedule")
	}
	if schedules[0].Version != 1 {
		t.Errorf("expected genesis schedule version 1, got %d", schedules[0].Version)
	}
}
