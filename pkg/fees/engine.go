package fees

import "fmt"

// StorageDelta decomposes one batch's effect on stored bytes into the
// three categories the fee engine prices separately.
type StorageDelta struct {
	AddedBytes    uint64
	ReplacedBytes uint64
	RemovedBytes  uint64

	// DisplacedOwners identifies who is owed a refund for bytes
	// displaced by this batch, keyed by the owner id recorded in the
	// displaced element's storage flags.
	DisplacedOwners map[string]uint64 // ownerID (string(bytes)) -> displaced byte count
	DisplacedEpoch  uint64            // epoch the displaced bytes were created in
}

// ProcessingUnits counts the per-operation work a batch performed, priced
// by the fee schedule into a single processing cost.
type ProcessingUnits struct {
	HashOps            uint64
	SeekOps            uint64
	SignatureVerifyOps uint64
	BalanceFetchOps    uint64
}

// Result is the fully settled outcome of running one transition's batch
// through the fee engine.
type Result struct {
	StorageFee    uint64
	ProcessingFee uint64
	TotalFee      uint64 // (StorageFee + ProcessingFee) * (1 + userFeeIncreasePermille/1000)

	StorageFeePoolCredit    uint64 // goes to storage_fee_pool(epoch)
	ProcessingFeePoolCredit uint64 // goes to processing_fee_pool(epoch)

	Refunds []Refund
}

// Refund is one pending credit owed to a previous storage-cost payer whose
// bytes were displaced. Settle only computes refunds and returns them in
// Result.Refunds; nothing in this module writes them to the tree store or
// credits them to the owner.
type Refund struct {
	OwnerID []byte
	Epoch   uint64
	Amount  uint64
}

// ErrInsufficientBalance reports that an identity's balance would go
// negative paying a fee.
var ErrInsufficientBalance = fmt.Errorf("fees: insufficient balance")

// Settle converts storage and processing costs into a Result under sched,
// applying the caller's declared fee-increase permille:
// (storage_fee + processing_fee) × (1 + user_fee_increase_permille/1000).
func Settle(sched Schedule, storage StorageDelta, proc ProcessingUnits, currentEpoch uint64, userFeeIncreasePermille uint64) Result {
	storageFee := storage.AddedBytes * sched.StorageByteCost
	processingFee := proc.HashOps*sched.ProcessingHashCost +
		proc.SeekOps*sched.ProcessingSeekCost +
		proc.SignatureVerifyOps*sched.SignatureVerifyCost +
		proc.BalanceFetchOps*sched.BalanceFetchCost

	base := storageFee + processingFee
	total := base + (base*userFeeIncreasePermille)/1000

	var refunds []Refund
	if len(storage.DisplacedOwners) > 0 {
		remainingLifetime := remainingLifetimeEpochs(sched, storage.DisplacedEpoch, currentEpoch)
		for owner, byteCount := range storage.DisplacedOwners {
			amount := refundAmount(sched, byteCount, remainingLifetime)
			if amount == 0 {
				continue
			}
			refunds = append(refunds, Refund{OwnerID: []byte(owner), Epoch: currentEpoch, Amount: amount})
		}
	}

	return Result{
		StorageFee:              storageFee,
		ProcessingFee:           processingFee,
		TotalFee:                total,
		StorageFeePoolCredit:    storageFee,
		ProcessingFeePoolCredit: processingFee,
		Refunds:                 refunds,
	}
}

// remainingLifetimeEpochs computes how many epochs of the displaced
// bytes' prepaid lifetime remain unconsumed, clamped to zero once the
// bytes have outlived their paid-for storage window.
func remainingLifetimeEpochs(sched Schedule, createdEpoch, currentEpoch uint64) uint64 {
	elapsed := currentEpoch - createdEpoch
	if elapsed >= sched.StorageLifetimeEpochs {
		return 0
	}
	return sched.StorageLifetimeEpochs - elapsed
}

// refundAmount computes the refund owed for displacing byteCount bytes
// with remainingLifetime epochs of prepaid storage left, proportional to
// that remaining lifetime.
func refundAmount(sched Schedule, byteCount, remainingLifetime uint64) uint64 {
	fullCost := byteCount * sched.StorageByteCost
	return (fullCost * remainingLifetime * sched.RefundPercentPerEpoch) / (sched.StorageLifetimeEpochs * 100)
}

// Debit charges total against balance, returning ErrInsufficientBalance
// rather than letting balance underflow.
func Debit(balance, total uint64) (uint64, error) {
	if total > balance {
		return balance, ErrInsufficientBalance
	}
	return balance - total, nil
}
