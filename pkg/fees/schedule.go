// Package fees implements the fee engine: converting a
// batch's storage-byte decomposition and accumulated processing cost into
// credits, debiting the paying identity, crediting the current epoch's
// fee pools, and computing refunds owed to displaced storage payers. The
// computed refunds are returned to the caller; this package does not
// record them.
package fees

import "fmt"

// Schedule holds the per-operation fee constants for one protocol epoch.
// Fee constants are versioned the same way feature-versions are: the
// processor must use the fee schedule matching the epoch being executed,
// not the epoch the code was compiled in, so callers look the Schedule
// up by epoch protocol version rather than using a package-level
// singleton.
type Schedule struct {
	Version uint32 `yaml:"version"`

	StorageByteCost      uint64 `yaml:"storage_byte_cost"`
	ProcessingHashCost    uint64 `yaml:"processing_hash_cost"`
	ProcessingSeekCost    uint64 `yaml:"processing_seek_cost"`
	SignatureVerifyCost   uint64 `yaml:"signature_verify_cost"`
	BalanceFetchCost      uint64 `yaml:"balance_fetch_cost"`
	RefundPercentPerEpoch uint64 `yaml:"refund_percent_per_epoch"` // out of 100, decays per epoch of remaining lifetime
	StorageLifetimeEpochs uint64 `yaml:"storage_lifetime_epochs"`
}

// defaultScheduleYAML is the genesis fee-schedule table this engine ships
// with, seeded as a yaml.v3 literal rather than hand-rolled JSON or a
// database migration.
var defaultScheduleYAML = []byte(`
- version: 1
  storage_byte_cost: 27000
  processing_hash_cost: 3000
  processing_seek_cost: 4000
  signature_verify_cost: 6000
  balance_fetch_cost: 1500
  refund_percent_per_epoch: 5
  storage_lifetime_epochs: 20
`)

// LoadDefaultSchedules parses the embedded genesis fee-schedule table.
func LoadDefaultSchedules() ([]Schedule, error) {
	return parseSchedules(defaultScheduleYAML)
}

// ForVersion returns the Schedule matching protocolVersion, or an error if
// none is registered — the fee-engine analogue of versioning.ErrUnknownVersion.
func ForVersion(schedules []Schedule, protocolVersion uint32) (Schedule, error) {
	for _, s := range schedules {
		if s.Version == protocolVersion {
			return s, nil
		}
	}
	return Schedule{}, fmt.Errorf("fees: no schedule registered for protocol version %d", protocolVersion)
}
