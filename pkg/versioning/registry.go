// Package versioning implements the process-wide feature-version registry:
// one small integer per algorithmic decision point, bundled per protocol
// version, immutable after load.
package versioning

import (
	"fmt"
	"sync"
)

// FeatureVersion selects one algorithmic variant for one decision point.
type FeatureVersion uint16

// Feature identifies a decision point whose algorithm may evolve across
// protocol versions. New features are appended; existing ones never change
// meaning, only the version value selected for them per protocol version.
type Feature string

const (
	FeatureDocumentTypeParsing        Feature = "document_type_parsing"
	FeatureIdentityCreateSerializer   Feature = "identity_create_transition"
	FeatureDocumentBatchSerializer    Feature = "document_batch_transition"
	FeatureTokenBatchSerializer       Feature = "token_batch_transition"
	FeatureEpochFeeDistribution       Feature = "epoch_fee_distribution"
	FeatureContractSerializer         Feature = "data_contract"
	FeatureIdentityPublicKeySerializer Feature = "identity_public_key"
	FeatureMasternodeVoteSerializer   Feature = "masternode_vote_transition"
	FeatureFeeSchedule                Feature = "fee_schedule"
)

// ErrUnknownVersion is returned when a call site is presented with a
// feature-version the registry does not recognize. Version gating must
// commit no state when this occurs.
type ErrUnknownVersion struct {
	Feature         Feature
	ProtocolVersion uint32
}

func (e *ErrUnknownVersion) Error() string {
	return fmt.Sprintf("versioning: unknown-version-mismatch: feature %q has no mapping at protocol version %d",
		e.Feature, e.ProtocolVersion)
}

// Bundle is the set of feature-versions in effect for one protocol version.
type Bundle struct {
	ProtocolVersion uint32
	Features        map[Feature]FeatureVersion
}

// Get returns the feature-version selected for f, or ErrUnknownVersion if
// this bundle has no entry for it.
func (b *Bundle) Get(f Feature) (FeatureVersion, error) {
	v, ok := b.Features[f]
	if !ok {
		return 0, &ErrUnknownVersion{Feature: f, ProtocolVersion: b.ProtocolVersion}
	}
	return v, nil
}

// MustGet panics if f has no mapping in this bundle. Reserved for
// call sites operating under a protocol version already validated as known
// (e.g. inside a block whose proposed protocol version was checked at
// decode time); ordinary call sites must use Get and propagate the error.
func (b *Bundle) MustGet(f Feature) FeatureVersion {
	v, err := b.Get(f)
	if err != nil {
		panic(err)
	}
	return v
}

// Registry is the process-wide, load-once, immutable mapping from protocol
// version to feature-version bundle.
type Registry struct {
	once    sync.Once
	bundles map[uint32]*Bundle
}

// NewRegistry constructs a Registry from a set of bundles, one per protocol
// version the binary knows how to execute. The registry is safe for
// concurrent read-only use once constructed and must not be mutated
// afterward.
func NewRegistry(bundles []*Bundle) *Registry {
	m := make(map[uint32]*Bundle, len(bundles))
	for _, b := range bundles {
		m[b.ProtocolVersion] = b
	}
	return &Registry{bundles: m}
}

// Bundle returns the feature-version bundle for protocolVersion.
func (r *Registry) Bundle(protocolVersion uint32) (*Bundle, error) {
	b, ok := r.bundles[protocolVersion]
	if !ok {
		return nil, &ErrUnknownVersion{ProtocolVersion: protocolVersion}
	}
	return b, nil
}

// KnownVersions returns the protocol versions this registry can execute, in
// no particular order.
func (r *Registry) KnownVersions() []uint32 {
	out := make([]uint32, 0, len(r.bundles))
	for v := range r.bundles {
		out = append(out, v)
	}
	return out
}

// Genesis builds the baseline registry shipped with the engine: protocol
// version 1, every feature pinned to its v0 algorithm. Later protocol
// versions are added by constructing additional Bundles and passing the
// full set to NewRegistry; nothing in this package loads Bundles from a
// file.
func Genesis() *Registry {
	return NewRegistry([]*Bundle{
		{
			ProtocolVersion: 1,
			Features: map[Feature]FeatureVersion{
				FeatureDocumentTypeParsing:         0,
				FeatureIdentityCreateSerializer:    0,
				FeatureDocumentBatchSerializer:     0,
				FeatureTokenBatchSerializer:        0,
				FeatureEpochFeeDistribution:        0,
				FeatureContractSerializer:          0,
				FeatureIdentityPublicKeySerializer: 0,
				FeatureMasternodeVoteSerializer:    0,
				FeatureFeeSchedule:                 0,
			},
		},
	})
}
