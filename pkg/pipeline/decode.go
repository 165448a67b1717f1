package pipeline

import (
	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/protocolerr"
	"github.com/meridianchain/drive/pkg/versioning"
)

// featureForKind maps a transition kind to the feature-version decision
// point that governs its body's wire format: one small integer per
// algorithmic decision point. KindIdentityTopUp,
// KindIdentityCreditTransfer and KindIdentityCreditWithdrawal share the
// identity-create feature's serializer family since they all encode
// through the same primitive field set with no independent evolution of
// their own yet.
func featureForKind(k Kind) versioning.Feature {
	switch k {
	case KindIdentityCreate, KindIdentityTopUp, KindIdentityUpdate, KindIdentityCreditTransfer, KindIdentityCreditWithdrawal:
		return versioning.FeatureIdentityCreateSerializer
	case KindDataContractCreate, KindDataContractUpdate:
		return versioning.FeatureContractSerializer
	case KindDocumentBatch:
		return versioning.FeatureDocumentBatchSerializer
	case KindTokenBatch:
		return versioning.FeatureTokenBatchSerializer
	case KindMasternodeVote:
		return versioning.FeatureMasternodeVoteSerializer
	default:
		return ""
	}
}

// DecodeEnvelope parses raw transition bytes into an Envelope and checks
// that the registry has a known feature-version mapping for its kind at
// its declared protocol version. A decode failure or unknown version is
// attributed to the proposer, not any identity: it
// aborts the block rather than becoming a per-transition consensus error.
func DecodeEnvelope(registry *versioning.Registry, raw []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := codec.Decode(raw, env); err != nil {
		return nil, protocolerr.MalformedTransition(err)
	}
	bundle, err := registry.Bundle(env.ProtocolVersion)
	if err != nil {
		return nil, protocolerr.Wrap(protocolerr.KindUnknownVersion, "transition protocol version not registered", err)
	}
	feature := featureForKind(env.Kind)
	if feature != "" {
		if _, err := bundle.Get(feature); err != nil {
			return nil, protocolerr.Wrap(protocolerr.KindUnknownVersion, "transition kind has no feature-version mapping", err)
		}
	}
	return env, nil
}

// decodeBody decodes env.Body into body, wrapping failures as malformed
// transitions.
func decodeBody(env *Envelope, body codec.Unmarshaler) error {
	if err := codec.Decode(env.Body, body); err != nil {
		return protocolerr.MalformedTransition(err)
	}
	return nil
}
