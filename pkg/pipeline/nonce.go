package pipeline

import (
	"encoding/hex"

	"github.com/meridianchain/drive/pkg/domain/identity"
)

func hexID(id []byte) string { return hex.EncodeToString(id) }

// CheckAndBumpNonce wraps identity.Store.CheckAndBumpNonce: the nonce is
// advanced even when the transition is later rejected by a consensus
// error, since replay protection must hold regardless of the nonce-bump/
// fixed-fee outcome.
func CheckAndBumpNonce(identities *identity.Store, env *Envelope) error {
	return identities.CheckAndBumpNonce(env.SignerID, env.Nonce)
}
