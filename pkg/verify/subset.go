package verify

import (
	"bytes"

	"github.com/meridianchain/drive/pkg/queryerr"
	"github.com/meridianchain/drive/pkg/tree"
)

// Subset verifies one key's inclusion/absence using a proof that was
// generated for a broader query covering that key's node, letting a
// client reuse one fetched proof to check several related keys rather
// than re-querying the server once per key.
//
// broaderLevels must be the LevelProof list for the node directly
// containing key — i.e. the caller selects the matching depth out of a
// wider per-level proof set before calling this, since a single Proof is
// only ever the path to one leaf.
func Subset(broaderLevels []tree.LevelProof, key []byte, rootDigest []byte) (present bool, entry *tree.EntrySummary, err error) {
	idx := -1
	for i, lp := range broaderLevels {
		if bytes.Equal(lp.Key, key) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil, queryerr.New(queryerr.KindIncorrectProof, "key not covered by the supplied proof")
	}
	sub := &tree.Proof{Levels: broaderLevels[:idx+1]}
	present, e, verr := tree.Verify(sub, rootDigest)
	if verr != nil {
		return false, nil, queryerr.Newf(queryerr.KindIncorrectProof, "%v", verr)
	}
	return present, e, nil
}
