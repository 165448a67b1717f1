package tree

import (
	"bytes"
	"fmt"
)

// AuditStep is one sibling hash consumed while recomputing a binary Merkle
// root from a single leaf, mirroring merkleRoot's own pairwise reduction
//.
type AuditStep struct {
	Sibling        []byte
	SiblingOnRight bool
	Promoted       bool // leaf had no sibling at this level and was promoted unchanged
}

func buildAuditPath(leaves [][]byte, idx int) []AuditStep {
	level := leaves
	var steps []AuditStep
	for len(level) > 1 {
		if idx%2 == 0 {
			if idx+1 < len(level) {
				steps = append(steps, AuditStep{Sibling: level[idx+1], SiblingOnRight: true})
			} else {
				steps = append(steps, AuditStep{Promoted: true})
			}
		} else {
			steps = append(steps, AuditStep{Sibling: level[idx-1], SiblingOnRight: false})
		}
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		idx /= 2
		level = next
	}
	return steps
}

func verifyAuditPath(leaf []byte, steps []AuditStep) []byte {
	cur := leaf
	for _, s := range steps {
		switch {
		case s.Promoted:
		case s.SiblingOnRight:
			cur = hashPair(cur, s.Sibling)
		default:
			cur = hashPair(s.Sibling, cur)
		}
	}
	return cur
}

// EntrySummary carries every field leafHash authenticates plus, for
// subtree entries, the ChildDigest a proof must chain into the next
// level. It is the proof-side mirror of nodeEntry.
type EntrySummary struct {
	Key  []byte
	Kind Kind

	Item     []byte
	RefPath  Path
	RefKey   []byte
	SumValue int64

	ChildDigest []byte
}

func summaryOf(e *nodeEntry) EntrySummary {
	return EntrySummary{Key: e.Key, Kind: e.Kind, Item: e.Item, RefPath: e.RefPath, RefKey: e.RefKey, SumValue: e.SumValue, ChildDigest: e.ChildDigest}
}

func (s EntrySummary) leafHash() []byte {
	e := &nodeEntry{Key: s.Key, Kind: s.Kind, Item: s.Item, RefPath: s.RefPath, RefKey: s.RefKey, SumValue: s.SumValue, ChildDigest: s.ChildDigest}
	return e.leafHash()
}

// NeighborProof is the inclusion proof of an adjacent key, used to prove
// absence: key is not present because its would-be predecessor/successor
// is, and the two are adjacent in sorted order with nothing between them.
type NeighborProof struct {
	Entry EntrySummary
	Steps []AuditStep
}

// LevelProof authenticates one node's contents: either the inclusion of
// Key (Present == true, with Entry/Steps recomputing this level's
// digest), or its absence (bracketed by NeighborLow/NeighborHigh, at least
// one of which must be present unless the node is empty).
type LevelProof struct {
	Path    Path
	Key     []byte
	Present bool

	Entry EntrySummary
	Steps []AuditStep

	NeighborLow  *NeighborProof
	NeighborHigh *NeighborProof

	EntryCount int
}

// digest recomputes the root digest this level proof claims to attest to.
func (lp *LevelProof) digest() ([]byte, error) {
	if lp.EntryCount == 0 {
		return emptyDigest(), nil
	}
	if lp.Present {
		return verifyAuditPath(lp.Entry.leafHash(), lp.Steps), nil
	}
	if lp.NeighborLow != nil {
		return verifyAuditPath(lp.NeighborLow.Entry.leafHash(), lp.NeighborLow.Steps), nil
	}
	if lp.NeighborHigh != nil {
		return verifyAuditPath(lp.NeighborHigh.Entry.leafHash(), lp.NeighborHigh.Steps), nil
	}
	return nil, fmt.Errorf("tree: absence proof has no neighbor evidence")
}

// Proof is a chain of LevelProofs from the tree root down to the leaf
// slot being proven, each level's recomputed digest required to equal the
// ChildDigest the previous level's proven entry claims for it — a
// continuity check generalized from a fixed few layers to N levels.
type Proof struct {
	Levels []LevelProof
}

// Prove builds an authenticated inclusion or absence proof for (path, key).
func (s *Store) Prove(path Path, key []byte) (*Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels := make([]LevelProof, 0, len(path)+1)
	for i := 0; i <= len(path); i++ {
		nodePath := path[:i]
		var proveKey []byte
		if i < len(path) {
			proveKey = path[i]
		} else {
			proveKey = key
		}
		n, existed, err := s.loadNode(nodePath)
		if err != nil {
			return nil, err
		}
		if !existed && i > 0 {
			return nil, newErr(FailurePathNotFound, nodePath, proveKey, "")
		}
		lp, err := proveInNode(n, proveKey)
		if err != nil {
			return nil, err
		}
		levels = append(levels, lp)
	}
	return &Proof{Levels: levels}, nil
}

func proveInNode(n *node, key []byte) (LevelProof, error) {
	leaves := make([][]byte, len(n.Entries))
	for i, e := range n.Entries {
		leaves[i] = e.leafHash()
	}
	lp := LevelProof{Path: n.Path, Key: key, EntryCount: len(n.Entries)}
	idx, ok := n.find(key)
	if ok {
		lp.Present = true
		lp.Entry = summaryOf(n.Entries[idx])
		lp.Steps = buildAuditPath(leaves, idx)
		return lp, nil
	}
	if len(n.Entries) == 0 {
		return lp, nil
	}
	if idx > 0 {
		low := n.Entries[idx-1]
		lp.NeighborLow = &NeighborProof{Entry: summaryOf(low), Steps: buildAuditPath(leaves, idx-1)}
	}
	if idx < len(n.Entries) {
		high := n.Entries[idx]
		lp.NeighborHigh = &NeighborProof{Entry: summaryOf(high), Steps: buildAuditPath(leaves, idx)}
	}
	return lp, nil
}

// Verify checks proof against rootDigest and reports whether the target
// key is present (with its proven entry) or absent.
func Verify(proof *Proof, rootDigest []byte) (present bool, entry *EntrySummary, err error) {
	if len(proof.Levels) == 0 {
		return false, nil, fmt.Errorf("tree: empty proof")
	}
	expected := rootDigest
	for i, lp := range proof.Levels {
		got, err := lp.digest()
		if err != nil {
			return false, nil, err
		}
		if !bytes.Equal(got, expected) {
			return false, nil, fmt.Errorf("tree: proof level %d digest mismatch", i)
		}
		if i == len(proof.Levels)-1 {
			break
		}
		if !lp.Present || !lp.Entry.Kind.IsSubtree() {
			return false, nil, fmt.Errorf("tree: proof level %d does not chain into a subtree", i)
		}
		expected = lp.Entry.ChildDigest
	}
	last := proof.Levels[len(proof.Levels)-1]
	if !last.Present {
		return false, nil, nil
	}
	return true, &last.Entry, nil
}
