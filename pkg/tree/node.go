package tree

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/meridianchain/drive/pkg/codec"
)

// nodeEntry is one (key, element-summary) slot inside a persisted node. The
// node groups every key stored directly under one Path and authenticates
// them together as a batch of leaves: entries are sorted by key,
// leaf-hashed, and combined into a single binary Merkle digest (hashPair,
// see digest.go) that becomes this node's contribution to its parent.
type nodeEntry struct {
	Key  []byte
	Kind Kind

	Item         []byte
	RefPath      Path
	RefKey       []byte
	SumValue     int64
	Flags        *StorageFlags

	// Aggregates of the child subtree, valid only when Kind.IsSubtree().
	ChildDigest []byte
	ChildSum    int64
	ChildBigSum BigSum
	ChildCount  uint64
}

func (e *nodeEntry) element() *Element {
	el := &Element{Kind: e.Kind, Item: e.Item, ReferencePath: e.RefPath, ReferenceKey: e.RefKey, SumValue: e.SumValue, Flags: e.Flags}
	return el
}

// leafHash is the authenticated digest for this entry, combining its key,
// kind, and value (or, for subtree entries, the child's own root digest).
func (e *nodeEntry) leafHash() []byte {
	h := sha256.New()
	h.Write(e.Key)
	h.Write([]byte{byte(e.Kind)})
	switch e.Kind {
	case KindItem:
		sum := sha256.Sum256(e.Item)
		h.Write(sum[:])
	case KindReference:
		w := codec.NewWriter(16)
		e.RefPath.MarshalCanonical(w)
		w.PutBytes(e.RefKey)
		sum := sha256.Sum256(w.Bytes())
		h.Write(sum[:])
	case KindSumItem:
		w := codec.NewWriter(8)
		w.PutInt64(e.SumValue)
		h.Write(w.Bytes())
	case KindTree, KindSumTree, KindBigSumTree, KindCountTree, KindCountSumTree:
		h.Write(e.ChildDigest)
	}
	return h.Sum(nil)
}

// node is the persisted record for one Path: the ordered set of entries
// living directly under it, plus the cached aggregates derived from them.
type node struct {
	Path     Path
	Entries  []*nodeEntry // always kept sorted by Key
	Digest   []byte
	Sum      int64  // this node's own aggregated SumItem/child-sum total
	BigSum   BigSum
	Count    uint64
}

func newEmptyNode(path Path) *node {
	return &node{Path: path}
}

// find returns the index of key within Entries (and true), or the
// insertion point (and false) if absent.
func (n *node) find(key []byte) (int, bool) {
	i := sort.Search(len(n.Entries), func(i int) bool {
		return bytes.Compare(n.Entries[i].Key, key) >= 0
	})
	if i < len(n.Entries) && bytes.Equal(n.Entries[i].Key, key) {
		return i, true
	}
	return i, false
}

func (n *node) get(key []byte) (*nodeEntry, bool) {
	i, ok := n.find(key)
	if !ok {
		return nil, false
	}
	return n.Entries[i], true
}

func (n *node) put(e *nodeEntry) {
	i, ok := n.find(e.Key)
	if ok {
		n.Entries[i] = e
		return
	}
	n.Entries = append(n.Entries, nil)
	copy(n.Entries[i+1:], n.Entries[i:])
	n.Entries[i] = e
}

func (n *node) remove(key []byte) bool {
	i, ok := n.find(key)
	if !ok {
		return false
	}
	n.Entries = append(n.Entries[:i], n.Entries[i+1:]...)
	return true
}

// recompute rebuilds Digest, Sum, BigSum, and Count from Entries. Called
// bottom-up after every mutation so the root digest reflects the change
// incrementally.
func (n *node) recompute() {
	n.Sum = 0
	n.BigSum = BigSum{}
	n.Count = 0
	leaves := make([][]byte, len(n.Entries))
	for i, e := range n.Entries {
		leaves[i] = e.leafHash()
		switch e.Kind {
		case KindSumItem:
			n.Sum += e.SumValue
		case KindSumTree:
			n.Sum += e.ChildSum
		case KindBigSumTree:
			n.BigSum = n.BigSum.Add(e.ChildBigSum)
		case KindCountTree, KindCountSumTree:
			n.Count += e.ChildCount + 1
			n.Sum += e.ChildSum
		}
		if e.Kind.IsSubtree() {
			n.Count++
		}
	}
	n.Digest = merkleRoot(leaves)
}

// MarshalCanonical implements codec.Marshaler for disk persistence.
func (n *node) MarshalCanonical(w *codec.Writer) {
	n.Path.MarshalCanonical(w)
	w.PutVarUint(uint64(len(n.Entries)))
	for _, e := range n.Entries {
		w.PutBytes(e.Key)
		w.PutTag(uint8(e.Kind))
		w.PutBytes(e.Item)
		e.RefPath.MarshalCanonical(w)
		w.PutBytes(e.RefKey)
		w.PutInt64(e.SumValue)
		w.PutBool(e.Flags != nil)
		if e.Flags != nil {
			e.Flags.MarshalCanonical(w)
		}
		w.PutBytes(e.ChildDigest)
		w.PutInt64(e.ChildSum)
		w.PutUint64(e.ChildBigSum.Hi)
		w.PutUint64(e.ChildBigSum.Lo)
		w.PutUint64(e.ChildCount)
	}
}

// UnmarshalCanonical implements codec.Unmarshaler for disk loading.
func (n *node) UnmarshalCanonical(r *codec.Reader) error {
	n.Path = Path{}
	if err := n.Path.UnmarshalCanonical(r); err != nil {
		return err
	}
	count, err := r.VarUint()
	if err != nil {
		return err
	}
	n.Entries = make([]*nodeEntry, count)
	for i := range n.Entries {
		e := &nodeEntry{}
		if e.Key, err = r.Bytes(); err != nil {
			return err
		}
		tag, err := r.Tag()
		if err != nil {
			return err
		}
		e.Kind = Kind(tag)
		if e.Item, err = r.Bytes(); err != nil {
			return err
		}
		e.RefPath = Path{}
		if err := e.RefPath.UnmarshalCanonical(r); err != nil {
			return err
		}
		if e.RefKey, err = r.Bytes(); err != nil {
			return err
		}
		if e.SumValue, err = r.Int64(); err != nil {
			return err
		}
		hasFlags, err := r.Bool()
		if err != nil {
			return err
		}
		if hasFlags {
			e.Flags = &StorageFlags{}
			if err := e.Flags.UnmarshalCanonical(r); err != nil {
				return err
			}
		}
		if e.ChildDigest, err = r.Bytes(); err != nil {
			return err
		}
		if e.ChildSum, err = r.Int64(); err != nil {
			return err
		}
		if e.ChildBigSum.Hi, err = r.Uint64(); err != nil {
			return err
		}
		if e.ChildBigSum.Lo, err = r.Uint64(); err != nil {
			return err
		}
		if e.ChildCount, err = r.Uint64(); err != nil {
			return err
		}
		n.Entries[i] = e
	}
	n.recompute()
	return nil
}

func (n *node) String() string {
	return fmt.Sprintf("node{path=%v entries=%d digest=%x}", n.Path, len(n.Entries), n.Digest)
}
