// Package tree implements the authenticated, hierarchical key/value store
// every domain package is built on. It layers aggregating,
// root-hash-bearing subtrees over pkg/storage's flat byte-level KV: keys
// within one subtree are sorted, leaf-hashed, and combined into a binary
// Merkle digest, nested arbitrarily deep, carrying per-entry sum/big-sum/
// count aggregates alongside the digest at every level — a layered
// chain-continuity check generalized from a fixed few layers to N.
package tree

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/meridianchain/drive/pkg/codec"
	"github.com/meridianchain/drive/pkg/storage"
)

// Store is the authenticated tree store. A Store is safe for concurrent
// Get/Query from multiple goroutines; ApplyBatch holds an exclusive lock
// for the duration of the batch, matching the engine's single-writer
// block-application model.
//
// Between BeginBlock and Commit/Discard, every ApplyBatch call stages its
// dirty nodes into the open pending transaction instead of writing them
// to kv: a whole block's worth of transitions shares one write-transaction
// and reaches the backing KV as a single durable flush at Commit, so a
// block that aborts partway through (a protocolerr after some transitions
// already applied) can Discard everything staged for it instead of
// leaving a partially-written block on disk. Without an open BeginBlock,
// ApplyBatch falls back to writing immediately — used for one-off applies
// outside block processing, such as genesis bootstrap.
type Store struct {
	mu      sync.RWMutex
	kv      storage.KV
	pending *txn
}

// Open wraps kv as an authenticated tree store. An empty kv is a valid,
// empty tree whose root digest is RootDigest's zero-entries value.
func Open(kv storage.KV) *Store { return &Store{kv: kv} }

// BeginBlock opens a pending write-transaction: every ApplyBatch call
// until the matching Commit or Discard stages its writes in memory
// instead of flushing them to kv, and every read (Get, RootDigest, Query)
// observes that staged state. Calling BeginBlock while one is already
// open discards the previous one first.
func (s *Store) BeginBlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &txn{store: s, dirty: make(map[string]*node)}
}

// Commit flushes every node staged since BeginBlock to the backing KV in
// a single batch write and closes the pending transaction. It is a no-op
// if no BeginBlock is open.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	kvBatch := s.kv.NewBatch()
	defer kvBatch.Close()
	for _, n := range s.pending.dirty {
		kvBatch.Set(n.Path.StorageKey(), codec.Encode(n))
	}
	if err := kvBatch.Write(); err != nil {
		return err
	}
	s.pending = nil
	return nil
}

// Discard abandons every node staged since BeginBlock without writing any
// of it to the backing KV, leaving the store exactly as it was before
// BeginBlock. It is a no-op if no BeginBlock is open.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

func (s *Store) loadNode(path Path) (*node, bool, error) {
	if s.pending != nil {
		if n, ok := s.pending.dirty[s.pending.key(path)]; ok {
			return n, true, nil
		}
	}
	raw, err := s.kv.Get(path.StorageKey())
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return newEmptyNode(path.Clone()), false, nil
	}
	n := &node{}
	if err := codec.Decode(raw, n); err != nil {
		return nil, false, newErr(FailureCorruptedStorage, path, nil, err.Error())
	}
	return n, true, nil
}

// Get resolves the element stored at (path, key), following Reference
// elements transitively up to a bounded depth to guard against cycles.
func (s *Store) Get(path Path, key []byte) (*Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(path, key)
}

func (s *Store) get(path Path, key []byte) (*Element, error) {
	n, existed, err := s.loadNode(path)
	if err != nil {
		return nil, err
	}
	if !existed && len(path) > 0 {
		return nil, newErr(FailurePathNotFound, path, key, "")
	}
	e, ok := n.get(key)
	if !ok {
		return nil, newErr(FailurePathKeyNotFound, path, key, "")
	}
	el := e.element()
	if el.Kind == KindReference {
		return s.resolveReference(el, 0)
	}
	return el, nil
}

const maxReferenceHops = 16

func (s *Store) resolveReference(el *Element, depth int) (*Element, error) {
	if depth >= maxReferenceHops {
		return nil, newErr(FailureReferenceCycle, el.ReferencePath, el.ReferenceKey, "max hop count exceeded")
	}
	target, err := s.get(el.ReferencePath, el.ReferenceKey)
	if err != nil {
		return nil, err
	}
	if target.Kind == KindReference {
		return s.resolveReference(target, depth+1)
	}
	return target, nil
}

// RootDigest returns the authenticated digest of the whole tree (the root
// node's digest).
func (s *Store) RootDigest() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, _, err := s.loadNode(Path{})
	if err != nil {
		return nil, err
	}
	if n.Digest == nil {
		n.recompute()
	}
	return n.Digest, nil
}

// txn accumulates dirty nodes across the operations in one ApplyBatch call.
type txn struct {
	store *Store
	dirty map[string]*node
}

func (t *txn) key(path Path) string { return string(path.StorageKey()) }

func (t *txn) load(path Path) (*node, error) {
	if n, ok := t.dirty[t.key(path)]; ok {
		return n, nil
	}
	n, existed, err := t.store.loadNode(path)
	if err != nil {
		return nil, err
	}
	if !existed && len(path) > 0 {
		parent := path[:len(path)-1]
		pn, err := t.load(parent)
		if err != nil {
			return nil, err
		}
		if _, ok := pn.get(path[len(path)-1]); !ok {
			return nil, newErr(FailurePathParentLayerMissing, path, nil, "")
		}
	}
	t.dirty[t.key(path)] = n
	return n, nil
}

func (t *txn) markDirty(n *node) { t.dirty[t.key(n.Path)] = n }

// ApplyBatch validates and applies b atomically. With no pending block
// transaction open (see BeginBlock), on any error the store is left
// unchanged; the caller must not assume partial application occurred,
// and a successful call reaches the backing KV immediately as a single
// write.
//
// With a pending block transaction open, ApplyBatch instead stages its
// dirty nodes into that transaction and never touches kv: the whole
// block's mutations reach the backing KV together, in one flush, at
// Commit. An error from this or an earlier call in the same block
// leaves the pending transaction holding whatever was staged so far —
// the caller must Discard the whole block rather than trust partial
// state out of it.
func (s *Store) ApplyBatch(b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.pending
	if t == nil {
		t = &txn{store: s, dirty: make(map[string]*node)}
	}
	touchedPaths := make(map[string]Path)

	for _, op := range b.Ops {
		if err := s.applyOp(t, op); err != nil {
			return err
		}
		touchedPaths[t.key(op.Path)] = op.Path
	}

	// Propagate digests from the deepest touched paths up to the root so a
	// single pass recomputes every ancestor exactly once, deepest first.
	ordered := make([]Path, 0, len(touchedPaths))
	for _, p := range touchedPaths {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	propagated := make(map[string]bool)
	for _, p := range ordered {
		if err := s.propagateUp(t, p, propagated); err != nil {
			return err
		}
	}

	if s.pending != nil {
		return nil
	}

	kvBatch := s.kv.NewBatch()
	defer kvBatch.Close()
	for _, n := range t.dirty {
		kvBatch.Set(n.Path.StorageKey(), codec.Encode(n))
	}
	return kvBatch.Write()
}

func (s *Store) applyOp(t *txn, op BatchOp) error {
	n, err := t.load(op.Path)
	if err != nil {
		return err
	}
	switch op.Kind {
	case OpInsert:
		if _, ok := n.get(op.Key); ok {
			return newErr(FailureInvalidBatch, op.Path, op.Key, "key already exists")
		}
		n.put(op.element(n))
	case OpInsertOrReplace:
		n.put(op.element(n))
	case OpReplace:
		if _, ok := n.get(op.Key); !ok {
			return newErr(FailurePathKeyNotFound, op.Path, op.Key, "replace of absent key")
		}
		n.put(op.element(n))
	case OpDelete:
		if !n.remove(op.Key) {
			return newErr(FailurePathKeyNotFound, op.Path, op.Key, "delete of absent key")
		}
	case OpDeleteUpTreeWhileEmpty:
		if !n.remove(op.Key) {
			return newErr(FailurePathKeyNotFound, op.Path, op.Key, "delete of absent key")
		}
		if err := s.cascadeEmptyAncestors(t, op.Path); err != nil {
			return err
		}
	case OpRefreshReference:
		existing, ok := n.get(op.Key)
		if !ok || existing.Kind != KindReference {
			return newErr(FailureTypeMismatch, op.Path, op.Key, "refresh-reference on non-reference slot")
		}
		n.put(op.element(n))
	default:
		return newErr(FailureInvalidBatch, op.Path, op.Key, fmt.Sprintf("unknown op kind %d", op.Kind))
	}
	t.markDirty(n)
	return nil
}

// element converts a BatchOp's target Element into a nodeEntry, preserving
// any StorageFlags the caller attached.
func (op BatchOp) element(n *node) *nodeEntry {
	el := op.Element
	e := &nodeEntry{Key: op.Key, Kind: el.Kind, Item: el.Item, RefPath: el.ReferencePath, RefKey: el.ReferenceKey, SumValue: el.SumValue, Flags: el.Flags}
	if prev, ok := n.get(op.Key); ok && el.Kind.IsSubtree() {
		e.ChildDigest, e.ChildSum, e.ChildBigSum, e.ChildCount = prev.ChildDigest, prev.ChildSum, prev.ChildBigSum, prev.ChildCount
	}
	if e.Kind.IsSubtree() && e.ChildDigest == nil {
		e.ChildDigest = emptyDigest()
	}
	return e
}

// cascadeEmptyAncestors removes empty subtree entries from ancestors of
// path, walking upward while each ancestor's child node has no entries
// left.
func (s *Store) cascadeEmptyAncestors(t *txn, path Path) error {
	cur := path
	for len(cur) > 0 {
		n, err := t.load(cur)
		if err != nil {
			return err
		}
		if len(n.Entries) > 0 {
			return nil
		}
		parentPath := cur[:len(cur)-1]
		parent, err := t.load(parentPath)
		if err != nil {
			return err
		}
		parent.remove(cur[len(cur)-1])
		t.markDirty(parent)
		cur = parentPath
	}
	return nil
}

// propagateUp recomputes path's node and, if it isn't the root, updates
// the parent's entry for path's final segment to reflect the new
// aggregates, recursing until it reaches a path already propagated in
// this batch or the root.
func (s *Store) propagateUp(t *txn, path Path, done map[string]bool) error {
	k := t.key(path)
	if done[k] {
		return nil
	}
	n, err := t.load(path)
	if err != nil {
		return err
	}
	n.recompute()
	t.markDirty(n)
	done[k] = true
	if len(path) == 0 {
		return nil
	}
	parentPath := path[:len(path)-1]
	parent, err := t.load(parentPath)
	if err != nil {
		return err
	}
	key := path[len(path)-1]
	entry, ok := parent.get(key)
	if !ok {
		return newErr(FailurePathParentLayerMissing, path, nil, "child digest update with no parent entry")
	}
	entry.ChildDigest = n.Digest
	entry.ChildSum = n.Sum
	entry.ChildBigSum = n.BigSum
	entry.ChildCount = n.Count
	parent.put(entry)
	t.markDirty(parent)
	return s.propagateUp(t, parentPath, done)
}

// Query executes q against the store and returns the matching elements in
// key order (or reverse, when q.Descending is set), applying q.Subquery
// beneath every subtree element selected and q.Limit/q.Offset to the final
// flattened result.
func (s *Store) Query(q *Query) ([]QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, err := s.runQuery(q)
	if err != nil {
		return nil, err
	}
	if q.Offset > 0 {
		if q.Offset >= len(results) {
			return nil, nil
		}
		results = results[q.Offset:]
	}
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// QueryResult is one matched (path, key, element) triple.
type QueryResult struct {
	Path    Path
	Key     []byte
	Element *Element
}

func (s *Store) runQuery(q *Query) ([]QueryResult, error) {
	n, existed, err := s.loadNode(q.Path)
	if err != nil {
		return nil, err
	}
	if !existed && len(q.Path) > 0 {
		return nil, nil
	}
	var out []QueryResult
	entries := make([]*nodeEntry, len(n.Entries))
	copy(entries, n.Entries)
	if q.Descending {
		sort.SliceStable(entries, func(i, j int) bool { return bytes.Compare(entries[i].Key, entries[j].Key) > 0 })
	}
	for _, e := range entries {
		matched := false
		for _, item := range q.Items {
			if item.matches(e.Key) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		out = append(out, QueryResult{Path: q.Path, Key: e.Key, Element: e.element()})
		if q.Subquery != nil && e.Kind.IsSubtree() {
			sub := *q.Subquery
			sub.Path = q.Path.Append(e.Key)
			nested, err := s.runQuery(&sub)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
	}
	return out, nil
}
