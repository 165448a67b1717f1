package storage

import (
	"sort"
	"sync"
)

// Memory is an in-memory KV implementation, used by tests and by the
// cost-estimation path.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory constructs an empty in-memory KV.
func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.m[string(key)]
	return ok, nil
}

func (m *Memory) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.m[string(key)] = v
	return nil
}

func (m *Memory) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, string(key))
	return nil
}

func (m *Memory) NewBatch() Batch { return &memBatch{parent: m} }

func (m *Memory) Iterator(start, end []byte) (Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.m))
	for k := range m.m {
		if string(start) != "" && k < string(start) {
			continue
		}
		if end != nil && k >= string(end) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &memIterator{keys: keys, parent: m}, nil
}

func (m *Memory) Close() error { return nil }

type memOp struct {
	key    []byte
	value  []byte
	delete bool
}

type memBatch struct {
	parent *Memory
	ops    []memOp
}

func (b *memBatch) Set(key, value []byte) {
	b.ops = append(b.ops, memOp{key: key, value: value})
}

func (b *memBatch) Delete(key []byte) {
	b.ops = append(b.ops, memOp{key: key, delete: true})
}

func (b *memBatch) Write() error {
	b.parent.mu.Lock()
	defer b.parent.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			delete(b.parent.m, string(op.key))
			continue
		}
		v := make([]byte, len(op.value))
		copy(v, op.value)
		b.parent.m[string(op.key)] = v
	}
	return nil
}

func (b *memBatch) Close() { b.ops = nil }

type memIterator struct {
	keys   []string
	idx    int
	parent *Memory
}

func (i *memIterator) Valid() bool { return i.idx < len(i.keys) }
func (i *memIterator) Next()       { i.idx++ }
func (i *memIterator) Key() []byte { return []byte(i.keys[i.idx]) }
func (i *memIterator) Value() []byte {
	i.parent.mu.RLock()
	defer i.parent.mu.RUnlock()
	return i.parent.m[i.keys[i.idx]]
}
func (i *memIterator) Close() error { return nil }
