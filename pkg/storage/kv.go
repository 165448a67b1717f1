// Package storage provides the byte-level key/value engine that the
// authenticated tree store (pkg/tree) is layered on top of: a single
// embedded key/value database file. It wraps CometBFT's dbm.DB behind a
// full read/write/iterate/batch interface.
package storage

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KV is the minimal byte-level storage engine every tree node is persisted
// through. Implementations must provide last-write-wins semantics per key
// and support atomic batches.
type KV interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	NewBatch() Batch
	// Iterator returns entries in [start, end) in ascending key order.
	// A nil end means "no upper bound".
	Iterator(start, end []byte) (Iterator, error)
	Close() error
}

// Batch stages a set of writes for atomic commit. Write either applies
// every staged operation or none.
type Batch interface {
	Set(key, value []byte)
	Delete(key []byte)
	Write() error
	Close()
}

// Iterator walks a key range in ascending order.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close() error
}

// DB wraps a CometBFT dbm.DB to implement KV. This is the production
// backend: dbm.DB is itself backed by goleveldb, memdb, badgerdb, etc.,
// selected by the caller at construction time.
type DB struct {
	db dbm.DB
}

// NewDB adapts an existing dbm.DB.
func NewDB(db dbm.DB) *DB { return &DB{db: db} }

// Open opens a goleveldb-backed dbm.DB at dir/name and wraps it.
func Open(name, dir string) (*DB, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Get(key []byte) ([]byte, error) { return d.db.Get(key) }

func (d *DB) Has(key []byte) (bool, error) { return d.db.Has(key) }

func (d *DB) Set(key, value []byte) error {
	// SetSync for durability: every tree mutation must survive a crash
	// immediately after the write-transaction that produced it commits.
	return d.db.SetSync(key, value)
}

func (d *DB) Delete(key []byte) error { return d.db.DeleteSync(key) }

func (d *DB) NewBatch() Batch { return &dbBatch{b: d.db.NewBatch()} }

func (d *DB) Iterator(start, end []byte) (Iterator, error) {
	it, err := d.db.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	return &dbIterator{it: it}, nil
}

func (d *DB) Close() error { return d.db.Close() }

type dbBatch struct {
	b dbm.Batch
}

func (b *dbBatch) Set(key, value []byte) { _ = b.b.Set(key, value) }
func (b *dbBatch) Delete(key []byte)     { _ = b.b.Delete(key) }
func (b *dbBatch) Write() error          { return b.b.WriteSync() }
func (b *dbBatch) Close()                { _ = b.b.Close() }

type dbIterator struct {
	it dbm.Iterator
}

func (i *dbIterator) Valid() bool    { return i.it.Valid() }
func (i *dbIterator) Next()          { i.it.Next() }
func (i *dbIterator) Key() []byte    { return i.it.Key() }
func (i *dbIterator) Value() []byte  { return i.it.Value() }
func (i *dbIterator) Close() error   { return i.it.Close() }
