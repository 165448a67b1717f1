package tree

// OpKind is the closed set of mutations a Batch can apply to a single
// (path, key) slot.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpInsertOrReplace
	OpReplace
	OpDelete
	OpDeleteUpTreeWhileEmpty
	OpRefreshReference
)

// BatchOp is one staged mutation within a Batch.
type BatchOp struct {
	Kind OpKind
	Path Path
	Key  []byte

	// Element is required for Insert, InsertOrReplace, Replace, and
	// RefreshReference; ignored for Delete and DeleteUpTreeWhileEmpty.
	Element *Element
}

// Batch is an ordered sequence of operations applied atomically: either
// every operation in the batch is committed and the tree's root digest
// reflects all of them, or (on any validation failure) none are, and the
// tree is left exactly as it was.
type Batch struct {
	Ops []BatchOp
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch { return &Batch{} }

// Insert stages an insert that must fail if the key already exists.
func (b *Batch) Insert(path Path, key []byte, el *Element) *Batch {
	b.Ops = append(b.Ops, BatchOp{Kind: OpInsert, Path: path, Key: key, Element: el})
	return b
}

// InsertOrReplace stages an upsert.
func (b *Batch) InsertOrReplace(path Path, key []byte, el *Element) *Batch {
	b.Ops = append(b.Ops, BatchOp{Kind: OpInsertOrReplace, Path: path, Key: key, Element: el})
	return b
}

// Replace stages a replace that must fail if the key does not already exist.
func (b *Batch) Replace(path Path, key []byte, el *Element) *Batch {
	b.Ops = append(b.Ops, BatchOp{Kind: OpReplace, Path: path, Key: key, Element: el})
	return b
}

// Delete stages a delete of a single key.
func (b *Batch) Delete(path Path, key []byte) *Batch {
	b.Ops = append(b.Ops, BatchOp{Kind: OpDelete, Path: path, Key: key})
	return b
}

// DeleteUpTreeWhileEmpty stages a delete that also removes every now-empty
// ancestor subtree up to (but not including) the root, used for document
// index cleanup where a leaf delete can cascade several index levels up.
func (b *Batch) DeleteUpTreeWhileEmpty(path Path, key []byte) *Batch {
	b.Ops = append(b.Ops, BatchOp{Kind: OpDeleteUpTreeWhileEmpty, Path: path, Key: key})
	return b
}

// RefreshReference stages a reference-target rewrite without changing the
// reference's own key, used when a document update moves the canonical
// copy but index entries must keep pointing at a stable location.
func (b *Batch) RefreshReference(path Path, key []byte, el *Element) *Batch {
	b.Ops = append(b.Ops, BatchOp{Kind: OpRefreshReference, Path: path, Key: key, Element: el})
	return b
}
