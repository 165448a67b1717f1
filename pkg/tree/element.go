package tree

import (
	"fmt"

	"github.com/meridianchain/drive/pkg/codec"
)

// Kind is the closed set of element kinds the authenticated tree store can
// hold at a (path, key) slot.
type Kind uint8

const (
	KindItem Kind = iota
	KindReference
	KindTree
	KindSumItem
	KindSumTree
	KindBigSumTree
	KindCountTree
	KindCountSumTree
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindReference:
		return "reference"
	case KindTree:
		return "tree"
	case KindSumItem:
		return "sum-item"
	case KindSumTree:
		return "sum-tree"
	case KindBigSumTree:
		return "big-sum-tree"
	case KindCountTree:
		return "count-tree"
	case KindCountSumTree:
		return "count-sum-tree"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsSubtree reports whether the element kind introduces a child subtree
// rather than a leaf value.
func (k Kind) IsSubtree() bool {
	switch k {
	case KindTree, KindSumTree, KindBigSumTree, KindCountTree, KindCountSumTree:
		return true
	default:
		return false
	}
}

// StorageFlags carries the fee-accounting metadata attached to every
// persisted element: when it was created/last updated (for
// refund-lifetime calculations) and who paid for it.
type StorageFlags struct {
	CreatedEpoch uint64
	UpdatedEpoch uint64
	OwnerID      []byte // 32-byte identity id, or nil for protocol-owned slots
}

// MarshalCanonical implements codec.Marshaler.
func (f *StorageFlags) MarshalCanonical(w *codec.Writer) {
	w.PutUint64(f.CreatedEpoch)
	w.PutUint64(f.UpdatedEpoch)
	w.PutOptionalBytes(f.OwnerID, f.OwnerID != nil)
}

// UnmarshalCanonical implements codec.Unmarshaler.
func (f *StorageFlags) UnmarshalCanonical(r *codec.Reader) error {
	var err error
	if f.CreatedEpoch, err = r.Uint64(); err != nil {
		return err
	}
	if f.UpdatedEpoch, err = r.Uint64(); err != nil {
		return err
	}
	owner, _, err := r.OptionalBytes()
	if err != nil {
		return err
	}
	f.OwnerID = owner
	return nil
}

// Element is one decoded value at a (path, key) slot.
type Element struct {
	Kind Kind

	// Item holds the opaque payload for KindItem.
	Item []byte

	// ReferencePath holds the target path for KindReference. The
	// referenced element is resolved transitively; the tree store rejects
	// batches that would introduce a cycle.
	ReferencePath Path
	ReferenceKey  []byte

	// SumValue holds the signed contribution for KindSumItem.
	SumValue int64

	Flags *StorageFlags
}

// MarshalCanonical implements codec.Marshaler.
func (e *Element) MarshalCanonical(w *codec.Writer) {
	w.PutTag(uint8(e.Kind))
	switch e.Kind {
	case KindItem:
		w.PutBytes(e.Item)
	case KindReference:
		e.ReferencePath.MarshalCanonical(w)
		w.PutBytes(e.ReferenceKey)
	case KindSumItem:
		w.PutInt64(e.SumValue)
	case KindTree, KindSumTree, KindBigSumTree, KindCountTree, KindCountSumTree:
		// subtree elements carry no inline payload; their state lives at
		// the child path and is summarized into the parent node's entry
		// (see node.go nodeEntry).
	}
	hasFlags := e.Flags != nil
	w.PutBool(hasFlags)
	if hasFlags {
		e.Flags.MarshalCanonical(w)
	}
}

// UnmarshalCanonical implements codec.Unmarshaler.
func (e *Element) UnmarshalCanonical(r *codec.Reader) error {
	tag, err := r.Tag()
	if err != nil {
		return err
	}
	e.Kind = Kind(tag)
	switch e.Kind {
	case KindItem:
		if e.Item, err = r.Bytes(); err != nil {
			return err
		}
	case KindReference:
		e.ReferencePath = Path{}
		if err = e.ReferencePath.UnmarshalCanonical(r); err != nil {
			return err
		}
		if e.ReferenceKey, err = r.Bytes(); err != nil {
			return err
		}
	case KindSumItem:
		if e.SumValue, err = r.Int64(); err != nil {
			return err
		}
	case KindTree, KindSumTree, KindBigSumTree, KindCountTree, KindCountSumTree:
	default:
		return fmt.Errorf("tree: unknown element kind %d", tag)
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
	return nil
}

// NewItem constructs a KindItem element.
func NewItem(value []byte) *Element { return &Element{Kind: KindItem, Item: value} }

// NewSumItem constructs a KindSumItem element.
func NewSumItem(value int64) *Element { return &Element{Kind: KindSumItem, SumValue: value} }

// NewReference constructs a KindReference element pointing at (path, key).
func NewReference(path Path, key []byte) *Element {
	return &Element{Kind: KindReference, ReferencePath: path, ReferenceKey: key}
}

// NewSubtree constructs an empty subtree element of the given aggregating
// kind (KindTree for plain, KindSumTree/KindBigSumTree/KindCountTree for
// aggregating variants).
func NewSubtree(kind Kind) *Element {
	if !kind.IsSubtree() {
		panic(fmt.Sprintf("tree: %s is not a subtree kind", kind))
	}
	return &Element{Kind: kind}
}
