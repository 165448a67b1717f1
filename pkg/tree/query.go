package tree

import "bytes"

// RangeKind selects the shape of a key range within one Query.
type RangeKind uint8

const (
	RangeKey RangeKind = iota
	RangeBetween
	RangeBetweenExcl
	RangeFrom
	RangeAfter
	RangeTo
	RangeFull
)

// QueryItem selects a set of keys within a single subtree.
type QueryItem struct {
	Kind RangeKind

	Key      []byte
	Start    []byte
	End      []byte
	StartIncl bool
	EndIncl   bool
}

// ItemKey selects exactly one key.
func ItemKey(key []byte) QueryItem { return QueryItem{Kind: RangeKey, Key: key} }

// ItemRange selects [start, end) or [start, end] depending on endIncl.
func ItemRange(start, end []byte, endIncl bool) QueryItem {
	return QueryItem{Kind: RangeBetween, Start: start, End: end, StartIncl: true, EndIncl: endIncl}
}

// ItemRangeExcl selects (start, end).
func ItemRangeExcl(start, end []byte) QueryItem {
	return QueryItem{Kind: RangeBetweenExcl, Start: start, End: end}
}

// ItemFrom selects [start, +inf).
func ItemFrom(start []byte) QueryItem { return QueryItem{Kind: RangeFrom, Start: start, StartIncl: true} }

// ItemAfter selects (start, +inf).
func ItemAfter(start []byte) QueryItem { return QueryItem{Kind: RangeAfter, Start: start} }

// ItemTo selects (-inf, end] or (-inf, end) depending on endIncl.
func ItemTo(end []byte, endIncl bool) QueryItem { return QueryItem{Kind: RangeTo, End: end, EndIncl: endIncl} }

// ItemFull selects every key in the subtree.
func ItemFull() QueryItem { return QueryItem{Kind: RangeFull} }

// matches reports whether key falls within the item's selected range.
func (q QueryItem) matches(key []byte) bool {
	switch q.Kind {
	case RangeKey:
		return bytes.Equal(key, q.Key)
	case RangeBetween:
		if bytes.Compare(key, q.Start) < 0 {
			return false
		}
		if q.EndIncl {
			return bytes.Compare(key, q.End) <= 0
		}
		return bytes.Compare(key, q.End) < 0
	case RangeBetweenExcl:
		return bytes.Compare(key, q.Start) > 0 && bytes.Compare(key, q.End) < 0
	case RangeFrom:
		return bytes.Compare(key, q.Start) >= 0
	case RangeAfter:
		return bytes.Compare(key, q.Start) > 0
	case RangeTo:
		if q.EndIncl {
			return bytes.Compare(key, q.End) <= 0
		}
		return bytes.Compare(key, q.End) < 0
	case RangeFull:
		return true
	default:
		return false
	}
}

// Query describes a path-query: the subtree to query, the key ranges
// within it, an optional nested sub-query applied to every subtree
// element the ranges select, ordering, and pagination.
type Query struct {
	Path       Path
	Items      []QueryItem
	Subquery   *Query
	Descending bool
	Limit      int // 0 means unlimited
	Offset     int
}

// NewQuery builds a Query over path selecting items.
func NewQuery(path Path, items ...QueryItem) *Query {
	return &Query{Path: path, Items: items}
}

// WithSubquery attaches a nested query applied beneath every subtree
// element this query's items select.
func (q *Query) WithSubquery(sub *Query) *Query { q.Subquery = sub; return q }

// WithLimit sets a result cap; 0 clears it.
func (q *Query) WithLimit(n int) *Query { q.Limit = n; return q }

// WithOffset sets the number of matching results to skip before the first
// one returned.
func (q *Query) WithOffset(n int) *Query { q.Offset = n; return q }

// Descend marks the query to return results in descending key order.
func (q *Query) Descend() *Query { q.Descending = true; return q }
