package tree

import (
	"bytes"

	"github.com/meridianchain/drive/pkg/codec"
)

// Path is an ordered sequence of path segments locating a subtree from the
// root. Segments are opaque byte-strings; well-known top-level segments
// are exposed as package-level helpers in
// the domain packages that own them.
type Path [][]byte

// Append returns a new Path with segment appended; the receiver is left
// unmodified.
func (p Path) Append(segment []byte) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = segment
	return out
}

// Equal reports whether p and other name the same path.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if !bytes.Equal(p[i], other[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p begins with prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if !bytes.Equal(p[i], prefix[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	for i, seg := range p {
		c := make([]byte, len(seg))
		copy(c, seg)
		out[i] = c
	}
	return out
}

// MarshalCanonical implements codec.Marshaler.
func (p Path) MarshalCanonical(w *codec.Writer) {
	w.PutVarUint(uint64(len(p)))
	for _, seg := range p {
		w.PutBytes(seg)
	}
}

// UnmarshalCanonical implements codec.Unmarshaler. p must be a non-nil
// pointer receiver target; callers pass &path.
func (p *Path) UnmarshalCanonical(r *codec.Reader) error {
	n, err := r.VarUint()
	if err != nil {
		return err
	}
	out := make(Path, n)
	for i := range out {
		seg, err := r.Bytes()
		if err != nil {
			return err
		}
		out[i] = seg
	}
	*p = out
	return nil
}

// StorageKey returns the deterministic, order-preserving byte-string used
// to locate this path's node record in the underlying KV engine (pkg/storage).
func (p Path) StorageKey() []byte {
	w := codec.NewWriter(32)
	w.PutUint8('N')
	p.MarshalCanonical(w)
	return w.Bytes()
}

// PathSeg is a convenience constructor for a single string segment.
func PathSeg(s string) []byte { return []byte(s) }

// NewPath builds a Path from string segments.
func NewPath(segs ...string) Path {
	p := make(Path, len(segs))
	for i, s := range segs {
		p[i] = []byte(s)
	}
	return p
}
