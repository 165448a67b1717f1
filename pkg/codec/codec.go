// Package codec implements the deterministic binary encoding used for every
// persisted and wire-transmitted structure in the state engine.
//
// Field order is fixed by the caller (encode/decode pairs are written by
// hand per type, not reflection-derived), variable-length sections are
// length-prefixed with a varint, and every value round-trips:
// decode(encode(x)) == x.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrTruncated is returned when a Reader runs out of bytes mid-field.
var ErrTruncated = errors.New("codec: truncated input")

// Writer accumulates a canonical binary encoding.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer with the given initial capacity hint.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// PutUint8 writes a single byte.
func (w *Writer) PutUint8(v uint8) { w.buf = append(w.buf, v) }

// PutBool writes a one-byte boolean.
func (w *Writer) PutBool(v bool) {
	if v {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
}

// PutUint32 writes a fixed-width, big-endian uint32. Big-endian is used
// throughout for fields that participate in lexicographic key ordering.
func (w *Writer) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutUint64 writes a fixed-width, big-endian uint64.
func (w *Writer) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutInt64 writes a fixed-width, big-endian two's-complement int64. Used for
// SumItem values, whose sign must sort the same way it adds.
func (w *Writer) PutInt64(v int64) { w.PutUint64(uint64(v)) }

// PutVarUint writes a variable-length unsigned integer, used for payload
// integers that do not need to preserve lexicographic ordering (field
// counts, vector lengths, key-id sequence numbers).
func (w *Writer) PutVarUint(v uint64) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], v)
	w.buf = append(w.buf, b[:n]...)
}

// PutBytes writes a length-prefixed byte string.
func (w *Writer) PutBytes(b []byte) {
	w.PutVarUint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// PutFixedBytes writes raw bytes with no length prefix; used only for
// fields whose length is fixed by the type (32-byte ids, 8-byte heights).
func (w *Writer) PutFixedBytes(b []byte) { w.buf = append(w.buf, b...) }

// PutString writes a length-prefixed UTF-8 string.
func (w *Writer) PutString(s string) { w.PutBytes([]byte(s)) }

// PutOptionalBytes writes the one-byte presence tag followed by the value
// when present.
func (w *Writer) PutOptionalBytes(b []byte, present bool) {
	w.PutBool(present)
	if present {
		w.PutBytes(b)
	}
}

// PutTag writes a one-byte discriminated-union variant tag.
func (w *Writer) PutTag(tag uint8) { w.PutUint8(tag) }

// Reader consumes a canonical binary encoding produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for sequential decoding. b is not copied or retained
// beyond the lifetime of the decode call that owns it.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Remaining reports how many bytes are left to read.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Uint8 reads a single byte.
func (r *Reader) Uint8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, ErrTruncated
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// Bool reads a one-byte boolean.
func (r *Reader) Bool() (bool, error) {
	v, err := r.Uint8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, fmt.Errorf("codec: invalid bool byte %d", v)
	}
	return v == 1, nil
}

// Uint32 reads a fixed-width, big-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// Uint64 reads a fixed-width, big-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// Int64 reads a fixed-width, big-endian two's-complement int64.
func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

// VarUint reads a variable-length unsigned integer.
func (r *Reader) VarUint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, ErrTruncated
	}
	r.pos += n
	return v, nil
}

// Bytes reads a length-prefixed byte string.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.VarUint()
	if err != nil {
		return nil, err
	}
	if uint64(r.Remaining()) < n {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

// FixedBytes reads exactly n raw bytes with no length prefix.
func (r *Reader) FixedBytes(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// String reads a length-prefixed UTF-8 string.
func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// OptionalBytes reads the one-byte presence tag and the value if present.
func (r *Reader) OptionalBytes() ([]byte, bool, error) {
	present, err := r.Bool()
	if err != nil || !present {
		return nil, false, err
	}
	b, err := r.Bytes()
	return b, true, err
}

// Tag reads a one-byte discriminated-union variant tag.
func (r *Reader) Tag() (uint8, error) { return r.Uint8() }

// Done reports whether the full input has been consumed. Callers should
// check this after decoding a top-level structure to reject trailing
// garbage, matching the codec's round-trip contract.
func (r *Reader) Done() bool { return r.Remaining() == 0 }

// ExpectDone returns an error if the input was not fully consumed.
func (r *Reader) ExpectDone() error {
	if !r.Done() {
		return fmt.Errorf("codec: %d trailing bytes after decode", r.Remaining())
	}
	return nil
}

// Marshaler is implemented by every type with a canonical binary encoding.
type Marshaler interface {
	MarshalCanonical(w *Writer)
}

// Unmarshaler is implemented by every type with a canonical binary decoding.
type Unmarshaler interface {
	UnmarshalCanonical(r *Reader) error
}

// Encode runs m.MarshalCanonical against a fresh Writer and returns the bytes.
func Encode(m Marshaler) []byte {
	w := NewWriter(64)
	m.MarshalCanonical(w)
	return w.Bytes()
}

// Decode runs u.UnmarshalCanonical against b and requires the input be fully
// consumed, enforcing the round-trip contract at every call site.
func Decode(b []byte, u Unmarshaler) error {
	r := NewReader(b)
	if err := u.UnmarshalCanonical(r); err != nil {
		return err
	}
	return r.ExpectDone()
}

// io.Reader / io.Writer adapters, used by call sites that stream large
// document batches instead of building one []byte up front.

// WriteTo writes w's accumulated bytes to dst.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	n, err := dst.Write(w.buf)
	return int64(n), err
}
