package codec

import (
	"bytes"
	"testing"
)

type sample struct {
	version uint8
	id      []byte
	amount  int64
	label   string
	present []byte
}

func (s *sample) MarshalCanonical(w *Writer) {
	w.PutTag(s.version)
	w.PutFixedBytes(s.id)
	w.PutInt64(s.amount)
	w.PutString(s.label)
	w.PutOptionalBytes(s.present, s.present != nil)
}

func (s *sample) UnmarshalCanonical(r *Reader) error {
	v, err := r.Tag()
	if err != nil {
		return err
	}
	s.version = v
	id, err := r.FixedBytes(32)
	if err != nil {
		return err
	}
	s.id = id
	amount, err := r.Int64()
	if err != nil {
		return err
	}
	s.amount = amount
	label, err := r.String()
	if err != nil {
		return err
	}
	s.label = label
	opt, _, err := r.OptionalBytes()
	if err != nil {
		return err
	}
	s.present = opt
	return nil
}

func TestRoundTrip(t *testing.T) {
	id := bytes.Repeat([]byte{0x42}, 32)
	cases := []*sample{
		{version: 0, id: id, amount: -12345, label: "hello", present: nil},
		{version: 3, id: id, amount: 0, label: "", present: []byte{1, 2, 3}},
	}
	for i, c := range cases {
		enc := Encode(c)
		var got sample
		if err := Decode(enc, &got); err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if got.version != c.version || got.amount != c.amount || got.label != c.label ||
			!bytes.Equal(got.id, c.id) || !bytes.Equal(got.present, c.present) {
			t.Fatalf("case %d: round trip mismatch: got %+v want %+v", i, got, c)
		}
	}
}

func TestTruncatedInput(t *testing.T) {
	w := NewWriter(8)
	w.PutUint64(1)
	r := NewReader(w.Bytes()[:4])
	if _, err := r.Uint64(); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestExpectDoneRejectsTrailingBytes(t *testing.T) {
	w := NewWriter(8)
	w.PutUint32(7)
	w.PutUint8(0xFF)
	r := NewReader(w.Bytes())
	if _, err := r.Uint32(); err != nil {
		t.Fatal(err)
	}
	if err := r.ExpectDone(); err == nil {
		t.Fatal("expected trailing-byte error")
	}
}

func TestBigEndianOrderingPreservesSort(t *testing.T) {
	a := NewWriter(8)
	a.PutUint64(5)
	b := NewWriter(8)
	b.PutUint64(6)
	if bytes.Compare(a.Bytes(), b.Bytes()) >= 0 {
		t.Fatal("fixed-width big-endian encoding must preserve numeric ordering")
	}
}
