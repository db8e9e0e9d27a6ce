package codec

import "encoding/binary"

const (
	kindPair   = 0xff
	kindArray  = 0x20
	kindString = 0x30
)

// pairTag is a fixed-size record with two u32 fields.
type pairTag struct {
	A uint32
	B uint32
}

func (*pairTag) RecordLayout() Layout {
	return Layout{Kind: kindPair, FixedSize: 16}
}

func (t *pairTag) DecodeRecord(b Body) error {
	r := b.Fields()
	t.A = r.Uint32()
	t.B = r.Uint32()
	return r.Err()
}

func (t *pairTag) AppendPayload(dst []byte) []byte {
	dst = AppendUint32(dst, t.A)
	return AppendUint32(dst, t.B)
}

// arrayTag has no fixed fields and a tail of u64 elements.
type arrayTag struct {
	Values []uint64
}

func (*arrayTag) RecordLayout() Layout {
	return Layout{Kind: kindArray, FixedSize: 8, ElemSize: 8}
}

func (t *arrayTag) DecodeRecord(b Body) error {
	t.Values = make([]uint64, 0, b.Count())
	for i := 0; i < b.Count(); i++ {
		e, _ := b.Elem(i)
		t.Values = append(t.Values, binary.LittleEndian.Uint64(e))
	}
	return nil
}

func (t *arrayTag) AppendPayload(dst []byte) []byte {
	for _, v := range t.Values {
		dst = AppendUint64(dst, v)
	}
	return dst
}

// stringTag carries a NUL-terminated string tail.
type stringTag struct {
	raw []byte
}

func newStringTag(s string) *stringTag {
	return &stringTag{raw: AppendString(nil, s)}
}

func (*stringTag) RecordLayout() Layout {
	return Layout{Kind: kindString, FixedSize: 8, MinSize: 9}
}

func (t *stringTag) DecodeRecord(b Body) error {
	t.raw = b.Tail()
	return nil
}

func (t *stringTag) AppendPayload(dst []byte) []byte {
	return append(dst, t.raw...)
}

func (t *stringTag) Text() (string, error) {
	return ParseString(t.raw)
}

// opaqueTag writes any kind with an arbitrary payload and no fixed fields.
type opaqueTag struct {
	Kind    uint32
	Payload []byte
	Invalid error
}

func (t *opaqueTag) RecordLayout() Layout            { return Layout{Kind: t.Kind, FixedSize: HeaderLen} }
func (t *opaqueTag) AppendPayload(dst []byte) []byte { return append(dst, t.Payload...) }
func (t *opaqueTag) Validate() error                 { return t.Invalid }

type terminator struct{}

func (terminator) RecordLayout() Layout            { return Layout{Kind: TerminatorKind, FixedSize: HeaderLen} }
func (terminator) AppendPayload(dst []byte) []byte { return dst }

// record encodes one record with the given header values, payload and
// zero padding to the next 8-byte boundary.
func record(kind, size uint32, payload ...byte) []byte {
	b := make([]byte, 8, 8+len(payload)+8)
	PutRawHeader(b, kind, size)
	b = append(b, payload...)
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}

// aligned concatenates parts into a freshly allocated aligned buffer.
func aligned(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := AlignedBytes(n)
	off := 0
	for _, p := range parts {
		off += copy(out[off:], p)
	}
	return out
}

func u32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func u64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func rawSequence(b []byte) Sequence[RawHeader] {
	v, err := NewView(b, 0)
	if err != nil {
		panic(err)
	}
	return NewSequence(v, 0, v.Len(), DecodeRawHeader)
}
