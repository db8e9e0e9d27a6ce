package codec

import (
	"math"
)

// Record is a transient view of one record: its header and exactly Size
// bytes borrowed from the enclosing buffer. Records are produced by
// ValidateAndSlice (directly or through a Sequence) and never own memory.
type Record[H Header] struct {
	header H
	offset int
	raw    []byte
}

// Header returns the decoded header.
func (r Record[H]) Header() H { return r.header }

// Kind returns the declared kind.
func (r Record[H]) Kind() uint32 { return r.header.Kind() }

// Size returns the declared size, excluding padding.
func (r Record[H]) Size() uint32 { return r.header.Size() }

// Offset returns the position of the record within the buffer it was read from.
func (r Record[H]) Offset() int { return r.offset }

// Bytes returns the record bytes, header included.
func (r Record[H]) Bytes() []byte { return r.raw }

// Payload returns the bytes after the header. It may be empty.
func (r Record[H]) Payload() []byte {
	if len(r.raw) < HeaderLen {
		return nil
	}
	return r.raw[HeaderLen:]
}

// IsTerminator reports whether the record is a well-formed sequence terminator.
func (r Record[H]) IsTerminator() bool {
	return r.Kind() == TerminatorKind && r.Size() == HeaderLen
}

// Layout declares how a concrete record type is laid out.
//
// FixedSize counts the header and all fixed fields; the tail is everything
// from FixedSize up to the declared size. MinSize, when larger than
// FixedSize, forces a minimum tail (for example a NUL byte). ElemSize, when
// non-zero, requires the tail to be an exact array of ElemSize elements.
type Layout struct {
	Kind      uint32
	FixedSize uint32
	MinSize   uint32
	ElemSize  uint32
}

// Min returns the smallest declared size a record of this layout may have.
func (l Layout) Min() uint32 {
	return max(l.FixedSize, l.MinSize, HeaderLen)
}

func (l Layout) fixed() uint32 {
	return max(l.FixedSize, HeaderLen)
}

// Registry maps kinds to their layouts so a sequence walk can reject records
// smaller than their kind allows. Kinds without an entry are opaque.
type Registry map[uint32]Layout

// Register adds l to the registry, replacing any layout for the same kind.
func (r Registry) Register(l Layout) Registry {
	r[l.Kind] = l
	return r
}

// ValidateAndSlice checks the declared size of h, read at off, against the
// view and the registry, and returns a record borrowing exactly size bytes.
// reg may be nil.
func ValidateAndSlice[H Header](v View, off int, h H, reg Registry) (Record[H], error) {
	size, ok := sizeInt(h.Size())
	if !ok {
		return Record[H]{}, recordError(ErrSizeOverflow, off, h, math.MaxInt)
	}
	if size < HeaderLen {
		return Record[H]{}, recordError(ErrSizeBelowMinimum, off, h, HeaderLen)
	}
	end, ok := checkedAdd(off, size)
	if !ok || off < 0 {
		return Record[H]{}, recordError(ErrSizeOverflow, off, h, math.MaxInt)
	}
	if end > v.Len() {
		return Record[H]{}, recordError(ErrSizeExceedsBuffer, off, h, v.Len()-off)
	}
	if l, known := reg[h.Kind()]; known && h.Size() < l.Min() {
		return Record[H]{}, recordError(ErrSizeBelowMinimum, off, h, int(l.Min()))
	}
	return Record[H]{header: h, offset: off, raw: v.buf[off:end:end]}, nil
}

// ReadRecord reads and validates the single record at the start of b, which
// must be aligned.
func ReadRecord[H Header](b []byte, dec HeaderDecoder[H], reg Registry) (Record[H], error) {
	v, err := NewView(b, HeaderLen)
	if err != nil {
		return Record[H]{}, err
	}
	h, _, err := ReadHeader(v, 0, dec)
	if err != nil {
		return Record[H]{}, err
	}
	return ValidateAndSlice(v, 0, h, reg)
}

// Body is the validated content of a record handed to DecodeRecord. It can
// only be constructed by this package after every size check has passed, so
// Count always reflects validated arithmetic.
type Body struct {
	header   []byte
	fixed    []byte
	tail     []byte
	elemSize int
	count    int
}

// Header returns the raw HeaderLen header bytes, for formats that pack more
// than kind and size into them.
func (b Body) Header() []byte { return b.header }

// Fixed returns the fixed fields following the header.
func (b Body) Fixed() []byte { return b.fixed }

// Tail returns the dynamically sized part of the record.
func (b Body) Tail() []byte { return b.tail }

// Count returns the number of tail elements, or zero when the layout declares
// no element size.
func (b Body) Count() int { return b.count }

// Elem returns the i-th tail element.
func (b Body) Elem(i int) ([]byte, bool) {
	if i < 0 || i >= b.count {
		return nil, false
	}
	start := i * b.elemSize
	return b.tail[start : start+b.elemSize : start+b.elemSize], true
}

// Fields returns a sequential little-endian reader over the fixed fields.
func (b Body) Fields() *FieldReader {
	return NewFieldReader(b.fixed)
}

// Decoder is implemented by pointer receivers of concrete record types.
// RecordLayout must not depend on the receiver's contents.
type Decoder[T any] interface {
	*T
	RecordLayout() Layout
	DecodeRecord(Body) error
}

// Cast validates r against the layout of T and decodes it. Kind, minimum size,
// size against the borrowed bytes and tail divisibility are re-derived from
// the record on every call; nothing computed earlier is trusted.
func Cast[T any, PT Decoder[T], H Header](r Record[H]) (T, error) {
	var out T
	body, err := validateLayout(r.raw, r.offset, r.header, PT(&out).RecordLayout())
	if err != nil {
		return out, err
	}
	if err := PT(&out).DecodeRecord(body); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Check runs the same validation as Cast without decoding.
func Check[H Header](r Record[H], l Layout) error {
	_, err := validateLayout(r.raw, r.offset, r.header, l)
	return err
}

func validateLayout(raw []byte, off int, h Header, l Layout) (Body, error) {
	if h.Kind() != l.Kind {
		return Body{}, recordError(ErrKindMismatch, off, h, int(l.Kind))
	}
	size := h.Size()
	if size < l.Min() {
		return Body{}, recordError(ErrSizeBelowMinimum, off, h, int(l.Min()))
	}
	n, ok := sizeInt(size)
	if !ok {
		return Body{}, recordError(ErrSizeOverflow, off, h, math.MaxInt)
	}
	if n > len(raw) {
		return Body{}, recordError(ErrSizeExceedsBuffer, off, h, len(raw))
	}
	fixed := int(l.fixed())
	tail := raw[fixed:n:n]
	body := Body{
		header: raw[:HeaderLen:HeaderLen],
		fixed:  raw[HeaderLen:fixed:fixed],
		tail:   tail,
	}
	if l.ElemSize > 0 {
		elem := int(l.ElemSize)
		if len(tail)%elem != 0 {
			return Body{}, recordError(ErrTailNotDivisible, off, h, elem)
		}
		body.elemSize = elem
		body.count = len(tail) / elem
	}
	return body, nil
}

func sizeInt(size uint32) (int, bool) {
	if uint64(size) > uint64(math.MaxInt) {
		return 0, false
	}
	return int(size), true
}
