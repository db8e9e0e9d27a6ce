package codec

import (
	"fmt"
	"math"
)

// Encoder is implemented by record values that can be written by a Builder.
// AppendPayload appends everything after the HeaderLen-byte header: the fixed
// fields followed by the tail.
type Encoder interface {
	RecordLayout() Layout
	AppendPayload(dst []byte) []byte
}

// HeaderWriter writes the header of rec into b (HeaderLen bytes) with the
// computed size.
type HeaderWriter func(b []byte, rec Encoder, size uint32)

// PutRawEncoderHeader is the HeaderWriter for the plain {kind u32, size u32}
// layout.
func PutRawEncoderHeader(b []byte, rec Encoder, size uint32) {
	PutRawHeader(b, rec.RecordLayout().Kind, size)
}

// Validator is implemented by encoders whose contents can be out of range for
// their wire fields. Push calls Validate before writing anything.
type Validator interface {
	Validate() error
}

// ReadBack re-reads the record the builder just wrote at off in buf and
// checks it against the layout it was encoded from.
type ReadBack func(buf []byte, off int, l Layout) error

// Builder accumulates records into an aligned buffer that starts with a
// preamble of preambleLen bytes. The first error is sticky: later calls to
// Push are no-ops and Finish returns it.
type Builder struct {
	buf       []byte
	put       HeaderWriter
	reg       Registry
	readBack  ReadBack
	limit     int
	selfCheck bool
	count     int
	finished  bool
	err       error
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithCapacity switches the builder to fixed-capacity mode: the buffer is
// allocated once with n bytes and growing past it fails with
// ErrAllocationFailed instead of reallocating.
func WithCapacity(n int) BuilderOption {
	return func(b *Builder) {
		b.limit = n
	}
}

// WithSelfCheck replays every pushed record through the cast validation and
// panics if the builder produced a record it would itself reject.
func WithSelfCheck(on bool) BuilderOption {
	return func(b *Builder) {
		b.selfCheck = on
	}
}

// WithReadBack makes the builder parse its own output with the format's header
// decoder and registry. Pushed records are checked against the registry
// minimum, and the self-check replays each record through the same header,
// terminator, registry and layout checks as a Sequence walk. Without it the
// builder assumes the RawHeader layout and no registry.
func WithReadBack[H Header](dec HeaderDecoder[H], reg Registry) BuilderOption {
	return func(b *Builder) {
		b.reg = reg
		b.readBack = func(buf []byte, off int, l Layout) error {
			return readBack(buf, off, dec, reg, l)
		}
	}
}

// NewBuilder returns a builder whose buffer starts with preambleLen zero bytes
// (rounded up to the alignment) for the caller to backfill in Finish.
func NewBuilder(preambleLen int, put HeaderWriter, opts ...BuilderOption) *Builder {
	b := &Builder{put: put, selfCheck: selfCheckDefault}
	for _, opt := range opts {
		opt(b)
	}
	pre, ok := AlignUp(preambleLen)
	if !ok || preambleLen < 0 {
		b.err = bufferError(ErrSizeOverflow, preambleLen)
		return b
	}
	initial := 64
	if b.limit > 0 {
		if b.limit < pre {
			b.err = bufferError(ErrAllocationFailed, b.limit)
			return b
		}
		initial = b.limit
	}
	b.buf = AlignedBytes(max(initial, pre))[:0]
	if !b.reserve(pre) {
		return b
	}
	b.buf = b.buf[:pre]
	return b
}

// Push appends rec, padded to the next 8-byte boundary. The terminator kind is
// refused; Finish writes the terminator.
func (b *Builder) Push(rec Encoder) *Builder {
	return b.push(rec, false)
}

func (b *Builder) push(rec Encoder, terminator bool) *Builder {
	if b.err != nil {
		return b
	}
	if b.finished {
		b.err = ErrBuilderFinished
		return b
	}
	start := len(b.buf)
	l := rec.RecordLayout()
	if l.Kind == TerminatorKind && !terminator {
		b.err = &ValidationError{Cause: ErrInvalidTerminator, Offset: start, Kind: l.Kind, Limit: HeaderLen}
		return b
	}
	if v, ok := rec.(Validator); ok {
		if err := v.Validate(); err != nil {
			b.err = err
			return b
		}
	}

	payload := rec.AppendPayload(nil)
	size, err := recordSize(len(payload))
	if err != nil {
		err.Offset, err.Kind = start, l.Kind
		b.err = err
		return b
	}
	if m, known := b.reg[l.Kind]; known && size < m.Min() {
		b.err = &ValidationError{Cause: ErrSizeBelowMinimum, Offset: start, Kind: l.Kind, Size: size, Limit: int(m.Min())}
		return b
	}
	if !b.reserve(HeaderLen) {
		return b
	}
	b.buf = b.buf[:start+HeaderLen]
	total := int(size)
	padded, ok := AlignUp(total)
	if !ok || !b.reserve(padded-HeaderLen) {
		b.buf = b.buf[:start]
		if b.err == nil {
			b.err = &ValidationError{Cause: ErrSizeOverflow, Offset: start, Limit: math.MaxInt}
		}
		return b
	}
	b.buf = append(b.buf, payload...)
	for len(b.buf) < start+padded {
		b.buf = append(b.buf, 0)
	}
	b.put(b.buf[start:start+HeaderLen], rec, size)

	if b.selfCheck {
		b.verify(start, l)
	}
	b.count++
	return b
}

// Len returns the number of bytes written so far, preamble included.
func (b *Builder) Len() int {
	return len(b.buf)
}

// Count returns the number of records pushed so far.
func (b *Builder) Count() int {
	return b.count
}

// Err returns the sticky error, if any.
func (b *Builder) Err() error {
	return b.err
}

// Finish appends the terminator record, calls finalize with the complete
// buffer so the caller can backfill its preamble, and returns the buffer. The
// builder cannot be used afterwards.
func (b *Builder) Finish(terminator Encoder, finalize func(buf []byte) error) ([]byte, error) {
	if b.finished {
		return nil, ErrBuilderFinished
	}
	if b.err != nil {
		b.finished = true
		return nil, b.err
	}
	b.push(terminator, true)
	b.finished = true
	if b.err != nil {
		return nil, b.err
	}
	out := b.buf
	b.buf = nil
	if finalize != nil {
		if err := finalize(out); err != nil {
			return nil, fmt.Errorf("finalize preamble: %w", err)
		}
	}
	return out, nil
}

// reserve makes room for n more bytes, reallocating into a fresh aligned
// buffer unless the builder has a fixed capacity.
func (b *Builder) reserve(n int) bool {
	need, ok := checkedAdd(len(b.buf), n)
	if !ok {
		b.err = bufferError(ErrSizeOverflow, math.MaxInt)
		return false
	}
	if need <= cap(b.buf) {
		return true
	}
	if b.limit > 0 {
		b.err = bufferError(ErrAllocationFailed, b.limit)
		return false
	}
	grown := max(need, 2*cap(b.buf))
	next := AlignedBytes(grown)[:len(b.buf)]
	copy(next, b.buf)
	b.buf = next
	return true
}

// recordSize returns the declared size of a record carrying payloadLen bytes
// after its header.
func recordSize(payloadLen int) (uint32, *ValidationError) {
	total, ok := checkedAdd(HeaderLen, payloadLen)
	if !ok || payloadLen < 0 || uint64(total) > math.MaxUint32 {
		return 0, &ValidationError{Cause: ErrTailTooLarge, Limit: math.MaxUint32}
	}
	return uint32(total), nil
}

func (b *Builder) verify(start int, l Layout) {
	check := b.readBack
	if check == nil {
		check = func(buf []byte, off int, l Layout) error {
			return readBack(buf, off, DecodeRawHeader, nil, l)
		}
	}
	if err := check(b.buf, start, l); err != nil {
		panic(fmt.Sprintf("codec: builder wrote a record it cannot read back: %v", err))
	}
}

func readBack[H Header](buf []byte, off int, dec HeaderDecoder[H], reg Registry, l Layout) error {
	v, err := NewView(buf, 0)
	if err != nil {
		return err
	}
	h, _, err := ReadHeader(v, off, dec)
	if err != nil {
		return err
	}
	if h.Kind() == TerminatorKind && h.Size() != HeaderLen {
		return recordError(ErrInvalidTerminator, off, h, HeaderLen)
	}
	rec, err := ValidateAndSlice(v, off, h, reg)
	if err != nil {
		return err
	}
	return Check(rec, l)
}
