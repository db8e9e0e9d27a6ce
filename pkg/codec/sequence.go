package codec

// State is the position of an Iterator in a record walk.
type State int

const (
	// Positioned means the iterator is about to read the record at Offset.
	Positioned State = iota
	// Terminated means a well-formed terminator record was consumed.
	Terminated
	// Exhausted means the walk reached the end of its range without a
	// terminator. Callers decide whether that is acceptable.
	Exhausted
	// Failed means a record failed validation; Err returns why.
	Failed
)

func (s State) String() string {
	switch s {
	case Positioned:
		return "positioned"
	case Terminated:
		return "terminated"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sequence describes back-to-back records in [start, end) of a view. It is
// immutable; every call to Iter starts an independent walk.
type Sequence[H Header] struct {
	view  View
	start int
	end   int
	dec   HeaderDecoder[H]
	reg   Registry
}

// SequenceOption configures a Sequence.
type SequenceOption func(*sequenceOptions)

type sequenceOptions struct {
	reg Registry
}

// WithRegistry makes the walk reject records smaller than their registered
// layout allows.
func WithRegistry(reg Registry) SequenceOption {
	return func(o *sequenceOptions) {
		o.reg = reg
	}
}

// NewSequence returns a sequence over v[start:end]. start must be aligned
// relative to the view; the range is clamped to the view.
func NewSequence[H Header](v View, start, end int, dec HeaderDecoder[H], opts ...SequenceOption) Sequence[H] {
	var o sequenceOptions
	for _, opt := range opts {
		opt(&o)
	}
	if end > v.Len() {
		end = v.Len()
	}
	if start < 0 {
		start = 0
	}
	if start > end {
		start = end
	}
	return Sequence[H]{view: v, start: start, end: end, dec: dec, reg: o.reg}
}

// Iter starts a new walk from the first record.
func (s Sequence[H]) Iter() *Iterator[H] {
	return &Iterator[H]{seq: s, off: s.start}
}

// Collect walks the whole sequence and returns the records before the
// terminator together with the final state. On Failed, err is non-nil.
func (s Sequence[H]) Collect() ([]Record[H], State, error) {
	var out []Record[H]
	it := s.Iter()
	for it.Next() {
		out = append(out, it.Record())
	}
	return out, it.State(), it.Err()
}

// Find returns the first record of the given kind.
func (s Sequence[H]) Find(kind uint32) (Record[H], bool, error) {
	it := s.Iter()
	for it.Next() {
		if it.Record().Kind() == kind {
			return it.Record(), true, nil
		}
	}
	return Record[H]{}, false, it.Err()
}

// Iterator walks a Sequence. Next yields every record except the terminator.
type Iterator[H Header] struct {
	seq   Sequence[H]
	off   int
	state State
	rec   Record[H]
	err   error
}

// Next advances to the next record and reports whether one is available.
func (it *Iterator[H]) Next() bool {
	if it.state != Positioned {
		return false
	}
	s := it.seq
	if it.off == s.end {
		it.state = Exhausted
		return false
	}
	bounded, err := s.view.Truncate(s.end)
	if err != nil {
		return it.fail(err)
	}
	h, _, err := ReadHeader(bounded, it.off, s.dec)
	if err != nil {
		return it.fail(err)
	}
	rec, err := ValidateAndSlice(bounded, it.off, h, s.reg)
	if err != nil {
		return it.fail(err)
	}
	if h.Kind() == TerminatorKind && h.Size() != HeaderLen {
		return it.fail(recordError(ErrInvalidTerminator, it.off, h, HeaderLen))
	}
	if rec.IsTerminator() {
		it.rec = Record[H]{}
		it.off += HeaderLen
		it.state = Terminated
		return false
	}
	padded, ok := AlignUp(int(h.Size()))
	if !ok {
		return it.fail(recordError(ErrSizeOverflow, it.off, h, 0))
	}
	next, ok := checkedAdd(it.off, padded)
	if !ok {
		return it.fail(recordError(ErrSizeOverflow, it.off, h, 0))
	}
	if next > s.end {
		return it.fail(recordError(ErrRecordOverrunsBuffer, it.off, h, s.end-it.off))
	}
	it.rec = rec
	it.off = next
	return true
}

func (it *Iterator[H]) fail(err error) bool {
	it.rec = Record[H]{}
	it.err = err
	it.state = Failed
	return false
}

// Record returns the record produced by the last successful Next.
func (it *Iterator[H]) Record() Record[H] {
	return it.rec
}

// Err returns the validation failure that stopped the walk, if any.
func (it *Iterator[H]) Err() error {
	return it.err
}

// State returns the current state of the walk.
func (it *Iterator[H]) State() State {
	return it.state
}

// Offset returns the offset of the next record to read, or the offset just
// past the terminator once Terminated.
func (it *Iterator[H]) Offset() int {
	return it.off
}
