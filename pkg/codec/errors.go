package codec

import (
	"errors"
	"fmt"
	"sync"
)

// Buffer-level causes.
var (
	ErrTooSmall   = errors.New("buffer too small")
	ErrMisaligned = errors.New("buffer not 8-byte aligned")
)

// Record-level causes.
var (
	ErrTruncatedHeader      = errors.New("truncated record header")
	ErrSizeBelowMinimum     = errors.New("record size below minimum")
	ErrSizeExceedsBuffer    = errors.New("record size exceeds buffer")
	ErrRecordOverrunsBuffer = errors.New("record padding overruns buffer")
	ErrSizeOverflow         = errors.New("size arithmetic overflow")
	ErrInvalidTerminator    = errors.New("terminator record has invalid size")
)

// Cast-level causes.
var (
	ErrKindMismatch     = errors.New("record kind mismatch")
	ErrTailNotDivisible = errors.New("record tail not divisible by element size")
)

// Content-level causes, reported by accessors rather than by parsing.
var (
	ErrMissingNul  = errors.New("string tail missing NUL terminator")
	ErrInvalidUTF8 = errors.New("string tail is not valid UTF-8")
)

// Builder-level causes.
var (
	ErrTailTooLarge     = errors.New("record size exceeds 32-bit size field")
	ErrAllocationFailed = errors.New("builder capacity exhausted")
	ErrBuilderFinished  = errors.New("builder already finished")
)

// ValidationError describes why a buffer or record was rejected. Cause is one
// of the sentinel errors of this package and is matched with errors.Is.
type ValidationError struct {
	Cause  error
	Offset int    // byte offset of the record within the buffer, or -1
	Kind   uint32 // declared kind, when a header was read
	Size   uint32 // declared size, when a header was read
	Limit  int    // the bound that was violated (minimum, length, element size)
}

func (e *ValidationError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%v (limit %d)", e.Cause, e.Limit)
	}
	return fmt.Sprintf("%v at offset %d: kind=%d size=%d limit=%d",
		e.Cause, e.Offset, e.Kind, e.Size, e.Limit)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func bufferError(cause error, limit int) *ValidationError {
	return &ValidationError{Cause: cause, Offset: -1, Limit: limit}
}

func recordError(cause error, off int, h Header, limit int) *ValidationError {
	return &ValidationError{
		Cause:  cause,
		Offset: off,
		Kind:   h.Kind(),
		Size:   h.Size(),
		Limit:  limit,
	}
}

// CauseName returns a short stable name for the sentinel cause of err, for use
// in metrics labels and API responses.
func CauseName(err error) string {
	causeMu.RLock()
	defer causeMu.RUnlock()
	for _, c := range causeNames {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	if err == nil {
		return "none"
	}
	return "other"
}

// RegisterCause makes CauseName report name for err. Format packages call it
// from init for their own sentinel causes.
func RegisterCause(err error, name string) {
	causeMu.Lock()
	defer causeMu.Unlock()
	causeNames = append(causeNames, causeName{err, name})
}

type causeName struct {
	err  error
	name string
}

var causeMu sync.RWMutex

var causeNames = []causeName{
	{ErrTooSmall, "too_small"},
	{ErrMisaligned, "misaligned"},
	{ErrTruncatedHeader, "truncated_header"},
	{ErrSizeBelowMinimum, "size_below_minimum"},
	{ErrSizeExceedsBuffer, "size_exceeds_buffer"},
	{ErrRecordOverrunsBuffer, "record_overruns_buffer"},
	{ErrSizeOverflow, "size_overflow"},
	{ErrInvalidTerminator, "invalid_terminator"},
	{ErrKindMismatch, "kind_mismatch"},
	{ErrTailNotDivisible, "tail_not_divisible"},
	{ErrMissingNul, "missing_nul"},
	{ErrInvalidUTF8, "invalid_utf8"},
	{ErrTailTooLarge, "tail_too_large"},
	{ErrAllocationFailed, "allocation_failed"},
	{ErrBuilderFinished, "builder_finished"},
}
