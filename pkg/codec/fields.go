package codec

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// FieldReader reads consecutive little-endian fields from a byte slice. Reads
// past the end return zero values and record an error, reported by Err.
type FieldReader struct {
	buf []byte
	off int
	err error
}

// NewFieldReader returns a reader positioned at the start of b.
func NewFieldReader(b []byte) *FieldReader {
	return &FieldReader{buf: b}
}

func (r *FieldReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = &ValidationError{Cause: ErrSizeExceedsBuffer, Offset: r.off, Limit: len(r.buf)}
		return nil
	}
	b := r.buf[r.off : r.off+n : r.off+n]
	r.off += n
	return b
}

// Uint8 reads one byte.
func (r *FieldReader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Uint16 reads a little-endian uint16.
func (r *FieldReader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return byteOrder.Uint16(b)
}

// Uint32 reads a little-endian uint32.
func (r *FieldReader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return byteOrder.Uint32(b)
}

// Uint64 reads a little-endian uint64.
func (r *FieldReader) Uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return byteOrder.Uint64(b)
}

// Bytes reads n raw bytes without copying.
func (r *FieldReader) Bytes(n int) []byte {
	return r.take(n)
}

// Skip advances past n bytes.
func (r *FieldReader) Skip(n int) {
	r.take(n)
}

// Remaining returns the unread bytes.
func (r *FieldReader) Remaining() []byte {
	if r.err != nil {
		return nil
	}
	return r.buf[r.off:]
}

// Err returns the first out-of-bounds read, if any.
func (r *FieldReader) Err() error {
	return r.err
}

// ParseString decodes a NUL-terminated UTF-8 string from the start of b.
// Bytes after the first NUL are ignored.
func ParseString(b []byte) (string, error) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", ErrMissingNul
	}
	if !utf8.Valid(b[:i]) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUTF8, b[:i])
	}
	return string(b[:i]), nil
}

// AppendString appends s followed by a NUL terminator, unless s already ends
// with one.
func AppendString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	if len(s) == 0 || s[len(s)-1] != 0 {
		dst = append(dst, 0)
	}
	return dst
}

// Field writers used by AppendPayload implementations.

func AppendUint8(dst []byte, v uint8) []byte { return append(dst, v) }

func AppendUint16(dst []byte, v uint16) []byte { return byteOrder.AppendUint16(dst, v) }

func AppendUint32(dst []byte, v uint32) []byte { return byteOrder.AppendUint32(dst, v) }

func AppendUint64(dst []byte, v uint64) []byte { return byteOrder.AppendUint64(dst, v) }

// AppendZeros appends n zero bytes.
func AppendZeros(dst []byte, n int) []byte {
	for i := 0; i < n; i++ {
		dst = append(dst, 0)
	}
	return dst
}
