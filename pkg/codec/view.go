package codec

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// Alignment is the required alignment of every structure and record start.
const Alignment = 8

var byteOrder = binary.LittleEndian

// View is a validated window over caller-owned bytes. The zero value is an
// empty view. A View never copies the buffer and never hands out a slice that
// reaches past Len.
type View struct {
	buf []byte
}

// NewView validates buf as the backing store of a structure whose smallest
// legal encoding is minLen bytes.
func NewView(buf []byte, minLen int) (View, error) {
	if len(buf) < minLen {
		return View{}, bufferError(ErrTooSmall, minLen)
	}
	if !IsAligned(buf) {
		return View{}, bufferError(ErrMisaligned, Alignment)
	}
	return View{buf: buf}, nil
}

// Len returns the number of bytes covered by the view.
func (v View) Len() int {
	return len(v.buf)
}

// Bytes returns the underlying bytes. The caller must not modify them.
func (v View) Bytes() []byte {
	return v.buf
}

// Slice returns n bytes starting at off.
func (v View) Slice(off, n int) ([]byte, error) {
	end, ok := checkedAdd(off, n)
	if !ok || off < 0 || n < 0 {
		return nil, &ValidationError{Cause: ErrSizeOverflow, Offset: off, Limit: len(v.buf)}
	}
	if end > len(v.buf) {
		return nil, &ValidationError{Cause: ErrSizeExceedsBuffer, Offset: off, Limit: len(v.buf)}
	}
	return v.buf[off:end:end], nil
}

// Truncate returns a view over the first n bytes.
func (v View) Truncate(n int) (View, error) {
	if n < 0 || n > len(v.buf) {
		return View{}, bufferError(ErrSizeExceedsBuffer, len(v.buf))
	}
	return View{buf: v.buf[:n:n]}, nil
}

// Uint32 reads a little-endian uint32 at off.
func (v View) Uint32(off int) (uint32, error) {
	b, err := v.Slice(off, 4)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint32(b), nil
}

// IsAligned reports whether the first byte of b sits on an 8-byte boundary.
// An empty slice is considered aligned.
func IsAligned(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&b[0]))%Alignment == 0
}

// AlignedBytes allocates a zeroed n-byte buffer whose start is 8-byte aligned.
func AlignedBytes(n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	words := make([]uint64, (n+Alignment-1)/Alignment)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), n)
}

// Aligned returns b when it is already aligned, otherwise an aligned copy.
func Aligned(b []byte) []byte {
	if IsAligned(b) {
		return b
	}
	out := AlignedBytes(len(b))
	copy(out, b)
	return out
}

// AlignUp rounds n up to the next multiple of Alignment. ok is false when the
// result does not fit in an int.
func AlignUp(n int) (int, bool) {
	if n < 0 || n > math.MaxInt-(Alignment-1) {
		return 0, false
	}
	return (n + Alignment - 1) &^ (Alignment - 1), true
}

func checkedAdd(a, b int) (int, bool) {
	if b > 0 && a > math.MaxInt-b {
		return 0, false
	}
	if b < 0 && a < math.MinInt-b {
		return 0, false
	}
	return a + b, true
}
