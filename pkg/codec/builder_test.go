package codec

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// putTotalSize backfills a {total_size u32, reserved u32} preamble.
func putTotalSize(buf []byte) error {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
	return nil
}

func TestBuilder_RoundTrip(t *testing.T) {
	b := NewBuilder(8, PutRawEncoderHeader, WithSelfCheck(true))
	b.Push(&pairTag{A: 10, B: 20}).
		Push(newStringTag("root=/dev/sda1")).
		Push(&arrayTag{Values: []uint64{1, 2, 3}})
	require.NoError(t, b.Err())
	assert.Equal(t, 3, b.Count())

	buf, err := b.Finish(terminator{}, putTotalSize)
	require.NoError(t, err)
	assert.True(t, IsAligned(buf))
	assert.Zero(t, len(buf)%Alignment)
	assert.Equal(t, uint32(len(buf)), binary.LittleEndian.Uint32(buf[0:4]))

	v, err := NewView(buf, 16)
	require.NoError(t, err)
	recs, state, err := NewSequence(v, 8, v.Len(), DecodeRawHeader).Collect()
	require.NoError(t, err)
	require.Equal(t, Terminated, state)
	require.Len(t, recs, 3)

	pair, err := Cast[pairTag](recs[0])
	require.NoError(t, err)
	assert.Equal(t, pairTag{A: 10, B: 20}, pair)

	str, err := Cast[stringTag](recs[1])
	require.NoError(t, err)
	text, err := str.Text()
	require.NoError(t, err)
	assert.Equal(t, "root=/dev/sda1", text)
	assert.Equal(t, uint32(8+15), recs[1].Size())

	arr, err := Cast[arrayTag](recs[2])
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, arr.Values)
}

func TestBuilder_PaddingIsZero(t *testing.T) {
	b := NewBuilder(8, PutRawEncoderHeader)
	b.Push(newStringTag("abc"))
	buf, err := b.Finish(terminator{}, nil)
	require.NoError(t, err)

	// preamble(8) + header(8) + "abc\0"(4) + padding(4) + terminator(8)
	require.Len(t, buf, 32)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf[20:24])
	assert.Equal(t, uint32(12), binary.LittleEndian.Uint32(buf[12:16]))
}

func TestBuilder_EmptyProducesTerminatorOnly(t *testing.T) {
	buf, err := NewBuilder(8, PutRawEncoderHeader).Finish(terminator{}, putTotalSize)
	require.NoError(t, err)
	assert.Equal(t, []byte{16, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 8, 0, 0, 0}, buf)
}

func TestBuilder_FixedCapacity(t *testing.T) {
	b := NewBuilder(8, PutRawEncoderHeader, WithCapacity(32))
	b.Push(&pairTag{A: 1})
	require.NoError(t, b.Err())

	b.Push(&pairTag{A: 2})
	assert.ErrorIs(t, b.Err(), ErrAllocationFailed)
	assert.Equal(t, 1, b.Count())

	_, err := b.Finish(terminator{}, nil)
	assert.ErrorIs(t, err, ErrAllocationFailed)
}

func TestBuilder_FixedCapacityFitsExactly(t *testing.T) {
	b := NewBuilder(8, PutRawEncoderHeader, WithCapacity(32))
	b.Push(&pairTag{A: 1})
	buf, err := b.Finish(terminator{}, putTotalSize)
	require.NoError(t, err)
	assert.Len(t, buf, 32)
}

func TestBuilder_Growth(t *testing.T) {
	b := NewBuilder(8, PutRawEncoderHeader)
	for i := 0; i < 100; i++ {
		b.Push(&pairTag{A: uint32(i)})
	}
	buf, err := b.Finish(terminator{}, putTotalSize)
	require.NoError(t, err)
	require.True(t, IsAligned(buf))

	v, err := NewView(buf, 16)
	require.NoError(t, err)
	recs, state, err := NewSequence(v, 8, v.Len(), DecodeRawHeader).Collect()
	require.NoError(t, err)
	assert.Equal(t, Terminated, state)
	require.Len(t, recs, 100)
	last, err := Cast[pairTag](recs[99])
	require.NoError(t, err)
	assert.Equal(t, uint32(99), last.A)
}

func TestBuilder_UseAfterFinish(t *testing.T) {
	b := NewBuilder(8, PutRawEncoderHeader)
	_, err := b.Finish(terminator{}, nil)
	require.NoError(t, err)

	_, err = b.Finish(terminator{}, nil)
	assert.ErrorIs(t, err, ErrBuilderFinished)

	b.Push(&pairTag{})
	assert.ErrorIs(t, b.Err(), ErrBuilderFinished)
}

func TestBuilder_FinalizeError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewBuilder(8, PutRawEncoderHeader).Finish(terminator{}, func([]byte) error { return boom })
	assert.ErrorIs(t, err, boom)
}

// brokenArray declares 8-byte elements but writes 5 bytes.
type brokenArray struct{}

func (brokenArray) RecordLayout() Layout            { return Layout{Kind: kindArray, FixedSize: 8, ElemSize: 8} }
func (brokenArray) AppendPayload(dst []byte) []byte { return append(dst, 1, 2, 3, 4, 5) }

func TestBuilder_SelfCheck(t *testing.T) {
	assert.Panics(t, func() {
		NewBuilder(8, PutRawEncoderHeader, WithSelfCheck(true)).Push(brokenArray{})
	})
	assert.NotPanics(t, func() {
		NewBuilder(8, PutRawEncoderHeader, WithSelfCheck(false)).Push(brokenArray{})
	})
}

func TestBuilder_RejectsTerminatorKind(t *testing.T) {
	tests := []struct {
		name string
		rec  Encoder
	}{
		{"terminator", terminator{}},
		{"kind zero with payload", &opaqueTag{Payload: []byte{1, 2, 3, 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(8, PutRawEncoderHeader, WithSelfCheck(true))
			b.Push(&pairTag{A: 1}).Push(tt.rec).Push(newStringTag("x"))

			var verr *ValidationError
			require.ErrorAs(t, b.Err(), &verr)
			assert.ErrorIs(t, verr, ErrInvalidTerminator)
			assert.Equal(t, 24, verr.Offset)
			assert.Equal(t, 1, b.Count())
			assert.Equal(t, 24, b.Len())

			_, err := b.Finish(terminator{}, putTotalSize)
			assert.ErrorIs(t, err, ErrInvalidTerminator)
		})
	}
}

func TestBuilder_RegistryMinimum(t *testing.T) {
	reg := Registry{}.Register((*pairTag)(nil).RecordLayout())
	b := NewBuilder(8, PutRawEncoderHeader, WithReadBack(DecodeRawHeader, reg))
	b.Push(&opaqueTag{Kind: kindPair, Payload: []byte{1, 2, 3}})

	var verr *ValidationError
	require.ErrorAs(t, b.Err(), &verr)
	assert.ErrorIs(t, verr, ErrSizeBelowMinimum)
	assert.Equal(t, uint32(kindPair), verr.Kind)
	assert.Equal(t, uint32(11), verr.Size)
	assert.Equal(t, 16, verr.Limit)
	assert.Equal(t, 8, b.Len())

	b = NewBuilder(8, PutRawEncoderHeader, WithReadBack(DecodeRawHeader, reg))
	b.Push(&opaqueTag{Kind: kindPair, Payload: make([]byte, 8)})
	require.NoError(t, b.Err())
}

func TestBuilder_Validator(t *testing.T) {
	boom := errors.New("out of range")
	b := NewBuilder(8, PutRawEncoderHeader)
	b.Push(&opaqueTag{Kind: 0x99, Invalid: boom}).Push(&pairTag{})
	assert.ErrorIs(t, b.Err(), boom)
	assert.Equal(t, 0, b.Count())

	_, err := b.Finish(terminator{}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestBuilder_CapacityBelowPreamble(t *testing.T) {
	b := NewBuilder(16, PutRawEncoderHeader, WithCapacity(8))
	assert.ErrorIs(t, b.Err(), ErrAllocationFailed)

	_, err := b.Finish(terminator{}, nil)
	assert.ErrorIs(t, err, ErrAllocationFailed)

	b = NewBuilder(16, PutRawEncoderHeader, WithCapacity(24))
	require.NoError(t, b.Err())
	assert.Equal(t, 16, b.Len())
}

func TestRecordSize(t *testing.T) {
	tests := []struct {
		name    string
		payload int
		want    uint32
		wantErr bool
	}{
		{"empty", 0, 8, false},
		{"string", 15, 23, false},
		{"largest", math.MaxUint32 - HeaderLen, math.MaxUint32, false},
		{"one past largest", math.MaxUint32 - HeaderLen + 1, 0, true},
		{"int overflow", math.MaxInt, 0, true},
		{"negative", -1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := recordSize(tt.payload)
			if tt.wantErr {
				require.NotNil(t, err)
				assert.ErrorIs(t, err, ErrTailTooLarge)
				assert.Equal(t, math.MaxUint32, err.Limit)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuilder_SelfCheckDecodesWrittenHeader(t *testing.T) {
	wrongKind := func(b []byte, rec Encoder, size uint32) {
		PutRawHeader(b, rec.RecordLayout().Kind+1, size)
	}
	assert.Panics(t, func() {
		NewBuilder(8, wrongKind, WithSelfCheck(true)).Push(&pairTag{})
	})

	badTerminator := func(b []byte, rec Encoder, size uint32) {
		PutRawHeader(b, TerminatorKind, size)
	}
	assert.Panics(t, func() {
		NewBuilder(8, badTerminator, WithReadBack(DecodeRawHeader, nil), WithSelfCheck(true)).Push(&pairTag{})
	})

	reg := Registry{}.Register((*pairTag)(nil).RecordLayout())
	assert.NotPanics(t, func() {
		b := NewBuilder(8, PutRawEncoderHeader, WithReadBack(DecodeRawHeader, reg), WithSelfCheck(true))
		b.Push(&pairTag{A: 7}).Push(newStringTag("ok"))
		_, err := b.Finish(terminator{}, putTotalSize)
		assert.NoError(t, err)
	})
}
