package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence_WalkToTerminator(t *testing.T) {
	buf := aligned(
		record(kindPair, 16, concat(u32(1), u32(2))...),
		record(kindString, 12, 'a', 'b', 'c', 0),
		record(0x7777, 9, 0xEE), // unknown kind stays opaque
		record(TerminatorKind, 8),
	)

	recs, state, err := rawSequence(buf).Collect()
	require.NoError(t, err)
	assert.Equal(t, Terminated, state)
	require.Len(t, recs, 3)

	assert.Equal(t, []uint32{kindPair, kindString, 0x7777},
		[]uint32{recs[0].Kind(), recs[1].Kind(), recs[2].Kind()})
	assert.Equal(t, []int{0, 16, 32}, []int{recs[0].Offset(), recs[1].Offset(), recs[2].Offset()})
	assert.Equal(t, []byte{0xEE}, recs[2].Payload())
}

func TestSequence_IteratorOffsetAfterTerminator(t *testing.T) {
	buf := aligned(record(kindString, 10, 'x', 0), record(TerminatorKind, 8), make([]byte, 8))
	it := rawSequence(buf).Iter()
	for it.Next() {
	}
	require.Equal(t, Terminated, it.State())
	assert.Equal(t, 24, it.Offset())
	assert.False(t, it.Next(), "Next after Terminated must stay false")
}

func TestSequence_Exhausted(t *testing.T) {
	buf := aligned(record(kindPair, 16, make([]byte, 8)...))
	recs, state, err := rawSequence(buf).Collect()
	require.NoError(t, err)
	assert.Equal(t, Exhausted, state)
	assert.Len(t, recs, 1)
}

func TestSequence_EmptyRange(t *testing.T) {
	_, state, err := rawSequence(AlignedBytes(0)).Collect()
	require.NoError(t, err)
	assert.Equal(t, Exhausted, state)
}

func TestSequence_Failures(t *testing.T) {
	testCases := []struct {
		name       string
		buf        []byte
		want       error
		wantOffset int
		wantBefore int
	}{
		{
			name: "size below header",
			buf:  concat(record(kindPair, 16, make([]byte, 8)...), record(kindPair, 4, make([]byte, 8)...)),
			want: ErrSizeBelowMinimum, wantOffset: 16, wantBefore: 1,
		},
		{
			name: "terminator with size 4",
			buf:  record(TerminatorKind, 4),
			want: ErrSizeBelowMinimum, wantOffset: 0,
		},
		{
			name: "terminator with size 16",
			buf:  record(TerminatorKind, 16, make([]byte, 8)...),
			want: ErrInvalidTerminator, wantOffset: 0,
		},
		{
			name: "size past the range",
			buf:  record(kindPair, 200, make([]byte, 8)...),
			want: ErrSizeExceedsBuffer, wantOffset: 0,
		},
		{
			name: "truncated header",
			buf:  concat(record(kindPair, 16, make([]byte, 8)...), make([]byte, 4)),
			want: ErrTruncatedHeader, wantOffset: 16, wantBefore: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recs, state, err := rawSequence(aligned(tc.buf)).Collect()
			assert.Equal(t, Failed, state)
			require.ErrorIs(t, err, tc.want)
			assert.Len(t, recs, tc.wantBefore)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.wantOffset, verr.Offset)
		})
	}
}

func TestSequence_PaddingOverrunsRange(t *testing.T) {
	// 12 declared bytes fit, the 16 padded bytes do not.
	buf := aligned(record(kindString, 12, 'a', 'b', 'c', 0))
	v, err := NewView(buf, 0)
	require.NoError(t, err)

	seq := NewSequence(v, 0, 12, DecodeRawHeader)
	_, state, err := seq.Collect()
	assert.Equal(t, Failed, state)
	assert.ErrorIs(t, err, ErrRecordOverrunsBuffer)
}

func TestSequence_RegistryMinimum(t *testing.T) {
	buf := aligned(record(kindPair, 12, make([]byte, 8)...), record(TerminatorKind, 8))
	v, err := NewView(buf, 0)
	require.NoError(t, err)

	open := NewSequence(v, 0, v.Len(), DecodeRawHeader)
	_, state, err := open.Collect()
	require.NoError(t, err)
	assert.Equal(t, Terminated, state)

	reg := Registry{}.Register((*pairTag)(nil).RecordLayout())
	strict := NewSequence(v, 0, v.Len(), DecodeRawHeader, WithRegistry(reg))
	_, state, err = strict.Collect()
	assert.Equal(t, Failed, state)
	assert.ErrorIs(t, err, ErrSizeBelowMinimum)
}

func TestSequence_Restartable(t *testing.T) {
	buf := aligned(
		record(kindString, 10, 'a', 0),
		record(kindString, 10, 'b', 0),
		record(TerminatorKind, 8),
	)
	seq := rawSequence(buf)

	first, _, err := seq.Collect()
	require.NoError(t, err)
	second, _, err := seq.Collect()
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Bytes(), second[i].Bytes())
	}
}

func TestSequence_Find(t *testing.T) {
	buf := aligned(
		record(kindString, 10, 'a', 0),
		record(kindPair, 16, concat(u32(3), u32(4))...),
		record(kindPair, 16, concat(u32(5), u32(6))...),
		record(TerminatorKind, 8),
	)
	seq := rawSequence(buf)

	rec, ok, err := seq.Find(kindPair)
	require.NoError(t, err)
	require.True(t, ok)
	got, err := Cast[pairTag](rec)
	require.NoError(t, err)
	assert.Equal(t, pairTag{A: 3, B: 4}, got, "Find must return the first match")

	_, ok, err = seq.Find(0x4242)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSequence_StartOffset(t *testing.T) {
	buf := aligned(make([]byte, 8), record(kindString, 10, 'z', 0), record(TerminatorKind, 8))
	v, err := NewView(buf, 0)
	require.NoError(t, err)

	recs, state, err := NewSequence(v, 8, v.Len(), DecodeRawHeader).Collect()
	require.NoError(t, err)
	assert.Equal(t, Terminated, state)
	require.Len(t, recs, 1)
	assert.Equal(t, 8, recs[0].Offset())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "terminated", Terminated.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", State(42).String())
}
