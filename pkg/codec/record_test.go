package codec

import (
	"errors"
	"testing"
)

func TestCast_PairRoundTrip(t *testing.T) {
	buf := aligned(record(kindPair, 16, concat(u32(7), u32(9))...))

	rec, err := ReadRecord(buf, DecodeRawHeader, nil)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	got, err := Cast[pairTag](rec)
	if err != nil {
		t.Fatalf("Cast failed: %v", err)
	}
	if got.A != 7 || got.B != 9 {
		t.Errorf("decoded %+v, want {A:7 B:9}", got)
	}
}

func TestCast_Errors(t *testing.T) {
	testCases := []struct {
		name string
		buf  []byte
		cast func(Record[RawHeader]) error
		want error
	}{
		{
			name: "kind mismatch",
			buf:  record(kindArray, 16, u64(1)...),
			cast: func(r Record[RawHeader]) error { _, err := Cast[pairTag](r); return err },
			want: ErrKindMismatch,
		},
		{
			name: "below fixed size",
			buf:  record(kindPair, 12, u32(1)...),
			cast: func(r Record[RawHeader]) error { _, err := Cast[pairTag](r); return err },
			want: ErrSizeBelowMinimum,
		},
		{
			name: "string without tail byte",
			buf:  record(kindString, 8),
			cast: func(r Record[RawHeader]) error { _, err := Cast[stringTag](r); return err },
			want: ErrSizeBelowMinimum,
		},
		{
			name: "tail of 20 bytes with 8-byte elements",
			buf:  record(kindArray, 28, make([]byte, 20)...),
			cast: func(r Record[RawHeader]) error { _, err := Cast[arrayTag](r); return err },
			want: ErrTailNotDivisible,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := ReadRecord(aligned(tc.buf), DecodeRawHeader, nil)
			if err != nil {
				t.Fatalf("ReadRecord failed: %v", err)
			}
			err = tc.cast(rec)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if verr.Offset != 0 {
				t.Errorf("expected offset 0, got %d", verr.Offset)
			}
		})
	}
}

func TestCast_ArrayTail(t *testing.T) {
	buf := aligned(record(kindArray, 32, concat(u64(1), u64(2), u64(3))...))
	rec, err := ReadRecord(buf, DecodeRawHeader, nil)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}

	got, err := Cast[arrayTag](rec)
	if err != nil {
		t.Fatalf("Cast failed: %v", err)
	}
	if len(got.Values) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(got.Values))
	}
	for i, want := range []uint64{1, 2, 3} {
		if got.Values[i] != want {
			t.Errorf("element %d: got %d, want %d", i, got.Values[i], want)
		}
	}
}

func TestCast_EmptyArrayTail(t *testing.T) {
	rec, err := ReadRecord(aligned(record(kindArray, 8)), DecodeRawHeader, nil)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	got, err := Cast[arrayTag](rec)
	if err != nil {
		t.Fatalf("Cast failed: %v", err)
	}
	if len(got.Values) != 0 {
		t.Errorf("expected no elements, got %d", len(got.Values))
	}
}

func TestCast_Idempotent(t *testing.T) {
	buf := aligned(record(kindString, 8+15, []byte("root=/dev/sda1\x00")...))
	rec, err := ReadRecord(buf, DecodeRawHeader, nil)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}

	first, err := Cast[stringTag](rec)
	if err != nil {
		t.Fatalf("first Cast failed: %v", err)
	}
	second, err := Cast[stringTag](rec)
	if err != nil {
		t.Fatalf("second Cast failed: %v", err)
	}
	a, _ := first.Text()
	b, _ := second.Text()
	if a != b || a != "root=/dev/sda1" {
		t.Errorf("casts disagree: %q vs %q", a, b)
	}
}

func TestReadRecord_SizeChecks(t *testing.T) {
	testCases := []struct {
		name string
		buf  []byte
		reg  Registry
		want error
	}{
		{"size below header", record(kindPair, 4, make([]byte, 8)...), nil, ErrSizeBelowMinimum},
		{"size past buffer", record(kindPair, 64, make([]byte, 8)...), nil, ErrSizeExceedsBuffer},
		{"size below registered minimum", record(kindPair, 12, make([]byte, 8)...), Registry{}.Register((*pairTag)(nil).RecordLayout()), ErrSizeBelowMinimum},
		{"max u32 size", record(kindPair, 0xffffffff, make([]byte, 8)...), nil, ErrSizeExceedsBuffer},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadRecord(aligned(tc.buf), DecodeRawHeader, tc.reg)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestReadRecord_BorrowsExactlySize(t *testing.T) {
	buf := aligned(record(kindString, 10, 'a', 0))
	rec, err := ReadRecord(buf, DecodeRawHeader, nil)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	if len(rec.Bytes()) != 10 {
		t.Errorf("record borrows %d bytes, want 10", len(rec.Bytes()))
	}
	if cap(rec.Bytes()) != 10 {
		t.Errorf("record capacity %d leaks past its size", cap(rec.Bytes()))
	}
	if string(rec.Payload()) != "a\x00" {
		t.Errorf("unexpected payload %q", rec.Payload())
	}
}

func TestCheck_MatchesCast(t *testing.T) {
	rec, err := ReadRecord(aligned(record(kindArray, 12, 1, 2, 3, 4)), DecodeRawHeader, nil)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	_, castErr := Cast[arrayTag](rec)
	checkErr := Check(rec, (*arrayTag)(nil).RecordLayout())
	if !errors.Is(castErr, ErrTailNotDivisible) || !errors.Is(checkErr, ErrTailNotDivisible) {
		t.Errorf("Cast=%v Check=%v, both want %v", castErr, checkErr, ErrTailNotDivisible)
	}
}

func TestBody_ElemBounds(t *testing.T) {
	rec, err := ReadRecord(aligned(record(kindArray, 16, u64(5)...)), DecodeRawHeader, nil)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	body, err := validateLayout(rec.Bytes(), 0, rec.Header(), (*arrayTag)(nil).RecordLayout())
	if err != nil {
		t.Fatalf("validateLayout failed: %v", err)
	}
	if _, ok := body.Elem(-1); ok {
		t.Error("Elem(-1) should fail")
	}
	if _, ok := body.Elem(1); ok {
		t.Error("Elem(1) should fail with one element")
	}
	if e, ok := body.Elem(0); !ok || len(e) != 8 {
		t.Errorf("Elem(0) = %v, %v", e, ok)
	}
}

func TestParseString(t *testing.T) {
	testCases := []struct {
		name    string
		in      []byte
		want    string
		wantErr error
	}{
		{"plain", []byte("hello\x00"), "hello", nil},
		{"empty", []byte{0}, "", nil},
		{"trailing garbage ignored", []byte("a\x00bc"), "a", nil},
		{"missing nul", []byte("abc"), "", ErrMissingNul},
		{"invalid utf8", []byte{0xff, 0xfe, 0}, "", ErrInvalidUTF8},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseString(tc.in)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFieldReader_OutOfBounds(t *testing.T) {
	r := NewFieldReader([]byte{1, 0, 0, 0, 2})
	if v := r.Uint32(); v != 1 {
		t.Errorf("Uint32 = %d, want 1", v)
	}
	if v := r.Uint32(); v != 0 {
		t.Errorf("short read returned %d, want 0", v)
	}
	if !errors.Is(r.Err(), ErrSizeExceedsBuffer) {
		t.Errorf("expected sticky ErrSizeExceedsBuffer, got %v", r.Err())
	}
	if v := r.Uint8(); v != 0 {
		t.Errorf("read after failure returned %d", v)
	}
}

func TestCauseName(t *testing.T) {
	if got := CauseName(nil); got != "none" {
		t.Errorf("CauseName(nil) = %q", got)
	}
	if got := CauseName(bufferError(ErrMisaligned, 8)); got != "misaligned" {
		t.Errorf("CauseName(misaligned) = %q", got)
	}
	if got := CauseName(errors.New("boom")); got != "other" {
		t.Errorf("CauseName(other) = %q", got)
	}
}
