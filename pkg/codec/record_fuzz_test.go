//go:build fuzz
// +build fuzz

package codec

import (
	"testing"
)

// FuzzSequence_Walk feeds arbitrary bytes through a full walk and every cast.
// Malformed input must be reported, never panic or read out of bounds.
func FuzzSequence_Walk(f *testing.F) {
	f.Add(record(TerminatorKind, 8))
	f.Add(concat(record(kindPair, 16, make([]byte, 8)...), record(TerminatorKind, 8)))
	f.Add(record(kindArray, 28, make([]byte, 20)...))
	f.Add(record(kindString, 4))
	f.Add([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 1<<16 {
			t.Skip("input too large")
		}
		seq := rawSequence(aligned(data))
		it := seq.Iter()
		for it.Next() {
			rec := it.Record()
			if len(rec.Bytes()) != int(rec.Size()) {
				t.Fatalf("record borrows %d bytes, declares %d", len(rec.Bytes()), rec.Size())
			}
			_, _ = Cast[pairTag](rec)
			_, _ = Cast[arrayTag](rec)
			if s, err := Cast[stringTag](rec); err == nil {
				_, _ = s.Text()
			}
		}
		if it.State() == Failed && it.Err() == nil {
			t.Fatal("failed walk without an error")
		}
		if it.State() == Positioned {
			t.Fatal("walk stopped while positioned")
		}
	})
}

// FuzzBuilder_RoundTrip checks that anything the builder writes reads back.
func FuzzBuilder_RoundTrip(f *testing.F) {
	f.Add(uint32(1), uint32(2), "hello")
	f.Add(uint32(0), uint32(0), "")

	f.Fuzz(func(t *testing.T, a, b uint32, s string) {
		bld := NewBuilder(8, PutRawEncoderHeader, WithSelfCheck(true))
		bld.Push(&pairTag{A: a, B: b}).Push(newStringTag(s))
		buf, err := bld.Finish(terminator{}, nil)
		if err != nil {
			t.Fatalf("Finish failed: %v", err)
		}
		v, err := NewView(buf, 16)
		if err != nil {
			t.Fatalf("NewView failed: %v", err)
		}
		recs, state, err := NewSequence(v, 8, v.Len(), DecodeRawHeader).Collect()
		if err != nil || state != Terminated || len(recs) != 2 {
			t.Fatalf("walk: state=%v err=%v records=%d", state, err, len(recs))
		}
		got, err := Cast[pairTag](recs[0])
		if err != nil || got.A != a || got.B != b {
			t.Fatalf("pair mismatch: %+v %v", got, err)
		}
	})
}
