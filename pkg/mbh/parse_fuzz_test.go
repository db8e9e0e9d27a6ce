//go:build fuzz
// +build fuzz

package mbh

import (
	"testing"

	"github.com/ssargent/mb2/pkg/codec"
)

func FuzzParse(f *testing.F) {
	b := NewBuilder(ArchI386)
	for _, t := range everyTag() {
		b.Push(t)
	}
	buf, err := b.Finish()
	if err != nil {
		f.Fatal(err)
	}
	f.Add(buf)
	f.Add(headerBytes(ArchMIPS32, 0, endTag))

	f.Fuzz(func(t *testing.T, data []byte) {
		h, err := Parse(codec.Aligned(data))
		if err != nil {
			if h != nil {
				t.Fatal("partial result returned with error")
			}
			return
		}
		if h.Length() > uint32(len(data)) {
			t.Fatalf("length %d past input %d", h.Length(), len(data))
		}
		it := h.Tags().Iter()
		for it.Next() {
			_, _ = Decode(it.Record())
		}
		if it.State() != codec.Terminated {
			t.Fatalf("accepted header walks to %s", it.State())
		}
		_, _ = h.InformationRequests()
		_ = h.UnsupportedRequired()
	})
}

func FuzzFind(f *testing.F) {
	hdr, err := NewBuilder(ArchI386).Push(&EntryAddress{Entry: 0x100000}).Finish()
	if err != nil {
		f.Fatal(err)
	}
	image := make([]byte, 256)
	copy(image[64:], hdr)
	f.Add(image)

	f.Fuzz(func(t *testing.T, data []byte) {
		h, off, err := Find(data)
		if err == nil && (off < 0 || off >= SearchLimit || off%codec.Alignment != 0 || h == nil) {
			t.Fatalf("bad result offset=%d header=%v", off, h)
		}
	})
}
