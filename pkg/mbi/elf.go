package mbi

import (
	"fmt"

	"github.com/ssargent/mb2/pkg/codec"
)

// Section header sizes for ELF32 and ELF64 images.
const (
	ElfSection32Size = 40
	ElfSection64Size = 64
)

// ElfSectionType is the sh_type of a section header.
type ElfSectionType uint32

const (
	ElfSectionUnused         ElfSectionType = 0
	ElfSectionProgram        ElfSectionType = 1
	ElfSectionSymbolTable    ElfSectionType = 2
	ElfSectionStringTable    ElfSectionType = 3
	ElfSectionRela           ElfSectionType = 4
	ElfSectionHash           ElfSectionType = 5
	ElfSectionDynamic        ElfSectionType = 6
	ElfSectionNote           ElfSectionType = 7
	ElfSectionUninitialized  ElfSectionType = 8
	ElfSectionRel            ElfSectionType = 9
	ElfSectionReserved       ElfSectionType = 10
	ElfSectionDynamicSymbols ElfSectionType = 11
)

// ElfSection is a section header, widened to 64 bits for ELF32 images.
type ElfSection struct {
	NameIndex uint32
	Type      ElfSectionType
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntrySize uint64
}

// Flag bits of ElfSection.Flags.
const (
	ElfSectionWritable   = 0x1
	ElfSectionAllocated  = 0x2
	ElfSectionExecutable = 0x4
)

// Allocated reports whether the section occupies memory at run time.
func (s ElfSection) Allocated() bool {
	return s.Flags&ElfSectionAllocated != 0
}

// ElfSections holds the section header table of the loaded kernel image.
// Headers are kept raw; Sections decodes them.
type ElfSections struct {
	Count     uint32
	EntrySize uint32
	StrIndex  uint32
	Headers   []byte
}

func (*ElfSections) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagElfSections), FixedSize: hdr + 12}
}

func (t *ElfSections) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.Count = r.Uint32()
	t.EntrySize = r.Uint32()
	t.StrIndex = r.Uint32()
	t.Headers = b.Tail()
	return r.Err()
}

func (t *ElfSections) AppendPayload(dst []byte) []byte {
	dst = codec.AppendUint32(dst, t.Count)
	dst = codec.AppendUint32(dst, t.EntrySize)
	dst = codec.AppendUint32(dst, t.StrIndex)
	return append(dst, t.Headers...)
}

// Sections decodes the section headers, skipping unused entries. Count
// headers of EntrySize bytes must fit in the tag.
func (t *ElfSections) Sections() ([]ElfSection, error) {
	if t.EntrySize != ElfSection32Size && t.EntrySize != ElfSection64Size {
		return nil, fmt.Errorf("elf sections: unsupported entry size %d", t.EntrySize)
	}
	need := uint64(t.Count) * uint64(t.EntrySize)
	if need > uint64(len(t.Headers)) {
		return nil, &codec.ValidationError{
			Cause: codec.ErrSizeExceedsBuffer,
			Kind:  uint32(TagElfSections),
			Limit: len(t.Headers),
		}
	}
	stride := int(t.EntrySize)
	out := make([]ElfSection, 0, t.Count)
	for i := 0; i < int(t.Count); i++ {
		r := codec.NewFieldReader(t.Headers[i*stride : (i+1)*stride])
		var s ElfSection
		s.NameIndex = r.Uint32()
		s.Type = ElfSectionType(r.Uint32())
		if stride == ElfSection32Size {
			s.Flags = uint64(r.Uint32())
			s.Addr = uint64(r.Uint32())
			s.Offset = uint64(r.Uint32())
			s.Size = uint64(r.Uint32())
			s.Link = r.Uint32()
			s.Info = r.Uint32()
			s.AddrAlign = uint64(r.Uint32())
			s.EntrySize = uint64(r.Uint32())
		} else {
			s.Flags = r.Uint64()
			s.Addr = r.Uint64()
			s.Offset = r.Uint64()
			s.Size = r.Uint64()
			s.Link = r.Uint32()
			s.Info = r.Uint32()
			s.AddrAlign = r.Uint64()
			s.EntrySize = r.Uint64()
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		if s.Type == ElfSectionUnused {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// NewElfSections64 encodes 64-bit section headers. strIndex is the index of
// the section name string table.
func NewElfSections64(strIndex uint32, sections ...ElfSection) *ElfSections {
	var raw []byte
	for _, s := range sections {
		raw = codec.AppendUint32(raw, s.NameIndex)
		raw = codec.AppendUint32(raw, uint32(s.Type))
		raw = codec.AppendUint64(raw, s.Flags)
		raw = codec.AppendUint64(raw, s.Addr)
		raw = codec.AppendUint64(raw, s.Offset)
		raw = codec.AppendUint64(raw, s.Size)
		raw = codec.AppendUint32(raw, s.Link)
		raw = codec.AppendUint32(raw, s.Info)
		raw = codec.AppendUint64(raw, s.AddrAlign)
		raw = codec.AppendUint64(raw, s.EntrySize)
	}
	return &ElfSections{
		Count:     uint32(len(sections)),
		EntrySize: ElfSection64Size,
		StrIndex:  strIndex,
		Headers:   raw,
	}
}
