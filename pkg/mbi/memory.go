package mbi

import (
	"fmt"

	"github.com/ssargent/mb2/pkg/codec"
)

// MemoryAreaType classifies a memory map entry.
type MemoryAreaType uint32

const (
	MemoryAvailable         MemoryAreaType = 1
	MemoryReserved          MemoryAreaType = 2
	MemoryACPIReclaimable   MemoryAreaType = 3
	MemoryReservedHibernate MemoryAreaType = 4
	MemoryDefective         MemoryAreaType = 5
)

func (t MemoryAreaType) String() string {
	switch t {
	case MemoryAvailable:
		return "available"
	case MemoryReserved:
		return "reserved"
	case MemoryACPIReclaimable:
		return "acpi_reclaimable"
	case MemoryReservedHibernate:
		return "reserved_hibernate"
	case MemoryDefective:
		return "defective"
	default:
		return fmt.Sprintf("custom(%d)", uint32(t))
	}
}

// MemoryAreaSize is the size of one memory map entry.
const MemoryAreaSize = 24

// MemoryArea is one entry of the memory map.
type MemoryArea struct {
	Base   uint64
	Length uint64
	Type   MemoryAreaType
}

// End returns the first address past the area.
func (a MemoryArea) End() uint64 {
	return a.Base + a.Length
}

// MemoryMap is the BIOS-provided physical memory map.
type MemoryMap struct {
	EntryVersion uint32
	Areas        []MemoryArea
}

func (*MemoryMap) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagMemoryMap), FixedSize: hdr + 8, ElemSize: MemoryAreaSize}
}

func (t *MemoryMap) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	entrySize := r.Uint32()
	t.EntryVersion = r.Uint32()
	if err := r.Err(); err != nil {
		return err
	}
	if entrySize != MemoryAreaSize {
		return fmt.Errorf("%w: %d", ErrUnsupportedEntrySize, entrySize)
	}
	t.Areas = make([]MemoryArea, 0, b.Count())
	for i := 0; i < b.Count(); i++ {
		e, _ := b.Elem(i)
		er := codec.NewFieldReader(e)
		t.Areas = append(t.Areas, MemoryArea{
			Base:   er.Uint64(),
			Length: er.Uint64(),
			Type:   MemoryAreaType(er.Uint32()),
		})
	}
	return nil
}

func (t *MemoryMap) AppendPayload(dst []byte) []byte {
	dst = codec.AppendUint32(dst, MemoryAreaSize)
	dst = codec.AppendUint32(dst, t.EntryVersion)
	for _, a := range t.Areas {
		dst = codec.AppendUint64(dst, a.Base)
		dst = codec.AppendUint64(dst, a.Length)
		dst = codec.AppendUint32(dst, uint32(a.Type))
		dst = codec.AppendUint32(dst, 0)
	}
	return dst
}

// Available returns the areas usable by the operating system.
func (t *MemoryMap) Available() []MemoryArea {
	var out []MemoryArea
	for _, a := range t.Areas {
		if a.Type == MemoryAvailable {
			out = append(out, a)
		}
	}
	return out
}

// EFIMemoryDescVersion is the only EFI memory descriptor version decoded.
const EFIMemoryDescVersion = 1

// EFIMemoryDescSize is the size of the descriptor fields decoded; firmware
// usually reports a larger stride.
const EFIMemoryDescSize = 40

// EFIMemoryDesc is one UEFI memory descriptor.
type EFIMemoryDesc struct {
	Type          uint32
	PhysicalStart uint64
	VirtualStart  uint64
	Pages         uint64
	Attributes    uint64
}

// EFIMemoryMap is the UEFI memory map. Descriptors are DescSize bytes apart.
type EFIMemoryMap struct {
	DescSize    uint32
	DescVersion uint32
	Descriptors []EFIMemoryDesc
}

// NewEFIMemoryMap returns a map with the common 48-byte descriptor stride.
func NewEFIMemoryMap(descs ...EFIMemoryDesc) *EFIMemoryMap {
	return &EFIMemoryMap{DescSize: 48, DescVersion: EFIMemoryDescVersion, Descriptors: descs}
}

func (*EFIMemoryMap) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagEFIMemoryMap), FixedSize: hdr + 8}
}

func (t *EFIMemoryMap) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.DescSize = r.Uint32()
	t.DescVersion = r.Uint32()
	if err := r.Err(); err != nil {
		return err
	}
	if t.DescVersion != EFIMemoryDescVersion || t.DescSize < EFIMemoryDescSize {
		return fmt.Errorf("%w: version %d size %d", ErrUnsupportedDescriptor, t.DescVersion, t.DescSize)
	}
	tail := b.Tail()
	if len(tail) > 0 && uint64(t.DescSize) > uint64(len(tail)) {
		return fmt.Errorf("efi memory map of %d bytes with %d-byte descriptors: %w",
			len(tail), t.DescSize, codec.ErrTailNotDivisible)
	}
	stride := int(t.DescSize)
	if len(tail)%stride != 0 {
		return fmt.Errorf("efi memory map of %d bytes with %d-byte descriptors: %w",
			len(tail), stride, codec.ErrTailNotDivisible)
	}
	n := len(tail) / stride
	t.Descriptors = make([]EFIMemoryDesc, 0, n)
	for i := 0; i < n; i++ {
		dr := codec.NewFieldReader(tail[i*stride : (i+1)*stride])
		d := EFIMemoryDesc{Type: dr.Uint32()}
		dr.Skip(4)
		d.PhysicalStart = dr.Uint64()
		d.VirtualStart = dr.Uint64()
		d.Pages = dr.Uint64()
		d.Attributes = dr.Uint64()
		t.Descriptors = append(t.Descriptors, d)
	}
	return nil
}

func (t *EFIMemoryMap) AppendPayload(dst []byte) []byte {
	stride := int(max(t.DescSize, EFIMemoryDescSize))
	dst = codec.AppendUint32(dst, uint32(stride))
	dst = codec.AppendUint32(dst, t.DescVersion)
	for _, d := range t.Descriptors {
		dst = codec.AppendUint32(dst, d.Type)
		dst = codec.AppendUint32(dst, 0)
		dst = codec.AppendUint64(dst, d.PhysicalStart)
		dst = codec.AppendUint64(dst, d.VirtualStart)
		dst = codec.AppendUint64(dst, d.Pages)
		dst = codec.AppendUint64(dst, d.Attributes)
		dst = codec.AppendZeros(dst, stride-EFIMemoryDescSize)
	}
	return dst
}
