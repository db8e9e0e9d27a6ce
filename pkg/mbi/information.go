package mbi

import (
	"errors"
	"fmt"

	"github.com/ssargent/mb2/pkg/codec"
)

// PreambleLen is the size of the {total_size u32, reserved u32} preamble.
const PreambleLen = 8

// MinSize is the smallest legal boot information: a preamble and an end tag.
const MinSize = PreambleLen + codec.HeaderLen

// BootInformation is a validated, read-only view of a Multiboot2 boot
// information structure. It borrows the buffer passed to Parse.
type BootInformation struct {
	view    codec.View
	tags    codec.Sequence[TagHeader]
	total   uint32
	count   int
	relaxed bool
}

// ParseOption configures Parse.
type ParseOption func(*parseOptions)

type parseOptions struct {
	relaxed bool
}

// WithRelaxedTermination accepts a tag list that has no end tag as long as
// the tags exactly fill total_size.
func WithRelaxedTermination() ParseOption {
	return func(o *parseOptions) {
		o.relaxed = true
	}
}

// Parse validates buf as boot information and walks every tag once. buf must
// be 8-byte aligned; see codec.Aligned for relocating unaligned input. On
// error no BootInformation is returned.
func Parse(buf []byte, opts ...ParseOption) (*BootInformation, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	v, err := codec.NewView(buf, MinSize)
	if err != nil {
		return nil, err
	}
	total, err := v.Uint32(0)
	if err != nil {
		return nil, err
	}
	if total < MinSize || total%codec.Alignment != 0 {
		return nil, &codec.ValidationError{Cause: ErrIllegalTotalSize, Offset: -1, Size: total, Limit: MinSize}
	}
	if uint64(total) > uint64(v.Len()) {
		return nil, &codec.ValidationError{Cause: codec.ErrSizeExceedsBuffer, Offset: -1, Size: total, Limit: v.Len()}
	}
	v, err = v.Truncate(int(total))
	if err != nil {
		return nil, err
	}

	seq := codec.NewSequence(v, PreambleLen, v.Len(), DecodeTagHeader, codec.WithRegistry(Registry))
	it := seq.Iter()
	count := 0
	for it.Next() {
		count++
	}
	switch it.State() {
	case codec.Failed:
		return nil, it.Err()
	case codec.Exhausted:
		if !o.relaxed {
			return nil, &codec.ValidationError{Cause: ErrMissingTerminator, Offset: it.Offset(), Limit: int(total)}
		}
	case codec.Terminated:
		if it.Offset() != v.Len() {
			return nil, &codec.ValidationError{Cause: ErrTrailingBytes, Offset: it.Offset(), Limit: int(total)}
		}
	}

	return &BootInformation{view: v, tags: seq, total: total, count: count, relaxed: o.relaxed}, nil
}

// Tags returns the tag sequence, end tag excluded.
func (bi *BootInformation) Tags() codec.Sequence[TagHeader] {
	return bi.tags
}

// TotalSize returns the validated total_size field.
func (bi *BootInformation) TotalSize() uint32 {
	return bi.total
}

// Bytes returns the structure bytes, total_size long.
func (bi *BootInformation) Bytes() []byte {
	return bi.view.Bytes()
}

// Count returns the number of tags, end tag excluded.
func (bi *BootInformation) Count() int {
	return bi.count
}

// Terminated reports whether the tag list ends in an end tag. It is false only
// for input accepted with WithRelaxedTermination.
func (bi *BootInformation) Terminated() bool {
	if !bi.relaxed {
		return true
	}
	it := bi.tags.Iter()
	for it.Next() {
	}
	return it.State() == codec.Terminated
}

// Has reports whether a tag of type t is present.
func (bi *BootInformation) Has(t TagType) bool {
	_, ok, _ := bi.tags.Find(uint32(t))
	return ok
}

// Get returns the first tag of type T. It fails with ErrTagNotFound when no
// such tag exists, or with the cast error when the tag is malformed.
func Get[T any, PT codec.Decoder[T]](bi *BootInformation) (T, error) {
	var zero T
	kind := PT(&zero).RecordLayout().Kind
	rec, ok, err := bi.tags.Find(kind)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrTagNotFound, TagType(kind))
	}
	return codec.Cast[T, PT](rec)
}

// All returns every tag of type T in buffer order. It stops at the first
// malformed tag.
func All[T any, PT codec.Decoder[T]](bi *BootInformation) ([]T, error) {
	var zero T
	kind := PT(&zero).RecordLayout().Kind
	var out []T
	it := bi.tags.Iter()
	for it.Next() {
		if it.Record().Kind() != kind {
			continue
		}
		v, err := codec.Cast[T, PT](it.Record())
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, it.Err()
}

// CommandLine returns the kernel command line.
func (bi *BootInformation) CommandLine() (string, error) {
	t, err := Get[CommandLine](bi)
	if err != nil {
		return "", err
	}
	return t.Text()
}

// BootLoaderName returns the boot loader name.
func (bi *BootInformation) BootLoaderName() (string, error) {
	t, err := Get[BootLoaderName](bi)
	if err != nil {
		return "", err
	}
	return t.Text()
}

// Modules returns every boot module tag in order.
func (bi *BootInformation) Modules() ([]Module, error) {
	return All[Module](bi)
}

// BasicMemoryInfo returns the lower and upper memory sizes.
func (bi *BootInformation) BasicMemoryInfo() (BasicMemoryInfo, error) {
	return Get[BasicMemoryInfo](bi)
}

// Bootdev returns the BIOS boot device.
func (bi *BootInformation) Bootdev() (Bootdev, error) {
	return Get[Bootdev](bi)
}

// MemoryMap returns the memory map.
func (bi *BootInformation) MemoryMap() (MemoryMap, error) {
	return Get[MemoryMap](bi)
}

// VBEInfo returns the VBE controller and mode information.
func (bi *BootInformation) VBEInfo() (VBEInfo, error) {
	return Get[VBEInfo](bi)
}

// Framebuffer returns the framebuffer description.
func (bi *BootInformation) Framebuffer() (Framebuffer, error) {
	return Get[Framebuffer](bi)
}

// ElfSections returns the kernel ELF section headers.
func (bi *BootInformation) ElfSections() (ElfSections, error) {
	return Get[ElfSections](bi)
}

// APM returns the APM table.
func (bi *BootInformation) APM() (APM, error) {
	return Get[APM](bi)
}

// EFISDT32 returns the 32-bit EFI system table pointer.
func (bi *BootInformation) EFISDT32() (EFISDT32, error) {
	return Get[EFISDT32](bi)
}

// EFISDT64 returns the 64-bit EFI system table pointer.
func (bi *BootInformation) EFISDT64() (EFISDT64, error) {
	return Get[EFISDT64](bi)
}

// SMBIOS returns every SMBIOS tag; boot loaders may pass more than one.
func (bi *BootInformation) SMBIOS() ([]SMBIOS, error) {
	return All[SMBIOS](bi)
}

// RSDPv1 returns the ACPI 1.0 RSDP.
func (bi *BootInformation) RSDPv1() (RSDPv1, error) {
	return Get[RSDPv1](bi)
}

// RSDPv2 returns the ACPI 2.0 RSDP.
func (bi *BootInformation) RSDPv2() (RSDPv2, error) {
	return Get[RSDPv2](bi)
}

// Network returns the DHCP ACK packet.
func (bi *BootInformation) Network() (Network, error) {
	return Get[Network](bi)
}

// EFIMemoryMap returns the UEFI memory map. While boot services are still
// active the map is stale, so it is reported as ErrBootServicesNotExited.
func (bi *BootInformation) EFIMemoryMap() (EFIMemoryMap, error) {
	if bi.EFIBootServicesNotExited() {
		return EFIMemoryMap{}, ErrBootServicesNotExited
	}
	return Get[EFIMemoryMap](bi)
}

// EFIBootServicesNotExited reports whether the boot loader left UEFI boot
// services running.
func (bi *BootInformation) EFIBootServicesNotExited() bool {
	return bi.Has(TagEFIBootServicesNotExited)
}

// EFIImageHandle32 returns the 32-bit EFI image handle.
func (bi *BootInformation) EFIImageHandle32() (EFIImageHandle32, error) {
	return Get[EFIImageHandle32](bi)
}

// EFIImageHandle64 returns the 64-bit EFI image handle.
func (bi *BootInformation) EFIImageHandle64() (EFIImageHandle64, error) {
	return Get[EFIImageHandle64](bi)
}

// ImageLoadBase returns the physical address the image was loaded at.
func (bi *BootInformation) ImageLoadBase() (ImageLoadBase, error) {
	return Get[ImageLoadBase](bi)
}

// IsNotFound reports whether err means a tag was absent rather than malformed.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTagNotFound)
}
