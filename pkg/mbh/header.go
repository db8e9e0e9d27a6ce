package mbh

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ssargent/mb2/pkg/codec"
)

// Magic is the first word of every Multiboot2 header.
const Magic uint32 = 0xE85250D6

// PreambleLen is the size of the {magic, architecture, header_length,
// checksum} preamble.
const PreambleLen = 16

// MinSize is the smallest legal header: a preamble and an end tag.
const MinSize = PreambleLen + codec.HeaderLen

// SearchLimit is how far into an image Find looks for a header.
const SearchLimit = 32768

// Checksum returns the checksum word that makes the four preamble words sum
// to zero modulo 2^32.
func Checksum(arch Arch, length uint32) uint32 {
	return -(Magic + uint32(arch) + length)
}

// Header is a validated, read-only view of a Multiboot2 header. It borrows the
// buffer passed to Parse.
type Header struct {
	view     codec.View
	tags     codec.Sequence[TagHeader]
	arch     Arch
	length   uint32
	checksum uint32
	count    int
}

// Parse validates buf as a Multiboot2 header starting at offset 0. buf must be
// 8-byte aligned and may extend past header_length.
func Parse(buf []byte) (*Header, error) {
	v, err := codec.NewView(buf, MinSize)
	if err != nil {
		return nil, err
	}
	magic, _ := v.Uint32(0)
	arch, _ := v.Uint32(4)
	length, _ := v.Uint32(8)
	checksum, _ := v.Uint32(12)

	if magic != Magic {
		return nil, &codec.ValidationError{Cause: ErrBadMagic, Offset: -1}
	}
	if magic+arch+length+checksum != 0 {
		return nil, &codec.ValidationError{Cause: ErrBadChecksum, Offset: -1}
	}
	if length < MinSize || length%codec.Alignment != 0 {
		return nil, &codec.ValidationError{Cause: ErrIllegalLength, Offset: -1, Size: length, Limit: MinSize}
	}
	if uint64(length) > uint64(v.Len()) {
		return nil, &codec.ValidationError{Cause: codec.ErrSizeExceedsBuffer, Offset: -1, Size: length, Limit: v.Len()}
	}
	v, err = v.Truncate(int(length))
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
		return nil, &codec.ValidationError{Cause: ErrMissingTerminator, Offset: it.Offset(), Limit: int(length)}
	}
	if it.Offset() != v.Len() {
		return nil, &codec.ValidationError{Cause: ErrTrailingBytes, Offset: it.Offset(), Limit: int(length)}
	}

	return &Header{
		view:     v,
		tags:     seq,
		arch:     Arch(arch),
		length:   length,
		checksum: checksum,
		count:    count,
	}, nil
}

// Find locates and parses the header of a kernel image. Candidates are tried
// at every 8-byte offset within the first SearchLimit bytes; a magic word
// followed by a bad checksum is skipped. The returned offset is relative to
// image. Unaligned images are copied before parsing.
func Find(image []byte) (*Header, int, error) {
	limit := min(len(image), SearchLimit)
	for off := 0; off+MinSize <= len(image) && off < limit; off += codec.Alignment {
		w := func(i int) uint32 {
			return binary.LittleEndian.Uint32(image[off+i:])
		}
		if w(0) != Magic || w(0)+w(4)+w(8)+w(12) != 0 {
			continue
		}
		h, err := Parse(codec.Aligned(image[off:]))
		if err != nil {
			return nil, off, fmt.Errorf("header at offset %#x: %w", off, err)
		}
		return h, off, nil
	}
	return nil, -1, ErrHeaderNotFound
}

// Arch returns the architecture field.
func (h *Header) Arch() Arch {
	return h.arch
}

// Length returns the validated header_length field.
func (h *Header) Length() uint32 {
	return h.length
}

// Checksum returns the checksum field as stored.
func (h *Header) Checksum() uint32 {
	return h.checksum
}

// Tags returns the tag sequence, end tag excluded.
func (h *Header) Tags() codec.Sequence[TagHeader] {
	return h.tags
}

// Bytes returns the header bytes, header_length long.
func (h *Header) Bytes() []byte {
	return h.view.Bytes()
}

// Count returns the number of tags, end tag excluded.
func (h *Header) Count() int {
	return h.count
}

// Has reports whether a tag of type t is present.
func (h *Header) Has(t TagType) bool {
	_, ok, _ := h.tags.Find(uint32(t))
	return ok
}

// Get returns the first header tag of type T.
func Get[T any, PT codec.Decoder[T]](h *Header) (T, error) {
	var zero T
	kind := PT(&zero).RecordLayout().Kind
	rec, ok, err := h.tags.Find(kind)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrTagNotFound, TagType(kind))
	}
	return codec.Cast[T, PT](rec)
}

// All returns every header tag of type T in buffer order.
func All[T any, PT codec.Decoder[T]](h *Header) ([]T, error) {
	var zero T
	kind := PT(&zero).RecordLayout().Kind
	var out []T
	it := h.tags.Iter()
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

// InformationRequests returns every information request tag.
func (h *Header) InformationRequests() ([]InformationRequest, error) {
	return All[InformationRequest](h)
}

// Address returns the load address tag.
func (h *Header) Address() (Address, error) {
	return Get[Address](h)
}

// EntryAddress returns the entry address tag.
func (h *Header) EntryAddress() (EntryAddress, error) {
	return Get[EntryAddress](h)
}

// EntryEFI32 returns the EFI i386 entry address tag.
func (h *Header) EntryEFI32() (EntryEFI32, error) {
	return Get[EntryEFI32](h)
}

// EntryEFI64 returns the EFI amd64 entry address tag.
func (h *Header) EntryEFI64() (EntryEFI64, error) {
	return Get[EntryEFI64](h)
}

// ConsoleFlags returns the console flags tag.
func (h *Header) ConsoleFlags() (ConsoleFlags, error) {
	return Get[ConsoleFlags](h)
}

// Framebuffer returns the preferred framebuffer mode.
func (h *Header) Framebuffer() (Framebuffer, error) {
	return Get[Framebuffer](h)
}

// ModuleAlign reports whether the image requests page-aligned modules.
func (h *Header) ModuleAlign() bool {
	return h.Has(TagModuleAlign)
}

// EFIBootServices reports whether the image wants EFI boot services left
// running.
func (h *Header) EFIBootServices() bool {
	return h.Has(TagEFIBootServices)
}

// Relocatable returns the relocation constraints.
func (h *Header) Relocatable() (Relocatable, error) {
	return Get[Relocatable](h)
}

// UnsupportedRequired returns the types of required tags this package does
// not know. A boot loader must refuse an image that carries any.
func (h *Header) UnsupportedRequired() []TagType {
	var out []TagType
	it := h.tags.Iter()
	for it.Next() {
		th := it.Record().Header()
		if _, known := catalogue[th.Type]; !known && !th.Flags.IsOptional() {
			out = append(out, th.Type)
		}
	}
	return out
}

// IsNotFound reports whether err means a tag was absent rather than malformed.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTagNotFound)
}
