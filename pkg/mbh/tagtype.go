package mbh

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/ssargent/mb2/pkg/codec"
)

// Arch is the CPU instruction set architecture the image targets.
type Arch uint32

const (
	ArchI386   Arch = 0
	ArchMIPS32 Arch = 4
)

func (a Arch) String() string {
	switch a {
	case ArchI386:
		return "i386"
	case ArchMIPS32:
		return "mips32"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(a))
	}
}

// ParseArch resolves an architecture name as returned by String.
func ParseArch(name string) (Arch, error) {
	switch name {
	case "i386", "x86", "x86_64":
		return ArchI386, nil
	case "mips32", "mips":
		return ArchMIPS32, nil
	}
	return 0, fmt.Errorf("unknown architecture %q", name)
}

// TagType identifies a header tag.
type TagType uint16

const (
	TagEnd                TagType = 0
	TagInformationRequest TagType = 1
	TagAddress            TagType = 2
	TagEntryAddress       TagType = 3
	TagConsoleFlags       TagType = 4
	TagFramebuffer        TagType = 5
	TagModuleAlign        TagType = 6
	TagEFIBootServices    TagType = 7
	TagEntryEFI32         TagType = 8
	TagEntryEFI64         TagType = 9
	TagRelocatable        TagType = 10
)

var tagNames = map[TagType]string{
	TagEnd:                "end",
	TagInformationRequest: "information_request",
	TagAddress:            "address",
	TagEntryAddress:       "entry_address",
	TagConsoleFlags:       "console_flags",
	TagFramebuffer:        "framebuffer",
	TagModuleAlign:        "module_align",
	TagEFIBootServices:    "efi_bs",
	TagEntryEFI32:         "entry_address_efi32",
	TagEntryEFI64:         "entry_address_efi64",
	TagRelocatable:        "relocatable",
}

func (t TagType) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "custom(" + strconv.FormatUint(uint64(t), 10) + ")"
}

// Known reports whether t is defined by Multiboot2.
func (t TagType) Known() bool {
	_, ok := tagNames[t]
	return ok
}

// ParseTagType resolves a tag name as returned by String.
func ParseTagType(name string) (TagType, error) {
	for t, n := range tagNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown header tag type %q", name)
}

// TagFlags marks whether the boot loader must understand a tag.
type TagFlags uint16

const (
	Required TagFlags = 0
	Optional TagFlags = 1
)

// IsOptional reports whether a boot loader may ignore the tag.
func (f TagFlags) IsOptional() bool {
	return f&Optional != 0
}

func (f TagFlags) String() string {
	if f.IsOptional() {
		return "optional"
	}
	return "required"
}

// TagHeader is the {type u16, flags u16, size u32} prefix of a header tag.
type TagHeader struct {
	Type   TagType
	Flags  TagFlags
	Length uint32
}

func (h TagHeader) Kind() uint32 { return uint32(h.Type) }
func (h TagHeader) Size() uint32 { return h.Length }

// DecodeTagHeader is the codec.HeaderDecoder for header tags.
func DecodeTagHeader(b []byte) TagHeader {
	return TagHeader{
		Type:   TagType(binary.LittleEndian.Uint16(b[0:2])),
		Flags:  TagFlags(binary.LittleEndian.Uint16(b[2:4])),
		Length: binary.LittleEndian.Uint32(b[4:8]),
	}
}

// flagged is implemented by header tags that carry flags.
type flagged interface {
	TagFlags() TagFlags
}

// putTagHeader is the codec.HeaderWriter for header tags.
func putTagHeader(b []byte, rec codec.Encoder, size uint32) {
	var flags TagFlags
	if f, ok := rec.(flagged); ok {
		flags = f.TagFlags()
	}
	binary.LittleEndian.PutUint16(b[0:2], uint16(rec.RecordLayout().Kind))
	binary.LittleEndian.PutUint16(b[2:4], uint16(flags))
	binary.LittleEndian.PutUint32(b[4:8], size)
}

func flagsOf(b codec.Body) TagFlags {
	return DecodeTagHeader(b.Header()).Flags
}

// Record is a validated, undecoded header tag.
type Record = codec.Record[TagHeader]
