package mbi

import (
	"fmt"
	"strconv"

	"github.com/ssargent/mb2/pkg/codec"
)

// TagType identifies a boot information tag.
type TagType uint32

// Tag types defined by Multiboot2.
const (
	TagEnd                      TagType = 0
	TagCommandLine              TagType = 1
	TagBootLoaderName           TagType = 2
	TagModule                   TagType = 3
	TagBasicMemoryInfo          TagType = 4
	TagBootdev                  TagType = 5
	TagMemoryMap                TagType = 6
	TagVBE                      TagType = 7
	TagFramebuffer              TagType = 8
	TagElfSections              TagType = 9
	TagAPM                      TagType = 10
	TagEFISDT32                 TagType = 11
	TagEFISDT64                 TagType = 12
	TagSMBIOS                   TagType = 13
	TagRSDPv1                   TagType = 14
	TagRSDPv2                   TagType = 15
	TagNetwork                  TagType = 16
	TagEFIMemoryMap             TagType = 17
	TagEFIBootServicesNotExited TagType = 18
	TagEFIImageHandle32         TagType = 19
	TagEFIImageHandle64         TagType = 20
	TagImageLoadBase            TagType = 21
)

var tagNames = map[TagType]string{
	TagEnd:                      "end",
	TagCommandLine:              "cmdline",
	TagBootLoaderName:           "boot_loader_name",
	TagModule:                   "module",
	TagBasicMemoryInfo:          "basic_meminfo",
	TagBootdev:                  "bootdev",
	TagMemoryMap:                "mmap",
	TagVBE:                      "vbe",
	TagFramebuffer:              "framebuffer",
	TagElfSections:              "elf_sections",
	TagAPM:                      "apm",
	TagEFISDT32:                 "efi32",
	TagEFISDT64:                 "efi64",
	TagSMBIOS:                   "smbios",
	TagRSDPv1:                   "acpi_old",
	TagRSDPv2:                   "acpi_new",
	TagNetwork:                  "network",
	TagEFIMemoryMap:             "efi_mmap",
	TagEFIBootServicesNotExited: "efi_bs",
	TagEFIImageHandle32:         "efi32_ih",
	TagEFIImageHandle64:         "efi64_ih",
	TagImageLoadBase:            "load_base_addr",
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

// ParseTagType resolves a tag name as returned by String, or a plain decimal
// type id.
func ParseTagType(name string) (TagType, error) {
	for t, n := range tagNames {
		if n == name {
			return t, nil
		}
	}
	v, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown tag type %q", name)
	}
	return TagType(v), nil
}

// TagHeader is the {type u32, size u32} prefix of every boot information tag.
// Length covers the header and payload, excluding padding.
type TagHeader struct {
	Type   TagType
	Length uint32
}

func (h TagHeader) Kind() uint32 { return uint32(h.Type) }
func (h TagHeader) Size() uint32 { return h.Length }

// DecodeTagHeader is the codec.HeaderDecoder for boot information tags.
func DecodeTagHeader(b []byte) TagHeader {
	raw := codec.DecodeRawHeader(b)
	return TagHeader{Type: TagType(raw.Type), Length: raw.Length}
}

// Record is a validated, undecoded boot information tag.
type Record = codec.Record[TagHeader]
