package mbi

import (
	"github.com/ssargent/mb2/pkg/codec"
)

// Registry holds the layout of every tag type this package decodes. A parse
// rejects known tags that are smaller than their layout allows.
var Registry = newRegistry()

func newRegistry() codec.Registry {
	reg := codec.Registry{}
	for _, t := range catalogue {
		reg.Register(t.layout)
	}
	return reg
}

type entry struct {
	layout codec.Layout
	decode func(Record) (codec.Encoder, error)
}

func entryFor[T any, PT interface {
	codec.Decoder[T]
	codec.Encoder
}]() entry {
	var zero T
	return entry{
		layout: PT(&zero).RecordLayout(),
		decode: func(r Record) (codec.Encoder, error) {
			v, err := codec.Cast[T, PT](r)
			if err != nil {
				return nil, err
			}
			return PT(&v), nil
		},
	}
}

var catalogue = map[TagType]entry{
	TagEnd:                      entryFor[End](),
	TagCommandLine:              entryFor[CommandLine](),
	TagBootLoaderName:           entryFor[BootLoaderName](),
	TagModule:                   entryFor[Module](),
	TagBasicMemoryInfo:          entryFor[BasicMemoryInfo](),
	TagBootdev:                  entryFor[Bootdev](),
	TagMemoryMap:                entryFor[MemoryMap](),
	TagVBE:                      entryFor[VBEInfo](),
	TagFramebuffer:              entryFor[Framebuffer](),
	TagElfSections:              entryFor[ElfSections](),
	TagAPM:                      entryFor[APM](),
	TagEFISDT32:                 entryFor[EFISDT32](),
	TagEFISDT64:                 entryFor[EFISDT64](),
	TagSMBIOS:                   entryFor[SMBIOS](),
	TagRSDPv1:                   entryFor[RSDPv1](),
	TagRSDPv2:                   entryFor[RSDPv2](),
	TagNetwork:                  entryFor[Network](),
	TagEFIMemoryMap:             entryFor[EFIMemoryMap](),
	TagEFIBootServicesNotExited: entryFor[EFIBootServicesNotExited](),
	TagEFIImageHandle32:         entryFor[EFIImageHandle32](),
	TagEFIImageHandle64:         entryFor[EFIImageHandle64](),
	TagImageLoadBase:            entryFor[ImageLoadBase](),
}

// Decode casts r to the concrete tag type registered for its type. Tags of
// unknown types decode to *Unknown.
func Decode(r Record) (codec.Encoder, error) {
	e, ok := catalogue[r.Header().Type]
	if !ok {
		return &Unknown{Type: r.Header().Type, Payload: r.Payload()}, nil
	}
	return e.decode(r)
}
