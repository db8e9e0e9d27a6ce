package mbh

import (
	"github.com/ssargent/mb2/pkg/codec"
)

// Registry holds the layout of every header tag type this package decodes.
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
	TagEnd:                entryFor[End](),
	TagInformationRequest: entryFor[InformationRequest](),
	TagAddress:            entryFor[Address](),
	TagEntryAddress:       entryFor[EntryAddress](),
	TagConsoleFlags:       entryFor[ConsoleFlags](),
	TagFramebuffer:        entryFor[Framebuffer](),
	TagModuleAlign:        entryFor[ModuleAlign](),
	TagEFIBootServices:    entryFor[EFIBootServices](),
	TagEntryEFI32:         entryFor[EntryEFI32](),
	TagEntryEFI64:         entryFor[EntryEFI64](),
	TagRelocatable:        entryFor[Relocatable](),
}

// Decode casts r to the concrete header tag type registered for its type.
// Tags of unknown types decode to *Unknown.
func Decode(r Record) (codec.Encoder, error) {
	h := r.Header()
	e, ok := catalogue[h.Type]
	if !ok {
		return &Unknown{Type: h.Type, Flags: h.Flags, Payload: r.Payload()}, nil
	}
	return e.decode(r)
}
