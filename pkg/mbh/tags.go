package mbh

import (
	"fmt"
	"strconv"

	"github.com/ssargent/mb2/pkg/codec"
	"github.com/ssargent/mb2/pkg/mbi"
)

const hdr = codec.HeaderLen

// End terminates the header tag list.
type End struct{}

func (*End) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagEnd), FixedSize: hdr}
}

func (*End) DecodeRecord(codec.Body) error   { return nil }
func (*End) AppendPayload(dst []byte) []byte { return dst }

// InformationRequest lists the boot information tags the image wants.
type InformationRequest struct {
	Flags    TagFlags
	Requests []mbi.TagType
}

func (*InformationRequest) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagInformationRequest), FixedSize: hdr, ElemSize: 4}
}

func (t *InformationRequest) DecodeRecord(b codec.Body) error {
	t.Flags = flagsOf(b)
	t.Requests = make([]mbi.TagType, 0, b.Count())
	for i := 0; i < b.Count(); i++ {
		e, _ := b.Elem(i)
		t.Requests = append(t.Requests, mbi.TagType(codec.NewFieldReader(e).Uint32()))
	}
	return nil
}

func (t *InformationRequest) AppendPayload(dst []byte) []byte {
	for _, r := range t.Requests {
		dst = codec.AppendUint32(dst, uint32(r))
	}
	return dst
}

func (t *InformationRequest) TagFlags() TagFlags { return t.Flags }

// Address tells a boot loader where to load an image that is not ELF.
type Address struct {
	Flags       TagFlags
	HeaderAddr  uint32
	LoadAddr    uint32
	LoadEndAddr uint32
	BSSEndAddr  uint32
}

func (*Address) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagAddress), FixedSize: hdr + 16}
}

func (t *Address) DecodeRecord(b codec.Body) error {
	t.Flags = flagsOf(b)
	r := b.Fields()
	t.HeaderAddr = r.Uint32()
	t.LoadAddr = r.Uint32()
	t.LoadEndAddr = r.Uint32()
	t.BSSEndAddr = r.Uint32()
	return r.Err()
}

func (t *Address) AppendPayload(dst []byte) []byte {
	dst = codec.AppendUint32(dst, t.HeaderAddr)
	dst = codec.AppendUint32(dst, t.LoadAddr)
	dst = codec.AppendUint32(dst, t.LoadEndAddr)
	return codec.AppendUint32(dst, t.BSSEndAddr)
}

func (t *Address) TagFlags() TagFlags { return t.Flags }

// entryPoint is the shared layout of the three entry point tags.
type entryPoint struct {
	Flags TagFlags
	Entry uint32
}

func (t *entryPoint) decode(b codec.Body) error {
	t.Flags = flagsOf(b)
	r := b.Fields()
	t.Entry = r.Uint32()
	return r.Err()
}

func (t *entryPoint) AppendPayload(dst []byte) []byte {
	return codec.AppendUint32(dst, t.Entry)
}

func (t *entryPoint) TagFlags() TagFlags { return t.Flags }

// EntryAddress is the physical address the boot loader jumps to.
type EntryAddress entryPoint

func (*EntryAddress) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagEntryAddress), FixedSize: hdr + 4}
}

func (t *EntryAddress) DecodeRecord(b codec.Body) error  { return (*entryPoint)(t).decode(b) }
func (t *EntryAddress) AppendPayload(dst []byte) []byte { return (*entryPoint)(t).AppendPayload(dst) }
func (t *EntryAddress) TagFlags() TagFlags              { return t.Flags }

// EntryEFI32 is the entry point for EFI i386 machines with boot services
// still running.
type EntryEFI32 entryPoint

func (*EntryEFI32) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagEntryEFI32), FixedSize: hdr + 4}
}

func (t *EntryEFI32) DecodeRecord(b codec.Body) error  { return (*entryPoint)(t).decode(b) }
func (t *EntryEFI32) AppendPayload(dst []byte) []byte { return (*entryPoint)(t).AppendPayload(dst) }
func (t *EntryEFI32) TagFlags() TagFlags              { return t.Flags }

// EntryEFI64 is the entry point for EFI amd64 machines with boot services
// still running.
type EntryEFI64 entryPoint

func (*EntryEFI64) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagEntryEFI64), FixedSize: hdr + 4}
}

func (t *EntryEFI64) DecodeRecord(b codec.Body) error  { return (*entryPoint)(t).decode(b) }
func (t *EntryEFI64) AppendPayload(dst []byte) []byte { return (*entryPoint)(t).AppendPayload(dst) }
func (t *EntryEFI64) TagFlags() TagFlags              { return t.Flags }

// ConsoleFlagBits are the bits of the console flags tag.
type ConsoleFlagBits uint32

const (
	ConsoleRequired  ConsoleFlagBits = 1 << 0
	EGATextSupported ConsoleFlagBits = 1 << 1
)

// ConsoleFlags describes the console the image expects.
type ConsoleFlags struct {
	Flags   TagFlags
	Console ConsoleFlagBits
}

func (*ConsoleFlags) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagConsoleFlags), FixedSize: hdr + 4}
}

func (t *ConsoleFlags) DecodeRecord(b codec.Body) error {
	t.Flags = flagsOf(b)
	r := b.Fields()
	t.Console = ConsoleFlagBits(r.Uint32())
	return r.Err()
}

func (t *ConsoleFlags) AppendPayload(dst []byte) []byte {
	return codec.AppendUint32(dst, uint32(t.Console))
}

func (t *ConsoleFlags) TagFlags() TagFlags { return t.Flags }

// Framebuffer states the preferred video mode. Zero means no preference.
type Framebuffer struct {
	Flags  TagFlags
	Width  uint32
	Height uint32
	Depth  uint32
}

func (*Framebuffer) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagFramebuffer), FixedSize: hdr + 12}
}

func (t *Framebuffer) DecodeRecord(b codec.Body) error {
	t.Flags = flagsOf(b)
	r := b.Fields()
	t.Width = r.Uint32()
	t.Height = r.Uint32()
	t.Depth = r.Uint32()
	return r.Err()
}

func (t *Framebuffer) AppendPayload(dst []byte) []byte {
	dst = codec.AppendUint32(dst, t.Width)
	dst = codec.AppendUint32(dst, t.Height)
	return codec.AppendUint32(dst, t.Depth)
}

func (t *Framebuffer) TagFlags() TagFlags { return t.Flags }

// ModuleAlign requests page-aligned modules.
type ModuleAlign struct {
	Flags TagFlags
}

func (*ModuleAlign) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagModuleAlign), FixedSize: hdr}
}

func (t *ModuleAlign) DecodeRecord(b codec.Body) error {
	t.Flags = flagsOf(b)
	return nil
}

func (*ModuleAlign) AppendPayload(dst []byte) []byte { return dst }
func (t *ModuleAlign) TagFlags() TagFlags            { return t.Flags }

// EFIBootServices asks the boot loader to leave EFI boot services running.
type EFIBootServices struct {
	Flags TagFlags
}

func (*EFIBootServices) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagEFIBootServices), FixedSize: hdr}
}

func (t *EFIBootServices) DecodeRecord(b codec.Body) error {
	t.Flags = flagsOf(b)
	return nil
}

func (*EFIBootServices) AppendPayload(dst []byte) []byte { return dst }
func (t *EFIBootServices) TagFlags() TagFlags            { return t.Flags }

// LoadPreference tells the boot loader where to place a relocatable image.
type LoadPreference uint32

const (
	PreferNone LoadPreference = 0
	PreferLow  LoadPreference = 1
	PreferHigh LoadPreference = 2
)

func (p LoadPreference) String() string {
	switch p {
	case PreferNone:
		return "none"
	case PreferLow:
		return "low"
	case PreferHigh:
		return "high"
	default:
		return "unknown(" + strconv.FormatUint(uint64(p), 10) + ")"
	}
}

// Relocatable marks the image as loadable anywhere within
// [MinAddr, MaxAddr] at the given alignment.
type Relocatable struct {
	Flags      TagFlags
	MinAddr    uint32
	MaxAddr    uint32
	Align      uint32
	Preference LoadPreference
}

func (*Relocatable) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagRelocatable), FixedSize: hdr + 16}
}

func (t *Relocatable) DecodeRecord(b codec.Body) error {
	t.Flags = flagsOf(b)
	r := b.Fields()
	t.MinAddr = r.Uint32()
	t.MaxAddr = r.Uint32()
	t.Align = r.Uint32()
	t.Preference = LoadPreference(r.Uint32())
	return r.Err()
}

func (t *Relocatable) AppendPayload(dst []byte) []byte {
	dst = codec.AppendUint32(dst, t.MinAddr)
	dst = codec.AppendUint32(dst, t.MaxAddr)
	dst = codec.AppendUint32(dst, t.Align)
	return codec.AppendUint32(dst, uint32(t.Preference))
}

func (t *Relocatable) TagFlags() TagFlags { return t.Flags }

// Unknown is a header tag of a type this package does not decode.
type Unknown struct {
	Type    TagType
	Flags   TagFlags
	Payload []byte
}

func (t *Unknown) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(t.Type), FixedSize: hdr}
}

func (t *Unknown) AppendPayload(dst []byte) []byte {
	return append(dst, t.Payload...)
}

// Validate refuses types that have a concrete tag in this package.
func (t *Unknown) Validate() error {
	if t.Type.Known() {
		return fmt.Errorf("%w: %s", ErrCataloguedType, t.Type)
	}
	return nil
}

func (t *Unknown) TagFlags() TagFlags { return t.Flags }
