package mbi

import (
	"fmt"

	"github.com/ssargent/mb2/pkg/codec"
)

const hdr = codec.HeaderLen

// End terminates the tag list.
type End struct{}

func (*End) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagEnd), FixedSize: hdr}
}

func (*End) DecodeRecord(codec.Body) error   { return nil }
func (*End) AppendPayload(dst []byte) []byte { return dst }

// CommandLine holds the kernel command line. Raw keeps the NUL-terminated
// bytes as found in the buffer; Text decodes them.
type CommandLine struct {
	Raw []byte
}

// NewCommandLine returns a command line tag for s.
func NewCommandLine(s string) *CommandLine {
	return &CommandLine{Raw: codec.AppendString(nil, s)}
}

func (*CommandLine) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagCommandLine), FixedSize: hdr, MinSize: hdr + 1}
}

func (t *CommandLine) DecodeRecord(b codec.Body) error {
	t.Raw = b.Tail()
	return nil
}

func (t *CommandLine) AppendPayload(dst []byte) []byte {
	return append(dst, t.Raw...)
}

// Text returns the command line as UTF-8.
func (t *CommandLine) Text() (string, error) {
	return codec.ParseString(t.Raw)
}

// BootLoaderName holds the name of the boot loader.
type BootLoaderName struct {
	Raw []byte
}

// NewBootLoaderName returns a boot loader name tag for s.
func NewBootLoaderName(s string) *BootLoaderName {
	return &BootLoaderName{Raw: codec.AppendString(nil, s)}
}

func (*BootLoaderName) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagBootLoaderName), FixedSize: hdr, MinSize: hdr + 1}
}

func (t *BootLoaderName) DecodeRecord(b codec.Body) error {
	t.Raw = b.Tail()
	return nil
}

func (t *BootLoaderName) AppendPayload(dst []byte) []byte {
	return append(dst, t.Raw...)
}

// Text returns the boot loader name as UTF-8.
func (t *BootLoaderName) Text() (string, error) {
	return codec.ParseString(t.Raw)
}

// Module describes a boot module loaded into physical memory at
// [Start, End) together with its command line.
type Module struct {
	Start uint32
	End   uint32
	Raw   []byte
}

// NewModule returns a module tag for [start, end) with the given command line.
func NewModule(start, end uint32, cmdline string) *Module {
	return &Module{Start: start, End: end, Raw: codec.AppendString(nil, cmdline)}
}

func (*Module) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagModule), FixedSize: hdr + 8, MinSize: hdr + 9}
}

func (t *Module) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.Start = r.Uint32()
	t.End = r.Uint32()
	t.Raw = b.Tail()
	return r.Err()
}

func (t *Module) AppendPayload(dst []byte) []byte {
	dst = codec.AppendUint32(dst, t.Start)
	dst = codec.AppendUint32(dst, t.End)
	return append(dst, t.Raw...)
}

// CommandLine returns the module command line as UTF-8.
func (t *Module) CommandLine() (string, error) {
	return codec.ParseString(t.Raw)
}

// Len returns the module size in bytes.
func (t *Module) Len() uint32 {
	if t.End < t.Start {
		return 0
	}
	return t.End - t.Start
}

// BasicMemoryInfo reports lower and upper memory in KiB.
type BasicMemoryInfo struct {
	Lower uint32
	Upper uint32
}

func (*BasicMemoryInfo) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagBasicMemoryInfo), FixedSize: hdr + 8}
}

func (t *BasicMemoryInfo) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.Lower = r.Uint32()
	t.Upper = r.Uint32()
	return r.Err()
}

func (t *BasicMemoryInfo) AppendPayload(dst []byte) []byte {
	dst = codec.AppendUint32(dst, t.Lower)
	return codec.AppendUint32(dst, t.Upper)
}

// Bootdev identifies the BIOS boot device.
type Bootdev struct {
	BIOSDev   uint32
	Slice     uint32
	Partition uint32
}

func (*Bootdev) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagBootdev), FixedSize: hdr + 12}
}

func (t *Bootdev) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.BIOSDev = r.Uint32()
	t.Slice = r.Uint32()
	t.Partition = r.Uint32()
	return r.Err()
}

func (t *Bootdev) AppendPayload(dst []byte) []byte {
	dst = codec.AppendUint32(dst, t.BIOSDev)
	dst = codec.AppendUint32(dst, t.Slice)
	return codec.AppendUint32(dst, t.Partition)
}

// VBEInfo carries the VBE control and mode information blocks verbatim.
type VBEInfo struct {
	Mode             uint16
	InterfaceSegment uint16
	InterfaceOffset  uint16
	InterfaceLength  uint16
	ControlInfo      [512]byte
	ModeInfo         [256]byte
}

func (*VBEInfo) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagVBE), FixedSize: hdr + 8 + 512 + 256}
}

func (t *VBEInfo) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.Mode = r.Uint16()
	t.InterfaceSegment = r.Uint16()
	t.InterfaceOffset = r.Uint16()
	t.InterfaceLength = r.Uint16()
	copy(t.ControlInfo[:], r.Bytes(len(t.ControlInfo)))
	copy(t.ModeInfo[:], r.Bytes(len(t.ModeInfo)))
	return r.Err()
}

func (t *VBEInfo) AppendPayload(dst []byte) []byte {
	dst = codec.AppendUint16(dst, t.Mode)
	dst = codec.AppendUint16(dst, t.InterfaceSegment)
	dst = codec.AppendUint16(dst, t.InterfaceOffset)
	dst = codec.AppendUint16(dst, t.InterfaceLength)
	dst = append(dst, t.ControlInfo[:]...)
	return append(dst, t.ModeInfo[:]...)
}

// APM is the Advanced Power Management table.
type APM struct {
	Version   uint16
	CSeg      uint16
	Offset    uint32
	CSeg16    uint16
	DSeg      uint16
	Flags     uint16
	CSegLen   uint16
	CSeg16Len uint16
	DSegLen   uint16
}

func (*APM) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagAPM), FixedSize: hdr + 20}
}

func (t *APM) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.Version = r.Uint16()
	t.CSeg = r.Uint16()
	t.Offset = r.Uint32()
	t.CSeg16 = r.Uint16()
	t.DSeg = r.Uint16()
	t.Flags = r.Uint16()
	t.CSegLen = r.Uint16()
	t.CSeg16Len = r.Uint16()
	t.DSegLen = r.Uint16()
	return r.Err()
}

func (t *APM) AppendPayload(dst []byte) []byte {
	dst = codec.AppendUint16(dst, t.Version)
	dst = codec.AppendUint16(dst, t.CSeg)
	dst = codec.AppendUint32(dst, t.Offset)
	dst = codec.AppendUint16(dst, t.CSeg16)
	dst = codec.AppendUint16(dst, t.DSeg)
	dst = codec.AppendUint16(dst, t.Flags)
	dst = codec.AppendUint16(dst, t.CSegLen)
	dst = codec.AppendUint16(dst, t.CSeg16Len)
	return codec.AppendUint16(dst, t.DSegLen)
}

// EFISDT32 is the physical address of the 32-bit EFI system table.
type EFISDT32 struct {
	Pointer uint32
}

func (*EFISDT32) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagEFISDT32), FixedSize: hdr + 4}
}

func (t *EFISDT32) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.Pointer = r.Uint32()
	return r.Err()
}

func (t *EFISDT32) AppendPayload(dst []byte) []byte {
	return codec.AppendUint32(dst, t.Pointer)
}

// EFISDT64 is the physical address of the 64-bit EFI system table.
type EFISDT64 struct {
	Pointer uint64
}

func (*EFISDT64) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagEFISDT64), FixedSize: hdr + 8}
}

func (t *EFISDT64) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.Pointer = r.Uint64()
	return r.Err()
}

func (t *EFISDT64) AppendPayload(dst []byte) []byte {
	return codec.AppendUint64(dst, t.Pointer)
}

// SMBIOS carries a copy of the SMBIOS tables.
type SMBIOS struct {
	Major  uint8
	Minor  uint8
	Tables []byte
}

func (*SMBIOS) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagSMBIOS), FixedSize: hdr + 8}
}

func (t *SMBIOS) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.Major = r.Uint8()
	t.Minor = r.Uint8()
	r.Skip(6)
	t.Tables = b.Tail()
	return r.Err()
}

func (t *SMBIOS) AppendPayload(dst []byte) []byte {
	dst = codec.AppendUint8(dst, t.Major)
	dst = codec.AppendUint8(dst, t.Minor)
	dst = codec.AppendZeros(dst, 6)
	return append(dst, t.Tables...)
}

// Network carries the DHCP ACK packet the boot loader received.
type Network struct {
	DHCPAck []byte
}

func (*Network) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagNetwork), FixedSize: hdr}
}

func (t *Network) DecodeRecord(b codec.Body) error {
	t.DHCPAck = b.Tail()
	return nil
}

func (t *Network) AppendPayload(dst []byte) []byte {
	return append(dst, t.DHCPAck...)
}

// EFIBootServicesNotExited is present when the boot loader handed over
// control without calling ExitBootServices.
type EFIBootServicesNotExited struct{}

func (*EFIBootServicesNotExited) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagEFIBootServicesNotExited), FixedSize: hdr}
}

func (*EFIBootServicesNotExited) DecodeRecord(codec.Body) error { return nil }

func (*EFIBootServicesNotExited) AppendPayload(dst []byte) []byte { return dst }

// EFIImageHandle32 is the 32-bit EFI image handle of the loaded image.
type EFIImageHandle32 struct {
	Pointer uint32
}

func (*EFIImageHandle32) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagEFIImageHandle32), FixedSize: hdr + 4}
}

func (t *EFIImageHandle32) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.Pointer = r.Uint32()
	return r.Err()
}

func (t *EFIImageHandle32) AppendPayload(dst []byte) []byte {
	return codec.AppendUint32(dst, t.Pointer)
}

// EFIImageHandle64 is the 64-bit EFI image handle of the loaded image.
type EFIImageHandle64 struct {
	Pointer uint64
}

func (*EFIImageHandle64) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagEFIImageHandle64), FixedSize: hdr + 8}
}

func (t *EFIImageHandle64) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.Pointer = r.Uint64()
	return r.Err()
}

func (t *EFIImageHandle64) AppendPayload(dst []byte) []byte {
	return codec.AppendUint64(dst, t.Pointer)
}

// ImageLoadBase is the physical address the image was loaded at, reported
// for relocatable images.
type ImageLoadBase struct {
	Address uint32
}

func (*ImageLoadBase) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagImageLoadBase), FixedSize: hdr + 4}
}

func (t *ImageLoadBase) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.Address = r.Uint32()
	return r.Err()
}

func (t *ImageLoadBase) AppendPayload(dst []byte) []byte {
	return codec.AppendUint32(dst, t.Address)
}

// Unknown is a tag whose type this package does not decode. Its payload is
// kept verbatim so it survives a parse and rebuild.
type Unknown struct {
	Type    TagType
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
