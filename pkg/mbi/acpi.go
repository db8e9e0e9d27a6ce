package mbi

import (
	"github.com/ssargent/mb2/pkg/codec"
)

// RSDPSignature is the signature every ACPI root system description pointer
// starts with.
var RSDPSignature = [8]byte{'R', 'S', 'D', ' ', 'P', 'T', 'R', ' '}

const (
	rsdpV1Len = 20
	rsdpV2Len = 36
)

// RSDPv1 is a copy of the ACPI 1.0 root system description pointer.
type RSDPv1 struct {
	Signature   [8]byte
	Checksum    uint8
	OEMID       [6]byte
	Revision    uint8
	RSDTAddress uint32
}

// NewRSDPv1 returns a pointer with the standard signature and a checksum
// computed over its fields.
func NewRSDPv1(oemID [6]byte, revision uint8, rsdt uint32) *RSDPv1 {
	t := &RSDPv1{Signature: RSDPSignature, OEMID: oemID, Revision: revision, RSDTAddress: rsdt}
	t.Checksum = -checksum8(t.appendFields(nil))
	return t
}

func (*RSDPv1) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagRSDPv1), FixedSize: hdr + rsdpV1Len}
}

func (t *RSDPv1) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	copy(t.Signature[:], r.Bytes(8))
	t.Checksum = r.Uint8()
	copy(t.OEMID[:], r.Bytes(6))
	t.Revision = r.Uint8()
	t.RSDTAddress = r.Uint32()
	return r.Err()
}

func (t *RSDPv1) appendFields(dst []byte) []byte {
	dst = append(dst, t.Signature[:]...)
	dst = codec.AppendUint8(dst, t.Checksum)
	dst = append(dst, t.OEMID[:]...)
	dst = codec.AppendUint8(dst, t.Revision)
	return codec.AppendUint32(dst, t.RSDTAddress)
}

func (t *RSDPv1) AppendPayload(dst []byte) []byte {
	return t.appendFields(dst)
}

// SignatureValid reports whether the signature reads "RSD PTR ".
func (t *RSDPv1) SignatureValid() bool {
	return t.Signature == RSDPSignature
}

// ChecksumValid reports whether the 20 bytes of the structure sum to zero.
func (t *RSDPv1) ChecksumValid() bool {
	return checksum8(t.appendFields(nil)) == 0
}

// RSDPv2 is a copy of the ACPI 2.0+ root system description pointer.
type RSDPv2 struct {
	RSDPv1
	Length      uint32
	XSDTAddress uint64
	ExtChecksum uint8
}

// NewRSDPv2 returns a pointer with both checksums computed.
func NewRSDPv2(oemID [6]byte, revision uint8, rsdt uint32, xsdt uint64) *RSDPv2 {
	t := &RSDPv2{
		RSDPv1:      *NewRSDPv1(oemID, revision, rsdt),
		Length:      rsdpV2Len,
		XSDTAddress: xsdt,
	}
	t.ExtChecksum = -checksum8(t.appendFields(nil))
	return t
}

func (*RSDPv2) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagRSDPv2), FixedSize: hdr + rsdpV2Len}
}

func (t *RSDPv2) DecodeRecord(b codec.Body) error {
	if err := t.RSDPv1.DecodeRecord(b); err != nil {
		return err
	}
	r := b.Fields()
	r.Skip(rsdpV1Len)
	t.Length = r.Uint32()
	t.XSDTAddress = r.Uint64()
	t.ExtChecksum = r.Uint8()
	r.Skip(3)
	return r.Err()
}

func (t *RSDPv2) appendFields(dst []byte) []byte {
	dst = t.RSDPv1.appendFields(dst)
	dst = codec.AppendUint32(dst, t.Length)
	dst = codec.AppendUint64(dst, t.XSDTAddress)
	dst = codec.AppendUint8(dst, t.ExtChecksum)
	return codec.AppendZeros(dst, 3)
}

func (t *RSDPv2) AppendPayload(dst []byte) []byte {
	return t.appendFields(dst)
}

// ChecksumValid reports whether both the ACPI 1.0 checksum and the extended
// checksum over the whole structure are valid.
func (t *RSDPv2) ChecksumValid() bool {
	return t.RSDPv1.ChecksumValid() && checksum8(t.appendFields(nil)) == 0
}

func checksum8(b []byte) uint8 {
	var sum uint8
	for _, c := range b {
		sum += c
	}
	return sum
}
