package mbi

import (
	"errors"

	"github.com/ssargent/mb2/pkg/codec"
)

var (
	ErrIllegalTotalSize       = errors.New("illegal boot information total size")
	ErrMissingTerminator      = errors.New("boot information has no end tag")
	ErrTrailingBytes          = errors.New("bytes after end tag within total size")
	ErrTagNotFound            = errors.New("tag not present")
	ErrBootServicesNotExited  = errors.New("EFI boot services not exited")
	ErrUnknownFramebufferType = errors.New("unknown framebuffer type")
	ErrUnsupportedEntrySize   = errors.New("unsupported memory map entry size")
	ErrUnsupportedDescriptor  = errors.New("unsupported EFI memory descriptor layout")
	ErrCataloguedType         = errors.New("custom tag uses a catalogued type")
	ErrPaletteTooLarge        = errors.New("framebuffer palette has too many colors")
)

func init() {
	codec.RegisterCause(ErrIllegalTotalSize, "illegal_total_size")
	codec.RegisterCause(ErrMissingTerminator, "missing_terminator")
	codec.RegisterCause(ErrTrailingBytes, "trailing_bytes")
	codec.RegisterCause(ErrUnknownFramebufferType, "unknown_framebuffer_type")
	codec.RegisterCause(ErrUnsupportedEntrySize, "unsupported_entry_size")
	codec.RegisterCause(ErrUnsupportedDescriptor, "unsupported_descriptor")
	codec.RegisterCause(ErrCataloguedType, "catalogued_type")
	codec.RegisterCause(ErrPaletteTooLarge, "palette_too_large")
}
