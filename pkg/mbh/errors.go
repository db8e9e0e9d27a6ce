package mbh

import (
	"errors"

	"github.com/ssargent/mb2/pkg/codec"
)

var (
	ErrBadMagic          = errors.New("bad multiboot2 header magic")
	ErrBadChecksum       = errors.New("bad multiboot2 header checksum")
	ErrIllegalLength     = errors.New("illegal multiboot2 header length")
	ErrMissingTerminator = errors.New("multiboot2 header has no end tag")
	ErrTrailingBytes     = errors.New("bytes after end tag within header length")
	ErrHeaderNotFound    = errors.New("no multiboot2 header in search window")
	ErrTagNotFound       = errors.New("header tag not present")
	ErrCataloguedType    = errors.New("custom header tag uses a catalogued type")
)

func init() {
	codec.RegisterCause(ErrBadMagic, "bad_magic")
	codec.RegisterCause(ErrBadChecksum, "bad_checksum")
	codec.RegisterCause(ErrIllegalLength, "illegal_length")
	codec.RegisterCause(ErrMissingTerminator, "missing_terminator")
	codec.RegisterCause(ErrTrailingBytes, "trailing_bytes")
	codec.RegisterCause(ErrHeaderNotFound, "header_not_found")
	codec.RegisterCause(ErrCataloguedType, "catalogued_type")
}
