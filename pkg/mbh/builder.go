package mbh

import (
	"encoding/binary"
	"math"

	"github.com/ssargent/mb2/pkg/codec"
)

// Builder assembles a Multiboot2 header for one architecture.
type Builder struct {
	b    *codec.Builder
	arch Arch
}

// NewBuilder returns a header builder for arch. Pushed tags are checked
// against Registry.
func NewBuilder(arch Arch, opts ...codec.BuilderOption) *Builder {
	opts = append([]codec.BuilderOption{codec.WithReadBack(DecodeTagHeader, Registry)}, opts...)
	return &Builder{
		b:    codec.NewBuilder(PreambleLen, putTagHeader, opts...),
		arch: arch,
	}
}

// Push appends tag. Errors are sticky and reported by Finish.
func (b *Builder) Push(tag codec.Encoder) *Builder {
	b.b.Push(tag)
	return b
}

// Count returns the number of tags pushed so far.
func (b *Builder) Count() int {
	return b.b.Count()
}

// Err returns the first error encountered, if any.
func (b *Builder) Err() error {
	return b.b.Err()
}

// Finish appends the end tag and backfills magic, architecture,
// header_length and checksum.
func (b *Builder) Finish() ([]byte, error) {
	return b.b.Finish(&End{}, func(buf []byte) error {
		if uint64(len(buf)) > math.MaxUint32 {
			return codec.ErrTailTooLarge
		}
		length := uint32(len(buf))
		binary.LittleEndian.PutUint32(buf[0:4], Magic)
		binary.LittleEndian.PutUint32(buf[4:8], uint32(b.arch))
		binary.LittleEndian.PutUint32(buf[8:12], length)
		binary.LittleEndian.PutUint32(buf[12:16], Checksum(b.arch, length))
		return nil
	})
}
