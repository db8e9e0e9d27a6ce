package mbi

import (
	"encoding/binary"
	"math"

	"github.com/ssargent/mb2/pkg/codec"
)

// Builder assembles a boot information structure. The zero value is not
// usable; call NewBuilder.
type Builder struct {
	b *codec.Builder
}

// NewBuilder returns a builder with an empty tag list. Pushed tags are checked
// against Registry so every buffer it finishes parses.
func NewBuilder(opts ...codec.BuilderOption) *Builder {
	opts = append([]codec.BuilderOption{codec.WithReadBack(DecodeTagHeader, Registry)}, opts...)
	return &Builder{b: codec.NewBuilder(PreambleLen, codec.PutRawEncoderHeader, opts...)}
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

// Finish appends the end tag, backfills total_size and returns the aligned
// buffer.
func (b *Builder) Finish() ([]byte, error) {
	return b.b.Finish(&End{}, func(buf []byte) error {
		if uint64(len(buf)) > math.MaxUint32 {
			return codec.ErrTailTooLarge
		}
		binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
		binary.LittleEndian.PutUint32(buf[4:8], 0)
		return nil
	})
}
