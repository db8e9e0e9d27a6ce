package mbi

import (
	"fmt"
	"math"

	"github.com/ssargent/mb2/pkg/codec"
)

// FramebufferType selects how pixels are encoded.
type FramebufferType uint8

const (
	FramebufferIndexed FramebufferType = 0
	FramebufferRGB     FramebufferType = 1
	FramebufferText    FramebufferType = 2
)

func (t FramebufferType) String() string {
	switch t {
	case FramebufferIndexed:
		return "indexed"
	case FramebufferRGB:
		return "rgb"
	case FramebufferText:
		return "text"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Color is one palette entry of an indexed framebuffer.
type Color struct {
	Red   uint8
	Green uint8
	Blue  uint8
}

// MaxPaletteColors is the largest palette the 16-bit color count can describe.
const MaxPaletteColors = math.MaxUint16

// ColorField locates one color channel within an RGB pixel.
type ColorField struct {
	Position uint8
	Size     uint8
}

// Framebuffer describes the framebuffer set up by the boot loader. Palette is
// used by indexed framebuffers; Red, Green and Blue by RGB framebuffers.
type Framebuffer struct {
	Address uint64
	Pitch   uint32
	Width   uint32
	Height  uint32
	BPP     uint8
	Type    FramebufferType
	Palette []Color
	Red     ColorField
	Green   ColorField
	Blue    ColorField
}

func (*Framebuffer) RecordLayout() codec.Layout {
	return codec.Layout{Kind: uint32(TagFramebuffer), FixedSize: hdr + 24}
}

func (t *Framebuffer) DecodeRecord(b codec.Body) error {
	r := b.Fields()
	t.Address = r.Uint64()
	t.Pitch = r.Uint32()
	t.Width = r.Uint32()
	t.Height = r.Uint32()
	t.BPP = r.Uint8()
	t.Type = FramebufferType(r.Uint8())
	r.Skip(2)
	if err := r.Err(); err != nil {
		return err
	}

	tr := codec.NewFieldReader(b.Tail())
	switch t.Type {
	case FramebufferIndexed:
		n := int(tr.Uint16())
		t.Palette = make([]Color, 0, min(n, len(b.Tail())/3))
		for i := 0; i < n && tr.Err() == nil; i++ {
			c := tr.Bytes(3)
			if c != nil {
				t.Palette = append(t.Palette, Color{Red: c[0], Green: c[1], Blue: c[2]})
			}
		}
	case FramebufferRGB:
		t.Red = ColorField{Position: tr.Uint8(), Size: tr.Uint8()}
		t.Green = ColorField{Position: tr.Uint8(), Size: tr.Uint8()}
		t.Blue = ColorField{Position: tr.Uint8(), Size: tr.Uint8()}
	case FramebufferText:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFramebufferType, uint8(t.Type))
	}
	if err := tr.Err(); err != nil {
		return fmt.Errorf("%s framebuffer: %w", t.Type, err)
	}
	return nil
}

// Validate reports a palette that does not fit the color count field.
func (t *Framebuffer) Validate() error {
	if t.Type == FramebufferIndexed && len(t.Palette) > MaxPaletteColors {
		return fmt.Errorf("%w: %d > %d", ErrPaletteTooLarge, len(t.Palette), MaxPaletteColors)
	}
	return nil
}

func (t *Framebuffer) AppendPayload(dst []byte) []byte {
	dst = codec.AppendUint64(dst, t.Address)
	dst = codec.AppendUint32(dst, t.Pitch)
	dst = codec.AppendUint32(dst, t.Width)
	dst = codec.AppendUint32(dst, t.Height)
	dst = codec.AppendUint8(dst, t.BPP)
	dst = codec.AppendUint8(dst, uint8(t.Type))
	dst = codec.AppendZeros(dst, 2)
	switch t.Type {
	case FramebufferIndexed:
		dst = codec.AppendUint16(dst, uint16(len(t.Palette)))
		for _, c := range t.Palette {
			dst = append(dst, c.Red, c.Green, c.Blue)
		}
	case FramebufferRGB:
		dst = append(dst,
			t.Red.Position, t.Red.Size,
			t.Green.Position, t.Green.Size,
			t.Blue.Position, t.Blue.Size)
	}
	return dst
}
