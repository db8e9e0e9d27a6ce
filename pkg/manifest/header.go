package manifest

import (
	"fmt"

	"github.com/ssargent/mb2/pkg/codec"
	"github.com/ssargent/mb2/pkg/mbh"
	"github.com/ssargent/mb2/pkg/mbi"
)

type headerTag func(Tag, mbh.TagFlags) (codec.Encoder, error)

func entryPoint(t Tag) (uint32, error) {
	var f struct {
		Entry uint32 `yaml:"entry"`
	}
	err := t.decode(&f)
	return f.Entry, err
}

var headerTags = map[mbh.TagType]headerTag{
	mbh.TagInformationRequest: func(t Tag, flags mbh.TagFlags) (codec.Encoder, error) {
		var f struct {
			Requests []string `yaml:"requests"`
		}
		if err := t.decode(&f); err != nil {
			return nil, err
		}
		req := &mbh.InformationRequest{Flags: flags}
		for _, name := range f.Requests {
			typ, err := mbi.ParseTagType(name)
			if err != nil {
				return nil, err
			}
			req.Requests = append(req.Requests, typ)
		}
		return req, nil
	},
	mbh.TagAddress: func(t Tag, flags mbh.TagFlags) (codec.Encoder, error) {
		var f struct {
			HeaderAddr  uint32 `yaml:"header_addr"`
			LoadAddr    uint32 `yaml:"load_addr"`
			LoadEndAddr uint32 `yaml:"load_end_addr"`
			BSSEndAddr  uint32 `yaml:"bss_end_addr"`
		}
		err := t.decode(&f)
		return &mbh.Address{
			Flags:       flags,
			HeaderAddr:  f.HeaderAddr,
			LoadAddr:    f.LoadAddr,
			LoadEndAddr: f.LoadEndAddr,
			BSSEndAddr:  f.BSSEndAddr,
		}, err
	},
	mbh.TagEntryAddress: func(t Tag, flags mbh.TagFlags) (codec.Encoder, error) {
		e, err := entryPoint(t)
		return &mbh.EntryAddress{Flags: flags, Entry: e}, err
	},
	mbh.TagEntryEFI32: func(t Tag, flags mbh.TagFlags) (codec.Encoder, error) {
		e, err := entryPoint(t)
		return &mbh.EntryEFI32{Flags: flags, Entry: e}, err
	},
	mbh.TagEntryEFI64: func(t Tag, flags mbh.TagFlags) (codec.Encoder, error) {
		e, err := entryPoint(t)
		return &mbh.EntryEFI64{Flags: flags, Entry: e}, err
	},
	mbh.TagConsoleFlags: func(t Tag, flags mbh.TagFlags) (codec.Encoder, error) {
		var f struct {
			ConsoleRequired  bool `yaml:"console_required"`
			EGATextSupported bool `yaml:"ega_text_supported"`
		}
		err := t.decode(&f)
		c := &mbh.ConsoleFlags{Flags: flags}
		if f.ConsoleRequired {
			c.Console |= mbh.ConsoleRequired
		}
		if f.EGATextSupported {
			c.Console |= mbh.EGATextSupported
		}
		return c, err
	},
	mbh.TagFramebuffer: func(t Tag, flags mbh.TagFlags) (codec.Encoder, error) {
		var f struct {
			Width  uint32 `yaml:"width"`
			Height uint32 `yaml:"height"`
			Depth  uint32 `yaml:"depth"`
		}
		err := t.decode(&f)
		return &mbh.Framebuffer{Flags: flags, Width: f.Width, Height: f.Height, Depth: f.Depth}, err
	},
	mbh.TagModuleAlign: func(_ Tag, flags mbh.TagFlags) (codec.Encoder, error) {
		return &mbh.ModuleAlign{Flags: flags}, nil
	},
	mbh.TagEFIBootServices: func(_ Tag, flags mbh.TagFlags) (codec.Encoder, error) {
		return &mbh.EFIBootServices{Flags: flags}, nil
	},
	mbh.TagRelocatable: func(t Tag, flags mbh.TagFlags) (codec.Encoder, error) {
		var f struct {
			MinAddr    uint32 `yaml:"min_addr"`
			MaxAddr    uint32 `yaml:"max_addr"`
			Align      uint32 `yaml:"align"`
			Preference string `yaml:"preference"`
		}
		if err := t.decode(&f); err != nil {
			return nil, err
		}
		pref, err := enum(f.Preference, map[string]uint64{
			"":     uint64(mbh.PreferNone),
			"none": uint64(mbh.PreferNone),
			"low":  uint64(mbh.PreferLow),
			"high": uint64(mbh.PreferHigh),
		}, 32)
		if err != nil {
			return nil, fmt.Errorf("preference: %w", err)
		}
		return &mbh.Relocatable{
			Flags:      flags,
			MinAddr:    f.MinAddr,
			MaxAddr:    f.MaxAddr,
			Align:      f.Align,
			Preference: mbh.LoadPreference(pref),
		}, nil
	},
}

// HeaderTags converts the tag list into header tag values.
func (m *Manifest) HeaderTags() ([]codec.Encoder, error) {
	if m.Kind != KindHeader {
		return nil, fmt.Errorf("%w: %s", ErrWrongKind, m.Kind)
	}
	out := make([]codec.Encoder, 0, len(m.Tags))
	for i, t := range m.Tags {
		enc, err := headerTagValue(t)
		if err != nil {
			return nil, fmt.Errorf("tag %d (%s): %w", i, t.Type, err)
		}
		out = append(out, enc)
	}
	return out, nil
}

func headerTagValue(t Tag) (codec.Encoder, error) {
	flags := mbh.Required
	if t.Optional {
		flags = mbh.Optional
	}
	if n, ok := customType(t.Type); ok {
		if n > 0xffff {
			return nil, fmt.Errorf("%w: header tag types are 16 bits", ErrUnknownTagType)
		}
		switch typ := mbh.TagType(n); {
		case typ == mbh.TagEnd:
			return nil, ErrExplicitEnd
		case typ.Known():
			return nil, fmt.Errorf("%w: %d is %s", ErrCataloguedType, n, typ)
		}
		var f struct {
			Payload Hex `yaml:"payload"`
		}
		err := t.decode(&f)
		return &mbh.Unknown{Type: mbh.TagType(n), Flags: flags, Payload: f.Payload}, err
	}
	typ, err := mbh.ParseTagType(t.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTagType, t.Type)
	}
	build, ok := headerTags[typ]
	if !ok {
		return nil, ErrExplicitEnd
	}
	return build(t, flags)
}

// BuildHeader encodes the manifest as a Multiboot2 header.
func (m *Manifest) BuildHeader() ([]byte, error) {
	tags, err := m.HeaderTags()
	if err != nil {
		return nil, err
	}
	arch := mbh.ArchI386
	if m.Arch != "" {
		if arch, err = mbh.ParseArch(m.Arch); err != nil {
			return nil, err
		}
	}
	b := mbh.NewBuilder(arch, m.builderOptions()...)
	for _, t := range tags {
		b.Push(t)
	}
	return b.Finish()
}
