package manifest

import (
	"fmt"

	"github.com/ssargent/mb2/pkg/codec"
	"github.com/ssargent/mb2/pkg/mbi"
)

type informationTag func(Tag) (codec.Encoder, error)

// plain decodes tags whose field names map directly onto the tag struct.
func plain[T any, PT interface {
	*T
	codec.Encoder
}](t Tag) (codec.Encoder, error) {
	var v T
	if err := t.decode(&v); err != nil {
		return nil, err
	}
	return PT(&v), nil
}

var informationTags = map[mbi.TagType]informationTag{
	mbi.TagCommandLine: func(t Tag) (codec.Encoder, error) {
		var f struct {
			Value string `yaml:"value"`
		}
		err := t.decode(&f)
		return mbi.NewCommandLine(f.Value), err
	},
	mbi.TagBootLoaderName: func(t Tag) (codec.Encoder, error) {
		var f struct {
			Value string `yaml:"value"`
		}
		err := t.decode(&f)
		return mbi.NewBootLoaderName(f.Value), err
	},
	mbi.TagModule: func(t Tag) (codec.Encoder, error) {
		var f struct {
			Start   uint32 `yaml:"start"`
			End     uint32 `yaml:"end"`
			CmdLine string `yaml:"cmdline"`
		}
		err := t.decode(&f)
		return mbi.NewModule(f.Start, f.End, f.CmdLine), err
	},
	mbi.TagBasicMemoryInfo: plain[mbi.BasicMemoryInfo],
	mbi.TagBootdev:         plain[mbi.Bootdev],
	mbi.TagMemoryMap:       memoryMap,
	mbi.TagVBE:             vbe,
	mbi.TagFramebuffer:     framebuffer,
	mbi.TagElfSections:     elfSections,
	mbi.TagAPM:             plain[mbi.APM],
	mbi.TagEFISDT32:        plain[mbi.EFISDT32],
	mbi.TagEFISDT64:        plain[mbi.EFISDT64],
	mbi.TagSMBIOS: func(t Tag) (codec.Encoder, error) {
		var f struct {
			Major  uint8 `yaml:"major"`
			Minor  uint8 `yaml:"minor"`
			Tables Hex   `yaml:"tables"`
		}
		err := t.decode(&f)
		return &mbi.SMBIOS{Major: f.Major, Minor: f.Minor, Tables: f.Tables}, err
	},
	mbi.TagRSDPv1: func(t Tag) (codec.Encoder, error) {
		f, err := rsdp(t)
		return mbi.NewRSDPv1(f.oemID(), f.Revision, f.RSDT), err
	},
	mbi.TagRSDPv2: func(t Tag) (codec.Encoder, error) {
		f, err := rsdp(t)
		return mbi.NewRSDPv2(f.oemID(), f.Revision, f.RSDT, f.XSDT), err
	},
	mbi.TagNetwork: func(t Tag) (codec.Encoder, error) {
		var f struct {
			DHCPAck Hex `yaml:"dhcpack"`
		}
		err := t.decode(&f)
		return &mbi.Network{DHCPAck: f.DHCPAck}, err
	},
	mbi.TagEFIMemoryMap: efiMemoryMap,
	mbi.TagEFIBootServicesNotExited: func(Tag) (codec.Encoder, error) {
		return &mbi.EFIBootServicesNotExited{}, nil
	},
	mbi.TagEFIImageHandle32: plain[mbi.EFIImageHandle32],
	mbi.TagEFIImageHandle64: plain[mbi.EFIImageHandle64],
	mbi.TagImageLoadBase:    plain[mbi.ImageLoadBase],
}

var memoryTypes = map[string]uint64{
	"available":          uint64(mbi.MemoryAvailable),
	"reserved":           uint64(mbi.MemoryReserved),
	"acpi_reclaimable":   uint64(mbi.MemoryACPIReclaimable),
	"reserved_hibernate": uint64(mbi.MemoryReservedHibernate),
	"defective":          uint64(mbi.MemoryDefective),
}

func memoryMap(t Tag) (codec.Encoder, error) {
	var f struct {
		Areas []struct {
			Base   uint64 `yaml:"base"`
			Length uint64 `yaml:"length"`
			Type   string `yaml:"type"`
		} `yaml:"areas"`
	}
	if err := t.decode(&f); err != nil {
		return nil, err
	}
	m := &mbi.MemoryMap{}
	for i, a := range f.Areas {
		typ, err := enum(a.Type, memoryTypes, 32)
		if err != nil {
			return nil, fmt.Errorf("area %d: %w", i, err)
		}
		m.Areas = append(m.Areas, mbi.MemoryArea{Base: a.Base, Length: a.Length, Type: mbi.MemoryAreaType(typ)})
	}
	return m, nil
}

func vbe(t Tag) (codec.Encoder, error) {
	var f struct {
		Mode        uint16 `yaml:"mode"`
		Segment     uint16 `yaml:"interface_seg"`
		Offset      uint16 `yaml:"interface_off"`
		Length      uint16 `yaml:"interface_len"`
		ControlInfo Hex    `yaml:"control_info"`
		ModeInfo    Hex    `yaml:"mode_info"`
	}
	if err := t.decode(&f); err != nil {
		return nil, err
	}
	v := &mbi.VBEInfo{Mode: f.Mode, InterfaceSegment: f.Segment, InterfaceOffset: f.Offset, InterfaceLength: f.Length}
	if len(f.ControlInfo) > len(v.ControlInfo) || len(f.ModeInfo) > len(v.ModeInfo) {
		return nil, fmt.Errorf("vbe info blocks are limited to %d and %d bytes", len(v.ControlInfo), len(v.ModeInfo))
	}
	copy(v.ControlInfo[:], f.ControlInfo)
	copy(v.ModeInfo[:], f.ModeInfo)
	return v, nil
}

type colorField struct {
	Position uint8 `yaml:"position"`
	Size     uint8 `yaml:"size"`
}

func framebuffer(t Tag) (codec.Encoder, error) {
	var f struct {
		Address uint64     `yaml:"address"`
		Pitch   uint32     `yaml:"pitch"`
		Width   uint32     `yaml:"width"`
		Height  uint32     `yaml:"height"`
		BPP     uint8      `yaml:"bpp"`
		Type    string     `yaml:"fb_type"`
		Palette [][3]uint8 `yaml:"palette"`
		Red     colorField `yaml:"red"`
		Green   colorField `yaml:"green"`
		Blue    colorField `yaml:"blue"`
	}
	if err := t.decode(&f); err != nil {
		return nil, err
	}
	typ, err := enum(f.Type, map[string]uint64{
		"":        uint64(mbi.FramebufferRGB),
		"indexed": uint64(mbi.FramebufferIndexed),
		"rgb":     uint64(mbi.FramebufferRGB),
		"text":    uint64(mbi.FramebufferText),
	}, 8)
	if err != nil {
		return nil, fmt.Errorf("fb_type: %w", err)
	}
	fb := &mbi.Framebuffer{
		Address: f.Address,
		Pitch:   f.Pitch,
		Width:   f.Width,
		Height:  f.Height,
		BPP:     f.BPP,
		Type:    mbi.FramebufferType(typ),
		Red:     mbi.ColorField(f.Red),
		Green:   mbi.ColorField(f.Green),
		Blue:    mbi.ColorField(f.Blue),
	}
	for _, c := range f.Palette {
		fb.Palette = append(fb.Palette, mbi.Color{Red: c[0], Green: c[1], Blue: c[2]})
	}
	return fb, nil
}

func elfSections(t Tag) (codec.Encoder, error) {
	var f struct {
		StrIndex uint32 `yaml:"shndx"`
		Sections []struct {
			Name      uint32 `yaml:"name"`
			Type      uint32 `yaml:"type"`
			Flags     uint64 `yaml:"flags"`
			Addr      uint64 `yaml:"addr"`
			Offset    uint64 `yaml:"offset"`
			Size      uint64 `yaml:"size"`
			Link      uint32 `yaml:"link"`
			Info      uint32 `yaml:"info"`
			AddrAlign uint64 `yaml:"addralign"`
			EntSize   uint64 `yaml:"entsize"`
		} `yaml:"sections"`
	}
	if err := t.decode(&f); err != nil {
		return nil, err
	}
	var secs []mbi.ElfSection
	for _, s := range f.Sections {
		secs = append(secs, mbi.ElfSection{
			NameIndex: s.Name,
			Type:      mbi.ElfSectionType(s.Type),
			Flags:     s.Flags,
			Addr:      s.Addr,
			Offset:    s.Offset,
			Size:      s.Size,
			Link:      s.Link,
			Info:      s.Info,
			AddrAlign: s.AddrAlign,
			EntrySize: s.EntSize,
		})
	}
	return mbi.NewElfSections64(f.StrIndex, secs...), nil
}

type rsdpFields struct {
	OEMID    string `yaml:"oem_id"`
	Revision uint8  `yaml:"revision"`
	RSDT     uint32 `yaml:"rsdt"`
	XSDT     uint64 `yaml:"xsdt"`
}

func (f rsdpFields) oemID() [6]byte {
	id := [6]byte{' ', ' ', ' ', ' ', ' ', ' '}
	copy(id[:], f.OEMID)
	return id
}

func rsdp(t Tag) (rsdpFields, error) {
	var f rsdpFields
	err := t.decode(&f)
	return f, err
}

func efiMemoryMap(t Tag) (codec.Encoder, error) {
	var f struct {
		DescSize    uint32 `yaml:"desc_size"`
		Descriptors []struct {
			Type          uint32 `yaml:"type"`
			PhysicalStart uint64 `yaml:"phys"`
			VirtualStart  uint64 `yaml:"virt"`
			Pages         uint64 `yaml:"pages"`
			Attributes    uint64 `yaml:"attr"`
		} `yaml:"descriptors"`
	}
	if err := t.decode(&f); err != nil {
		return nil, err
	}
	m := mbi.NewEFIMemoryMap()
	if f.DescSize != 0 {
		if f.DescSize < mbi.EFIMemoryDescSize {
			return nil, fmt.Errorf("desc_size %d below %d", f.DescSize, mbi.EFIMemoryDescSize)
		}
		m.DescSize = f.DescSize
	}
	for _, d := range f.Descriptors {
		m.Descriptors = append(m.Descriptors, mbi.EFIMemoryDesc(d))
	}
	return m, nil
}

func customInformation(t Tag, typ mbi.TagType) (codec.Encoder, error) {
	if typ == mbi.TagEnd {
		return nil, ErrExplicitEnd
	}
	if typ.Known() {
		return nil, fmt.Errorf("%w: %d is %s", ErrCataloguedType, uint32(typ), typ)
	}
	var f struct {
		Payload Hex `yaml:"payload"`
	}
	err := t.decode(&f)
	return &mbi.Unknown{Type: typ, Payload: f.Payload}, err
}

// InformationTags converts the tag list into boot information tag values.
func (m *Manifest) InformationTags() ([]codec.Encoder, error) {
	if m.Kind != KindInformation {
		return nil, fmt.Errorf("%w: %s", ErrWrongKind, m.Kind)
	}
	out := make([]codec.Encoder, 0, len(m.Tags))
	for i, t := range m.Tags {
		enc, err := informationTagValue(t)
		if err != nil {
			return nil, fmt.Errorf("tag %d (%s): %w", i, t.Type, err)
		}
		out = append(out, enc)
	}
	return out, nil
}

func informationTagValue(t Tag) (codec.Encoder, error) {
	if n, ok := customType(t.Type); ok {
		return customInformation(t, mbi.TagType(n))
	}
	typ, err := mbi.ParseTagType(t.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTagType, t.Type)
	}
	if typ == mbi.TagEnd {
		return nil, ErrExplicitEnd
	}
	build, ok := informationTags[typ]
	if !ok {
		return customInformation(t, typ)
	}
	return build(t)
}

// BuildInformation encodes the manifest as boot information.
func (m *Manifest) BuildInformation() ([]byte, error) {
	tags, err := m.InformationTags()
	if err != nil {
		return nil, err
	}
	b := mbi.NewBuilder(m.builderOptions()...)
	for _, t := range tags {
		b.Push(t)
	}
	return b.Finish()
}
