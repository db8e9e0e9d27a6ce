// Package inspect turns parsed boot information and headers into reports for
// people and tools.
package inspect

import (
	"encoding/hex"

	"github.com/ssargent/mb2/pkg/codec"
	"github.com/ssargent/mb2/pkg/mbh"
	"github.com/ssargent/mb2/pkg/mbi"
)

const (
	KindInformation = "information"
	KindHeader      = "header"
)

// Report lists the tags of one structure in buffer order.
type Report struct {
	Kind       string   `json:"kind" yaml:"kind"`
	Size       uint32   `json:"size" yaml:"size"`
	Arch       string   `json:"arch,omitempty" yaml:"arch,omitempty"`
	Offset     int      `json:"offset,omitempty" yaml:"offset,omitempty"`
	Terminated bool     `json:"terminated" yaml:"terminated"`
	Tags       []Tag    `json:"tags" yaml:"tags"`
	Warnings   []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Tag is one entry of a Report. Error is set when the tag passed the
// structural walk but its contents could not be decoded.
type Tag struct {
	Offset int    `json:"offset" yaml:"offset"`
	Type   uint32 `json:"type" yaml:"type"`
	Name   string `json:"name" yaml:"name"`
	Size   uint32 `json:"size" yaml:"size"`
	Flags  string `json:"flags,omitempty" yaml:"flags,omitempty"`
	Fields any    `json:"fields,omitempty" yaml:"fields,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
	Cause  string `json:"cause,omitempty" yaml:"cause,omitempty"`
}

// Information reports every tag of bi.
func Information(bi *mbi.BootInformation) *Report {
	r := &Report{
		Kind:       KindInformation,
		Size:       bi.TotalSize(),
		Terminated: bi.Terminated(),
		Tags:       []Tag{},
	}
	it := bi.Tags().Iter()
	for it.Next() {
		rec := it.Record()
		t := Tag{
			Offset: rec.Offset(),
			Type:   rec.Kind(),
			Name:   rec.Header().Type.String(),
			Size:   rec.Size(),
		}
		if v, err := mbi.Decode(rec); err != nil {
			t.setError(err)
		} else {
			t.Fields, err = informationFields(v)
			if err != nil {
				t.setError(err)
			}
		}
		r.Tags = append(r.Tags, t)
	}
	if !r.Terminated {
		r.Warnings = append(r.Warnings, "tag list has no end tag")
	}
	if bi.EFIBootServicesNotExited() {
		r.Warnings = append(r.Warnings, "EFI boot services not exited; EFI memory map is stale")
	}
	return r
}

// Header reports every tag of h. off is where h was found in its image.
func Header(h *mbh.Header, off int) *Report {
	r := &Report{
		Kind:       KindHeader,
		Size:       h.Length(),
		Arch:       h.Arch().String(),
		Offset:     off,
		Terminated: true,
		Tags:       []Tag{},
	}
	it := h.Tags().Iter()
	for it.Next() {
		rec := it.Record()
		th := rec.Header()
		t := Tag{
			Offset: rec.Offset(),
			Type:   rec.Kind(),
			Name:   th.Type.String(),
			Size:   rec.Size(),
			Flags:  th.Flags.String(),
		}
		if v, err := mbh.Decode(rec); err != nil {
			t.setError(err)
		} else {
			t.Fields = headerFields(v)
		}
		r.Tags = append(r.Tags, t)
	}
	for _, typ := range h.UnsupportedRequired() {
		r.Warnings = append(r.Warnings, "required tag "+typ.String()+" is not understood")
	}
	return r
}

func (t *Tag) setError(err error) {
	t.Error = err.Error()
	t.Cause = codec.CauseName(err)
}

type stringFields struct {
	Value string `json:"value" yaml:"value"`
}

type moduleFields struct {
	Start   uint32 `json:"start" yaml:"start"`
	End     uint32 `json:"end" yaml:"end"`
	CmdLine string `json:"cmdline" yaml:"cmdline"`
}

type elfFields struct {
	StrIndex uint32           `json:"shndx" yaml:"shndx"`
	Sections []mbi.ElfSection `json:"sections" yaml:"sections"`
}

type vbeFields struct {
	Mode             uint16 `json:"mode" yaml:"mode"`
	InterfaceSegment uint16 `json:"interface_seg" yaml:"interface_seg"`
	InterfaceOffset  uint16 `json:"interface_off" yaml:"interface_off"`
	InterfaceLength  uint16 `json:"interface_len" yaml:"interface_len"`
}

type rawFields struct {
	Payload string `json:"payload" yaml:"payload"`
}

// informationFields flattens decoded tags whose Go shape is not useful in a
// report: raw strings, raw section tables and the VBE blocks.
func informationFields(v codec.Encoder) (any, error) {
	switch t := v.(type) {
	case *mbi.CommandLine:
		s, err := t.Text()
		return stringFields{s}, err
	case *mbi.BootLoaderName:
		s, err := t.Text()
		return stringFields{s}, err
	case *mbi.Module:
		s, err := t.CommandLine()
		return moduleFields{t.Start, t.End, s}, err
	case *mbi.ElfSections:
		secs, err := t.Sections()
		return elfFields{t.StrIndex, secs}, err
	case *mbi.VBEInfo:
		return vbeFields{t.Mode, t.InterfaceSegment, t.InterfaceOffset, t.InterfaceLength}, nil
	case *mbi.Unknown:
		return rawFields{hex.EncodeToString(t.Payload)}, nil
	case *mbi.End, *mbi.EFIBootServicesNotExited:
		return nil, nil
	default:
		return v, nil
	}
}

func headerFields(v codec.Encoder) any {
	switch t := v.(type) {
	case *mbh.InformationRequest:
		names := make([]string, len(t.Requests))
		for i, r := range t.Requests {
			names[i] = r.String()
		}
		return struct {
			Requests []string `json:"requests" yaml:"requests"`
		}{names}
	case *mbh.Relocatable:
		return struct {
			MinAddr    uint32 `json:"min_addr" yaml:"min_addr"`
			MaxAddr    uint32 `json:"max_addr" yaml:"max_addr"`
			Align      uint32 `json:"align" yaml:"align"`
			Preference string `json:"preference" yaml:"preference"`
		}{t.MinAddr, t.MaxAddr, t.Align, t.Preference.String()}
	case *mbh.Unknown:
		return rawFields{hex.EncodeToString(t.Payload)}
	case *mbh.ModuleAlign, *mbh.EFIBootServices:
		return nil
	default:
		return v
	}
}
