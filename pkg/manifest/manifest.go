// Package manifest describes boot information and Multiboot2 headers in YAML
// and builds them:
//
//	kind: header
//	arch: i386
//	tags:
//	  - type: entry_address
//	    entry: 0x10000c
//	  - type: framebuffer
//	    optional: true
//	    width: 1024
//
// Tag types use the names printed by mbi.TagType and mbh.TagType. Tags
// outside the catalogue are written as custom(n) with a hex payload.
package manifest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/mb2/pkg/codec"
)

// Kind selects which structure a manifest describes.
type Kind string

const (
	KindInformation Kind = "information"
	KindHeader      Kind = "header"
)

var (
	ErrUnknownKind    = errors.New("unknown manifest kind")
	ErrWrongKind      = errors.New("manifest describes a different structure")
	ErrUnknownTagType = errors.New("unknown tag type")
	ErrExplicitEnd    = errors.New("end tag is added automatically")
	ErrCataloguedType = errors.New("custom tag type is catalogued; use its name")
)

// Manifest describes a boot information structure or a Multiboot2 header as
// an ordered list of tags. The end tag is implicit.
type Manifest struct {
	Kind     Kind   `yaml:"kind"`
	Arch     string `yaml:"arch,omitempty"`
	Capacity int    `yaml:"capacity,omitempty"`
	Tags     []Tag  `yaml:"tags"`
}

// Tag is one entry of the tag list. Fields other than type and optional are
// interpreted according to the type.
type Tag struct {
	Type     string `yaml:"type"`
	Optional bool   `yaml:"optional,omitempty"`

	node *yaml.Node
}

func (t *Tag) UnmarshalYAML(n *yaml.Node) error {
	var head struct {
		Type     string `yaml:"type"`
		Optional bool   `yaml:"optional"`
	}
	if err := n.Decode(&head); err != nil {
		return err
	}
	if head.Type == "" {
		return fmt.Errorf("line %d: tag without type", n.Line)
	}
	t.Type = head.Type
	t.Optional = head.Optional
	t.node = n
	return nil
}

// decode unmarshals the tag's fields into v.
func (t Tag) decode(v any) error {
	if t.node == nil {
		return nil
	}
	return t.node.Decode(v)
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a manifest from r.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	switch m.Kind {
	case KindInformation, KindHeader:
	case "":
		m.Kind = KindInformation
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	return &m, nil
}

// Build produces the structure the manifest describes.
func (m *Manifest) Build() ([]byte, error) {
	if m.Kind == KindHeader {
		return m.BuildHeader()
	}
	return m.BuildInformation()
}

func (m *Manifest) builderOptions() []codec.BuilderOption {
	var opts []codec.BuilderOption
	if m.Capacity > 0 {
		opts = append(opts, codec.WithCapacity(m.Capacity))
	}
	return opts
}

// Hex is a byte string written in YAML as hex digits. Whitespace and colons
// between digits are ignored.
type Hex []byte

func (h *Hex) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	s = strings.NewReplacer(" ", "", ":", "", "\n", "", "\t", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*h = b
	return nil
}

func (h Hex) MarshalYAML() (any, error) {
	return hex.EncodeToString(h), nil
}

// enum resolves a symbolic name through names, or a number in any base
// strconv accepts.
func enum(s string, names map[string]uint64, bits int) (uint64, error) {
	if v, ok := names[s]; ok {
		return v, nil
	}
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}

// customType parses the "custom(n)" form used for tags outside the catalogue.
func customType(name string) (uint64, bool) {
	s, ok := strings.CutPrefix(name, "custom(")
	if !ok {
		return 0, false
	}
	s, ok = strings.CutSuffix(s, ")")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 0, 32)
	return v, err == nil
}
