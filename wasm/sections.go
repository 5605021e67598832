package wasm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Magic is the module preamble: "\0asm" followed by binary version 1.
var Magic = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Section IDs used by this package.
const (
	SectionCustom byte = 0
	SectionExport byte = 7
)

// Export kinds.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
	KindGlobal byte = 3
	KindTag    byte = 4
)

// ErrNotModule is returned when the input lacks the module preamble.
var ErrNotModule = errors.New("wasm: not a core module")

// Section is a raw section view into a module binary.
type Section struct {
	Payload []byte
	ID      byte
}

// Custom is a decoded custom section.
type Custom struct {
	Name string
	Data []byte
}

// Export is a single entry of the export section.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// IsModule reports whether data starts with the core module preamble.
func IsModule(data []byte) bool {
	return bytes.HasPrefix(data, Magic)
}

// EmptyModule returns a fresh module binary with no sections.
func EmptyModule() []byte {
	return append([]byte(nil), Magic...)
}

// Sections splits a module into its sections without decoding them.
func Sections(data []byte) ([]Section, error) {
	if !IsModule(data) {
		return nil, ErrNotModule
	}
	r := bytes.NewReader(data[len(Magic):])
	var out []Section
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := ReadLEB128u(r)
		if err != nil {
			return nil, fmt.Errorf("section %d size: %w", id, err)
		}
		if int(size) > r.Len() {
			return nil, fmt.Errorf("section %d: %w", id, io.ErrUnexpectedEOF)
		}
		start := len(data) - r.Len()
		out = append(out, Section{ID: id, Payload: data[start : start+int(size)]})
		if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CustomSections returns every custom section in order of appearance.
func CustomSections(data []byte) ([]Custom, error) {
	sections, err := Sections(data)
	if err != nil {
		return nil, err
	}
	var out []Custom
	for _, s := range sections {
		if s.ID != SectionCustom {
			continue
		}
		r := bytes.NewReader(s.Payload)
		name, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("custom section name: %w", err)
		}
		rest := s.Payload[len(s.Payload)-r.Len():]
		out = append(out, Custom{Name: name, Data: rest})
	}
	return out, nil
}

// Exports decodes the export section. A module without one has no exports.
func Exports(data []byte) ([]Export, error) {
	sections, err := Sections(data)
	if err != nil {
		return nil, err
	}
	for _, s := range sections {
		if s.ID != SectionExport {
			continue
		}
		r := bytes.NewReader(s.Payload)
		count, err := ReadLEB128u(r)
		if err != nil {
			return nil, err
		}
		out := make([]Export, 0, count)
		for i := uint32(0); i < count; i++ {
			name, err := readName(r)
			if err != nil {
				return nil, fmt.Errorf("export %d name: %w", i, err)
			}
			kind, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			idx, err := ReadLEB128u(r)
			if err != nil {
				return nil, err
			}
			out = append(out, Export{Name: name, Kind: kind, Index: idx})
		}
		return out, nil
	}
	return nil, nil
}

// AppendCustomSection returns a copy of data with a custom section appended.
// Custom sections may appear anywhere, so appending keeps the module valid.
func AppendCustomSection(data []byte, name string, payload []byte) []byte {
	body := AppendLEB128u(nil, uint32(len(name)))
	body = append(body, name...)
	body = append(body, payload...)

	out := make([]byte, 0, len(data)+len(body)+6)
	out = append(out, data...)
	out = append(out, SectionCustom)
	out = AppendLEB128u(out, uint32(len(body)))
	return append(out, body...)
}

func readName(r *bytes.Reader) (string, error) {
	n, err := ReadLEB128u(r)
	if err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
