package dvbfile

import (
	"fmt"
	"strings"
)

// Format selects one of the supported channel file formats.
type Format int

const (
	FormatUnknown Format = iota
	FormatLegacy
	FormatZap
	FormatDVBv5
)

var formatNames = map[string]Format{
	"CHANNEL": FormatLegacy,
	"ZAP":     FormatZap,
	"DVBV5":   FormatDVBv5,
}

func (f Format) String() string {
	for name, v := range formatNames {
		if v == f {
			return name
		}
	}
	return "UNKNOWN"
}

// ParseFormat maps a user supplied format name to a Format.
func ParseFormat(name string) Format {
	return formatNames[strings.ToUpper(strings.TrimSpace(name))]
}

func (f Format) grammar() *Grammar {
	switch f {
	case FormatLegacy:
		return LegacyGrammar
	case FormatZap:
		return ZapGrammar
	}
	return nil
}

// ReadFileFormat reads path with the codec for format.
func ReadFileFormat(path string, format Format, defaultSystem DeliverySystem) (*File, error) {
	if format == FormatDVBv5 {
		return ReadFile(path)
	}
	g := format.grammar()
	if g == nil {
		return nil, fmt.Errorf("reading %s: unknown file format %d", path, format)
	}
	return ParseOneline(path, defaultSystem, g)
}

// WriteFileFormat writes f to path with the codec for format.
func WriteFileFormat(path string, f *File, format Format, defaultSystem DeliverySystem) error {
	if format == FormatDVBv5 {
		return WriteFile(path, f)
	}
	g := format.grammar()
	if g == nil {
		return fmt.Errorf("writing %s: unknown file format %d", path, format)
	}
	return WriteOneline(path, f, defaultSystem, g)
}
