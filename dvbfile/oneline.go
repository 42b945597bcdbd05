package dvbfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ParseOneline reads a positional channel file. defaultSystem picks the
// layout for grammars whose lines carry no system tag.
func ParseOneline(path string, defaultSystem DeliverySystem, g *Grammar) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer fh.Close()
	return DecodeOneline(fh, path, defaultSystem, g)
}

// DecodeOneline is ParseOneline on an open reader; name is used in errors.
// The first bad line aborts the whole read.
func DecodeOneline(r io.Reader, name string, defaultSystem DeliverySystem, g *Grammar) (*File, error) {
	var fixed *Layout
	if !g.HasSystemID {
		fixed = g.layoutBySystem(defaultSystem)
		if fixed == nil {
			fixed = g.layoutBySystem(CompatSystem(defaultSystem))
		}
		if fixed == nil {
			return nil, &Error{Kind: ErrUnsupportedSystem, File: name,
				Msg: fmt.Sprintf("%s format has no layout for %s", g.Name, defaultSystem)}
		}
	}

	file := &File{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimLeft(text, " \t")
		if trimmed == "" || trimmed[0] == '#' || trimmed[0] == '\a' {
			continue
		}
		fields := g.split(trimmed)
		layout := fixed
		if g.HasSystemID {
			layout = g.layoutByID(strings.TrimSpace(fields[0]))
			if layout == nil {
				return nil, &Error{Kind: ErrParseSyntax, File: name, Line: line,
					Msg: fmt.Sprintf("unknown delivery system tag %q", fields[0])}
			}
			fields = fields[1:]
		}
		entry, err := decodeLine(fields, layout)
		if err != nil {
			return nil, located(err, name, line)
		}
		file.Append(entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return file, nil
}

func decodeLine(fields []string, layout *Layout) (*Entry, error) {
	entry := NewEntry()
	if err := entry.Store(PropDeliverySystem, uint32(layout.System)); err != nil {
		return nil, err
	}
	hasInversion := false
	for i, col := range layout.Columns {
		if i >= len(fields) {
			return nil, &Error{Kind: ErrParseSyntax,
				Msg: fmt.Sprintf("parameter %d (%s) missing", i+1, col.Prop)}
		}
		tok := fields[i]
		if col.Prop == PropChannelName {
			entry.Channel = tok
			continue
		}
		tok = strings.TrimSpace(tok)

		if col.Tokens != nil {
			idx := indexFold(col.Tokens, tok)
			if idx < 0 {
				return nil, &Error{Kind: ErrInvalidValue,
					Msg: fmt.Sprintf("parameter %s invalid: %s", col.Prop, tok)}
			}
			value := uint32(idx)
			if col.Values != nil {
				value = col.Values[idx]
			}
			if err := entry.Store(col.Prop, value); err != nil {
				return nil, err
			}
			if col.Prop == PropInversion {
				hasInversion = true
			}
			continue
		}

		bits := 32
		switch col.Prop {
		case PropVideoPID, PropAudioPID, PropServiceID:
			bits = 16
		}
		n, err := strconv.ParseUint(tok, 10, bits)
		if err != nil {
			return nil, &Error{Kind: ErrInvalidValue,
				Msg: fmt.Sprintf("parameter %s invalid: %q is not a %d bits number", col.Prop, tok, bits)}
		}
		if col.Multiplier > 1 {
			n *= uint64(col.Multiplier)
			if n > math.MaxUint32 {
				return nil, &Error{Kind: ErrInvalidValue,
					Msg: fmt.Sprintf("parameter %s invalid: %s out of range", col.Prop, tok)}
			}
		}
		switch col.Prop {
		case PropVideoPID:
			entry.VideoPIDs = []uint16{uint16(n)}
		case PropAudioPID:
			entry.AudioPIDs = []uint16{uint16(n)}
		case PropServiceID:
			entry.ServiceID = uint16(n)
		default:
			if err := entry.Store(col.Prop, uint32(n)); err != nil {
				return nil, err
			}
		}
	}
	if !hasInversion {
		if err := entry.Store(PropInversion, InversionAuto); err != nil {
			return nil, err
		}
	}
	entry.Normalize()
	return entry, nil
}

// WriteOneline writes f to path using grammar g.
func WriteOneline(path string, f *File, defaultSystem DeliverySystem, g *Grammar) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := EncodeOneline(fh, path, f, defaultSystem, g); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// EncodeOneline writes one line per entry. Entries without a delivery
// system use defaultSystem.
func EncodeOneline(w io.Writer, name string, f *File, defaultSystem DeliverySystem, g *Grammar) error {
	bw := bufio.NewWriter(w)
	for n, entry := range f.Entries {
		sys, ok := entry.normalizedSystem()
		if !ok {
			sys = defaultSystem
		}
		layout := g.layoutBySystem(CompatSystem(sys))
		if layout == nil {
			return &Error{Kind: ErrUnsupportedSystem, File: name, Line: n + 1,
				Msg: fmt.Sprintf("delivery system %s not supported on %s format", sys, g.Name)}
		}

		fields := make([]string, 0, len(layout.Columns)+1)
		if g.HasSystemID {
			fields = append(fields, layout.ID)
		}
		for _, col := range layout.Columns {
			s, err := encodeColumn(entry, col)
			if err != nil {
				return located(err, name, n+1)
			}
			fields = append(fields, s)
		}
		if _, err := fmt.Fprintln(bw, g.join(fields)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func encodeColumn(entry *Entry, col Column) (string, error) {
	switch col.Prop {
	case PropChannelName:
		if entry.Channel == "" {
			logger.Warn("missing channel name", zap.Uint16("service_id", entry.ServiceID))
			return "0", nil
		}
		return entry.Channel, nil
	case PropVideoPID:
		return firstPID(entry.VideoPIDs, entry, "missing video PID"), nil
	case PropAudioPID:
		return firstPID(entry.AudioPIDs, entry, "missing audio PID"), nil
	case PropServiceID:
		return strconv.Itoa(int(entry.ServiceID)), nil
	}

	value, ok := entry.Retrieve(col.Prop)
	if col.Tokens == nil {
		if !ok {
			logger.Warn("property not set", zap.Stringer("property", col.Prop))
			return "0", nil
		}
		if col.Multiplier > 1 {
			value /= col.Multiplier
		}
		return strconv.FormatUint(uint64(value), 10), nil
	}

	idx := int(value)
	if col.Values != nil {
		idx = -1
		for i, v := range col.Values {
			if v == value {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = indexFold(col.Tokens, col.Auto)
		}
	}
	if !ok {
		if col.Auto == "" {
			logger.Warn("property not set", zap.Stringer("property", col.Prop))
			return "0", nil
		}
		logger.Warn("property not set, writing AUTO", zap.Stringer("property", col.Prop))
		idx = indexFold(col.Tokens, col.Auto)
	}
	if idx < 0 || idx >= len(col.Tokens) || col.Tokens[idx] == "" {
		return "", &Error{Kind: ErrUnsupportedValue,
			Msg: fmt.Sprintf("value %d not supported for %s", value, col.Prop)}
	}
	return col.Tokens[idx], nil
}

func firstPID(pids []uint16, entry *Entry, warning string) string {
	if len(pids) == 0 {
		logger.Warn(warning, zap.String("channel", entry.Channel), zap.Uint16("service_id", entry.ServiceID))
		return "0"
	}
	return strconv.Itoa(int(pids[0]))
}
