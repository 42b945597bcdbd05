package dvbfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// groupKeyword is the header used for entries without a channel name.
const groupKeyword = "CHANNEL"

// ReadFile reads a channel file in the native key/value format.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer fh.Close()
	return Decode(fh, path)
}

// Decode parses the key/value format:
//
//	[name]
//		KEY = value
//
// Unknown keys are ignored. name is only used in errors.
func Decode(r io.Reader, name string) (*File, error) {
	file := &File{}
	var entry *Entry

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		p := strings.TrimLeft(strings.TrimRight(sc.Text(), "\r"), " \t")
		if p == "" || p[0] == '#' || p[0] == '\a' {
			continue
		}

		if p[0] == '[' {
			title := p[1:]
			if i := strings.IndexByte(title, ']'); i >= 0 {
				title = title[:i]
			}
			title = strings.TrimSpace(title)
			if title == "" {
				return nil, &Error{Kind: ErrParseSyntax, File: name, Line: line, Msg: "empty channel group"}
			}
			if entry != nil {
				entry.Normalize()
			}
			entry = NewEntry()
			if !strings.EqualFold(title, groupKeyword) {
				entry.Channel = title
			}
			file.Append(entry)
			continue
		}

		if entry == nil {
			return nil, &Error{Kind: ErrMissingContext, File: name, Line: line,
				Msg: "key/value found before any [channel] group"}
		}
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			return nil, &Error{Kind: ErrParseSyntax, File: name, Line: line, Msg: "missing value"}
		}
		if key == "" {
			return nil, &Error{Kind: ErrParseSyntax, File: name, Line: line, Msg: "missing key"}
		}
		if err := fillEntry(entry, key, value); err != nil {
			return nil, located(err, name, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if entry != nil {
		entry.Normalize()
	}
	return file, nil
}

func fillEntry(e *Entry, key, value string) error {
	if id, ok := lookupProperty(key); ok {
		if names := AttrNames(id); names != nil {
			idx := indexFold(names, value)
			if idx < 0 {
				return &Error{Kind: ErrInvalidValue, Msg: fmt.Sprintf("value %s is invalid for %s", value, id)}
			}
			return e.Store(id, uint32(idx))
		}
		v, err := parseUint(key, value, 32)
		if err != nil {
			return err
		}
		return e.Store(id, uint32(v))
	}

	switch strings.ToUpper(key) {
	case "SERVICE_ID":
		v, err := parseUint(key, value, 16)
		e.ServiceID = uint16(v)
		return err
	case "VCHANNEL":
		e.VChannel = value
	case "SAT_NUMBER":
		v, err := strconv.Atoi(value)
		if err != nil {
			return &Error{Kind: ErrInvalidValue, Msg: fmt.Sprintf("%s: %q is not a number", key, value)}
		}
		e.SatNumber = v
	case "FREQ_BPF":
		v, err := parseUint(key, value, 32)
		e.FreqBPF = uint32(v)
		return err
	case "DISEQC_WAIT":
		v, err := parseUint(key, value, 32)
		e.DiseqcWait = uint32(v)
		return err
	case "LNB":
		e.LNB = value
	case "POLARIZATION":
		idx := indexFold(polarizationNames, value)
		if idx < 0 {
			return &Error{Kind: ErrInvalidValue, Msg: fmt.Sprintf("value %s is invalid for %s", value, key)}
		}
		return e.Store(PropPolarization, uint32(idx))
	case "VIDEO_PID":
		pids, err := parsePIDs(key, value)
		e.VideoPIDs = append(e.VideoPIDs, pids...)
		return err
	case "AUDIO_PID":
		pids, err := parsePIDs(key, value)
		e.AudioPIDs = append(e.AudioPIDs, pids...)
		return err
	default:
		if len(key) > 4 && strings.EqualFold(key[:4], "PID_") {
			typ, err := strconv.ParseUint(key[4:], 16, 8)
			if err != nil || typ == 0 {
				return nil
			}
			pids, err := parsePIDs(key, value)
			for _, pid := range pids {
				e.OtherPIDs = append(e.OtherPIDs, ElementaryPID{Type: uint8(typ), PID: pid})
			}
			return err
		}
	}
	return nil
}

func parseUint(key, value string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(value, 10, bits)
	if err != nil {
		return 0, &Error{Kind: ErrInvalidValue, Msg: fmt.Sprintf("%s: %q is not a number", key, value)}
	}
	return v, nil
}

func parsePIDs(key, value string) ([]uint16, error) {
	var pids []uint16
	for _, f := range strings.Fields(value) {
		v, err := parseUint(key, f, 16)
		if err != nil {
			return nil, err
		}
		pids = append(pids, uint16(v))
	}
	return pids, nil
}

// WriteFile writes f to path in the native key/value format.
func WriteFile(path string, f *File) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Encode(fh, f); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// Encode writes f in the native key/value format.
func Encode(w io.Writer, f *File) error {
	bw := bufio.NewWriter(w)
	for _, e := range f.Entries {
		encodeEntry(bw, e)
	}
	return bw.Flush()
}

func encodeEntry(w *bufio.Writer, e *Entry) {
	if e.Channel != "" {
		fmt.Fprintf(w, "[%s]\n", e.Channel)
	} else {
		fmt.Fprintf(w, "[%s]\n", groupKeyword)
	}
	if e.VChannel != "" {
		fmt.Fprintf(w, "\tVCHANNEL = %s\n", e.VChannel)
	}
	if e.ServiceID != 0 {
		fmt.Fprintf(w, "\tSERVICE_ID = %d\n", e.ServiceID)
	}
	writePIDs(w, "VIDEO_PID", e.VideoPIDs)
	writePIDs(w, "AUDIO_PID", e.AudioPIDs)

	for i, o := range e.OtherPIDs {
		if i == 0 || o.Type != e.OtherPIDs[i-1].Type {
			if i > 0 {
				w.WriteString("\n\n")
			}
			fmt.Fprintf(w, "\tPID_%02x =", o.Type)
		}
		fmt.Fprintf(w, " %d", o.PID)
	}
	if len(e.OtherPIDs) > 0 {
		w.WriteString("\n")
	}

	if e.SatNumber >= 0 {
		fmt.Fprintf(w, "\tSAT_NUMBER = %d\n", e.SatNumber)
	}
	if e.FreqBPF > 0 {
		fmt.Fprintf(w, "\tFREQ_BPF = %d\n", e.FreqBPF)
	}
	if e.DiseqcWait > 0 {
		fmt.Fprintf(w, "\tDISEQC_WAIT = %d\n", e.DiseqcWait)
	}
	if e.LNB != "" {
		fmt.Fprintf(w, "\tLNB = %s\n", e.LNB)
	}

	// standard properties first, extensions after
	props := e.Props()
	sort.SliceStable(props, func(i, j int) bool {
		return props[i].ID < UserCommandStart && props[j].ID >= UserCommandStart
	})
	for _, p := range props {
		if p.ID == PropDeliverySystem {
			sys, _ := e.normalizedSystem()
			p.Value = uint32(sys)
		}
		if tok, ok := attrToken(p.ID, p.Value); ok {
			fmt.Fprintf(w, "\t%s = %s\n", p.ID, tok)
		} else {
			fmt.Fprintf(w, "\t%s = %d\n", p.ID, p.Value)
		}
	}
	w.WriteString("\n")
}

func writePIDs(w *bufio.Writer, key string, pids []uint16) {
	if len(pids) == 0 {
		return
	}
	fmt.Fprintf(w, "\t%s =", key)
	for _, pid := range pids {
		fmt.Fprintf(w, " %d", pid)
	}
	w.WriteString("\n")
}
