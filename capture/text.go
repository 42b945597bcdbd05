package capture

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// single byte selectors 0x01..0x0b of EN 300 468 annex A
var charsetSelectors = map[byte]*charmap.Charmap{
	0x01: charmap.ISO8859_5,
	0x02: charmap.ISO8859_6,
	0x03: charmap.ISO8859_7,
	0x04: charmap.ISO8859_8,
	0x05: charmap.ISO8859_9,
	0x06: charmap.ISO8859_10,
	0x07: charmap.Windows874,
	0x09: charmap.ISO8859_13,
	0x0a: charmap.ISO8859_14,
	0x0b: charmap.ISO8859_15,
}

// ISO 8859 part numbers reachable through the 0x10 selector
var iso8859Parts = map[byte]*charmap.Charmap{
	1:  charmap.ISO8859_1,
	2:  charmap.ISO8859_2,
	3:  charmap.ISO8859_3,
	4:  charmap.ISO8859_4,
	5:  charmap.ISO8859_5,
	6:  charmap.ISO8859_6,
	7:  charmap.ISO8859_7,
	8:  charmap.ISO8859_8,
	9:  charmap.ISO8859_9,
	10: charmap.ISO8859_10,
	11: charmap.Windows874,
	13: charmap.ISO8859_13,
	14: charmap.ISO8859_14,
	15: charmap.ISO8859_15,
	16: charmap.ISO8859_16,
}

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// decodeText converts a DVB SI string (leading charset selector byte
// optional) to UTF-8. The default table is ISO 6937, read here as Latin-1.
func decodeText(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var dec *encoding.Decoder
	switch c := b[0]; {
	case c >= 0x20:
		dec = charmap.ISO8859_1.NewDecoder()
	case charsetSelectors[c] != nil:
		dec = charsetSelectors[c].NewDecoder()
		b = b[1:]
	case c == 0x10 && len(b) >= 3:
		cm := iso8859Parts[b[2]]
		if cm == nil {
			cm = charmap.ISO8859_1
		}
		dec = cm.NewDecoder()
		b = b[3:]
	case c == 0x11:
		dec = utf16be.NewDecoder()
		b = b[1:]
	case c == 0x15:
		if utf8.Valid(b[1:]) {
			return cleanText(string(b[1:]))
		}
		dec = charmap.ISO8859_1.NewDecoder()
		b = b[1:]
	default:
		dec = charmap.ISO8859_1.NewDecoder()
		b = b[1:]
	}
	out, err := dec.Bytes(b)
	if err != nil {
		return cleanText(string(b))
	}
	return cleanText(string(out))
}

// drop emphasis and other C1 control codes
func cleanText(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 0x20 || (r >= 0x80 && r <= 0x9f) {
			return -1
		}
		return r
	}, s))
}

// decodeUTF16 decodes the fixed size UTF-16BE names used by ATSC tables.
func decodeUTF16(b []byte) string {
	out, err := utf16be.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(out), "\x00 ")
}
