package step

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Alphabets selectable with the \PA\ ... \PI\ page directives. \S\ escapes
// are decoded in the current alphabet; \X\ is always ISO 8859-1.
var pages = [...]*charmap.Charmap{
	charmap.ISO8859_1, charmap.ISO8859_2, charmap.ISO8859_3,
	charmap.ISO8859_4, charmap.ISO8859_5, charmap.ISO8859_6,
	charmap.ISO8859_7, charmap.ISO8859_8, charmap.ISO8859_9,
}

var (
	ucs2 = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	ucs4 = utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
)

// decodeString resolves the control directives of a string literal whose
// quotes and doubled apostrophes have already been removed. Backslashes
// that do not start a known directive are kept literally.
func decodeString(raw []byte) (string, error) {
	if !strings.ContainsRune(string(raw), '\\') {
		return string(raw), nil
	}
	var b strings.Builder
	page := pages[0]
	for i := 0; i < len(raw); {
		c := raw[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		rest := raw[i:]
		switch {
		case hasPrefix(rest, `\\`):
			b.WriteByte('\\')
			i += 2
		case hasPrefix(rest, `\N\`):
			b.WriteByte('\n')
			i += 3
		case hasPrefix(rest, `\T\`):
			b.WriteByte('\t')
			i += 3
		case len(rest) >= 4 && rest[1] == 'P' && rest[3] == '\\' && rest[2] >= 'A' && rest[2] <= 'I':
			page = pages[rest[2]-'A']
			i += 4
		case hasPrefix(rest, `\S\`) && len(rest) >= 4:
			b.WriteRune(page.DecodeByte(rest[3] + 0x80))
			i += 4
		case hasPrefix(rest, `\X\`) && len(rest) >= 5:
			var one [1]byte
			if _, err := hex.Decode(one[:], rest[3:5]); err != nil {
				return "", errors.New(`malformed \X\ escape`)
			}
			b.WriteRune(charmap.ISO8859_1.DecodeByte(one[0]))
			i += 5
		case hasPrefix(rest, `\X2\`):
			n, err := decodeWide(&b, rest[4:], 4, ucs2)
			if err != nil {
				return "", err
			}
			i += 4 + n
		case hasPrefix(rest, `\X4\`):
			n, err := decodeWide(&b, rest[4:], 8, ucs4)
			if err != nil {
				return "", err
			}
			i += 4 + n
		default:
			b.WriteByte('\\')
			i++
		}
	}
	return b.String(), nil
}

// decodeWide decodes hex groups of width digits up to the closing \X0\ and
// returns the number of bytes consumed, terminator included.
func decodeWide(b *strings.Builder, s []byte, width int, enc encoding.Encoding) (int, error) {
	end := strings.Index(string(s), `\X0\`)
	if end < 0 {
		return 0, errors.New(`unterminated \X2\ or \X4\ escape`)
	}
	digits := s[:end]
	if len(digits)%width != 0 {
		return 0, errors.New(`malformed \X2\ or \X4\ escape`)
	}
	units := make([]byte, len(digits)/2)
	if _, err := hex.Decode(units, digits); err != nil {
		return 0, errors.New(`malformed \X2\ or \X4\ escape`)
	}
	text, err := enc.NewDecoder().Bytes(units)
	if err != nil {
		return 0, err
	}
	b.Write(text)
	return end + 4, nil
}

func hasPrefix(s []byte, prefix string) bool {
	return len(s) >= len(prefix) && string(s[:len(prefix)]) == prefix
}
