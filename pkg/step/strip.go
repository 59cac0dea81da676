package step

import "fmt"

// SyntaxError reports malformed exchange structure text at a byte offset.
// Offsets from StripFlatten refer to the raw input; offsets from Parse refer
// to the normalized buffer.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("step: offset %d: %s", e.Offset, e.Msg)
}

// StripFlatten removes comments and all whitespace outside string literals.
// Line breaks inside string literals are dropped as well, since writers wrap
// long strings across lines. Everything else is copied through unchanged.
func StripFlatten(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	inString := false
	start := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			switch c {
			case '\'':
				out = append(out, c)
				if i+1 < len(data) && data[i+1] == '\'' {
					out = append(out, '\'')
					i++
					continue
				}
				inString = false
			case '\r', '\n':
			default:
				out = append(out, c)
			}
			continue
		}
		switch {
		case c == '\'':
			inString = true
			start = i
			out = append(out, c)
		case c == '/' && i+1 < len(data) && data[i+1] == '*':
			end := indexComment(data, i+2)
			if end < 0 {
				return nil, &SyntaxError{Offset: i, Msg: "unterminated comment"}
			}
			i = end + 1
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == '\v':
		default:
			out = append(out, c)
		}
	}
	if inString {
		return nil, &SyntaxError{Offset: start, Msg: "unterminated string literal"}
	}
	return out, nil
}

// indexComment returns the offset of the '*' of the closing "*/" at or after
// from, or -1.
func indexComment(data []byte, from int) int {
	for j := from; j+1 < len(data); j++ {
		if data[j] == '*' && data[j+1] == '/' {
			return j
		}
	}
	return -1
}
