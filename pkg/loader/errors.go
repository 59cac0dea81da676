package loader

import "errors"

// Error kinds. Every error returned by Pipeline.Load wraps exactly one of
// them, so callers classify failures with errors.Is.
var (
	ErrIO       = errors.New("io error")
	ErrFormat   = errors.New("format error")
	ErrParse    = errors.New("parse error")
	ErrGeometry = errors.New("geometry error")
	ErrEncoding = errors.New("encoding error")
	ErrInternal = errors.New("internal fault")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrIO, "IoError"},
	{ErrFormat, "FormatError"},
	{ErrParse, "ParseError"},
	{ErrGeometry, "GeometryError"},
	{ErrEncoding, "EncodingError"},
	{ErrInternal, "InternalFault"},
}

// Kind names the error kind wrapped by err: "IoError", "FormatError",
// "ParseError", "GeometryError", "EncodingError" or "InternalFault". It
// returns "" for nil and "Unknown" for errors outside the taxonomy.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Unknown"
}
