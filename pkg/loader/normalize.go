package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/chazu/foxtrot/pkg/step"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// DefaultMaxInflatedSize bounds the decompressed size of a gzip or zstd
// wrapped file. Running out of memory is fatal to the host, not an error.
const DefaultMaxInflatedSize = 1 << 30

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	utf8BOM   = []byte{0xef, 0xbb, 0xbf}
)

var errTooLarge = errors.New("decompressed size exceeds limit")

// Normalize turns raw file bytes into the flat form step.Parse accepts:
// gzip and zstd containers are inflated (up to limit bytes, when limit is
// positive), a UTF-8 byte order mark is dropped, and comments and layout
// whitespace are removed.
func Normalize(data []byte, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxInflatedSize
	}
	var err error
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		data, err = gunzip(data, limit)
	case bytes.HasPrefix(data, zstdMagic):
		data, err = unzstd(data, limit)
	}
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	return step.StripFlatten(data)
}

func gunzip(data []byte, limit int64) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("gzip: %w", errTooLarge)
	}
	return out, nil
}

func unzstd(data []byte, limit int64) ([]byte, error) {
	// Concurrency 1 keeps DecodeAll on the calling goroutine.
	d, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(uint64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	defer d.Close()
	out, err := d.DecodeAll(data, nil)
	if err != nil {
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			err = errTooLarge
		}
		return nil, fmt.Errorf("zstd: %w", err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("zstd: %w", errTooLarge)
	}
	return out, nil
}
