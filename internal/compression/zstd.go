package compression

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

func NewZstd() (Compressor, error) {
	buf := &bytes.Buffer{}
	// one encoder goroutine keeps output ordering tied to the caller
	enc, err := zstd.NewWriter(buf, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &writerCompressor{buf: buf, w: enc}, nil
}
