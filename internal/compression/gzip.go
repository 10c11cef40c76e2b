package compression

import (
	"bytes"

	"github.com/klauspost/compress/gzip"
)

func NewGzip() (Compressor, error) {
	buf := &bytes.Buffer{}
	return &writerCompressor{buf: buf, w: gzip.NewWriter(buf)}, nil
}
