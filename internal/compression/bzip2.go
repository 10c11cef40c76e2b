package compression

import (
	"bytes"
	"fmt"

	"github.com/dsnet/compress/bzip2"
)

func NewBZ2() (Compressor, error) {
	buf := &bytes.Buffer{}
	w, err := bzip2.NewWriter(buf, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	if err != nil {
		return nil, fmt.Errorf("bzip2 writer: %w", err)
	}
	return &writerCompressor{buf: buf, w: w}, nil
}
