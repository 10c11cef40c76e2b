package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

const (
	None = "none"
	BZ2  = "bz2"
	Gzip = "gzip"
	Zstd = "zstd"
)

// Compressor transforms one independent stream chunk by chunk. Compress may
// return an empty slice while the encoder accumulates a block. Flush must be
// called exactly once after the last Compress; it returns the buffered
// trailer. A Compressor is not reusable after Flush.
type Compressor interface {
	Compress(p []byte) ([]byte, error)
	Flush() ([]byte, error)
}

// Factory returns a fresh Compressor with its own state.
type Factory func() (Compressor, error)

type UnknownCompressorError struct {
	Name string
}

func (e *UnknownCompressorError) Error() string {
	return fmt.Sprintf("invalid compressor: %s", e.Name)
}

// NewFactory validates kind once and returns a constructor for it.
func NewFactory(kind string) (Factory, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case None, "":
		return func() (Compressor, error) { return Noop{}, nil }, nil
	case BZ2:
		return NewBZ2, nil
	case Gzip:
		return NewGzip, nil
	case Zstd:
		return NewZstd, nil
	default:
		return nil, &UnknownCompressorError{Name: kind}
	}
}

func New(kind string) (Compressor, error) {
	f, err := NewFactory(kind)
	if err != nil {
		return nil, err
	}
	return f()
}

// Suffix returns the file name suffix for a dump compressed with kind.
func Suffix(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case None, "":
		return ".sql", nil
	case BZ2:
		return ".sql.bz2", nil
	case Gzip:
		return ".sql.gz", nil
	case Zstd:
		return ".sql.zst", nil
	default:
		return "", &UnknownCompressorError{Name: kind}
	}
}

// writerCompressor adapts a streaming encoder that writes into buf.
type writerCompressor struct {
	buf    *bytes.Buffer
	w      io.WriteCloser
	closed bool
}

func (c *writerCompressor) Compress(p []byte) ([]byte, error) {
	if c.closed {
		return nil, fmt.Errorf("compress after flush")
	}
	if _, err := c.w.Write(p); err != nil {
		return nil, err
	}
	return c.drain(), nil
}

func (c *writerCompressor) Flush() ([]byte, error) {
	if c.closed {
		return nil, nil
	}
	c.closed = true

	// encoders write their trailer on Close
	if err := c.w.Close(); err != nil {
		return nil, err
	}
	return c.drain(), nil
}

func (c *writerCompressor) drain() []byte {
	if c.buf.Len() == 0 {
		return nil
	}
	out := bytes.Clone(c.buf.Bytes())
	c.buf.Reset()
	return out
}
