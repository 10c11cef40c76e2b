//go:build !unix

package backup

import (
	"fmt"
	"os"
)

// defaultsFile falls back to an owner-only temp file where named pipes are
// unavailable.
type defaultsFile struct {
	path string
}

func newDefaultsFile(content []byte) (*defaultsFile, error) {
	f, err := os.CreateTemp("", "mydumpkit-*.cnf")
	if err != nil {
		return nil, fmt.Errorf("defaults file: %w", err)
	}
	_, err = f.Write(content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("write defaults file: %w", err)
	}
	return &defaultsFile{path: f.Name()}, nil
}

func (d *defaultsFile) Path() string { return d.path }

func (d *defaultsFile) Remove() error { return os.Remove(d.path) }
