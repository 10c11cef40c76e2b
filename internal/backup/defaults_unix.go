//go:build unix

package backup

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// defaultsFile is a named pipe in a private temp dir. The content never
// touches the disk; the tool reads it straight from the pipe.
type defaultsFile struct {
	dir  string
	path string
	done chan error
}

func newDefaultsFile(content []byte) (*defaultsFile, error) {
	dir, err := os.MkdirTemp("", "mydumpkit-")
	if err != nil {
		return nil, fmt.Errorf("defaults dir: %w", err)
	}

	path := filepath.Join(dir, "my.cnf")
	if err := unix.Mkfifo(path, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("mkfifo: %w", err)
	}

	d := &defaultsFile{dir: dir, path: path, done: make(chan error, 1)}
	go func() {
		// blocks until the tool opens the pipe for reading
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			d.done <- err
			return
		}
		_, err = f.Write(content)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		d.done <- err
	}()

	return d, nil
}

func (d *defaultsFile) Path() string { return d.path }

// Remove releases the writer and deletes the pipe. It must only be called
// once the tool has exited.
func (d *defaultsFile) Remove() error {
	// a tool that never opened the pipe leaves the writer blocked in open
	r, err := os.OpenFile(d.path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	<-d.done
	if err == nil {
		_ = r.Close()
	}
	return os.RemoveAll(d.dir)
}
