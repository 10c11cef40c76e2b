package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dev-tams/mydumpkit/internal/storage/prunable"
)

var (
	ErrNotADirectory  = errors.New("not a directory")
	ErrKeyOutsideBase = errors.New("key escapes the storage directory")
)

type Storage struct {
	name string
	base string
}

func New(name, basePath string) *Storage {
	return &Storage{name: name, base: basePath}
}

func (s *Storage) Name() string { return s.name }

func (s *Storage) Prepare(_ context.Context) error {
	if err := os.MkdirAll(s.base, 0o755); err != nil {
		if info, statErr := os.Stat(s.base); statErr == nil && !info.IsDir() {
			return fmt.Errorf("%s: %w", s.base, ErrNotADirectory)
		}
		return fmt.Errorf("mkdir: %w", err)
	}
	return s.checkDir()
}

func (s *Storage) checkDir() error {
	info, err := os.Stat(s.base)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", s.base, ErrNotADirectory)
		}
		return fmt.Errorf("stat: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", s.base, ErrNotADirectory)
	}
	return nil
}

func (s *Storage) OpenWriter(_ context.Context, key string) (io.WriteCloser, string, error) {
	finalPath, err := s.path(key)
	if err != nil {
		return nil, "", err
	}

	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, "", fmt.Errorf("create temp: %w", err)
	}

	return &Writer{f: f, tmpPath: tmpPath, finalPath: finalPath}, finalPath, nil
}

// Writer writes to a .tmp sibling and renames it over the final path on
// Close, so a finished file never appears half written.
type Writer struct {
	f         *os.File
	tmpPath   string
	finalPath string
	closed    bool
}

func (w *Writer) Write(p []byte) (int, error) { return w.f.Write(p) }

func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.tmpPath)
		return err
	}
	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		_ = os.Remove(w.tmpPath)
		return err
	}
	return nil
}

func (s *Storage) List(_ context.Context) ([]prunable.ObjectInfo, error) {
	if err := s.checkDir(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, fmt.Errorf("list dir: %w", err)
	}

	out := make([]prunable.ObjectInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		// in-flight writes
		if filepath.Ext(e.Name()) == ".tmp" {
			continue
		}

		info, err := e.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat: %w", err)
		}

		out = append(out, prunable.ObjectInfo{
			Key:     e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// path resolves key below the base directory.
func (s *Storage) path(key string) (string, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%q: %w", key, ErrKeyOutsideBase)
	}
	return filepath.Join(s.base, rel), nil
}
