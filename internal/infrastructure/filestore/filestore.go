// Package filestore reads and rewrites line-oriented data files.
package filestore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LineStore is the raw persistence port: the full ordered set of lines of
// one file.
type LineStore interface {
	ReadLines(ctx context.Context) ([]string, error)
	WriteLines(ctx context.Context, lines []string) error
}

type File struct {
	path string
}

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// ReadLines returns the non-blank lines of the file in order. A missing
// file yields no lines.
func (f *File) ReadLines(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: open %s: %w", f.path, err)
	}
	defer fh.Close()

	var lines []string
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("filestore: read %s: %w", f.path, err)
	}
	return lines, nil
}

// WriteLines replaces the file with lines. The content goes to a temporary
// file in the same directory which is synced and renamed over the target,
// so readers see either the old or the new file.
func (f *File) WriteLines(ctx context.Context, lines []string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err = w.WriteString(line); err != nil {
			return fmt.Errorf("filestore: write %s: %w", f.path, err)
		}
		if err = w.WriteByte('\n'); err != nil {
			return fmt.Errorf("filestore: write %s: %w", f.path, err)
		}
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("filestore: flush %s: %w", f.path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("filestore: sync %s: %w", f.path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close %s: %w", f.path, err)
	}
	if err = os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("filestore: replace %s: %w", f.path, err)
	}
	return nil
}
