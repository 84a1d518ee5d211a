// Package file reads cost exports from the local filesystem and watches them
// for changes.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	lo "github.com/samber/lo"
)

// ErrNoExports is returned when a directory holds no .csv file.
var ErrNoExports = errors.New("no csv exports found")

// Source serves a single export file, or the most recently modified .csv in a
// directory.
type Source struct {
	path string
}

// NewSource returns a Source for path, which may be a file or a directory.
func NewSource(path string) *Source {
	return &Source{path: filepath.Clean(path)}
}

// Name identifies the source in logs and bundles.
func (s *Source) Name() string { return "file://" + s.path }

// Path returns the configured path.
func (s *Source) Path() string { return s.path }

// Fetch opens the current export.
func (s *Source) Fetch(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Resolve()
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Resolve returns the file Fetch would read.
func (s *Source) Resolve() (string, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		return s.path, nil
	}
	return latestCSV(s.path)
}

type candidate struct {
	path string
	info os.FileInfo
}

func latestCSV(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory: %w", err)
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{path: filepath.Join(dir, e.Name()), info: info})
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%s: %w", dir, ErrNoExports)
	}
	best := lo.MaxBy(files, func(a, b candidate) bool {
		if a.info.ModTime().Equal(b.info.ModTime()) {
			return a.path > b.path
		}
		return a.info.ModTime().After(b.info.ModTime())
	})
	return best.path, nil
}
