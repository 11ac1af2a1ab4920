package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Local writes artifacts into a directory.
type Local struct {
	Dir string
}

// NewLocal creates dir if needed.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = "reports"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve reports dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}
	return &Local{Dir: abs}, nil
}

func (l *Local) path(filename string) (string, error) {
	if err := validateName(filename); err != nil {
		return "", err
	}
	return filepath.Join(l.Dir, filename), nil
}

func (l *Local) Save(_ context.Context, content, filename string) (string, error) {
	p, err := l.path(filename)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%s: %w", filename, ErrExists)
		}
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return p, nil
}

// URLFor returns the absolute file path.
func (l *Local) URLFor(_ context.Context, filename string) (string, error) {
	return l.path(filename)
}

func (l *Local) Exists(_ context.Context, filename string) (bool, error) {
	p, err := l.path(filename)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (l *Local) Read(_ context.Context, filename string) (string, error) {
	p, err := l.path(filename)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", filename, ErrNotFound)
	}
	return string(b), err
}
