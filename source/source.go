// Package source reads the JSON documents handed to the persistence engine.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Source yields JSON documents. Next returns io.EOF once it is exhausted.
type Source interface {
	Name() string
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Reader yields the whole content of an io.Reader as one document.
type Reader struct {
	name string
	r    io.Reader
	c    io.Closer
	done bool
}

var _ Source = (*Reader)(nil)

// NewReader wraps r. name identifies the input in logs.
func NewReader(name string, r io.Reader) *Reader {
	return &Reader{name: name, r: r}
}

// Open opens the file at path, or standard input when path is "-".
func Open(path string) (*Reader, error) {
	if path == "-" {
		return NewReader("stdin", os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &Reader{name: path, r: f, c: f}, nil
}

func (s *Reader) Name() string {
	return s.name
}

func (s *Reader) Next(ctx context.Context) ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.done = true
	data, err := io.ReadAll(s.r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.name, err)
	}
	return data, nil
}

func (s *Reader) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}
