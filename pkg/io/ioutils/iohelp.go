// Package ioutils has small file helpers shared by the dataset readers and
// writers.
package ioutils

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
)

// Open opens a file path or stdin ("-"). Files ending in .gz, or whose first
// bytes carry the gzip magic, are transparently decompressed.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return io.NopCloser(bufio.NewReader(os.Stdin)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	if magic, err := br.Peek(2); filepath.Ext(path) == ".gz" ||
		(err == nil && len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return &readCloser{Reader: zr, close: func() error { _ = zr.Close(); return f.Close() }}, nil
	}
	return &readCloser{Reader: br, close: f.Close}, nil
}

// Create creates a file (or stdout for "-"). A .gz extension enables gzip
// compression.
func Create(path string) (io.WriteCloser, error) {
	if path == "-" || path == "" {
		bw := bufio.NewWriter(os.Stdout)
		return &writeCloser{Writer: bw, close: bw.Flush}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == ".gz" {
		zw := gzip.NewWriter(f)
		return &writeCloser{Writer: zw, close: func() error { _ = zw.Close(); return f.Close() }}, nil
	}
	bw := bufio.NewWriter(f)
	return &writeCloser{Writer: bw, close: func() error { _ = bw.Flush(); return f.Close() }}, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r *readCloser) Close() error { return r.close() }

type writeCloser struct {
	io.Writer
	close func() error
}

func (w *writeCloser) Close() error { return w.close() }
