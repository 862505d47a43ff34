package tpx3

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/slices"
)

const (
	CaptureExtension    = ".tpx3"
	CentroidedExtension = ".tpx3c"
	zstdExtension       = ".zst"
)

// captureExtensions are matched in order, so compressed forms come first.
var captureExtensions = []string{
	CentroidedExtension + zstdExtension,
	CaptureExtension + zstdExtension,
	CentroidedExtension,
	CaptureExtension,
}

func captureExtension(name string) (string, bool) {
	for _, ext := range captureExtensions {
		if strings.HasSuffix(name, ext) {
			return ext, true
		}
	}
	return "", false
}

// FindCaptures lists the capture files in dir, sorted by name.
func FindCaptures(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &IOError{Filename: dir, Err: err}
	}
	files := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := captureExtension(entry.Name()); ok {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

// DatasetName strips the directory and capture extension from path.
func DatasetName(path string) string {
	name := filepath.Base(path)
	if ext, ok := captureExtension(name); ok {
		return strings.TrimSuffix(name, ext)
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

type captureFile struct {
	io.Reader
	file    *os.File
	decoder *zstd.Decoder
}

func (c *captureFile) Close() error {
	if c.decoder != nil {
		c.decoder.Close()
	}
	return c.file.Close()
}

// OpenCapture opens a plain or zstd-compressed (.zst) capture. Plain captures keep
// their io.Seeker so the decoder can rewind them.
func OpenCapture(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Filename: path, Err: err}
	}
	if !strings.HasSuffix(path, zstdExtension) {
		return file, nil
	}
	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, errors.Join(&IOError{Filename: path, Err: fmt.Errorf("zstd decoder: %w", err)}, file.Close())
	}
	return &captureFile{Reader: decoder, file: file, decoder: decoder}, nil
}
