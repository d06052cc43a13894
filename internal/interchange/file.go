package interchange

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/retroenv/romsync/internal/errs"
)

// Format is the file format of a document.
type Format string

// Supported document formats.
const (
	JSON       Format = "json"
	JSONZstd   Format = "json.zst"
	JSONSnappy Format = "json.sz"
)

// Encode writes the document as indented JSON.
func Encode(w io.Writer, d *Document) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(d); err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	return nil
}

// Decode reads a JSON document.
func Decode(r io.Reader) (*Document, error) {
	var d Document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, errs.E(errs.Construction, "decoding document", err)
	}
	return &d, nil
}

// WriteFile writes the document to a file in the given format.
func WriteFile(path string, format Format, d *Document) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file '%s': %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing file '%s': %w", path, closeErr)
		}
	}()

	writer, err := newWriter(file, format)
	if err != nil {
		return err
	}
	if err := Encode(writer, d); err != nil {
		_ = writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("flushing document: %w", err)
	}
	return nil
}

// ReadFile reads a document file in the given format.
func ReadFile(path string, format Format) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file '%s': %w", path, err)
	}
	defer func() { _ = file.Close() }()

	reader, err := newReader(file, format)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	d, err := Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("reading file '%s': %w", path, err)
	}
	return d, nil
}

func newWriter(w io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case JSON:
		return nopCloser{w}, nil
	case JSONZstd:
		encoder, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		return encoder, nil
	case JSONSnappy:
		return snappy.NewBufferedWriter(w), nil
	default:
		return nil, errs.Errorf(errs.Usage, "writing document", "unsupported format '%s'", format)
	}
}

func newReader(r io.Reader, format Format) (io.ReadCloser, error) {
	switch format {
	case JSON:
		return io.NopCloser(r), nil
	case JSONZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		return &zstdReadCloser{decoder}, nil
	case JSONSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	default:
		return nil, errs.Errorf(errs.Usage, "reading document", "unsupported format '%s'", format)
	}
}

// nopCloser wraps an io.Writer to add a no-op Close method.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

type zstdReadCloser struct {
	*zstd.Decoder
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
