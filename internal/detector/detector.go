// Package detector handles interchange document format detection.
package detector

import (
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/romsync/internal/interchange"
)

// Detector handles document format detection from file names and options.
type Detector struct {
	logger *log.Logger
}

// New creates a new format detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Detect determines the document format from the format option or the file
// name. It first checks if a format is explicitly specified, otherwise the
// format is detected from the file name extension.
func (d *Detector) Detect(path, format string) interchange.Format {
	if f, ok := formatFromString(format); ok {
		return f
	}

	f := d.detectFromFile(path)
	d.logger.Debug("Auto-detected document format",
		log.String("format", string(f)),
		log.String("file", path))
	return f
}

func formatFromString(s string) (interchange.Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return interchange.JSON, true
	case "json.zst", "zst", "zstd":
		return interchange.JSONZstd, true
	case "json.sz", "sz", "snappy":
		return interchange.JSONSnappy, true
	default:
		return "", false
	}
}

// detectFromFile determines the format based on the file extension.
func (d *Detector) detectFromFile(path string) interchange.Format {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".zst":
		return interchange.JSONZstd
	case ".sz":
		return interchange.JSONSnappy
	default:
		// Default to plain JSON for unknown extensions
		return interchange.JSON
	}
}

// Valid returns whether a format option names a supported format. An empty
// option selects auto-detection and is valid.
func Valid(format string) bool {
	if format == "" {
		return true
	}
	_, ok := formatFromString(format)
	return ok
}

// Formats returns the names of the supported formats.
func Formats() []string {
	return []string{string(interchange.JSON), string(interchange.JSONZstd), string(interchange.JSONSnappy)}
}
