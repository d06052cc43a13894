// Package fileprocessor handles file lists and naming for batch processing
package fileprocessor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/romsync/internal/interchange"
	"github.com/retroenv/romsync/internal/options"
)

const stateSuffix = ".state"

// GetFilesToProcess returns list of files to process based on options
func GetFilesToProcess(opts *options.Program) ([]string, error) {
	if opts.Batch != "" {
		matches, err := filepath.Glob(opts.Batch)
		if err != nil {
			return nil, fmt.Errorf("globbing batch pattern: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match batch pattern %s", opts.Batch)
		}
		return matches, nil
	}
	return []string{opts.Input}, nil
}

// GenerateOutputFilename generates the document filename for a given input
// file.
func GenerateOutputFilename(inputFile string, format interchange.Format) string {
	return trimExtension(inputFile) + "." + string(format)
}

// GenerateStateFilename generates the state document filename for a given
// input file.
func GenerateStateFilename(inputFile string, format interchange.Format) string {
	return trimExtension(inputFile) + stateSuffix + "." + string(format)
}

func trimExtension(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)]
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	logger.Info("romsync", log.String("version", buildinfo.Version(version, commit, date)))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}
