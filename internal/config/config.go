// Package config handles application configuration and setup
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/romsync/internal/errs"
	"github.com/retroenv/romsync/internal/tileset"
)

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// LoadLayout returns the default layout, overridden by the values of the JSON
// file at path if path is set. Fields missing in the file keep their default.
func LoadLayout(path string) (tileset.Layout, error) {
	layout := tileset.DefaultLayout()
	if path == "" {
		return layout, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return layout, errs.E(errs.IO, "loading layout", fmt.Errorf("reading config file %s: %w", path, err))
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&layout); err != nil {
		return layout, errs.E(errs.Usage, "loading layout", fmt.Errorf("parsing config file %s: %w", path, err))
	}

	if err := layout.Validate(); err != nil {
		return layout, fmt.Errorf("config file %s: %w", path, err)
	}
	return layout, nil
}

// SaveLayout writes a layout as JSON config file.
func SaveLayout(path string, layout tileset.Layout) error {
	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding layout: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errs.E(errs.IO, "saving layout", fmt.Errorf("writing config file %s: %w", path, err))
	}
	return nil
}
