// Package codec serialises discovered streams into report files.
package codec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"camscout/internal/domain"
)

// Exporter interface for exporting streams to various formats
type Exporter interface {
	Export(streams []domain.Stream, w io.Writer) error
	Format() string
}

// ForFormat returns the exporter registered for format
func ForFormat(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json", "":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	case "m3u", "m3u8":
		return NewM3UCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// Extension returns the file extension used for format, dot included
func Extension(exp Exporter) string {
	return "." + exp.Format()
}

// WriteFile exports streams to path, creating parent directories
func WriteFile(path string, exp Exporter, streams []domain.Stream) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create report directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open report %s: %w", path, err)
	}
	if err := exp.Export(streams, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
