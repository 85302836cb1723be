package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"camscout/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse reads streams back from a JSON report
func (c *JSONCodec) Parse(r io.Reader) ([]domain.Stream, error) {
	var streams []domain.Stream
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&streams); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return streams, nil
}

// Export writes streams as an indented JSON array
func (c *JSONCodec) Export(streams []domain.Stream, w io.Writer) error {
	if streams == nil {
		streams = []domain.Stream{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(streams); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
