package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"camscout/internal/domain"
)

// YAMLCodec writes YAML reports
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlReport is the document root of a YAML report
type yamlReport struct {
	Streams []domain.Stream `yaml:"streams"`
}

// Export writes streams under a top-level streams key
func (c *YAMLCodec) Export(streams []domain.Stream, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(yamlReport{Streams: streams}); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return encoder.Close()
}
