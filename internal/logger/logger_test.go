package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"camscout/internal/config"
)

func TestNew_Console(t *testing.T) {
	l, err := New(config.LoggingConfig{Level: "debug", Output: "console"})
	require.NoError(t, err)
	defer l.Close()

	assert.True(t, l.Core().Enabled(zap.DebugLevel))
	assert.Nil(t, l.fileWriter)
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := New(config.LoggingConfig{Level: "chatty"})
	require.NoError(t, err)
	defer l.Close()

	assert.False(t, l.Core().Enabled(zap.DebugLevel))
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	l, err := New(config.LoggingConfig{Level: "info", Output: "file", FilePath: path})
	require.NoError(t, err)

	l.Info("stream found", zap.String("address", "10.0.0.1"))
	l.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Contains(t, line, `"msg":"stream found"`)
	assert.Contains(t, line, `"address":"10.0.0.1"`)

	assert.Equal(t, defaultMaxSize, l.fileWriter.MaxSize)
	assert.Equal(t, defaultMaxBackups, l.fileWriter.MaxBackups)
}
