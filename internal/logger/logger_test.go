package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amerfu/llmrouter/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zap.DebugLevel,
		"INFO":    zap.InfoLevel,
		"warning": zap.WarnLevel,
		"error":   zap.ErrorLevel,
		"bogus":   zap.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestInitialize_WritesRotatingFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "router.log")

	log, err := Initialize(config.LoggingConfig{
		Level:      "debug",
		Format:     "json",
		OutputPath: "stderr",
		File:       logFile,
		MaxSizeMB:  1,
		MaxBackups: 1,
	})
	require.NoError(t, err)

	log.Info("routing decision", zap.String("model", "llama3.2-1b-fast"))
	_ = log.Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"model":"llama3.2-1b-fast"`)
	assert.Same(t, log, Logger)
	assert.NotPanics(t, Sync)
}
