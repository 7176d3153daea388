package contract

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangsam/tzcluster/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		expected   string
	}{
		{"full", 1, HighValue},
		{"high boundary", 0.75, HighValue},
		{"just below high", 0.7499, MediumValue},
		{"medium boundary", 0.4, MediumValue},
		{"low", 0.1, LowValue},
		{"zero", 0, NoneValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetPlainLabel(tt.confidence))
		})
	}
}

func TestGetColorLabel(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		label      string
	}{
		{"none", 0, NoneValue},
		{"low", 0.2, LowValue},
		{"medium", 0.5, MediumValue},
		{"high", 0.9, HighValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetColorLabel(tt.confidence)
			// Should contain the plain label
			assert.Contains(t, result, tt.label)
		})
	}
}

func TestColorRegion(t *testing.T) {
	assert.Equal(t, "UK", ColorRegion("UK"))
	assert.Contains(t, ColorRegion(schema.UnclassifiedRegion), schema.UnclassifiedRegion)
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "test_output.txt")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestGetSummaryDBFilePath(t *testing.T) {
	path := GetSummaryDBFilePath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, SummaryDBFile)

	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, homeDir), "path %s should start with home dir %s", path, homeDir)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "Austral...", TruncateText("Australia Eastern", 10))
	assert.Equal(t, "abcdef", TruncateText("abcdef", 3))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")
	logger, closeLog, err := NewLogger(slog.LevelDebug, "json", logFile)
	require.NoError(t, err)

	logger.Info("stage finished", "stage", "features", "count", 3)
	require.NoError(t, closeLog())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stage":"features"`)
	assert.Contains(t, string(data), `"count":3`)
}

func TestNewLogger_BadPath(t *testing.T) {
	_, _, err := NewLogger(slog.LevelInfo, "text", filepath.Join(t.TempDir(), "missing", "run.log"))
	assert.Error(t, err)
}

func TestNewHandler_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, slog.LevelWarn, "text"))
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
