package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewLogger tests the creation of a new JSON logger
func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
	}{
		{
			name:     "default log level (info)",
			logLevel: "",
		},
		{
			name:     "debug log level",
			logLevel: "debug",
		},
		{
			name:     "invalid log level defaults to info",
			logLevel: "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.logLevel != "" {
				t.Setenv("LOG_LEVEL", tt.logLevel)
			}

			logger := NewLogger()

			assert.NotNil(t, logger, "logger should not be nil")
		})
	}
}

func TestNewTextLogger(t *testing.T) {
	logger := NewTextLogger()
	assert.NotNil(t, logger, "logger should not be nil")
}

func TestWithOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WithOperation(logger, "fetch_stock_data").Info("fetching quote")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fetch_stock_data", entry["operation"])
}

func TestWithOperation_EmptyName(t *testing.T) {
	logger := slog.Default()
	assert.Same(t, logger, WithOperation(logger, ""), "empty operation should return the logger unchanged")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WithFields(logger, map[string]interface{}{
		"symbol": "AAPL",
		"source": "alpha_vantage",
	}).Info("quote fetched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "AAPL", entry["symbol"])
	assert.Equal(t, "alpha_vantage", entry["source"])
}

func TestLoggerContext(t *testing.T) {
	logger := NewTextLogger()
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx), "expected the logger stored in the context")
	assert.Equal(t, slog.Default(), FromContext(context.Background()),
		"context without a logger should fall back to slog.Default")
}
