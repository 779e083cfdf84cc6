package tracing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name        string
		cfg         Config
		expectError bool
	}{
		{name: "disabled needs nothing", cfg: Config{}},
		{name: "enabled", cfg: Config{Enabled: true, Endpoint: "http://localhost:4318", SamplingRate: 0.5, Timeout: time.Second}},
		{name: "error case - no endpoint", cfg: Config{Enabled: true, SamplingRate: 1, Timeout: time.Second}, expectError: true},
		{name: "error case - sampling rate above one", cfg: Config{Enabled: true, Endpoint: "localhost:4318", SamplingRate: 1.5, Timeout: time.Second}, expectError: true},
		{name: "error case - zero timeout", cfg: Config{Enabled: true, Endpoint: "localhost:4318", SamplingRate: 1}, expectError: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	shutdown, err := NewTracerProvider(context.Background(), Config{}, "test", discardLogger())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewTracerProvider_InvalidConfig(t *testing.T) {
	_, err := NewTracerProvider(context.Background(), Config{Enabled: true}, "test", discardLogger())
	assert.Error(t, err)
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	cfg := Config{
		Enabled:      true,
		Endpoint:     "http://127.0.0.1:4318",
		ServiceName:  "github-metrics",
		Insecure:     true,
		Timeout:      100 * time.Millisecond,
		SamplingRate: 1,
	}
	shutdown, err := NewTracerProvider(context.Background(), cfg, "test", discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// Nothing was recorded, so shutdown has nothing to export.
	assert.NoError(t, shutdown(ctx))
}
