package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"builder/internal/config"
)

func clearBackends(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "MEILI_URL", "MINIO_ENDPOINT", "BUILDER_PREVIEW_URL", "ETH_PRIVATE_KEY", "BUILDER_IDENTITY_KEY"} {
		t.Setenv(key, "")
	}
}

func TestRunReturnsStartupErrors(t *testing.T) {
	clearBackends(t)
	cfg, err := config.Load()
	require.NoError(t, err)

	err = run(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETH_PRIVATE_KEY is required")
}

func TestRealMainExitCodes(t *testing.T) {
	clearBackends(t)

	assert.Equal(t, 1, realMain([]string{"--log-level", "error"}))
	assert.Equal(t, 2, realMain([]string{"--log-level", "loud"}))
	assert.Equal(t, 2, realMain([]string{"--no-such-flag"}))
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := newLogger(format, "debug")
		require.NoError(t, err, format)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	}
	_, err := newLogger("json", "verbose")
	assert.Error(t, err)
}
