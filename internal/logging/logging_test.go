package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wmsauth.log")
	cfg := DefaultConfig()
	cfg.File = path

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Info("login ok", zap.String("principal_id", "3"))
	logger.Debug("hidden")
	require.NoError(t, logger.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "login ok", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "3", entry["principal_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestSetLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "level.log")
	logger, err := New(Config{Level: "warn", File: path})
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, logger.Level())

	logger.Info("dropped")
	require.NoError(t, logger.SetLevel("debug"))
	logger.Debug("kept")
	require.NoError(t, logger.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "dropped")
	assert.Contains(t, string(raw), "kept")

	assert.Error(t, logger.SetLevel("loud"))
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestConsoleToStderr(t *testing.T) {
	logger, err := New(Config{Format: "console"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, logger.Level())
	assert.NoError(t, logger.Close())
}

func TestNewAuditLogger(t *testing.T) {
	_, err := NewAuditLogger(Config{})
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "audit.log")
	audit, err := NewAuditLogger(Config{File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	audit.Info("auth_audit", zap.String("event", "login_success"))
	require.NoError(t, audit.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"event":"login_success"`)
}
