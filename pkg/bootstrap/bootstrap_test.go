package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/abgdnv/storefront/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, toLevel("debug"))
	assert.Equal(t, slog.LevelWarn, toLevel("warn"))
	assert.Equal(t, slog.LevelError, toLevel("error"))
	assert.Equal(t, slog.LevelInfo, toLevel("info"))
	assert.Equal(t, slog.LevelInfo, toLevel("unknown"))
}

func TestNewLogger_AddsRequestID(t *testing.T) {
	// given
	var buf bytes.Buffer
	log := newLogger(&buf, "info")
	ctx := web.WithRequestID(context.Background(), "req-42")

	// when
	log.InfoContext(ctx, "cart loaded")
	log.DebugContext(ctx, "filtered out")

	// then
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record), "exactly one JSON record is expected")
	assert.Equal(t, "cart loaded", record["msg"])
	assert.Equal(t, "req-42", record["request_id"])
}

func TestNewLogger_RedactsCredentials(t *testing.T) {
	// given
	var buf bytes.Buffer
	log := newLogger(&buf, "debug")

	// when
	log.Debug("login", "email", "jane@example.com", "password", "secret", slog.Group("session", "token", "eyJhbGciOi"))

	// then
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "jane@example.com", record["email"])
	assert.Equal(t, "[REDACTED]", record["password"])
	require.IsType(t, map[string]any{}, record["session"])
	assert.Equal(t, "[REDACTED]", record["session"].(map[string]any)["token"])
	assert.NotContains(t, buf.String(), "secret")
}
