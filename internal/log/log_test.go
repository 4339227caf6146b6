package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Format: "json", Output: buf, Component: component})
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogger_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, ComponentLedger)

	logger.Info("created", FieldTransactionID, "tx-1")
	logger.WithComponent(ComponentWallet).Warn("drift")

	got := lines(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "ledger", got[0][FieldComponent])
	assert.Equal(t, "tx-1", got[0][FieldTransactionID])
	assert.Equal(t, "wallet", got[1][FieldComponent])
	assert.Equal(t, "WARN", got[1]["level"])
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, ComponentWallet)

	logger.Fields(context.Background(), slog.LevelError, "Transfer failed", NewFields().
		WithOperation(OpTransfer).
		WithOwner("alice").
		WithWallet("w-1", decimal.RequireFromString("-40")).
		WithWallet("", decimal.Zero).
		WithStep("lock wallet").
		WithError(errors.New("boom")))

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "wallet", got[0][FieldComponent])
	assert.Equal(t, OpTransfer, got[0][FieldOperation])
	assert.Equal(t, "alice", got[0][FieldOwnerID])
	assert.Equal(t, "w-1", got[0][FieldWalletID])
	assert.Equal(t, "-40", got[0][FieldDelta])
	assert.Equal(t, "lock wallet", got[0][FieldStep])
	assert.Equal(t, "boom", got[0][FieldError])
}

func TestFromContext(t *testing.T) {
	fallback := FromContext(context.Background())
	require.NotNil(t, fallback)
	assert.Equal(t, ComponentApp, fallback.Component())

	logger := Discard().WithComponent(ComponentHTTP)
	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestLogHTTPEnd_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{503, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		ctx := NewContext(context.Background(), jsonLogger(&buf, ComponentApp).With(FieldRequestID, "req_1"))
		r := httptest.NewRequest("GET", "/wallets?active=true", nil)
		r.Header.Set("User-Agent", "curl/8")

		LogHTTPEnd(ctx, r, tt.status, 12, "192.0.2.1")

		got := lines(t, &buf)
		require.Len(t, got, 1)
		assert.Equal(t, tt.level, got[0]["level"])
		assert.Equal(t, "http", got[0][FieldComponent])
		assert.Equal(t, "req_1", got[0][FieldRequestID])
		assert.Equal(t, "/wallets", got[0][FieldPath])
		assert.Equal(t, "active=true", got[0][FieldQuery])
		assert.Equal(t, "192.0.2.1", got[0][FieldClientIP])
		assert.EqualValues(t, tt.status, got[0][FieldStatusCode])
		assert.Equal(t, tt.status < 400, got[0][FieldSuccess])
	}
}
