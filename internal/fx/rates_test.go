package fx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_ConvertUsesUpstream(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success","base_code":"BRL","time_last_update_utc":"Fri, 15 Mar 2024","rates":{"BRL":1,"USD":0.2,"JPY":30.04}}`))
	}))
	defer srv.Close()

	s := NewService(srv.URL, time.Hour)
	ctx := context.Background()

	c, err := s.Convert(ctx, decimal.RequireFromString("100"), "usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", c.Currency)
	assert.True(t, c.Amount.Equal(decimal.RequireFromString("20")))
	assert.Equal(t, "$ 20.00", c.Formatted)
	assert.False(t, c.Fallback)

	c, err = s.Convert(ctx, decimal.RequireFromString("10.55"), "JPY")
	require.NoError(t, err)
	assert.Equal(t, "¥ 317", c.Formatted)

	assert.Equal(t, int32(1), hits.Load(), "rates should be cached")
}

func TestService_FallbackOnUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewService(srv.URL, time.Hour)
	rates := s.Rates(context.Background())
	assert.True(t, rates.Fallback)
	assert.Equal(t, "BRL", rates.Base)
	assert.True(t, rates.Rates["USD"].Equal(decimal.RequireFromString("0.175")))
	assert.Zero(t, s.Cache().Size(), "fallback must not be cached")
}

func TestService_StaleRatesBeatFallback(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"base":"BRL","rates":{"USD":0.19}}`))
	}))
	defer srv.Close()

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	s := NewService(srv.URL, time.Hour)
	s.Cache().WithClock(func() time.Time { return now })

	first := s.Rates(context.Background())
	require.False(t, first.Fallback)

	fail.Store(true)
	now = now.Add(2 * time.Hour)
	second := s.Rates(context.Background())
	assert.False(t, second.Fallback)
	assert.True(t, second.Rates["USD"].Equal(decimal.RequireFromString("0.19")))
}

func TestService_RejectsForeignBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"BRL":5}}`))
	}))
	defer srv.Close()

	rates := NewService(srv.URL, time.Hour).Rates(context.Background())
	assert.True(t, rates.Fallback)
}

func TestService_NoURLServesFallback(t *testing.T) {
	s := NewService("", 0)

	c, err := s.Convert(context.Background(), decimal.RequireFromString("100"), "PYG")
	require.NoError(t, err)
	assert.True(t, c.Fallback)
	assert.Equal(t, "Gs 126800", c.Formatted)

	_, err = s.Convert(context.Background(), decimal.RequireFromString("1"), "XYZ")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestDecimalsAndFormat(t *testing.T) {
	tests := []struct {
		code     string
		decimals int32
		amount   string
		want     string
	}{
		{"BRL", 2, "1234.5", "R$ 1234.50"},
		{"JPY", 0, "2650.4", "¥ 2650"},
		{"CLP", 0, "16300", "$ 16300"},
		{"EUR", 2, "16.2", "€ 16.20"},
		{"XXX", 2, "1", "XXX 1.00"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.decimals, Decimals(tt.code))
			assert.Equal(t, tt.want, Format(decimal.RequireFromString(tt.amount), tt.code))
		})
	}
	assert.Len(t, Currencies(), 11)
}
