// Package fx converts BRL amounts into other currencies for display. It
// never writes to the ledger: every stored amount stays in BRL.
package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/log"
)

const (
	DefaultTTL     = 6 * time.Hour
	fallbackNote   = "Fallback (offline)"
	ratesCacheKey  = "rates:" + core.DefaultCurrency
	requestTimeout = 10 * time.Second
)

// Currency describes a display currency.
type Currency struct {
	Code     string `json:"code"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
}

var currencies = map[string]Currency{
	"BRL": {"BRL", "R$", "Real Brasileiro", 2},
	"USD": {"USD", "$", "Dolar Americano", 2},
	"EUR": {"EUR", "€", "Euro", 2},
	"GBP": {"GBP", "£", "Libra Esterlina", 2},
	"ARS": {"ARS", "$", "Peso Argentino", 2},
	"JPY": {"JPY", "¥", "Iene Japones", 0},
	"CLP": {"CLP", "$", "Peso Chileno", 0},
	"COP": {"COP", "$", "Peso Colombiano", 2},
	"MXN": {"MXN", "$", "Peso Mexicano", 2},
	"PYG": {"PYG", "Gs", "Guarani Paraguaio", 0},
	"UYU": {"UYU", "$", "Peso Uruguaio", 2},
}

// fallbackRates are approximate BRL-based rates served when the upstream
// cannot be reached.
var fallbackRates = map[string]string{
	"BRL": "1", "USD": "0.175", "EUR": "0.162", "GBP": "0.138", "ARS": "178", "JPY": "26.5",
	"CLP": "163", "COP": "705", "MXN": "3.05", "PYG": "1268", "UYU": "7.1",
}

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// Rates is a BRL-based rate table.
type Rates struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	UpdatedAt string                     `json:"timeLastUpdate"`
	Fallback  bool                       `json:"fallback"`
}

// Conversion is an amount rendered in another currency.
type Conversion struct {
	From      decimal.Decimal `json:"from"`
	Currency  string          `json:"currency"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
	Formatted string          `json:"formatted"`
	Fallback  bool            `json:"fallback"`
}

// Service fetches and caches rates. It is safe for concurrent use.
type Service struct {
	url    string
	client *http.Client
	cache  *cache.LRUCache[Rates]
	logger *log.Logger
}

type Option func(*Service)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService builds a rate service. An empty url always serves the
// fallback table.
func NewService(url string, ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: requestTimeout},
		cache:  cache.NewLRUCache[Rates](4, ttl),
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentFX)
	return s
}

// Cache exposes the rate cache so it can be registered for sweeping.
func (s *Service) Cache() *cache.LRUCache[Rates] {
	return s.cache
}

// Rates returns the current table. Upstream failures fall back to the last
// good table, then to the built-in one; they are never returned.
func (s *Service) Rates(ctx context.Context) Rates {
	if s.url == "" {
		return Fallback()
	}
	rates, err := s.cache.GetOrLoad(ctx, ratesCacheKey, s.fetch)
	if err == nil {
		return rates
	}

	if stale, ok := s.cache.GetStale(ratesCacheKey); ok {
		s.logger.WarnContext(ctx, "Exchange rate refresh failed, serving stale rates", log.FieldError, err)
		return stale
	}
	s.logger.WarnContext(ctx, "Exchange rate fetch failed, serving fallback rates", log.FieldError, err)
	return Fallback()
}

// Convert renders a BRL amount in currency to.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, to string) (Conversion, error) {
	code := strings.ToUpper(strings.TrimSpace(to))
	cur, ok := currencies[code]
	if !ok {
		return Conversion{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, to)
	}

	rates := s.Rates(ctx)
	rate, ok := rates.Rates[code]
	if !ok {
		rate = decimal.RequireFromString(fallbackRates[code])
	}
	converted := amount.Mul(rate).Round(cur.Decimals)
	return Conversion{
		From:      amount,
		Currency:  code,
		Rate:      rate,
		Amount:    converted,
		Formatted: Format(converted, code),
		Fallback:  rates.Fallback,
	}, nil
}

func (s *Service) fetch(ctx context.Context) (Rates, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Rates{}, fmt.Errorf("build rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Rates{}, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Rates{}, fmt.Errorf("fetch rates: upstream status %d", resp.StatusCode)
	}

	var body struct {
		Result     string                     `json:"result"`
		Base       string                     `json:"base"`
		BaseCode   string                     `json:"base_code"`
		Rates      map[string]decimal.Decimal `json:"rates"`
		LastUpdate string                     `json:"time_last_update_utc"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Rates{}, fmt.Errorf("decode rates: %w", err)
	}
	if body.Result != "" && body.Result != "success" {
		return Rates{}, fmt.Errorf("fetch rates: upstream result %q", body.Result)
	}
	base := body.Base
	if base == "" {
		base = body.BaseCode
	}
	if !strings.EqualFold(base, core.DefaultCurrency) {
		return Rates{}, fmt.Errorf("fetch rates: base %q is not %s", base, core.DefaultCurrency)
	}
	if len(body.Rates) == 0 {
		return Rates{}, errors.New("fetch rates: empty table")
	}

	s.logger.InfoContext(ctx, "Exchange rates refreshed", "count", len(body.Rates))
	return Rates{Base: core.DefaultCurrency, Rates: body.Rates, UpdatedAt: body.LastUpdate}, nil
}

// Fallback returns the built-in rate table.
func Fallback() Rates {
	out := make(map[string]decimal.Decimal, len(fallbackRates))
	for code, r := range fallbackRates {
		out[code] = decimal.RequireFromString(r)
	}
	return Rates{Base: core.DefaultCurrency, Rates: out, UpdatedAt: fallbackNote, Fallback: true}
}

// Decimals returns the display precision of code. Unknown codes use 2.
func Decimals(code string) int32 {
	if c, ok := currencies[strings.ToUpper(code)]; ok {
		return c.Decimals
	}
	return 2
}

// Format renders amount with the currency symbol and precision of code.
func Format(amount decimal.Decimal, code string) string {
	c, ok := currencies[strings.ToUpper(code)]
	if !ok {
		return strings.ToUpper(code) + " " + amount.StringFixed(2)
	}
	return c.Symbol + " " + amount.StringFixed(c.Decimals)
}

// Currencies lists the supported display currencies by code.
func Currencies() []Currency {
	out := make([]Currency, 0, len(currencies))
	for _, c := range currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
