// Package trace tags every request with an id and writes the access log.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"carteira/internal/log"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type Middleware struct {
	clientIP func(*http.Request) string
	logger   *log.Logger

	served  atomic.Int64
	totalMs atomic.Int64
}

// NewMiddleware builds the tracer. clientIP may be nil, in which case the
// peer address is logged.
func NewMiddleware(logger *log.Logger, clientIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{clientIP: clientIP, logger: logger.WithComponent(log.ComponentHTTP)}
}

// Middleware keeps a well-formed incoming X-Request-ID or mints one, puts a
// logger carrying it in the request context and logs the response.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()

		ip := r.RemoteAddr
		if m.clientIP != nil {
			ip = m.clientIP(r)
		}

		id := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(id) {
			id = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = log.NewContext(ctx, m.logger.With(log.FieldRequestID, id))
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(began).Milliseconds()
		m.served.Add(1)
		m.totalMs.Add(elapsed)
		log.LogHTTPEnd(ctx, r, rec.status, elapsed, ip)
	})
}

// statusRecorder remembers the first status written.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.written {
		s.status = code
		s.written = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.written = true
	return s.ResponseWriter.Write(b)
}

// GenerateRequestID returns "req_" followed by 16 random hex digits, or a
// timestamp when the random source fails.
func GenerateRequestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return "req_" + hex.EncodeToString(b[:])
}

// GetRequestID returns the id assigned by the middleware, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type Metrics struct {
	TotalRequests         int64 `json:"totalRequests"`
	AverageResponseTimeMs int64 `json:"averageResponseTimeMs"`
}

func (m *Middleware) GetMetrics() Metrics {
	out := Metrics{TotalRequests: m.served.Load()}
	if out.TotalRequests > 0 {
		out.AverageResponseTimeMs = m.totalMs.Load() / out.TotalRequests
	}
	return out
}
