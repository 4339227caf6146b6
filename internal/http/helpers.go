package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"carteira/internal/core"
	"carteira/internal/fx"
	"carteira/internal/log"
	"carteira/internal/middleware/trace"
)

type errorBody struct {
	Error     string            `json:"error"`
	Errors    []core.FieldError `json:"errors,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

// ownedHandler receives the caller's owner id.
type ownedHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// owned rejects requests without an owner id.
func (s *Server) owned(next ownedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := sanitizeInput(r.Header.Get(HeaderOwnerID))
		if owner == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + HeaderOwnerID + " header"})
			return
		}
		next(w, r, owner)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged with full detail and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Errors: verr.Problems})
	case errors.Is(err, core.ErrUnknownFrequency), errors.Is(err, core.ErrInvalidAmount), errors.Is(err, fx.ErrUnsupportedCurrency):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrWalletNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, core.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, core.ErrInsufficientFunds), errors.Is(err, core.ErrSameWalletTransfer):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.Is(err, core.ErrDuplicateName):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:     "internal error, please try again later",
			RequestID: trace.GetRequestID(r.Context()),
		})
	}
}

// decodeJSON reads one JSON value from the body. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
	return false
}

// queryBool reads a boolean flag, falling back to def when absent or
// malformed.
func queryBool(r *http.Request, key string, def bool) bool {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, key string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.NewValidationError(key, key+" must be a valid date (YYYY-MM-DD)")
	}
	return d, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
