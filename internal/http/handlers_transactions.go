package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"carteira/internal/core"
	"carteira/internal/services"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, owner string) {
	var in core.TransactionInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	tx, err := s.svc.Ledger.Create(r.Context(), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, owner string) {
	q := r.URL.Query()
	f := services.TransactionFilter{
		WalletID: strings.TrimSpace(q.Get("walletId")),
		Category: strings.TrimSpace(q.Get("category")),
	}
	if raw := q.Get("type"); raw != "" {
		t, ok := core.ParseTransactionType(raw)
		if !ok {
			writeError(w, r, core.NewValidationError("type", "type must be income or expense"))
			return
		}
		f.Type = t
	}
	var err error
	if f.From, err = queryDate(r, "from"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		writeError(w, r, err)
		return
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, core.NewValidationError("limit", "limit must be a positive integer"))
			return
		}
		f.Limit = n
	}

	txs, err := s.svc.Ledger.List(r.Context(), owner, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, owner string) {
	tx, err := s.svc.Ledger.Get(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, owner string) {
	var in core.TransactionInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	tx, err := s.svc.Ledger.Update(r.Context(), r.PathValue("id"), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.svc.Ledger.Delete(r.Context(), r.PathValue("id"), owner); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type batchRequest struct {
	WalletID string                  `json:"walletId"`
	Items    []core.TransactionInput `json:"items"`
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request, owner string) {
	var req batchRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	ids, err := s.svc.Ledger.CreateBatch(r.Context(), owner, req.Items, req.WalletID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transactionIds": ids, "created": len(ids)})
}

// handleImport accepts either a raw CSV body or a multipart form with a
// "file" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, owner string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			writeError(w, r, core.NewValidationError("file", "invalid multipart upload"))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, core.NewValidationError("file", "a CSV file is required"))
			return
		}
		defer file.Close()
		body = file
	}

	result, err := s.svc.Importer.ImportCSV(r.Context(), owner, body, strings.TrimSpace(r.URL.Query().Get("walletId")))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "upload too large"})
			return
		}
		writeError(w, r, err)
		return
	}
	if result.TransactionIDs == nil {
		result.TransactionIDs = []string{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, owner string) {
	q := r.URL.Query()
	t, ok := core.ParseTransactionType(q.Get("type"))
	if !ok {
		writeError(w, r, core.NewValidationError("type", "type must be income or expense"))
		return
	}
	month := strings.TrimSpace(q.Get("month"))
	if month == "" {
		month = core.DateOf(s.now()).YearMonth()
	}
	total, err := s.svc.Ledger.SumByTypeAndPeriod(r.Context(), owner, t, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, total)
}
