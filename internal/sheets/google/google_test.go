package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"

	"carteira/internal/core"
	"carteira/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, "missing spreadsheet id", err.Error())
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet", CredentialsFile: "/does/not/exist.json"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Ledger", 2025, "2025 Ledger"},
		{"", 2023, ""},
		{"Test Sheet", 2022, "2022 Test Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
		{"1234567", 2024, "2024 1234567"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, yearPrefixedName(tt.base, tt.year), tt.base)
	}
}

type appendCall struct {
	path   string
	query  string
	values [][]any
}

func fakeSheets(t *testing.T) (*httptest.Server, func() []appendCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []appendCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":append") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		calls = append(calls, appendCall{path: r.URL.Path, query: r.URL.RawQuery, values: body.Values})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sheet",
			"updates":       map[string]any{"updatedRange": "Ledger!A2:J2", "updatedRows": len(body.Values)},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, func() []appendCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]appendCall(nil), calls...)
	}
}

func TestClient_AppendRowsGroupsByYear(t *testing.T) {
	srv, calls := fakeSheets(t)
	c, err := New(context.Background(), Config{SpreadsheetID: "sheet"}, nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	tx := core.Transaction{
		ID: "t1", OwnerID: "alice", Type: core.Income, Description: "Salário",
		Category: "sal", Value: decimal.RequireFromString("3000"), Date: core.NewDate(2024, 12, 31), WalletID: "w1",
	}
	rows := []sheets.Row{
		sheets.RowFor(sheets.ActionCreated, time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC), tx),
		sheets.RowFor(sheets.ActionUpdated, time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC), tx),
	}

	ref, err := c.AppendRows(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, "Ledger!A2:J2;Ledger!A2:J2", ref)

	got := calls()
	require.Len(t, got, 2)
	assert.Contains(t, got[0].path, "2024 Ledger")
	assert.Contains(t, got[1].path, "2025 Ledger")
	assert.Contains(t, got[0].query, "valueInputOption=RAW")
	require.Len(t, got[0].values, 1)
	assert.Equal(t, "created", got[0].values[0][1])
	assert.Equal(t, "3000.00", got[0].values[0][9])
}

func TestClient_AppendRowsEmpty(t *testing.T) {
	srv, _ := fakeSheets(t)
	c, err := New(context.Background(), Config{SpreadsheetID: "sheet"}, nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	ref, err := c.AppendRows(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ref)

	var zero Client
	_, err = zero.AppendRows(context.Background(), []sheets.Row{{}})
	assert.Error(t, err)
}
