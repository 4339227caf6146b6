package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/core"
	"carteira/internal/sheets"
)

func TestStore_AppendRows(t *testing.T) {
	s := New()
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	tx := core.Transaction{
		ID: "t1", OwnerID: "alice", Type: core.Expense, Description: "Mercado",
		Category: "alim", Value: decimal.RequireFromString("12.5"), Date: core.NewDate(2024, 3, 14), WalletID: "w1",
	}

	ref, err := s.AppendRows(context.Background(), []sheets.Row{
		sheets.RowFor(sheets.ActionCreated, at, tx),
		{OccurredAt: at, Action: sheets.ActionDeleted, TransactionID: "t0", OwnerID: "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "mem:1-2", ref)

	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"2024-03-15T12:00:00Z", "created", "t1", "alice", "w1", "2024-03-14", "expense", "Mercado", "alim", "12.50"}, rows[0].Values())
	assert.Equal(t, []any{"2024-03-15T12:00:00Z", "deleted", "t0", "alice", "", "", "", "", "", ""}, rows[1].Values())
	assert.Len(t, rows[0].Values(), len(sheets.Columns))
}

func TestStore_FailNext(t *testing.T) {
	s := New()
	boom := errors.New("quota exceeded")
	s.FailNext(boom)

	_, err := s.AppendRows(context.Background(), []sheets.Row{{Action: sheets.ActionCreated}})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Rows())

	_, err = s.AppendRows(context.Background(), []sheets.Row{{Action: sheets.ActionCreated}})
	assert.NoError(t, err)
	assert.Len(t, s.Rows(), 1)
}
