// Package sheets defines the spreadsheet mirror of the ledger. The mirror
// is an append-only journal: every ledger event appends one row per
// transaction it names.
package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
)

// Actions recorded in the journal.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Columns is the header of the journal sheet.
var Columns = []string{
	"Occurred At", "Action", "Transaction", "Owner", "Wallet",
	"Date", "Type", "Description", "Category", "Value",
}

// Row is one journal line. Deleted transactions only carry their id.
type Row struct {
	OccurredAt    time.Time
	Action        string
	TransactionID string
	OwnerID       string
	WalletID      string
	Date          core.Date
	Type          core.TransactionType
	Description   string
	Category      string
	Value         decimal.Decimal
}

// RowFor builds the journal row of a stored transaction.
func RowFor(action string, at time.Time, tx core.Transaction) Row {
	return Row{
		OccurredAt:    at,
		Action:        action,
		TransactionID: tx.ID,
		OwnerID:       tx.OwnerID,
		WalletID:      tx.WalletID,
		Date:          tx.Date,
		Type:          tx.Type,
		Description:   tx.Description,
		Category:      tx.Category,
		Value:         tx.Value,
	}
}

// Values renders the row in column order.
func (r Row) Values() []any {
	out := []any{r.OccurredAt.UTC().Format(time.RFC3339), r.Action, r.TransactionID, r.OwnerID, r.WalletID}
	if r.Action == ActionDeleted {
		return append(out, "", "", "", "", "")
	}
	return append(out, r.Date.String(), string(r.Type), r.Description, r.Category, r.Value.StringFixed(2))
}

// RowAppender appends journal rows and returns a reference to where they
// landed.
type RowAppender interface {
	AppendRows(ctx context.Context, rows []Row) (ref string, err error)
}
