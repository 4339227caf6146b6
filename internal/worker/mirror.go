// Package worker consumes ledger events outside the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/services"
	"carteira/internal/sheets"
	"carteira/internal/storage"
)

// DriftChecker re-checks the balances of the wallets an event touched.
type DriftChecker interface {
	CheckIDs(ctx context.Context, walletIDs []string) ([]services.Drift, error)
}

// MirrorWorker appends every ledger event to the spreadsheet journal and
// re-checks the wallets the event touched.
type MirrorWorker struct {
	store  storage.Reader
	sheets sheets.RowAppender
	drift  DriftChecker
	logger *log.Logger
	now    func() time.Time
}

func NewMirrorWorker(store storage.Reader, appender sheets.RowAppender, drift DriftChecker, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		store:  store,
		sheets: appender,
		drift:  drift,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent processes one event. A returned error asks the broker to
// redeliver it.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev core.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventKind, ev.Kind,
		log.FieldOwnerID, ev.OwnerID,
		"transactions", len(ev.TransactionIDs),
		"wallets", len(ev.WalletIDs))

	rows, err := w.rowsFor(ctx, ev)
	if err != nil {
		return err
	}
	if len(rows) > 0 && w.sheets != nil {
		ref, err := w.sheets.AppendRows(ctx, rows)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror ledger event",
				log.FieldEventKind, ev.Kind,
				log.FieldOperation, log.OpMirror,
				log.FieldError, err)
			return fmt.Errorf("append rows: %w", err)
		}
		w.logger.InfoContext(ctx, "Mirrored ledger event",
			log.FieldEventKind, ev.Kind,
			"rows", len(rows),
			"sheets_ref", ref)
	}

	// Drift events come from the checker itself.
	if ev.Kind == core.EventWalletDrift || w.drift == nil || len(ev.WalletIDs) == 0 {
		return nil
	}
	drifts, err := w.drift.CheckIDs(ctx, ev.WalletIDs)
	if err != nil {
		// The mirror already landed; redelivery would duplicate rows.
		w.logger.Fields(ctx, slog.LevelWarn, "Drift check failed", log.NewFields().
			WithOwner(ev.OwnerID).
			With(log.FieldEventKind, string(ev.Kind)).
			WithError(err))
		return nil
	}
	for _, d := range drifts {
		if d.Drifted {
			w.logger.WarnContext(ctx, "Event left a wallet out of balance",
				log.FieldWalletID, d.WalletID,
				log.FieldDelta, d.Difference.String(),
				log.FieldEventKind, ev.Kind)
		}
	}
	return nil
}

func (w *MirrorWorker) rowsFor(ctx context.Context, ev core.LedgerEvent) ([]sheets.Row, error) {
	at := ev.OccurredAt
	if at.IsZero() {
		at = w.now()
	}

	var action string
	switch ev.Kind {
	case core.EventTransactionDeleted:
		rows := make([]sheets.Row, 0, len(ev.TransactionIDs))
		for _, id := range ev.TransactionIDs {
			rows = append(rows, sheets.Row{OccurredAt: at, Action: sheets.ActionDeleted, TransactionID: id, OwnerID: ev.OwnerID})
		}
		return rows, nil
	case core.EventTransactionUpdated:
		action = sheets.ActionUpdated
	case core.EventTransactionCreated, core.EventTransferCreated, core.EventBatchCreated, core.EventObligationPaid:
		action = sheets.ActionCreated
	default:
		return nil, nil
	}

	rows := make([]sheets.Row, 0, len(ev.TransactionIDs))
	for _, id := range ev.TransactionIDs {
		tx, err := w.store.GetTransaction(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			// Deleted before the event was consumed; its delete event
			// will journal it.
			w.logger.DebugContext(ctx, "Skipping vanished transaction", log.FieldTransactionID, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load transaction %s: %w", id, err)
		}
		rows = append(rows, sheets.RowFor(action, at, tx))
	}
	return rows, nil
}
