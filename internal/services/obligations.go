package services

import (
	"context"
	"fmt"
	"strings"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/schedule"
	"carteira/internal/storage"
)

// fallbackExpenseCategory receives payments whose category name is not in
// the catalog.
const fallbackExpenseCategory = "out-desp"

// Obligations manages recurring obligations and their payment.
type Obligations struct {
	store storage.Store
	options
}

func NewObligations(store storage.Store, opts ...Option) *Obligations {
	return &Obligations{store: store, options: buildOptions(log.ComponentObligation, opts)}
}

// Payment is the outcome of paying an obligation.
type Payment struct {
	Transaction core.Transaction `json:"transaction"`
	NextDueDate core.Date        `json:"newNextDueDate"`
}

// Create stores an obligation whose first due date is rolled forward past
// reference, so a new obligation is never already due.
func (s *Obligations) Create(ctx context.Context, ownerID string, in core.ObligationInput, reference core.Date) (core.RecurringObligation, error) {
	o, start, err := in.Normalize()
	if err != nil {
		return core.RecurringObligation{}, err
	}
	if reference.IsZero() {
		reference = s.today()
	}
	next, err := schedule.RollForward(start, o.Frequency, reference)
	if err != nil {
		return core.RecurringObligation{}, err
	}

	o.ID = s.newID()
	o.OwnerID = ownerID
	o.NextDueDate = next
	o.CreatedAt = s.now().UTC()

	err = s.store.WithinTx(ctx, func(w storage.Writer) error {
		return step("insert obligation", w.InsertObligation(ctx, o))
	})
	if err != nil {
		s.logFailure(ctx, log.OpCreate, ownerID, err, nil, o.ID)
		return core.RecurringObligation{}, err
	}
	return o, nil
}

// Update replaces the fields of obligation id. The submitted start date
// becomes the next due date as is, so an edit can leave it overdue.
func (s *Obligations) Update(ctx context.Context, id, ownerID string, in core.ObligationInput) (core.RecurringObligation, error) {
	next, due, err := in.Normalize()
	if err != nil {
		return core.RecurringObligation{}, err
	}
	if _, err := schedule.Get(next.Frequency); err != nil {
		return core.RecurringObligation{}, err
	}

	var updated core.RecurringObligation
	err = s.store.WithinTx(ctx, func(w storage.Writer) error {
		o, err := w.GetObligation(ctx, id)
		if err != nil {
			return err
		}
		if !o.OwnedBy(ownerID) {
			return fmt.Errorf("obligation %s: %w", id, core.ErrForbidden)
		}
		o.Description = next.Description
		o.Category = next.Category
		o.Value = next.Value
		o.Frequency = next.Frequency
		o.NextDueDate = due
		if _, err := w.UpdateObligation(ctx, o); err != nil {
			return step("update obligation", err)
		}
		updated = o
		return nil
	})
	if err != nil {
		s.logFailure(ctx, log.OpUpdate, ownerID, err, nil, id)
		return core.RecurringObligation{}, err
	}
	return updated, nil
}

// List returns the owner's obligations ordered by next due date.
func (s *Obligations) List(ctx context.Context, ownerID string, activeOnly bool) ([]core.RecurringObligation, error) {
	out, err := s.store.QueryObligations(ctx, storage.ObligationFilter{OwnerID: ownerID, ActiveOnly: activeOnly})
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	return out, nil
}

// Pay books an expense for the current due date and advances the due date
// by one period, in one unit of work. The expense category is the id, in
// the owner's catalog, whose name matches the obligation category.
func (s *Obligations) Pay(ctx context.Context, id, ownerID, walletID string) (Payment, error) {
	var out Payment
	walletID = strings.TrimSpace(walletID)

	err := s.store.WithinTx(ctx, func(w storage.Writer) error {
		o, err := w.GetObligation(ctx, id)
		if err != nil {
			return err
		}
		if !o.OwnedBy(ownerID) {
			return fmt.Errorf("obligation %s: %w", id, core.ErrForbidden)
		}
		if !o.Active {
			return core.NewValidationError("active", "obligation is inactive")
		}

		next, err := schedule.Advance(o.NextDueDate, o.Frequency)
		if err != nil {
			return err
		}
		catalog, err := s.catalogFor(ctx, w, ownerID)
		if err != nil {
			return err
		}

		tx := core.Transaction{
			ID:          s.newID(),
			OwnerID:     ownerID,
			Type:        core.Expense,
			Description: o.Description,
			Category:    catalog.ResolveName(o.Category, core.Expense, fallbackExpenseCategory),
			Value:       o.Value,
			Date:        o.NextDueDate,
			WalletID:    walletID,
			CreatedAt:   s.now().UTC(),
		}
		if err := insertWithBalance(ctx, w, tx); err != nil {
			return err
		}

		o.NextDueDate = next
		if _, err := w.UpdateObligation(ctx, o); err != nil {
			return step("advance due date", err)
		}

		out = Payment{Transaction: tx, NextDueDate: next}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, log.OpPay, ownerID, err, []string{walletID}, id)
		return Payment{}, err
	}

	s.publish(ctx, core.NewLedgerEvent(core.EventObligationPaid, ownerID, []string{out.Transaction.ID}, walletID))
	return out, nil
}

// Deactivate stops an obligation from producing alerts or payments.
func (s *Obligations) Deactivate(ctx context.Context, id, ownerID string) error {
	err := s.store.WithinTx(ctx, func(w storage.Writer) error {
		o, err := w.GetObligation(ctx, id)
		if err != nil {
			return err
		}
		if !o.OwnedBy(ownerID) {
			return fmt.Errorf("obligation %s: %w", id, core.ErrForbidden)
		}
		o.Active = false
		_, err = w.UpdateObligation(ctx, o)
		return step("deactivate obligation", err)
	})
	if err != nil {
		s.logFailure(ctx, log.OpDelete, ownerID, err, nil, id)
	}
	return err
}
