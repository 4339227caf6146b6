package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

// Goals manages savings goals.
type Goals struct {
	store storage.Store
	options
}

func NewGoals(store storage.Store, opts ...Option) *Goals {
	return &Goals{store: store, options: buildOptions(log.ComponentGoal, opts)}
}

func (s *Goals) Create(ctx context.Context, ownerID string, in core.GoalInput) (core.Goal, error) {
	g, err := in.Normalize()
	if err != nil {
		return core.Goal{}, err
	}
	g.ID = s.newID()
	g.OwnerID = ownerID
	g.CreatedAt = s.now().UTC()

	err = s.store.WithinTx(ctx, func(w storage.Writer) error {
		return step("insert goal", w.InsertGoal(ctx, g))
	})
	if err != nil {
		s.logFailure(ctx, log.OpCreate, ownerID, err, nil, g.ID)
		return core.Goal{}, err
	}
	return g, nil
}

func (s *Goals) List(ctx context.Context, ownerID string) ([]core.Goal, error) {
	out, err := s.store.QueryGoals(ctx, storage.GoalFilter{OwnerID: ownerID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return out, nil
}

// Update replaces the name, target, deadline and category of goal id. The
// current amount only moves through Contribute.
func (s *Goals) Update(ctx context.Context, id, ownerID string, in core.GoalInput) (core.Goal, error) {
	next, err := in.Normalize()
	if err != nil {
		return core.Goal{}, err
	}

	var updated core.Goal
	err = s.store.WithinTx(ctx, func(w storage.Writer) error {
		g, err := w.GetGoal(ctx, id)
		if err != nil {
			return err
		}
		if !g.OwnedBy(ownerID) {
			return fmt.Errorf("goal %s: %w", id, core.ErrForbidden)
		}
		g.Name = next.Name
		g.TargetAmount = next.TargetAmount
		g.Deadline = next.Deadline
		g.Category = next.Category
		if _, err := w.UpdateGoal(ctx, g); err != nil {
			return step("update goal", err)
		}
		updated = g
		return nil
	})
	if err != nil {
		s.logFailure(ctx, log.OpUpdate, ownerID, err, nil, id)
		return core.Goal{}, err
	}
	return updated, nil
}

// Contribute adds a positive amount to the goal's current amount.
func (s *Goals) Contribute(ctx context.Context, id, ownerID string, amount decimal.Decimal) (core.Goal, error) {
	switch {
	case !amount.IsPositive():
		return core.Goal{}, core.NewValidationError("amount", "amount must be greater than zero")
	case amount.GreaterThan(core.MaxTransactionValue):
		return core.Goal{}, core.NewValidationError("amount", "amount must be at most 999999999")
	}

	var updated core.Goal
	err := s.store.WithinTx(ctx, func(w storage.Writer) error {
		g, err := w.GetGoal(ctx, id)
		if err != nil {
			return err
		}
		if !g.OwnedBy(ownerID) {
			return fmt.Errorf("goal %s: %w", id, core.ErrForbidden)
		}
		if !g.Active {
			return core.NewValidationError("active", "goal is inactive")
		}
		g.CurrentAmount = g.CurrentAmount.Add(amount)
		if _, err := w.UpdateGoal(ctx, g); err != nil {
			return step("update goal", err)
		}
		updated = g
		return nil
	})
	if err != nil {
		s.logFailure(ctx, log.OpUpdate, ownerID, err, nil, id)
		return core.Goal{}, err
	}
	return updated, nil
}

func (s *Goals) Deactivate(ctx context.Context, id, ownerID string) error {
	err := s.store.WithinTx(ctx, func(w storage.Writer) error {
		g, err := w.GetGoal(ctx, id)
		if err != nil {
			return err
		}
		if !g.OwnedBy(ownerID) {
			return fmt.Errorf("goal %s: %w", id, core.ErrForbidden)
		}
		g.Active = false
		_, err = w.UpdateGoal(ctx, g)
		return step("deactivate goal", err)
	})
	if err != nil {
		s.logFailure(ctx, log.OpDelete, ownerID, err, nil, id)
	}
	return err
}
