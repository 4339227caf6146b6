package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

var hundred = decimal.NewFromInt(100)

// Budgets stores budgets and measures spending against them.
type Budgets struct {
	store storage.Store
	options
}

func NewBudgets(store storage.Store, opts ...Option) *Budgets {
	return &Budgets{store: store, options: buildOptions(log.ComponentBudget, opts)}
}

// BudgetStatus is the consumption of one budget in its current period.
// PercentUsed is the raw ratio; DisplayPercent is capped at 100.
type BudgetStatus struct {
	Budget         core.Budget     `json:"budget"`
	From           core.Date       `json:"from"`
	To             core.Date       `json:"to"`
	Spent          decimal.Decimal `json:"spent"`
	PercentUsed    decimal.Decimal `json:"percentUsed"`
	DisplayPercent decimal.Decimal `json:"displayPercent"`
}

// Over reports whether spending reached the limit.
func (s BudgetStatus) Over() bool {
	return s.PercentUsed.GreaterThanOrEqual(hundred)
}

func (s *Budgets) Create(ctx context.Context, ownerID string, in core.BudgetInput) (core.Budget, error) {
	b, err := in.Normalize()
	if err != nil {
		return core.Budget{}, err
	}
	b.ID = s.newID()
	b.OwnerID = ownerID
	b.CreatedAt = s.now().UTC()

	err = s.store.WithinTx(ctx, func(w storage.Writer) error {
		return step("insert budget", w.InsertBudget(ctx, b))
	})
	if err != nil {
		s.logFailure(ctx, log.OpCreate, ownerID, err, nil, b.ID)
		return core.Budget{}, err
	}
	return b, nil
}

func (s *Budgets) List(ctx context.Context, ownerID string) ([]core.Budget, error) {
	out, err := s.store.QueryBudgets(ctx, storage.BudgetFilter{OwnerID: ownerID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return out, nil
}

// Update replaces the category, limit and period of budget id.
func (s *Budgets) Update(ctx context.Context, id, ownerID string, in core.BudgetInput) (core.Budget, error) {
	next, err := in.Normalize()
	if err != nil {
		return core.Budget{}, err
	}

	var updated core.Budget
	err = s.store.WithinTx(ctx, func(w storage.Writer) error {
		b, err := w.GetBudget(ctx, id)
		if err != nil {
			return err
		}
		if !b.OwnedBy(ownerID) {
			return fmt.Errorf("budget %s: %w", id, core.ErrForbidden)
		}
		b.Category = next.Category
		b.LimitValue = next.LimitValue
		b.Period = next.Period
		if _, err := w.UpdateBudget(ctx, b); err != nil {
			return step("update budget", err)
		}
		updated = b
		return nil
	})
	if err != nil {
		s.logFailure(ctx, log.OpUpdate, ownerID, err, nil, id)
		return core.Budget{}, err
	}
	return updated, nil
}

func (s *Budgets) Deactivate(ctx context.Context, id, ownerID string) error {
	err := s.store.WithinTx(ctx, func(w storage.Writer) error {
		b, err := w.GetBudget(ctx, id)
		if err != nil {
			return err
		}
		if !b.OwnedBy(ownerID) {
			return fmt.Errorf("budget %s: %w", id, core.ErrForbidden)
		}
		b.Active = false
		_, err = w.UpdateBudget(ctx, b)
		return step("deactivate budget", err)
	})
	if err != nil {
		s.logFailure(ctx, log.OpDelete, ownerID, err, nil, id)
	}
	return err
}

// Status computes the consumption of the owner's active budgets in the
// period containing now. An empty period selects every budget.
func (s *Budgets) Status(ctx context.Context, ownerID, period string, now time.Time) ([]BudgetStatus, error) {
	filter := storage.BudgetFilter{OwnerID: ownerID, ActiveOnly: true}
	if strings.TrimSpace(period) != "" {
		p, ok := core.ParseBudgetPeriod(period)
		if !ok {
			return nil, core.NewValidationError("period", "period must be monthly, annual or weekly")
		}
		filter.Period = p
	}

	budgets, err := s.store.QueryBudgets(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	if len(budgets) == 0 {
		return []BudgetStatus{}, nil
	}
	catalog, err := s.catalogFor(ctx, s.store, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		st, err := s.status(ctx, catalog, b, now)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Budgets) status(ctx context.Context, catalog *core.CategoryCatalog, b core.Budget, now time.Time) (BudgetStatus, error) {
	from, to := periodBounds(b.Period, core.DateOf(now))
	st := BudgetStatus{Budget: b, From: from, To: to, Spent: decimal.Zero, PercentUsed: decimal.Zero, DisplayPercent: decimal.Zero}

	ids := catalog.IDsForName(b.Category)
	if len(ids) > 0 {
		txs, err := s.store.QueryTransactions(ctx, storage.TransactionFilter{
			OwnerID:    b.OwnerID,
			Type:       core.Expense,
			From:       from,
			To:         to,
			Categories: ids,
		})
		if err != nil {
			return BudgetStatus{}, fmt.Errorf("sum budget %s: %w", b.ID, err)
		}
		for _, tx := range txs {
			st.Spent = st.Spent.Add(tx.Value)
		}
	}

	if b.LimitValue.IsPositive() {
		st.PercentUsed = st.Spent.Div(b.LimitValue).Mul(hundred)
		st.DisplayPercent = decimal.Min(st.PercentUsed, hundred)
	}
	return st, nil
}

// periodBounds returns the inclusive date range of the period containing
// day. Weeks start on Monday.
func periodBounds(p core.BudgetPeriod, day core.Date) (core.Date, core.Date) {
	switch p {
	case core.PeriodAnnual:
		from := core.NewDate(day.Year(), 1, 1)
		return from, core.NewDate(day.Year(), 12, 31)
	case core.PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		from := day.AddDays(-offset)
		return from, from.AddDays(6)
	default:
		from := day.FirstOfMonth()
		return from, from.AddMonths(1).AddDays(-1)
	}
}
