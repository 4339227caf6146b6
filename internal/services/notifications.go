package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

const (
	dueSoonDays       = 7
	goalDeadlineDays  = 30
	budgetWarnPercent = 80
)

var budgetWarnThreshold = decimal.NewFromInt(budgetWarnPercent)

// Notifications derives the alert feed from obligations, budgets and
// goals. Nothing it produces is stored.
type Notifications struct {
	store   storage.Store
	budgets *Budgets
	options
}

func NewNotifications(store storage.Store, budgets *Budgets, opts ...Option) *Notifications {
	return &Notifications{store: store, budgets: budgets, options: buildOptions(log.ComponentNotification, opts)}
}

// Feed returns the owner's alerts ordered by priority. Alerts of equal
// priority keep source order: obligations, budgets, goals. The result is a
// pure function of the stored state and now.
func (n *Notifications) Feed(ctx context.Context, ownerID string, now time.Time) ([]core.Notification, error) {
	var (
		obligations []core.RecurringObligation
		statuses    []BudgetStatus
		goals       []core.Goal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		obligations, err = n.store.QueryObligations(gctx, storage.ObligationFilter{OwnerID: ownerID, ActiveOnly: true})
		if err != nil {
			return fmt.Errorf("load obligations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		statuses, err = n.budgets.Status(gctx, ownerID, string(core.PeriodMonthly), now)
		if err != nil {
			return fmt.Errorf("load budget status: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		goals, err = n.store.QueryGoals(gctx, storage.GoalFilter{OwnerID: ownerID, ActiveOnly: true})
		if err != nil {
			return fmt.Errorf("load goals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	today := core.DateOf(now)
	feed := make([]core.Notification, 0, len(obligations)+len(statuses)+len(goals))
	feed = append(feed, obligationAlerts(obligations, today)...)
	feed = append(feed, budgetAlerts(statuses, today)...)
	feed = append(feed, goalAlerts(goals, today)...)

	sort.SliceStable(feed, func(i, j int) bool { return feed[i].Priority < feed[j].Priority })
	return feed, nil
}

func obligationAlerts(obligations []core.RecurringObligation, today core.Date) []core.Notification {
	var out []core.Notification
	for _, o := range obligations {
		days := today.DaysUntil(o.NextDueDate)
		if days > dueSoonDays {
			continue
		}
		due := o.NextDueDate.String()
		n := core.Notification{
			ID:       "exp-" + o.ID + "-" + due,
			Kind:     core.KindDueSoon,
			Priority: 1,
			Icon:     "🟡",
			Title:    fmt.Sprintf("Vence em %d dia(s)", days),
			Body:     o.Description + " - R$ " + o.Value.StringFixed(2),
			Date:     due,
		}
		if days < 0 {
			n.Kind = core.KindOverdue
			n.Priority = 0
			n.Icon = "🔴"
			n.Title = "Despesa Vencida"
		}
		out = append(out, n)
	}
	return out
}

func budgetAlerts(statuses []BudgetStatus, today core.Date) []core.Notification {
	var out []core.Notification
	month := today.YearMonth()
	for _, st := range statuses {
		b := st.Budget
		if b.Period != core.PeriodMonthly || !b.LimitValue.IsPositive() {
			continue
		}
		if st.PercentUsed.LessThan(budgetWarnThreshold) {
			continue
		}
		n := core.Notification{
			ID:       "budget-" + b.ID + "-" + month,
			Kind:     core.KindNearBudget,
			Priority: 1,
			Icon:     "🟡",
			Title:    "Orcamento Quase no Limite",
			Body: fmt.Sprintf("%s: R$ %s / R$ %s (%s%%)", b.Category,
				st.Spent.StringFixed(2), b.LimitValue.StringFixed(2), st.PercentUsed.StringFixed(0)),
			Date: month,
		}
		if st.Over() {
			n.Kind = core.KindOverBudget
			n.Priority = 0
			n.Icon = "🔴"
			n.Title = "Orcamento Estourado"
		}
		out = append(out, n)
	}
	return out
}

func goalAlerts(goals []core.Goal, today core.Date) []core.Notification {
	var out []core.Notification
	for _, g := range goals {
		pct := decimal.Zero
		if g.TargetAmount.IsPositive() {
			pct = g.CurrentAmount.Div(g.TargetAmount).Mul(hundred)
		}

		if g.Achieved() {
			out = append(out, core.Notification{
				ID:       "goal-done-" + g.ID,
				Kind:     core.KindGoalAchieved,
				Priority: 2,
				Icon:     "🏆",
				Title:    "Meta Alcancada!",
				Body:     g.Name + " - R$ " + g.CurrentAmount.StringFixed(2) + " / R$ " + g.TargetAmount.StringFixed(2),
				Date:     g.Deadline.String(),
			})
			continue
		}
		if g.Deadline.IsZero() {
			continue
		}

		days := today.DaysUntil(g.Deadline)
		body := g.Name + " - " + pct.StringFixed(0) + "% concluida"
		switch {
		case days < 0:
			out = append(out, core.Notification{
				ID:       "goal-overdue-" + g.ID,
				Kind:     core.KindGoalOverdue,
				Priority: 0,
				Icon:     "🔴",
				Title:    "Meta com Prazo Vencido",
				Body:     body,
				Date:     g.Deadline.String(),
			})
		case days <= goalDeadlineDays:
			out = append(out, core.Notification{
				ID:       "goal-dl-" + g.ID,
				Kind:     core.KindGoalDeadline,
				Priority: 1,
				Icon:     "🎯",
				Title:    fmt.Sprintf("Meta vence em %d dia(s)", days),
				Body:     body,
				Date:     g.Deadline.String(),
			})
		}
	}
	return out
}
