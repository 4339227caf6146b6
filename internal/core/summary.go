package core

import "github.com/shopspring/decimal"

// PeriodTotal is the sum of one transaction type over a calendar month.
type PeriodTotal struct {
	OwnerID   string          `json:"ownerId"`
	Type      TransactionType `json:"type"`
	YearMonth string          `json:"yearMonth"`
	Total     decimal.Decimal `json:"total"`
	Count     int             `json:"count"`
}

// Notification is a derived, never persisted, alert of the feed.
type Notification struct {
	ID       string           `json:"id"`
	Kind     NotificationKind `json:"kind"`
	Priority int              `json:"priority"`
	Icon     string           `json:"icon"`
	Title    string           `json:"title"`
	Body     string           `json:"body"`
	Date     string           `json:"date"`
}

type NotificationKind string

const (
	KindOverdue      NotificationKind = "overdue"
	KindDueSoon      NotificationKind = "due-soon"
	KindOverBudget   NotificationKind = "over-budget"
	KindNearBudget   NotificationKind = "near-budget"
	KindGoalAchieved NotificationKind = "goal-achieved"
	KindGoalOverdue  NotificationKind = "goal-overdue"
	KindGoalDeadline NotificationKind = "goal-deadline"
)
