package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Monthly          Frequency = "monthly"
	Bimonthly        Frequency = "bimonthly"
	Quarterly        Frequency = "quarterly"
	Semiannual       Frequency = "semiannual"
	Annual           Frequency = "annual"
	FifthBusinessDay Frequency = "fifth-business-day"
)

const (
	Checking   WalletType = "checking"
	Savings    WalletType = "savings"
	Investment WalletType = "investment"
	Cash       WalletType = "cash"
)

const (
	PeriodMonthly BudgetPeriod = "monthly"
	PeriodAnnual  BudgetPeriod = "annual"
	PeriodWeekly  BudgetPeriod = "weekly"
)

// TransferCategory is the category carried by both legs of a transfer.
const TransferCategory = "transfer"

// DefaultCurrency is the base currency of the ledger.
const DefaultCurrency = "BRL"

type (
	TransactionType string
	Frequency       string
	WalletType      string
	BudgetPeriod    string

	Transaction struct {
		ID               string          `json:"id"`
		OwnerID          string          `json:"ownerId"`
		Type             TransactionType `json:"type"`
		Description      string          `json:"description"`
		Category         string          `json:"category"`
		Value            decimal.Decimal `json:"value"`
		Date             Date            `json:"date"`
		WalletID         string          `json:"walletId,omitempty"`
		TransferRef      string          `json:"transferRef,omitempty"`
		InstallmentRef   string          `json:"installmentRef,omitempty"`
		InstallmentIndex int             `json:"installmentIndex,omitempty"`
		InstallmentCount int             `json:"installmentCount,omitempty"`
		CreatedAt        time.Time       `json:"createdAt"`
	}

	Wallet struct {
		ID        string          `json:"id"`
		OwnerID   string          `json:"ownerId"`
		Name      string          `json:"name"`
		Type      WalletType      `json:"type"`
		Balance   decimal.Decimal `json:"balance"`
		Currency  string          `json:"currency"`
		Active    bool            `json:"active"`
		CreatedAt time.Time       `json:"createdAt"`
	}

	RecurringObligation struct {
		ID          string          `json:"id"`
		OwnerID     string          `json:"ownerId"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Value       decimal.Decimal `json:"value"`
		Frequency   Frequency       `json:"frequency"`
		NextDueDate Date            `json:"nextDueDate"`
		Active      bool            `json:"active"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	Budget struct {
		ID         string          `json:"id"`
		OwnerID    string          `json:"ownerId"`
		Category   string          `json:"category"`
		LimitValue decimal.Decimal `json:"limitValue"`
		Period     BudgetPeriod    `json:"period"`
		Active     bool            `json:"active"`
		CreatedAt  time.Time       `json:"createdAt"`
	}

	Goal struct {
		ID            string          `json:"id"`
		OwnerID       string          `json:"ownerId"`
		Name          string          `json:"name"`
		TargetAmount  decimal.Decimal `json:"targetAmount"`
		CurrentAmount decimal.Decimal `json:"currentAmount"`
		Deadline      Date            `json:"deadline"`
		Category      string          `json:"category,omitempty"`
		Active        bool            `json:"active"`
		CreatedAt     time.Time       `json:"createdAt"`
	}
)

// Signed returns the value with the sign the transaction applies to a wallet.
func (t Transaction) Signed() decimal.Decimal {
	return Signed(t.Value, t.Type)
}

// IsTransferLeg reports whether the transaction is one side of a transfer.
func (t Transaction) IsTransferLeg() bool {
	return t.TransferRef != ""
}

// OwnedBy reports whether the record belongs to ownerID.
func (t Transaction) OwnedBy(ownerID string) bool { return t.OwnerID == ownerID }

func (w Wallet) OwnedBy(ownerID string) bool { return w.OwnerID == ownerID }

func (o RecurringObligation) OwnedBy(ownerID string) bool { return o.OwnerID == ownerID }

func (b Budget) OwnedBy(ownerID string) bool { return b.OwnerID == ownerID }

func (g Goal) OwnedBy(ownerID string) bool { return g.OwnerID == ownerID }

// Achieved reports whether the goal reached its target.
func (g Goal) Achieved() bool {
	return g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
}

// Opposite returns the other transaction type.
func (t TransactionType) Opposite() TransactionType {
	if t == Income {
		return Expense
	}
	return Income
}

// ParseTransactionType accepts the canonical names and the legacy
// Portuguese ones used by older exports.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "entrada":
		return Income, true
	case "expense", "despesa":
		return Expense, true
	}
	return "", false
}

func ParseWalletType(s string) (WalletType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "checking", "corrente":
		return Checking, true
	case "savings", "poupanca", "poupança":
		return Savings, true
	case "investment", "investimento":
		return Investment, true
	case "cash", "carteira":
		return Cash, true
	}
	return "", false
}

func ParseBudgetPeriod(s string) (BudgetPeriod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "mensal":
		return PeriodMonthly, true
	case "annual", "anual", "yearly":
		return PeriodAnnual, true
	case "weekly", "semanal":
		return PeriodWeekly, true
	}
	return "", false
}
