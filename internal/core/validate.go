package core

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MaxDescriptionLength = 200
	MaxCategoryLength    = 100
	MaxNameLength        = 100

	MaxCategoryNameLength = 50
	MaxIconLength         = 10
	MaxColorLength        = 20

	DefaultCategoryIcon  = "💰"
	DefaultCategoryColor = "#6b7280"
)

// TransactionInput is the caller-supplied shape of a transaction.
type TransactionInput struct {
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Value       decimal.Decimal `json:"value"`
	Date        string          `json:"date"`
	WalletID    string          `json:"walletId,omitempty"`
}

// Normalize trims and checks every field, returning the transaction the
// input describes. All offending fields are reported at once.
func (in TransactionInput) Normalize() (Transaction, error) {
	var p Problems
	var tx Transaction

	if t, ok := ParseTransactionType(in.Type); ok {
		tx.Type = t
	} else {
		p.Add("type", "type must be income or expense")
	}

	tx.Description = checkText(&p, "description", in.Description, MaxDescriptionLength)
	tx.Category = checkText(&p, "category", in.Category, MaxCategoryLength)
	tx.Value = checkValue(&p, "value", in.Value)

	if d, err := ParseDate(strings.TrimSpace(in.Date)); err == nil {
		tx.Date = d
	} else {
		p.Add("date", "date must be a valid YYYY-MM-DD date")
	}

	tx.WalletID = strings.TrimSpace(in.WalletID)

	if err := p.Err(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// WalletInput is the caller-supplied shape of a wallet.
type WalletInput struct {
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

func (in WalletInput) Normalize() (Wallet, error) {
	var p Problems
	w := Wallet{Active: true, Balance: in.InitialBalance}

	w.Name = checkText(&p, "name", in.Name, MaxNameLength)
	if t, ok := ParseWalletType(in.Type); ok {
		w.Type = t
	} else {
		p.Add("type", "type must be checking, savings, investment or cash")
	}
	w.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if w.Currency == "" {
		w.Currency = DefaultCurrency
	} else if len(w.Currency) != 3 {
		p.Add("currency", "currency must be a 3 letter code")
	}

	if err := p.Err(); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// ObligationInput is the caller-supplied shape of a recurring obligation.
// Frequency support is checked by the scheduler.
type ObligationInput struct {
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Value       decimal.Decimal `json:"value"`
	Frequency   string          `json:"frequency"`
	StartDate   string          `json:"startDate"`
}

func (in ObligationInput) Normalize() (RecurringObligation, Date, error) {
	var p Problems
	o := RecurringObligation{Active: true}

	o.Description = checkText(&p, "description", in.Description, MaxDescriptionLength)
	o.Category = checkText(&p, "category", in.Category, MaxCategoryLength)
	o.Value = checkValue(&p, "value", in.Value)
	o.Frequency = Frequency(strings.TrimSpace(in.Frequency))
	if o.Frequency == "" {
		p.Add("frequency", "frequency is required")
	}

	start, err := ParseDate(strings.TrimSpace(in.StartDate))
	if err != nil {
		p.Add("startDate", "startDate must be a valid YYYY-MM-DD date")
	}

	if err := p.Err(); err != nil {
		return RecurringObligation{}, Date{}, err
	}
	return o, start, nil
}

// BudgetInput is the caller-supplied shape of a budget.
type BudgetInput struct {
	Category   string          `json:"category"`
	LimitValue decimal.Decimal `json:"limitValue"`
	Period     string          `json:"period"`
}

func (in BudgetInput) Normalize() (Budget, error) {
	var p Problems
	b := Budget{Active: true}

	b.Category = checkText(&p, "category", in.Category, MaxCategoryLength)
	b.LimitValue = checkValue(&p, "limitValue", in.LimitValue)
	period := in.Period
	if strings.TrimSpace(period) == "" {
		period = string(PeriodMonthly)
	}
	if bp, ok := ParseBudgetPeriod(period); ok {
		b.Period = bp
	} else {
		p.Add("period", "period must be monthly, annual or weekly")
	}

	if err := p.Err(); err != nil {
		return Budget{}, err
	}
	return b, nil
}

// GoalInput is the caller-supplied shape of a savings goal.
type GoalInput struct {
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Deadline      string          `json:"deadline,omitempty"`
	Category      string          `json:"category,omitempty"`
}

func (in GoalInput) Normalize() (Goal, error) {
	var p Problems
	g := Goal{Active: true}

	g.Name = checkText(&p, "name", in.Name, MaxNameLength)
	g.TargetAmount = checkValue(&p, "targetAmount", in.TargetAmount)
	if in.CurrentAmount.IsNegative() {
		p.Add("currentAmount", "currentAmount cannot be negative")
	}
	g.CurrentAmount = in.CurrentAmount
	if dl := strings.TrimSpace(in.Deadline); dl != "" {
		d, err := ParseDate(dl)
		if err != nil {
			p.Add("deadline", "deadline must be a valid YYYY-MM-DD date")
		}
		g.Deadline = d
	}
	g.Category = strings.TrimSpace(in.Category)
	if utf8.RuneCountInString(g.Category) > MaxCategoryLength {
		p.Add("category", "category must be at most 100 characters")
	}

	if err := p.Err(); err != nil {
		return Goal{}, err
	}
	return g, nil
}

// CategoryInput is the caller-supplied shape of an owner category.
type CategoryInput struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
}

// Normalize checks the input. Icon and color fall back to defaults when
// blank.
func (in CategoryInput) Normalize() (Category, error) {
	var p Problems
	var c Category

	c.Name = checkText(&p, "name", in.Name, MaxCategoryNameLength)
	if t, ok := ParseTransactionType(in.Type); ok {
		c.Type = t
	} else {
		p.Add("type", "type must be income or expense")
	}
	c.Icon = optionalText(&p, "icon", in.Icon, MaxIconLength, DefaultCategoryIcon)
	c.Color = optionalText(&p, "color", in.Color, MaxColorLength, DefaultCategoryColor)

	if err := p.Err(); err != nil {
		return Category{}, err
	}
	return c, nil
}

func optionalText(p *Problems, field, value string, max int, fallback string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return fallback
	}
	if utf8.RuneCountInString(v) > max {
		p.Add(field, field+" is too long")
	}
	return v
}

func checkText(p *Problems, field, value string, max int) string {
	v := strings.TrimSpace(value)
	switch {
	case v == "":
		p.Add(field, field+" is required")
	case utf8.RuneCountInString(v) > max:
		p.Add(field, field+" is too long")
	}
	return v
}

func checkValue(p *Problems, field string, v decimal.Decimal) decimal.Decimal {
	switch {
	case !v.IsPositive():
		p.Add(field, field+" must be greater than zero")
	case v.GreaterThan(MaxTransactionValue):
		p.Add(field, field+" must be at most 999999999")
	}
	return v
}
