package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-01-10", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2024-13-01", false},
		{"2024-1-1", false},
		{"", false},
		{"2024-01-10T00:00:00Z", false},
	}
	for _, tc := range cases {
		_, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestDateDaysUntil(t *testing.T) {
	today := NewDate(2024, 3, 10)
	if got := today.DaysUntil(NewDate(2024, 3, 17)); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := today.DaysUntil(NewDate(2024, 3, 9)); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
	// crosses the DST change in many zones; dates are UTC so it stays exact
	if got := NewDate(2024, 3, 1).DaysUntil(NewDate(2024, 4, 1)); got != 31 {
		t.Fatalf("expected 31, got %d", got)
	}
}

func TestDateJSONAndScan(t *testing.T) {
	d := NewDate(2024, 5, 10)
	b, err := json.Marshal(d)
	if err != nil || string(b) != `"2024-05-10"` {
		t.Fatalf("marshal: %s %v", b, err)
	}
	var back Date
	if err := json.Unmarshal(b, &back); err != nil || !back.Equal(d) {
		t.Fatalf("unmarshal: %v %v", back, err)
	}

	var zero Date
	if b, _ := json.Marshal(zero); string(b) != "null" {
		t.Fatalf("zero date should marshal to null, got %s", b)
	}

	var scanned Date
	if err := scanned.Scan("2024-05-10T00:00:00Z"); err != nil || !scanned.Equal(d) {
		t.Fatalf("scan string: %v %v", scanned, err)
	}
	if err := scanned.Scan(time.Date(2024, 5, 10, 15, 4, 0, 0, time.UTC)); err != nil || !scanned.Equal(d) {
		t.Fatalf("scan time: %v %v", scanned, err)
	}
	if err := scanned.Scan(nil); err != nil || !scanned.IsZero() {
		t.Fatalf("scan nil: %v %v", scanned, err)
	}
}

func TestTransactionInputNormalize(t *testing.T) {
	good := TransactionInput{
		Type:        "despesa",
		Description: "  Mercado  ",
		Category:    "alim",
		Value:       decimal.RequireFromString("120"),
		Date:        "2024-03-01",
		WalletID:    "w1",
	}
	tx, err := good.Normalize()
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if tx.Type != Expense || tx.Description != "Mercado" || tx.WalletID != "w1" {
		t.Fatalf("unexpected normalized transaction: %+v", tx)
	}
	if !tx.Signed().Equal(decimal.RequireFromString("-120")) {
		t.Fatalf("expected signed -120, got %s", tx.Signed())
	}

	bad := TransactionInput{
		Type:        "gift",
		Description: strings.Repeat("x", 201),
		Category:    " ",
		Value:       decimal.RequireFromString("1000000000"),
		Date:        "2024-02-30",
	}
	_, err = bad.Normalize()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected errors.Is ErrValidation")
	}
	if vErr.Field() != "type" {
		t.Fatalf("expected first field type, got %s", vErr.Field())
	}
	want := []string{"type", "description", "category", "value", "date"}
	got := vErr.Fields()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("fields = %v, want %v", got, want)
	}
}

func TestTransactionInputValueBounds(t *testing.T) {
	base := TransactionInput{Type: "income", Description: "d", Category: "sal", Date: "2024-01-01"}
	cases := []struct {
		value string
		ok    bool
	}{
		{"0.01", true},
		{"999999999", true},
		{"999999999.01", false},
		{"0", false},
		{"-5", false},
	}
	for _, tc := range cases {
		in := base
		in.Value = decimal.RequireFromString(tc.value)
		_, err := in.Normalize()
		if tc.ok && err != nil {
			t.Fatalf("%s expected ok, got %v", tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s expected error", tc.value)
		}
	}
}

func TestDescriptionLengthCountsRunes(t *testing.T) {
	in := TransactionInput{
		Type:        "expense",
		Description: strings.Repeat("ç", 200),
		Category:    "alim",
		Value:       decimal.NewFromInt(1),
		Date:        "2024-01-01",
	}
	if _, err := in.Normalize(); err != nil {
		t.Fatalf("200 runes should be accepted, got %v", err)
	}
}

func TestWalletInputNormalize(t *testing.T) {
	w, err := WalletInput{Name: "Nubank", Type: "corrente"}.Normalize()
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if w.Type != Checking || w.Currency != DefaultCurrency || !w.Active {
		t.Fatalf("unexpected wallet: %+v", w)
	}
	if _, err := (WalletInput{Name: "", Type: "vault"}).Normalize(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCategoryCatalog(t *testing.T) {
	c := NewCategoryCatalog(DefaultCategories())

	ids := c.IDsForName("outros")
	if len(ids) != 2 {
		t.Fatalf("expected both Outros ids, got %v", ids)
	}
	if got := c.ResolveName("MORADIA", Expense, "out-desp"); got != "mor" {
		t.Fatalf("expected mor, got %s", got)
	}
	if got := c.ResolveName("Unknown", Expense, "out-desp"); got != "out-desp" {
		t.Fatalf("expected fallback, got %s", got)
	}
	if cat, ok := c.Lookup("alim"); !ok || cat.Name != "Alimentação" {
		t.Fatalf("lookup alim: %+v %v", cat, ok)
	}

	custom := NewCategoryCatalog(append(DefaultCategories(), Category{ID: "alim", Name: "Food", Type: Expense}))
	if len(custom.IDsForName("Alimentação")) != 0 {
		t.Fatalf("renamed category should no longer resolve by old name")
	}
	if got := custom.IDsForName("food"); len(got) != 1 || got[0] != "alim" {
		t.Fatalf("expected alim under new name, got %v", got)
	}
}

func TestCategoryCatalogResolve(t *testing.T) {
	c := NewCategoryCatalog(DefaultCategories())
	cases := []struct {
		raw  string
		typ  TransactionType
		want string
	}{
		{"mor", Expense, "mor"},
		{"Moradia", Expense, "mor"},
		{" moradia ", Expense, "mor"},
		{"Outros", Income, "out-ent"},
		{"Outros", Expense, "out-desp"},
		{"Transferência", Expense, TransferCategory},
		{"casa", Expense, "casa"},
	}
	for _, tc := range cases {
		if got := c.Resolve(tc.raw, tc.typ); got != tc.want {
			t.Errorf("Resolve(%q, %s) = %q, want %q", tc.raw, tc.typ, got, tc.want)
		}
	}

	if got := c.Matching("Outros"); len(got) != 3 || got[0] != "Outros" {
		t.Fatalf("expected raw plus both Outros ids, got %v", got)
	}
	if got := c.Matching("alim"); len(got) != 1 || got[0] != "alim" {
		t.Fatalf("expected the id alone, got %v", got)
	}
}

func TestCategoryCatalogWith(t *testing.T) {
	base := NewCategoryCatalog(DefaultCategories())
	if base.With() != base {
		t.Fatalf("With without entries should return the receiver")
	}

	gym := Category{ID: "c1", OwnerID: "u1", Name: "Academia", Type: Expense}
	c := base.With(gym)
	if got := c.Resolve("academia", Expense); got != "c1" {
		t.Fatalf("expected custom id, got %s", got)
	}
	if got := base.Resolve("academia", Expense); got != "academia" {
		t.Fatalf("base catalog must not change, got %s", got)
	}
	all := c.Categories()
	if len(all) != len(DefaultCategories())+1 || all[len(all)-1].ID != "c1" {
		t.Fatalf("unexpected entries %v", all)
	}
	if !all[0].BuiltIn() || all[len(all)-1].BuiltIn() {
		t.Fatalf("built-in flag wrong")
	}
}

func TestCategoryInputNormalize(t *testing.T) {
	c, err := CategoryInput{Name: " Academia ", Type: "despesa"}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "Academia" || c.Type != Expense || c.Icon != DefaultCategoryIcon || c.Color != DefaultCategoryColor {
		t.Fatalf("unexpected category %+v", c)
	}

	_, err = CategoryInput{Name: strings.Repeat("a", 51), Type: "gift", Color: strings.Repeat("#", 21)}.Normalize()
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Problems) != 3 {
		t.Fatalf("expected three problems, got %v", err)
	}
}
