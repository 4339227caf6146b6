package core

import (
	"slices"
	"strings"
)

// Category is the display metadata of a category identifier. Built-in
// categories have no owner.
type Category struct {
	ID      string          `json:"id"`
	OwnerID string          `json:"ownerId,omitempty"`
	Name    string          `json:"name"`
	Type    TransactionType `json:"type"`
	Icon    string          `json:"icon,omitempty"`
	Color   string          `json:"color,omitempty"`
}

// BuiltIn reports whether c ships with the catalog rather than being
// created by an owner.
func (c Category) BuiltIn() bool { return c.OwnerID == "" }

// CategoryCatalog resolves category names to identifiers and identifiers to
// display metadata. Transactions reference ids; budgets reference names.
type CategoryCatalog struct {
	entries []Category
	byID    map[string]Category
	byName  map[string][]string
}

// NewCategoryCatalog builds a catalog. Later entries with a known id
// replace earlier ones.
func NewCategoryCatalog(categories []Category) *CategoryCatalog {
	c := &CategoryCatalog{
		entries: make([]Category, 0, len(categories)),
		byID:    make(map[string]Category, len(categories)),
		byName:  make(map[string][]string, len(categories)),
	}
	for _, cat := range categories {
		if old, ok := c.byID[cat.ID]; ok {
			c.removeName(old)
			c.entries = slices.DeleteFunc(c.entries, func(e Category) bool { return e.ID == cat.ID })
		}
		c.entries = append(c.entries, cat)
		c.byID[cat.ID] = cat
		key := nameKey(cat.Name)
		c.byName[key] = append(c.byName[key], cat.ID)
	}
	return c
}

// DefaultCategories returns the built-in catalog.
func DefaultCategories() []Category {
	return []Category{
		{ID: "sal", Name: "Salário", Type: Income, Icon: "💼"},
		{ID: "free", Name: "Freelance", Type: Income, Icon: "💻"},
		{ID: "inv", Name: "Investimentos", Type: Income, Icon: "📈"},
		{ID: "out-ent", Name: "Outros", Type: Income, Icon: "💰"},
		{ID: "alim", Name: "Alimentação", Type: Expense, Icon: "🍽️"},
		{ID: "trans", Name: "Transporte", Type: Expense, Icon: "🚗"},
		{ID: "mor", Name: "Moradia", Type: Expense, Icon: "🏠"},
		{ID: "sau", Name: "Saúde", Type: Expense, Icon: "⚕️"},
		{ID: "laz", Name: "Lazer", Type: Expense, Icon: "🎮"},
		{ID: "out-desp", Name: "Outros", Type: Expense, Icon: "💸"},
		{ID: TransferCategory, Name: "Transferência", Type: Expense, Icon: "🔁"},
	}
}

// IDsForName returns every id whose display name matches name, ignoring case.
func (c *CategoryCatalog) IDsForName(name string) []string {
	ids := c.byName[nameKey(name)]
	return append([]string(nil), ids...)
}

// ResolveName returns the first id of the given type whose name matches,
// or fallback when none does.
func (c *CategoryCatalog) ResolveName(name string, t TransactionType, fallback string) string {
	for _, id := range c.byName[nameKey(name)] {
		if c.byID[id].Type == t {
			return id
		}
	}
	return fallback
}

// Resolve maps raw to the identifier stored on a transaction of type t.
// A known id is kept, a name is replaced by the id of the same type, and
// anything else is kept as free text.
func (c *CategoryCatalog) Resolve(raw string, t TransactionType) string {
	if _, ok := c.byID[raw]; ok {
		return raw
	}
	return c.ResolveName(raw, t, raw)
}

// Matching returns raw followed by every id whose name matches it, so a
// filter written either way finds the same rows.
func (c *CategoryCatalog) Matching(raw string) []string {
	out := []string{raw}
	for _, id := range c.byName[nameKey(raw)] {
		if id != raw {
			out = append(out, id)
		}
	}
	return out
}

// With returns a new catalog holding c's entries followed by extra.
func (c *CategoryCatalog) With(extra ...Category) *CategoryCatalog {
	if len(extra) == 0 {
		return c
	}
	return NewCategoryCatalog(append(c.Categories(), extra...))
}

// Categories returns the entries in insertion order.
func (c *CategoryCatalog) Categories() []Category {
	return slices.Clone(c.entries)
}

// Lookup returns the metadata of id.
func (c *CategoryCatalog) Lookup(id string) (Category, bool) {
	cat, ok := c.byID[id]
	return cat, ok
}

func (c *CategoryCatalog) removeName(cat Category) {
	key := nameKey(cat.Name)
	ids := c.byName[key]
	for i, id := range ids {
		if id == cat.ID {
			c.byName[key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
