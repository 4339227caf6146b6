package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/core"
)

func aluguel(start string) core.ObligationInput {
	return core.ObligationInput{
		Description: "Aluguel",
		Category:    "Moradia",
		Value:       dec("1500"),
		Frequency:   "monthly",
		StartDate:   start,
	}
}

func TestObligations_CreateRollsForward(t *testing.T) {
	e := newEnv(t)

	o, err := e.obligations.Create(e.ctx, alice, aluguel("2024-01-10"), core.NewDate(2024, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-10", o.NextDueDate.String())
	assert.True(t, o.Active)

	// A start after the reference is kept as is.
	o, err = e.obligations.Create(e.ctx, alice, aluguel("2024-07-01"), core.NewDate(2024, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01", o.NextDueDate.String())

	// Zero reference means today (2024-03-15).
	o, err = e.obligations.Create(e.ctx, alice, aluguel("2024-03-15"), core.Date{})
	require.NoError(t, err)
	assert.Equal(t, "2024-04-15", o.NextDueDate.String())

	list, err := e.obligations.List(e.ctx, alice, true)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "2024-04-15", list[0].NextDueDate.String())
}

func TestObligations_UnknownFrequency(t *testing.T) {
	e := newEnv(t)
	in := aluguel("2024-01-10")
	in.Frequency = "fortnightly"

	_, err := e.obligations.Create(e.ctx, alice, in, core.NewDate(2024, 5, 1))
	assert.ErrorIs(t, err, core.ErrUnknownFrequency)

	list, err := e.obligations.List(e.ctx, alice, false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestObligations_Pay(t *testing.T) {
	e := newEnv(t)
	w := e.wallet(alice, "Conta", "2000")
	o, err := e.obligations.Create(e.ctx, alice, aluguel("2024-01-10"), core.NewDate(2024, 5, 1))
	require.NoError(t, err)

	p, err := e.obligations.Pay(e.ctx, o.ID, alice, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", p.NextDueDate.String())
	assert.Equal(t, "mor", p.Transaction.Category)
	assert.Equal(t, "2024-05-10", p.Transaction.Date.String())
	assert.Equal(t, core.Expense, p.Transaction.Type)
	assert.Equal(t, "Aluguel", p.Transaction.Description)
	e.requireBalance(w.ID, "500")

	stored, err := e.store.GetObligation(e.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", stored.NextDueDate.String())
	assert.Contains(t, e.events.kinds(), core.EventObligationPaid)
}

func TestObligations_PayUnknownCategoryFallsBack(t *testing.T) {
	e := newEnv(t)
	in := aluguel("2024-01-10")
	in.Category = "Academia"
	o, err := e.obligations.Create(e.ctx, alice, in, core.NewDate(2024, 5, 1))
	require.NoError(t, err)

	p, err := e.obligations.Pay(e.ctx, o.ID, alice, "")
	require.NoError(t, err)
	assert.Equal(t, "out-desp", p.Transaction.Category)
	assert.Empty(t, p.Transaction.WalletID)
}

func TestObligations_PayPreconditions(t *testing.T) {
	e := newEnv(t)
	w := e.wallet(alice, "Conta", "2000")
	o, err := e.obligations.Create(e.ctx, alice, aluguel("2024-01-10"), core.NewDate(2024, 5, 1))
	require.NoError(t, err)

	_, err = e.obligations.Pay(e.ctx, o.ID, bob, w.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = e.obligations.Pay(e.ctx, "missing", alice, w.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = e.obligations.Pay(e.ctx, o.ID, alice, "missing")
	assert.ErrorIs(t, err, core.ErrWalletNotFound)

	require.NoError(t, e.obligations.Deactivate(e.ctx, o.ID, alice))
	_, err = e.obligations.Pay(e.ctx, o.ID, alice, w.ID)
	assert.ErrorIs(t, err, core.ErrValidation)

	e.requireBalance(w.ID, "2000")
}

func TestObligations_PayIsAtomic(t *testing.T) {
	e := newEnv(t)
	w := e.wallet(alice, "Conta", "2000")
	o, err := e.obligations.Create(e.ctx, alice, aluguel("2024-01-10"), core.NewDate(2024, 5, 1))
	require.NoError(t, err)
	e.store.FailNext("UpdateObligation", errors.New("disk full"))

	_, err = e.obligations.Pay(e.ctx, o.ID, alice, w.ID)
	require.Error(t, err)

	e.requireBalance(w.ID, "2000")
	assert.Len(t, e.walletTransactions(w.ID), 1)
	stored, err := e.store.GetObligation(e.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-10", stored.NextDueDate.String())
}

func TestObligations_Update(t *testing.T) {
	e := newEnv(t)
	o, err := e.obligations.Create(e.ctx, alice, aluguel("2024-03-20"), core.Date{})
	require.NoError(t, err)

	in := core.ObligationInput{
		Description: " Aluguel novo ", Category: "Moradia", Value: dec("1650"), Frequency: "annual", StartDate: "2024-03-01",
	}
	got, err := e.obligations.Update(e.ctx, o.ID, alice, in)
	require.NoError(t, err)
	assert.Equal(t, "Aluguel novo", got.Description)
	assert.True(t, got.Value.Equal(dec("1650")))
	assert.Equal(t, core.Frequency("annual"), got.Frequency)
	assert.Equal(t, "2024-03-01", got.NextDueDate.String())
	assert.True(t, got.Active)

	stored, err := e.store.GetObligation(e.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)

	bad := in
	bad.Frequency = "fortnightly"
	_, err = e.obligations.Update(e.ctx, o.ID, alice, bad)
	assert.ErrorIs(t, err, core.ErrUnknownFrequency)

	bad = in
	bad.Description = strings.Repeat("a", core.MaxDescriptionLength+1)
	bad.Value = dec("-1")
	bad.StartDate = "2024-02-30"
	_, err = e.obligations.Update(e.ctx, o.ID, alice, bad)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"description", "value", "startDate"}, ve.Fields())

	_, err = e.obligations.Update(e.ctx, o.ID, bob, in)
	assert.ErrorIs(t, err, core.ErrForbidden)
	_, err = e.obligations.Update(e.ctx, "missing", alice, in)
	assert.ErrorIs(t, err, core.ErrNotFound)

	stored, err = e.store.GetObligation(e.ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aluguel novo", stored.Description)
}
