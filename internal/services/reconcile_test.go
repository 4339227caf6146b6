package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/core"
)

func TestReconciler_Scan(t *testing.T) {
	e := newEnv(t)
	clean := e.wallet(alice, "A", "100")
	drifted := e.wallet(bob, "B", "100")
	closed := e.wallet(alice, "C", "0")
	require.NoError(t, e.wallets.Deactivate(e.ctx, closed.ID, alice))

	tamper(t, e, drifted.ID, "130")
	tamper(t, e, closed.ID, "7")

	res, err := e.reconciler.Scan(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Zero(t, res.Failed)
	require.Len(t, res.Drifted, 1)
	assert.Equal(t, drifted.ID, res.Drifted[0].WalletID)
	assert.True(t, res.Drifted[0].Difference.Equal(dec("30")))

	// Drift is reported, never corrected.
	e.requireBalance(drifted.ID, "130")
	e.requireBalance(clean.ID, "100")

	var drift []core.LedgerEvent
	for _, ev := range e.events.events {
		if ev.Kind == core.EventWalletDrift {
			drift = append(drift, ev)
		}
	}
	require.Len(t, drift, 1)
	assert.Equal(t, bob, drift[0].OwnerID)
	assert.Equal(t, []string{drifted.ID}, drift[0].WalletIDs)
}

func TestReconciler_CheckIDs(t *testing.T) {
	e := newEnv(t)
	w := e.wallet(alice, "A", "100")

	drifts, err := e.reconciler.CheckIDs(e.ctx, []string{w.ID})
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.False(t, drifts[0].Drifted)

	_, err = e.reconciler.CheckIDs(e.ctx, []string{"missing"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}
