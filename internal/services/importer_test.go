package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/core"
)

func TestImporter_ImportCSV(t *testing.T) {
	e := newEnv(t)
	w := e.wallet(alice, "Conta", "2000")

	csv := "\ufeffValue;Date;Type;Description;Category\n" +
		"1.234,56;2024-03-01;despesa;Mercado;Alimentação\n" +
		"abc;2024-03-02;expense;Quebrado;alim\n" +
		";;;;\n" +
		"100;2024-03-03;entrada;Reembolso;out-ent\n" +
		"10;2024-03-04;expense;Transferência;transfer\n" +
		"50;2024-03-05;expense;Academia;Sem Categoria\n"

	res, err := e.importer.ImportCSV(e.ctx, alice, strings.NewReader(csv), w.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	require.Len(t, res.TransactionIDs, 3)
	assert.Equal(t, []RowError{
		{Row: 2, Field: "value", Message: "value must be a positive amount"},
		{Row: 5, Field: "category", Message: "category transfer is reserved for transfers"},
	}, res.Errors)

	e.requireBalance(w.ID, "815.44")

	first, err := e.store.GetTransaction(e.ctx, res.TransactionIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "alim", first.Category)
	assert.True(t, first.Value.Equal(dec("1234.56")))

	last, err := e.store.GetTransaction(e.ctx, res.TransactionIDs[2])
	require.NoError(t, err)
	assert.Equal(t, "Sem Categoria", last.Category)

	assert.Contains(t, e.events.kinds(), core.EventBatchCreated)
}

func TestImporter_WalletColumn(t *testing.T) {
	e := newEnv(t)
	a := e.wallet(alice, "A", "100")
	b := e.wallet(alice, "B", "100")

	csv := "date,type,description,category,value,walletId\n" +
		"2024-03-01,expense,x,alim,10," + a.ID + "\n" +
		"2024-03-01,expense,y,alim,\"20,50\"," + b.ID + "\n"

	res, err := e.importer.ImportCSV(e.ctx, alice, strings.NewReader(csv), "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	e.requireBalance(a.ID, "90")
	e.requireBalance(b.ID, "79.50")
}

func TestImporter_ForeignWalletRejectsFile(t *testing.T) {
	e := newEnv(t)
	foreign := e.wallet(bob, "B", "100")

	csv := "date;type;description;category;value\n2024-03-01;expense;x;alim;10\n"
	_, err := e.importer.ImportCSV(e.ctx, alice, strings.NewReader(csv), foreign.ID)
	assert.ErrorIs(t, err, core.ErrWalletNotFound)
	e.requireBalance(foreign.ID, "100")
}

func TestImporter_Header(t *testing.T) {
	e := newEnv(t)

	_, err := e.importer.ImportCSV(e.ctx, alice, strings.NewReader(""), "")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = e.importer.ImportCSV(e.ctx, alice, strings.NewReader("date;type;value\n"), "")
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"missing column description", "missing column category"}, ve.Messages())

	res, err := e.importer.ImportCSV(e.ctx, alice, strings.NewReader("date;type;description;category;value\n"), "")
	require.NoError(t, err)
	assert.Zero(t, res.Imported)
}
