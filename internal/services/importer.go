package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

// MaxImportRows bounds a single CSV import.
const MaxImportRows = 2000

var importColumns = []string{"date", "type", "description", "category", "value"}

// Importer loads transactions from CSV exports.
type Importer struct {
	store storage.Store
	options
}

func NewImporter(store storage.Store, opts ...Option) *Importer {
	return &Importer{store: store, options: buildOptions(log.ComponentImport, opts)}
}

// RowError reports a rejected CSV row. Row counts data rows from 1.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type ImportResult struct {
	Imported       int        `json:"imported"`
	TransactionIDs []string   `json:"transactionIds"`
	Errors         []RowError `json:"errors,omitempty"`
}

// ImportCSV reads a header line naming date, type, description, category
// and value (in any order, comma or semicolon separated) followed by data
// rows. Valid rows are stored in one unit of work; invalid rows are
// reported and skipped. When walletID is set every row is routed to it.
func (im *Importer) ImportCSV(ctx context.Context, ownerID string, r io.Reader, walletID string) (ImportResult, error) {
	rows, err := readCSV(r)
	if err != nil {
		return ImportResult{}, err
	}
	if len(rows) == 0 {
		return ImportResult{}, core.NewValidationError("file", "file has no header")
	}

	index, err := headerIndex(rows[0])
	if err != nil {
		return ImportResult{}, err
	}
	data := rows[1:]
	if len(data) > MaxImportRows {
		return ImportResult{}, core.NewValidationError("file", fmt.Sprintf("file has more than %d rows", MaxImportRows))
	}
	catalog, err := im.catalogFor(ctx, im.store, ownerID)
	if err != nil {
		return ImportResult{}, err
	}

	var (
		result  ImportResult
		txs     []core.Transaction
		deltas  = walletDeltas{}
		created = im.now().UTC()
	)
	for i, row := range data {
		if isBlank(row) {
			continue
		}
		tx, rowErr := parseRow(catalog, row, index, walletID)
		if rowErr != nil {
			rowErr.Row = i + 1
			result.Errors = append(result.Errors, *rowErr)
			continue
		}
		tx.ID = im.newID()
		tx.OwnerID = ownerID
		tx.CreatedAt = created
		txs = append(txs, tx)
		deltas.add(tx.WalletID, tx.Signed())
	}
	if len(txs) == 0 {
		return result, nil
	}

	ids := make([]string, len(txs))
	wallets := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
		wallets[i] = tx.WalletID
	}

	err = im.store.WithinTx(ctx, func(w storage.Writer) error {
		if err := checkWallets(ctx, w, ownerID, wallets, true); err != nil {
			return err
		}
		for i, tx := range txs {
			if err := w.InsertTransaction(ctx, tx); err != nil {
				return step(fmt.Sprintf("insert row %d", i+1), err)
			}
		}
		return deltas.apply(ctx, w)
	})
	if err != nil {
		im.logFailure(ctx, log.OpImport, ownerID, err, deltas.ids(), ids...)
		return ImportResult{}, err
	}

	result.Imported = len(txs)
	result.TransactionIDs = ids
	im.publish(ctx, core.NewLedgerEvent(core.EventBatchCreated, ownerID, ids, deltas.ids()...))
	return result, nil
}

func parseRow(catalog *core.CategoryCatalog, row []string, index map[string]int, walletID string) (core.Transaction, *RowError) {
	get := func(col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	value, err := core.ParseAmount(get("value"))
	if err != nil {
		return core.Transaction{}, &RowError{Field: "value", Message: "value must be a positive amount"}
	}

	in := core.TransactionInput{
		Type:        get("type"),
		Description: get("description"),
		Category:    get("category"),
		Value:       value,
		Date:        get("date"),
		WalletID:    walletID,
	}
	if i, ok := index["walletid"]; ok && walletID == "" && i < len(row) {
		in.WalletID = strings.TrimSpace(row[i])
	}

	tx, err := in.Normalize()
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return core.Transaction{}, &RowError{Field: ve.Field(), Message: ve.Error()}
	}
	tx.Category = catalog.Resolve(tx.Category, tx.Type)
	if tx.Category == core.TransferCategory {
		return core.Transaction{}, &RowError{Field: "category", Message: reservedCategory().Error()}
	}
	return tx, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(io.LimitReader(r, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	text := strings.TrimPrefix(string(raw), "\ufeff")

	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if first, _, _ := strings.Cut(text, "\n"); strings.Count(first, ";") > strings.Count(first, ",") {
		cr.Comma = ';'
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, core.NewValidationError("file", "file is not valid CSV: "+err.Error())
	}
	return rows, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var p core.Problems
	for _, col := range importColumns {
		if _, ok := index[col]; !ok {
			p.Add("header", "missing column "+col)
		}
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return index, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
