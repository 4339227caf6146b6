package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"carteira/internal/core"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	Name      string
	Driver    string
	Numbered  bool   // $1 placeholders instead of ?
	ForUpdate string // row lock suffix for LockWallet
}

var (
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite"}
	Postgres = Dialect{Name: "postgres", Driver: "pgx", Numbered: true, ForUpdate: " FOR UPDATE"}
)

// rebind rewrites ? placeholders for dialects with numbered parameters.
func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store over database/sql.
type SQLStore struct {
	sqlReader
	db *sql.DB
}

var _ Store = (*SQLStore)(nil)

// OpenSQLite opens (creating if needed) a SQLite database file and migrates it.
func OpenSQLite(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite"
	if err := RunMigrations(SQLite, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open(SQLite.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; immediate transactions take the lock up front.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return newSQLStore(db, SQLite), nil
}

// OpenPostgres connects to PostgreSQL through pgx and migrates the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*SQLStore, error) {
	if err := RunMigrations(Postgres, databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open(Postgres.Driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return newSQLStore(db, Postgres), nil
}

func newSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{sqlReader: sqlReader{q: db, d: d}, db: db}
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTx runs fn inside a database transaction.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(w Writer) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StorageError{Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Rollback failed", "error", rbErr, "cause", err)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = &core.StorageError{Op: "commit", Err: cErr}
		}
	}()

	return fn(&sqlWriter{sqlReader: sqlReader{q: tx, d: s.d}})
}

type sqlReader struct {
	q querier
	d Dialect
}

type sqlWriter struct {
	sqlReader
}

const transactionColumns = `id, owner_id, type, description, category, value, date, wallet_id,
	transfer_ref, installment_ref, installment_index, installment_count, created_at`

func scanTransaction(sc interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t                                     core.Transaction
		typ                                   string
		walletID, transferRef, installmentRef sql.NullString
		created                               timestamp
	)
	err := sc.Scan(&t.ID, &t.OwnerID, &typ, &t.Description, &t.Category, &t.Value, &t.Date,
		&walletID, &transferRef, &installmentRef, &t.InstallmentIndex, &t.InstallmentCount, &created)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.WalletID = walletID.String
	t.TransferRef = transferRef.String
	t.InstallmentRef = installmentRef.String
	t.CreatedAt = created.Time
	return t, nil
}

func (r sqlReader) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.q.QueryRowContext(ctx, r.d.rebind(`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`), id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, wrapErr("get", TableTransactions, id, err)
	}
	return t, nil
}

func (r sqlReader) QueryTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg ...any) {
		where = append(where, cond)
		args = append(args, arg...)
	}
	if f.OwnerID != "" {
		add("owner_id = ?", f.OwnerID)
	}
	if f.WalletID != "" {
		add("wallet_id = ?", f.WalletID)
	}
	if f.Type != "" {
		add("type = ?", string(f.Type))
	}
	if !f.From.IsZero() {
		add("date >= ?", f.From)
	}
	if !f.To.IsZero() {
		add("date <= ?", f.To)
	}
	if len(f.Categories) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(f.Categories)), ", ")
		cats := make([]any, 0, len(f.Categories))
		for _, c := range f.Categories {
			cats = append(cats, c)
		}
		add("category IN ("+marks+")", cats...)
	}
	if f.TransferRef != "" {
		add("transfer_ref = ?", f.TransferRef)
	}
	if f.InstallmentRef != "" {
		add("installment_ref = ?", f.InstallmentRef)
	}
	if f.TransfersOnly {
		add("transfer_ref IS NOT NULL")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC, installment_index DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(f.Limit)
	}

	rows, err := r.q.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, wrapErr("query", TableTransactions, "", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, wrapErr("scan", TableTransactions, "", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("query", TableTransactions, "", err)
	}
	return out, nil
}

const walletColumns = `id, owner_id, name, type, balance, currency, is_active, created_at`

func scanWallet(sc interface{ Scan(...any) error }) (core.Wallet, error) {
	var (
		w       core.Wallet
		typ     string
		created timestamp
	)
	if err := sc.Scan(&w.ID, &w.OwnerID, &w.Name, &typ, &w.Balance, &w.Currency, &w.Active, &created); err != nil {
		return core.Wallet{}, err
	}
	w.Type = core.WalletType(typ)
	w.CreatedAt = created.Time
	return w, nil
}

func (r sqlReader) GetWallet(ctx context.Context, id string) (core.Wallet, error) {
	row := r.q.QueryRowContext(ctx, r.d.rebind(`SELECT `+walletColumns+` FROM wallets WHERE id = ?`), id)
	w, err := scanWallet(row)
	if err != nil {
		return core.Wallet{}, wrapErr("get", TableWallets, id, err)
	}
	return w, nil
}

func (r sqlReader) QueryWallets(ctx context.Context, f WalletFilter) ([]core.Wallet, error) {
	var (
		where []string
		args  []any
	)
	if f.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.Name != "" {
		where = append(where, "name = ?")
		args = append(args, f.Name)
	}
	if f.ActiveOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}
	query := `SELECT ` + walletColumns + ` FROM wallets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := r.q.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, wrapErr("query", TableWallets, "", err)
	}
	defer rows.Close()

	var out []core.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, wrapErr("scan", TableWallets, "", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("query", TableWallets, "", err)
	}
	return out, nil
}

const obligationColumns = `id, owner_id, description, category, value, frequency, next_due_date, is_active, created_at`

func scanObligation(sc interface{ Scan(...any) error }) (core.RecurringObligation, error) {
	var (
		o       core.RecurringObligation
		freq    string
		created timestamp
	)
	if err := sc.Scan(&o.ID, &o.OwnerID, &o.Description, &o.Category, &o.Value, &freq, &o.NextDueDate, &o.Active, &created); err != nil {
		return core.RecurringObligation{}, err
	}
	o.Frequency = core.Frequency(freq)
	o.CreatedAt = created.Time
	return o, nil
}

func (r sqlReader) GetObligation(ctx context.Context, id string) (core.RecurringObligation, error) {
	row := r.q.QueryRowContext(ctx, r.d.rebind(`SELECT `+obligationColumns+` FROM recurring_obligations WHERE id = ?`), id)
	o, err := scanObligation(row)
	if err != nil {
		return core.RecurringObligation{}, wrapErr("get", TableObligations, id, err)
	}
	return o, nil
}

func (r sqlReader) QueryObligations(ctx context.Context, f ObligationFilter) ([]core.RecurringObligation, error) {
	query, args := ownerActiveQuery(`SELECT `+obligationColumns+` FROM recurring_obligations`, f.OwnerID, f.ActiveOnly)
	query += " ORDER BY next_due_date, id"

	rows, err := r.q.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, wrapErr("query", TableObligations, "", err)
	}
	defer rows.Close()

	var out []core.RecurringObligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, wrapErr("scan", TableObligations, "", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("query", TableObligations, "", err)
	}
	return out, nil
}

const budgetColumns = `id, owner_id, category, limit_value, period, is_active, created_at`

func scanBudget(sc interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b       core.Budget
		period  string
		created timestamp
	)
	if err := sc.Scan(&b.ID, &b.OwnerID, &b.Category, &b.LimitValue, &period, &b.Active, &created); err != nil {
		return core.Budget{}, err
	}
	b.Period = core.BudgetPeriod(period)
	b.CreatedAt = created.Time
	return b, nil
}

func (r sqlReader) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	row := r.q.QueryRowContext(ctx, r.d.rebind(`SELECT `+budgetColumns+` FROM budgets WHERE id = ?`), id)
	b, err := scanBudget(row)
	if err != nil {
		return core.Budget{}, wrapErr("get", TableBudgets, id, err)
	}
	return b, nil
}

func (r sqlReader) QueryBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, error) {
	query, args := ownerActiveQuery(`SELECT `+budgetColumns+` FROM budgets`, f.OwnerID, f.ActiveOnly)
	if f.Period != "" {
		if len(args) == 0 {
			query += " WHERE period = ?"
		} else {
			query += " AND period = ?"
		}
		args = append(args, string(f.Period))
	}
	query += " ORDER BY created_at, id"

	rows, err := r.q.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, wrapErr("query", TableBudgets, "", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, wrapErr("scan", TableBudgets, "", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("query", TableBudgets, "", err)
	}
	return out, nil
}

const goalColumns = `id, owner_id, name, target_amount, current_amount, deadline, category, is_active, created_at`

func scanGoal(sc interface{ Scan(...any) error }) (core.Goal, error) {
	var (
		g       core.Goal
		created timestamp
	)
	if err := sc.Scan(&g.ID, &g.OwnerID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.Deadline, &g.Category, &g.Active, &created); err != nil {
		return core.Goal{}, err
	}
	g.CreatedAt = created.Time
	return g, nil
}

func (r sqlReader) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	row := r.q.QueryRowContext(ctx, r.d.rebind(`SELECT `+goalColumns+` FROM goals WHERE id = ?`), id)
	g, err := scanGoal(row)
	if err != nil {
		return core.Goal{}, wrapErr("get", TableGoals, id, err)
	}
	return g, nil
}

func (r sqlReader) QueryGoals(ctx context.Context, f GoalFilter) ([]core.Goal, error) {
	query, args := ownerActiveQuery(`SELECT `+goalColumns+` FROM goals`, f.OwnerID, f.ActiveOnly)
	query += " ORDER BY created_at, id"

	rows, err := r.q.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, wrapErr("query", TableGoals, "", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, wrapErr("scan", TableGoals, "", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("query", TableGoals, "", err)
	}
	return out, nil
}

const categoryColumns = `id, owner_id, name, type, icon, color`

func scanCategory(sc interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c   core.Category
		typ string
	)
	if err := sc.Scan(&c.ID, &c.OwnerID, &c.Name, &typ, &c.Icon, &c.Color); err != nil {
		return core.Category{}, err
	}
	c.Type = core.TransactionType(typ)
	return c, nil
}

func (r sqlReader) GetCategory(ctx context.Context, id string) (core.Category, error) {
	row := r.q.QueryRowContext(ctx, r.d.rebind(`SELECT `+categoryColumns+` FROM categories WHERE id = ?`), id)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, wrapErr("get", TableCategories, id, err)
	}
	return c, nil
}

func (r sqlReader) QueryCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	rows, err := r.q.QueryContext(ctx, r.d.rebind(`SELECT `+categoryColumns+` FROM categories
		WHERE owner_id = ? ORDER BY type, name, id`), ownerID)
	if err != nil {
		return nil, wrapErr("query", TableCategories, "", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, wrapErr("scan", TableCategories, "", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("query", TableCategories, "", err)
	}
	return out, nil
}

func (w *sqlWriter) LockWallet(ctx context.Context, id string) (core.Wallet, error) {
	row := w.q.QueryRowContext(ctx, w.d.rebind(`SELECT `+walletColumns+` FROM wallets WHERE id = ?`+w.d.ForUpdate), id)
	wallet, err := scanWallet(row)
	if err != nil {
		return core.Wallet{}, wrapErr("lock", TableWallets, id, err)
	}
	return wallet, nil
}

func (w *sqlWriter) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := w.q.ExecContext(ctx, w.d.rebind(`INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.OwnerID, string(t.Type), t.Description, t.Category, t.Value, t.Date,
		nullString(t.WalletID), nullString(t.TransferRef), nullString(t.InstallmentRef),
		t.InstallmentIndex, t.InstallmentCount, t.CreatedAt.UTC())
	if err != nil {
		return wrapErr("insert", TableTransactions, t.ID, err)
	}
	return nil
}

func (w *sqlWriter) UpdateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := w.q.ExecContext(ctx, w.d.rebind(`UPDATE transactions
		SET type = ?, description = ?, category = ?, value = ?, date = ?, wallet_id = ?
		WHERE id = ?`),
		string(t.Type), t.Description, t.Category, t.Value, t.Date, nullString(t.WalletID), t.ID)
	return affected(res, err, "update", TableTransactions, t.ID)
}

func (w *sqlWriter) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	res, err := w.q.ExecContext(ctx, w.d.rebind(`DELETE FROM transactions WHERE id = ?`), id)
	return affected(res, err, "delete", TableTransactions, id)
}

func (w *sqlWriter) InsertWallet(ctx context.Context, wallet core.Wallet) error {
	_, err := w.q.ExecContext(ctx, w.d.rebind(`INSERT INTO wallets (`+walletColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		wallet.ID, wallet.OwnerID, wallet.Name, string(wallet.Type), wallet.Balance, wallet.Currency,
		wallet.Active, wallet.CreatedAt.UTC())
	if err != nil {
		return wrapErr("insert", TableWallets, wallet.ID, err)
	}
	return nil
}

func (w *sqlWriter) UpdateWallet(ctx context.Context, wallet core.Wallet) (int64, error) {
	res, err := w.q.ExecContext(ctx, w.d.rebind(`UPDATE wallets
		SET name = ?, type = ?, currency = ?, is_active = ?
		WHERE id = ?`),
		wallet.Name, string(wallet.Type), wallet.Currency, wallet.Active, wallet.ID)
	return affected(res, err, "update", TableWallets, wallet.ID)
}

func (w *sqlWriter) SetWalletBalance(ctx context.Context, id string, balance decimal.Decimal) (int64, error) {
	res, err := w.q.ExecContext(ctx, w.d.rebind(`UPDATE wallets SET balance = ? WHERE id = ?`), balance, id)
	return affected(res, err, "update balance", TableWallets, id)
}

func (w *sqlWriter) InsertObligation(ctx context.Context, o core.RecurringObligation) error {
	_, err := w.q.ExecContext(ctx, w.d.rebind(`INSERT INTO recurring_obligations (`+obligationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		o.ID, o.OwnerID, o.Description, o.Category, o.Value, string(o.Frequency), o.NextDueDate,
		o.Active, o.CreatedAt.UTC())
	if err != nil {
		return wrapErr("insert", TableObligations, o.ID, err)
	}
	return nil
}

func (w *sqlWriter) UpdateObligation(ctx context.Context, o core.RecurringObligation) (int64, error) {
	res, err := w.q.ExecContext(ctx, w.d.rebind(`UPDATE recurring_obligations
		SET description = ?, category = ?, value = ?, frequency = ?, next_due_date = ?, is_active = ?
		WHERE id = ?`),
		o.Description, o.Category, o.Value, string(o.Frequency), o.NextDueDate, o.Active, o.ID)
	return affected(res, err, "update", TableObligations, o.ID)
}

func (w *sqlWriter) InsertBudget(ctx context.Context, b core.Budget) error {
	_, err := w.q.ExecContext(ctx, w.d.rebind(`INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		b.ID, b.OwnerID, b.Category, b.LimitValue, string(b.Period), b.Active, b.CreatedAt.UTC())
	if err != nil {
		return wrapErr("insert", TableBudgets, b.ID, err)
	}
	return nil
}

func (w *sqlWriter) UpdateBudget(ctx context.Context, b core.Budget) (int64, error) {
	res, err := w.q.ExecContext(ctx, w.d.rebind(`UPDATE budgets
		SET category = ?, limit_value = ?, period = ?, is_active = ?
		WHERE id = ?`),
		b.Category, b.LimitValue, string(b.Period), b.Active, b.ID)
	return affected(res, err, "update", TableBudgets, b.ID)
}

func (w *sqlWriter) InsertGoal(ctx context.Context, g core.Goal) error {
	_, err := w.q.ExecContext(ctx, w.d.rebind(`INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		g.ID, g.OwnerID, g.Name, g.TargetAmount, g.CurrentAmount, g.Deadline, g.Category, g.Active, g.CreatedAt.UTC())
	if err != nil {
		return wrapErr("insert", TableGoals, g.ID, err)
	}
	return nil
}

func (w *sqlWriter) UpdateGoal(ctx context.Context, g core.Goal) (int64, error) {
	res, err := w.q.ExecContext(ctx, w.d.rebind(`UPDATE goals
		SET name = ?, target_amount = ?, current_amount = ?, deadline = ?, category = ?, is_active = ?
		WHERE id = ?`),
		g.Name, g.TargetAmount, g.CurrentAmount, g.Deadline, g.Category, g.Active, g.ID)
	return affected(res, err, "update", TableGoals, g.ID)
}

func (w *sqlWriter) InsertCategory(ctx context.Context, c core.Category) error {
	_, err := w.q.ExecContext(ctx, w.d.rebind(`INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`),
		c.ID, c.OwnerID, c.Name, string(c.Type), c.Icon, c.Color)
	if err != nil {
		return wrapErr("insert", TableCategories, c.ID, err)
	}
	return nil
}

func (w *sqlWriter) UpdateCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := w.q.ExecContext(ctx, w.d.rebind(`UPDATE categories SET name = ?, icon = ?, color = ? WHERE id = ?`),
		c.Name, c.Icon, c.Color, c.ID)
	return affected(res, err, "update", TableCategories, c.ID)
}

func (w *sqlWriter) DeleteCategory(ctx context.Context, id string) (int64, error) {
	res, err := w.q.ExecContext(ctx, w.d.rebind(`DELETE FROM categories WHERE id = ?`), id)
	return affected(res, err, "delete", TableCategories, id)
}

func ownerActiveQuery(base, ownerID string, activeOnly bool) (string, []any) {
	var (
		where []string
		args  []any
	)
	if ownerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, ownerID)
	}
	if activeOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}
	if len(where) > 0 {
		base += " WHERE " + strings.Join(where, " AND ")
	}
	return base, args
}

func affected(res sql.Result, err error, op, table, id string) (int64, error) {
	if err != nil {
		return 0, wrapErr(op, table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(op, table, id, err)
	}
	return n, nil
}

// wrapErr maps driver errors onto the core taxonomy.
func wrapErr(op, table, id string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s %s: %w", table, id, core.ErrNotFound)
	case isUniqueViolation(err):
		return &core.StorageError{Op: op, Table: table, ID: id, Err: fmt.Errorf("%w: %v", core.ErrDuplicateName, err)}
	default:
		return &core.StorageError{Op: op, Table: table, ID: id, Err: err}
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// timestamp scans TIMESTAMPTZ values and the text form SQLite keeps.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	case int64:
		t.Time = time.Unix(v, 0).UTC()
		return nil
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
