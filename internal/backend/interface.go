package backend

import (
	"context"
	"slices"

	"carteira/internal/amqp"
	"carteira/internal/services"
	"carteira/internal/sheets"
	"carteira/internal/storage"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// BackendResult bundles the ledger store with the optional event bus.
// Broker is nil when no AMQP URL is configured; Publisher then discards
// events.
type BackendResult struct {
	Store     storage.Store
	Publisher services.EventPublisher
	Broker    *amqp.Client
	Cleanup   CleanupFunc
}

// Factory builds the store and optional integrations for a Config.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateJournal returns the spreadsheet mirror, or nil when disabled.
	CreateJournal(ctx context.Context, config Config) (sheets.RowAppender, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// PostgreSQL specific
	DatabaseURL string

	// Event bus, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror, optional
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType selects the ledger store implementation.
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

var backendTypes = []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend}

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	return slices.Contains(backendTypes, bt)
}
