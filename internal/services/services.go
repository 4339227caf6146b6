// Package services implements the ledger and obligation engine on top of
// the storage port: transactions, wallet balances, obligations, budgets,
// goals and the notification feed.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

// EventPublisher announces committed ledger changes.
type EventPublisher interface {
	Publish(ctx context.Context, ev core.LedgerEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, core.LedgerEvent) error { return nil }

type options struct {
	events  EventPublisher
	logger  *log.Logger
	catalog *core.CategoryCatalog
	now     func() time.Time
	newID   func() string
}

// Option configures a service.
type Option func(*options)

// WithPublisher sets where ledger events go after commit.
func WithPublisher(p EventPublisher) Option {
	return func(o *options) {
		if p != nil {
			o.events = p
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCatalog replaces the default category catalog.
func WithCatalog(c *core.CategoryCatalog) Option {
	return func(o *options) {
		if c != nil {
			o.catalog = c
		}
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides record id generation, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) {
		if gen != nil {
			o.newID = gen
		}
	}
}

func buildOptions(component string, opts []Option) options {
	o := options{
		events:  noopPublisher{},
		logger:  log.New(log.Config{Handler: slog.Default().Handler()}),
		catalog: core.NewCategoryCatalog(core.DefaultCategories()),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.WithComponent(component)
	return o
}

// today returns the current calendar date in the clock's location.
func (o options) today() core.Date {
	return core.DateOf(o.now())
}

// catalogFor extends the configured catalog with the categories ownerID
// created.
func (o options) catalogFor(ctx context.Context, r storage.Reader, ownerID string) (*core.CategoryCatalog, error) {
	custom, err := r.QueryCategories(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return o.catalog.With(custom...), nil
}

// publish sends ev after commit. A failure is logged, never returned.
func (o options) publish(ctx context.Context, ev core.LedgerEvent) {
	if err := o.events.Publish(ctx, ev); err != nil {
		o.logger.Fields(ctx, slog.LevelWarn, "Failed to publish ledger event", log.NewFields().
			WithOperation(log.OpPublish).
			WithOwner(ev.OwnerID).
			WithError(err).
			With(log.FieldEventKind, string(ev.Kind)))
	}
}
