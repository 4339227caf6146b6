package services

import (
	"context"
	"fmt"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

// Categories manages the categories an owner adds on top of the built-in
// catalog. Names are unique per owner and type, built-ins included.
type Categories struct {
	store storage.Store
	options
}

func NewCategories(store storage.Store, opts ...Option) *Categories {
	return &Categories{store: store, options: buildOptions(log.ComponentCategory, opts)}
}

// List returns the built-in categories followed by the owner's own.
func (s *Categories) List(ctx context.Context, ownerID string) ([]core.Category, error) {
	catalog, err := s.catalogFor(ctx, s.store, ownerID)
	if err != nil {
		return nil, err
	}
	return catalog.Categories(), nil
}

func (s *Categories) Create(ctx context.Context, ownerID string, in core.CategoryInput) (core.Category, error) {
	c, err := in.Normalize()
	if err != nil {
		return core.Category{}, err
	}
	c.ID = s.newID()
	c.OwnerID = ownerID

	err = s.store.WithinTx(ctx, func(w storage.Writer) error {
		catalog, err := s.catalogFor(ctx, w, ownerID)
		if err != nil {
			return err
		}
		if taken := catalog.ResolveName(c.Name, c.Type, ""); taken != "" {
			return fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateName)
		}
		return step("insert category", w.InsertCategory(ctx, c))
	})
	if err != nil {
		s.logFailure(ctx, log.OpCreate, ownerID, err, nil, c.ID)
		return core.Category{}, err
	}
	return c, nil
}

// Update renames category id and replaces its icon and color. The type is
// fixed at creation; built-in categories cannot be changed.
func (s *Categories) Update(ctx context.Context, id, ownerID string, in core.CategoryInput) (core.Category, error) {
	if _, ok := s.catalog.Lookup(id); ok {
		return core.Category{}, fmt.Errorf("category %s is built in: %w", id, core.ErrForbidden)
	}

	var updated core.Category
	err := s.store.WithinTx(ctx, func(w storage.Writer) error {
		old, err := w.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		if old.OwnerID != ownerID {
			return fmt.Errorf("category %s: %w", id, core.ErrForbidden)
		}

		in.Type = string(old.Type)
		next, err := in.Normalize()
		if err != nil {
			return err
		}
		catalog, err := s.catalogFor(ctx, w, ownerID)
		if err != nil {
			return err
		}
		if taken := catalog.ResolveName(next.Name, old.Type, ""); taken != "" && taken != id {
			return fmt.Errorf("category %q: %w", next.Name, core.ErrDuplicateName)
		}

		updated = old
		updated.Name = next.Name
		updated.Icon = next.Icon
		updated.Color = next.Color
		if _, err := w.UpdateCategory(ctx, updated); err != nil {
			return step("update category", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, log.OpUpdate, ownerID, err, nil, id)
		return core.Category{}, err
	}
	return updated, nil
}

// Delete removes category id. Transactions already filed under it keep
// the id.
func (s *Categories) Delete(ctx context.Context, id, ownerID string) error {
	if _, ok := s.catalog.Lookup(id); ok {
		return fmt.Errorf("category %s is built in: %w", id, core.ErrForbidden)
	}

	err := s.store.WithinTx(ctx, func(w storage.Writer) error {
		c, err := w.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		if c.OwnerID != ownerID {
			return fmt.Errorf("category %s: %w", id, core.ErrForbidden)
		}
		_, err = w.DeleteCategory(ctx, id)
		return step("delete category", err)
	})
	if err != nil {
		s.logFailure(ctx, log.OpDelete, ownerID, err, nil, id)
	}
	return err
}
