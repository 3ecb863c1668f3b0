package database

import (
	"context"
	"fmt"
	"reflect"
	"time"

	apperrors "sirius/pkg/errors"
	"sirius/pkg/logger"

	"go.uber.org/zap"
)

// DefaultQueryLimit bounds FindByQuery when no limit is given
const DefaultQueryLimit = 100

// Collection is the typed active-record surface over one backend collection.
// The collection name is the Go type name of T.
type Collection[T any, PT interface {
	*T
	Persistable
}] struct {
	store  Store
	name   string
	now    func() time.Time
	logger *zap.Logger
}

// NewCollection binds T to its collection in store, e.g. NewCollection[Note](store)
func NewCollection[T any, PT interface {
	*T
	Persistable
}](store Store) *Collection[T, PT] {
	name := reflect.TypeOf((*T)(nil)).Elem().Name()
	return &Collection[T, PT]{
		store:  store,
		name:   name,
		now:    time.Now,
		logger: logger.Named("database").With(zap.String("collection", name)),
	}
}

// Name returns the backing collection name
func (c *Collection[T, PT]) Name() string {
	return c.name
}

// timestamp is truncated to what every backend stores losslessly
func (c *Collection[T, PT]) timestamp() time.Time {
	return c.now().UTC().Truncate(time.Millisecond)
}

// Save inserts an unsaved document or replaces a saved one by ID. Concurrent saves are last-write-wins.
func (c *Collection[T, PT]) Save(ctx context.Context, doc PT) error {
	meta := doc.document()

	if meta.ID == "" {
		meta.ID = c.store.NewID()
		meta.CreatedTimestamp = c.timestamp()

		if err := c.store.Insert(ctx, c.name, doc); err != nil {
			meta.ID = ""
			meta.CreatedTimestamp = time.Time{}
			return fmt.Errorf("failed to insert into %s: %w", c.name, err)
		}

		c.logger.Debug("Document inserted", zap.String("id", meta.ID))
		return nil
	}

	updated := c.timestamp()
	if updated.Before(meta.CreatedTimestamp) {
		updated = meta.CreatedTimestamp
	}
	previous := meta.UpdatedTimestamp
	meta.UpdatedTimestamp = &updated

	if err := c.store.Replace(ctx, c.name, meta.ID, doc); err != nil {
		meta.UpdatedTimestamp = previous
		return fmt.Errorf("failed to replace %s/%s: %w", c.name, meta.ID, err)
	}

	c.logger.Debug("Document replaced", zap.String("id", meta.ID))
	return nil
}

// FindByID returns the document, or false when no document has that ID
func (c *Collection[T, PT]) FindByID(ctx context.Context, id string) (PT, bool, error) {
	var out T
	found, err := c.store.FindByID(ctx, c.name, id, &out)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find %s/%s: %w", c.name, id, err)
	}
	if !found {
		return nil, false, nil
	}
	return &out, true, nil
}

// FindByQuery returns up to limit documents whose fields equal the non-zero fields of partial.
// A limit of zero or less uses DefaultQueryLimit.
func (c *Collection[T, PT]) FindByQuery(ctx context.Context, partial PT, limit int) ([]PT, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	filter, err := BuildFilter(partial)
	if err != nil {
		return nil, apperrors.NewSDKClientError("invalid query document", err)
	}

	cursor, err := c.store.Find(ctx, c.name, filter, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
	}
	defer cursor.Close(ctx)

	results := make([]PT, 0)
	for cursor.Next(ctx) {
		var out T
		if err := cursor.Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", c.name, err)
		}
		results = append(results, &out)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", c.name, err)
	}

	return results, nil
}

// Delete removes a saved document. Deleting it again is a no-op.
func (c *Collection[T, PT]) Delete(ctx context.Context, doc PT) error {
	meta := doc.document()
	if meta.ID == "" {
		return apperrors.NewOperationNotSupported("delete", "document has not been saved")
	}

	removed, err := c.store.Delete(ctx, c.name, meta.ID)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", c.name, meta.ID, err)
	}
	if removed {
		c.logger.Debug("Document deleted", zap.String("id", meta.ID))
	}
	return nil
}

// DropCollection removes every document of T
func (c *Collection[T, PT]) DropCollection(ctx context.Context) error {
	if err := c.store.Drop(ctx, c.name); err != nil {
		return fmt.Errorf("failed to drop %s: %w", c.name, err)
	}
	c.logger.Info("Collection dropped")
	return nil
}
