// Package memstore keeps documents in process memory. It backs tests and local runs without a database.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"sirius/pkg/config"
	"sirius/pkg/database"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// DriverName selects this backend in DATABASE_DRIVER
const DriverName = "memory"

func init() {
	database.Register(DriverName, func(_ context.Context, _ *config.Config) (database.Store, error) {
		return New(), nil
	})
}

type collection struct {
	order []string
	docs  map[string][]byte
}

// Store is a concurrency-safe in-memory database.Store. Documents are stored BSON-encoded, so
// decoding follows the same bson tags as the MongoDB backend.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func New() *Store {
	return &Store{collections: map[string]*collection{}}
}

func (s *Store) NewID() string {
	return uuid.NewString()
}

func (s *Store) get(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: map[string][]byte{}}
		s.collections[name] = c
	}
	return c
}

func idOf(doc any) (string, []byte, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode document: %w", err)
	}
	id, ok := bson.Raw(raw).Lookup("_id").StringValueOK()
	if !ok || id == "" {
		return "", nil, fmt.Errorf("document has no string _id")
	}
	return id, raw, nil
}

func (s *Store) Insert(_ context.Context, name string, doc any) error {
	id, raw, err := idOf(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.get(name)
	if _, exists := c.docs[id]; exists {
		return fmt.Errorf("duplicate key %s in %s", id, name)
	}
	c.docs[id] = raw
	c.order = append(c.order, id)
	return nil
}

func (s *Store) Replace(_ context.Context, name, id string, doc any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.get(name)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = raw
	return nil
}

func (s *Store) FindByID(_ context.Context, name, id string, out any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.lookup(name, id)
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode document: %w", err)
	}
	return true, nil
}

func (s *Store) lookup(name, id string) ([]byte, bool) {
	c, ok := s.collections[name]
	if !ok {
		return nil, false
	}
	raw, ok := c.docs[id]
	return raw, ok
}

func (s *Store) Find(_ context.Context, name string, filter database.Filter, limit int64) (database.Cursor, error) {
	want := bson.M{}
	for key, value := range filter {
		normalized, err := normalize(value)
		if err != nil {
			return nil, err
		}
		want[key] = normalized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor := &sliceCursor{index: -1}
	c, ok := s.collections[name]
	if !ok {
		return cursor, nil
	}

	for _, id := range c.order {
		if limit > 0 && int64(len(cursor.docs)) >= limit {
			break
		}
		raw, ok := c.docs[id]
		if !ok {
			continue
		}
		var stored bson.M
		if err := bson.Unmarshal(raw, &stored); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		if matches(stored, want) {
			cursor.docs = append(cursor.docs, raw)
		}
	}
	return cursor, nil
}

// normalize round-trips a value through BSON so it compares equal to stored fields
func normalize(value any) (any, error) {
	raw, err := bson.Marshal(bson.M{"v": value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter value: %w", err)
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode filter value: %w", err)
	}
	return out["v"], nil
}

func matches(stored, want bson.M) bool {
	for key, value := range want {
		got, ok := stored[key]
		if !ok || !reflect.DeepEqual(got, value) {
			return false
		}
	}
	return true
}

func (s *Store) Delete(_ context.Context, name, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return false, nil
	}
	if _, exists := c.docs[id]; !exists {
		return false, nil
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *Store) Drop(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

type sliceCursor struct {
	docs  [][]byte
	index int
}

func (c *sliceCursor) Next(_ context.Context) bool {
	if c.index+1 >= len(c.docs) {
		return false
	}
	c.index++
	return true
}

func (c *sliceCursor) Decode(v any) error {
	if c.index < 0 || c.index >= len(c.docs) {
		return fmt.Errorf("cursor is not positioned on a document")
	}
	return bson.Unmarshal(c.docs[c.index], v)
}

func (c *sliceCursor) Err() error { return nil }

func (c *sliceCursor) Close(_ context.Context) error { return nil }
