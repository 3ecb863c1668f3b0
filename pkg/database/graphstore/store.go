package graphstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"sirius/pkg/config"
	"sirius/pkg/database"
	apperrors "sirius/pkg/errors"
	"sirius/pkg/logger"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DriverName selects this backend in DATABASE_DRIVER
const DriverName = config.DatabaseDriverNeo4j

// fieldPrefix marks node properties mirrored from top-level scalar and timestamp fields
const fieldPrefix = "f_"

func init() {
	database.Register(DriverName, func(ctx context.Context, cfg *config.Config) (database.Store, error) {
		if cfg.Neo4jURI == "" {
			return nil, apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		return Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	})
}

// Store keeps every document as a (:Document) node holding its collection, id and
// canonical Extended JSON body
type Store struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// Connect opens a driver and verifies connectivity
func Connect(ctx context.Context, uri, user, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	s := NewStore(driver)
	s.ensureIndex(ctx)
	return s, nil
}

// NewStore wraps an existing driver
func NewStore(driver neo4j.DriverWithContext) *Store {
	return &Store{
		driver: driver,
		logger: logger.Named("graphstore"),
	}
}

func (s *Store) ensureIndex(ctx context.Context) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `CREATE INDEX document_collection_id IF NOT EXISTS FOR (d:Document) ON (d.collection, d.id)`
	if _, err := session.Run(ctx, query, nil); err != nil {
		s.logger.Warn("Failed to create document index", zap.Error(err))
	}
}

func (s *Store) NewID() string {
	return uuid.NewString()
}

// properties builds the full property map of a document node
func properties(collection, id string, doc any) (map[string]interface{}, error) {
	body, err := bson.MarshalExtJSON(doc, true, false)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode document fields: %w", err)
	}

	props := map[string]interface{}{
		"collection": collection,
		"id":         id,
		"body":       string(body),
	}
	for name, value := range fields {
		if name == "_id" {
			continue
		}
		if scalar, ok := scalarValue(value); ok {
			props[fieldPrefix+name] = scalar
		}
	}
	return props, nil
}

// scalarValue normalises the value kinds Neo4j can compare for equality.
// Timestamps are kept at BSON millisecond precision in UTC so a filter on a
// time.Time matches the value read back from the document.
func scalarValue(value any) (any, bool) {
	switch v := value.(type) {
	case string, bool, int64, float64:
		return v, true
	case time.Time:
		return v.UTC().Truncate(time.Millisecond), true
	case primitive.DateTime:
		return v.Time().UTC(), true
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float32:
		return float64(v), true
	default:
		return nil, false
	}
}

func idOf(doc any) (string, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	id, ok := bson.Raw(raw).Lookup("_id").StringValueOK()
	if !ok || id == "" {
		return "", fmt.Errorf("document has no string _id")
	}
	return id, nil
}

func (s *Store) Insert(ctx context.Context, collection string, doc any) error {
	id, err := idOf(doc)
	if err != nil {
		return err
	}
	props, err := properties(collection, id, doc)
	if err != nil {
		return err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		CREATE (d:Document)
		SET d = $props
		RETURN d.id as id
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"props": props,
	})
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	if _, err := result.Single(ctx); err != nil {
		return fmt.Errorf("failed to verify document creation: %w", err)
	}
	return nil
}

func (s *Store) Replace(ctx context.Context, collection, id string, doc any) error {
	props, err := properties(collection, id, doc)
	if err != nil {
		return err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (d:Document {collection: $collection, id: $id})
		SET d = $props
		RETURN d.id as id
	`

	_, err = session.Run(ctx, query, map[string]interface{}{
		"collection": collection,
		"id":         id,
		"props":      props,
	})
	if err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, collection, id string, out any) (bool, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (d:Document {collection: $collection, id: $id})
		RETURN d.body as body
		LIMIT 1
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"collection": collection,
		"id":         id,
	})
	if err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return false, fmt.Errorf("failed to fetch record: %w", err)
		}
		return false, nil
	}

	body := getString(result.Record(), "body", "")
	if err := bson.UnmarshalExtJSON([]byte(body), true, out); err != nil {
		return false, fmt.Errorf("failed to decode document: %w", err)
	}
	return true, nil
}

// Find supports equality on _id and on top-level scalar and timestamp fields
func (s *Store) Find(ctx context.Context, collection string, filter database.Filter, limit int64) (database.Cursor, error) {
	query, params, err := findQuery(collection, filter, limit)
	if err != nil {
		return nil, err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	cursor := &bodyCursor{index: -1}
	for result.Next(ctx) {
		cursor.bodies = append(cursor.bodies, getString(result.Record(), "body", ""))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}
	return cursor, nil
}

func findQuery(collection string, filter database.Filter, limit int64) (string, map[string]interface{}, error) {
	params := map[string]interface{}{
		"collection": collection,
		"limit":      limit,
	}

	names := make([]string, 0, len(filter))
	for name := range filter {
		names = append(names, name)
	}
	sort.Strings(names)

	conditions := make([]string, 0, len(filter))
	for i, name := range names {
		param := fmt.Sprintf("p%d", i)
		value := filter[name]

		if name == "_id" {
			conditions = append(conditions, "d.id = $"+param)
			params[param] = value
			continue
		}

		scalar, ok := scalarValue(value)
		if !ok {
			return "", nil, apperrors.NewOperationNotSupported("graph query",
				fmt.Sprintf("field %s has a non-scalar value of type %T", name, value))
		}
		conditions = append(conditions, fmt.Sprintf("d.%s = $%s", quoteIdentifier(fieldPrefix+name), param))
		params[param] = scalar
	}

	query := "MATCH (d:Document {collection: $collection})"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " RETURN d.body as body"
	if limit > 0 {
		query += " LIMIT $limit"
	}
	return query, params, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (d:Document {collection: $collection, id: $id})
		WITH d, d.id as id
		DELETE d
		RETURN count(id) as deleted
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"collection": collection,
		"id":         id,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to verify deletion: %w", err)
	}
	return getInt64(record, "deleted", 0) > 0, nil
}

func (s *Store) Drop(ctx context.Context, collection string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.Run(ctx, "MATCH (d:Document {collection: $collection}) DELETE d", map[string]interface{}{
		"collection": collection,
	})
	if err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}

	s.logger.Info("Collection dropped", zap.String("collection", collection))
	return nil
}

// Close closes the Neo4j driver connection
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

type bodyCursor struct {
	bodies []string
	index  int
}

func (c *bodyCursor) Next(_ context.Context) bool {
	if c.index+1 >= len(c.bodies) {
		return false
	}
	c.index++
	return true
}

func (c *bodyCursor) Decode(v any) error {
	if c.index < 0 || c.index >= len(c.bodies) {
		return fmt.Errorf("cursor is not positioned on a document")
	}
	return bson.UnmarshalExtJSON([]byte(c.bodies[c.index]), true, v)
}

func (c *bodyCursor) Err() error { return nil }

func (c *bodyCursor) Close(_ context.Context) error { return nil }

// Helper functions

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func getString(record *neo4j.Record, key string, defaultValue string) string {
	val, ok := record.Get(key)
	if !ok {
		return defaultValue
	}
	if str, ok := val.(string); ok {
		return str
	}
	return defaultValue
}

func getInt64(record *neo4j.Record, key string, defaultValue int64) int64 {
	val, ok := record.Get(key)
	if !ok {
		return defaultValue
	}
	if n, ok := val.(int64); ok {
		return n
	}
	return defaultValue
}
