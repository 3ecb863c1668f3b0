package database

import (
	"context"
	"time"
)

// Document carries the identity and lifecycle timestamps of a persisted record.
// Embed it inline so its fields sit at the top level of the stored document:
//
//	type Note struct {
//		database.Document `bson:",inline"`
//		Text              string `bson:"text"`
//	}
type Document struct {
	ID               string     `bson:"_id,omitempty" json:"id,omitempty"`
	CreatedTimestamp time.Time  `bson:"created_timestamp" json:"created_timestamp"`
	UpdatedTimestamp *time.Time `bson:"updated_timestamp,omitempty" json:"updated_timestamp,omitempty"`
}

func (d *Document) document() *Document { return d }

// IsSaved reports whether the document has been assigned an ID
func (d *Document) IsSaved() bool {
	return d.ID != ""
}

// Persistable is satisfied by any struct embedding Document
type Persistable interface {
	document() *Document
}

// Filter maps stored field names to the values they must equal
type Filter map[string]any

// Cursor iterates over query results. *mongo.Cursor satisfies it.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// Store is a document collection backend
type Store interface {
	// NewID returns a fresh identifier in the backend's native format
	NewID() string
	Insert(ctx context.Context, collection string, doc any) error
	Replace(ctx context.Context, collection, id string, doc any) error
	// FindByID decodes the document into out and reports whether it existed
	FindByID(ctx context.Context, collection, id string, out any) (bool, error)
	Find(ctx context.Context, collection string, filter Filter, limit int64) (Cursor, error)
	// Delete reports whether a document was removed
	Delete(ctx context.Context, collection, id string) (bool, error)
	Drop(ctx context.Context, collection string) error
	Close(ctx context.Context) error
}
