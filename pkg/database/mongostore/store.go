package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sirius/pkg/config"
	"sirius/pkg/database"
	apperrors "sirius/pkg/errors"
	"sirius/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// DriverName selects this backend in DATABASE_DRIVER
const DriverName = config.DatabaseDriverMongo

const connectTimeout = 10 * time.Second

func init() {
	database.Register(DriverName, func(ctx context.Context, cfg *config.Config) (database.Store, error) {
		if cfg.MongoDBConnectionString == "" {
			return nil, apperrors.NewConfigMissingRequired("MONGO_DB_CONNECTION_STRING")
		}
		name := cfg.DatabaseNameOrDefault()
		if name == "" {
			return nil, apperrors.NewConfigMissingRequired("DATABASE_NAME")
		}
		return Connect(ctx, cfg.MongoDBConnectionString, name)
	})
}

// Store keeps each collection in a MongoDB collection of the same name
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// Connect dials MongoDB and verifies the connection with a ping
func Connect(ctx context.Context, uri, databaseName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log := logger.Named("mongostore")
	log.Info("Connected to MongoDB", zap.String("database", databaseName))

	return &Store{
		client: client,
		db:     client.Database(databaseName),
		logger: log,
	}, nil
}

// NewID returns an ObjectID hex string, stored as a string _id
func (s *Store) NewID() string {
	return primitive.NewObjectID().Hex()
}

func (s *Store) Insert(ctx context.Context, collection string, doc any) error {
	_, err := s.db.Collection(collection).InsertOne(ctx, doc)
	return err
}

func (s *Store) Replace(ctx context.Context, collection, id string, doc any) error {
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) FindByID(ctx context.Context, collection, id string, out any) (bool, error) {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Find(ctx context.Context, collection string, filter database.Filter, limit int64) (database.Cursor, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M(filter), opts)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	result, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

func (s *Store) Drop(ctx context.Context, collection string) error {
	return s.db.Collection(collection).Drop(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
