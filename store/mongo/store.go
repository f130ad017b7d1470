// Package mongo implements the Herald store on MongoDB. A unique index on
// the events collection's idempotency key backs the dedup gate.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/heraldhq/herald/store"
)

// Collection name constants.
const (
	colWebhooks = "herald_webhooks"
	colEvents   = "herald_events"
	colLogs     = "herald_delivery_logs"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongod.Client
	db     *mongod.Database
}

// New creates a new MongoDB store using the given database.
func New(client *mongod.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongod.Database { return s.db }

// Migrate creates indexes for all Herald collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("herald/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// migrationIndexes returns the index definitions for all Herald collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colEvents: {
			{
				Keys:    bson.D{{Key: "idempotency_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "attempts", Value: 1}}},
		},
		colLogs: {
			{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "attempt_number", Value: 1}}},
		},
	}
}

// isNoDocuments checks for the driver's empty-result sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}
