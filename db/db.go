// Package db provides MongoDB connection helpers, index management, and the
// document store the rest of the service depends on.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quillen/chatrelay/crypto"
	"github.com/quillen/chatrelay/pagination"
)

// Collection names.
const (
	CollMessages = "chat_messages"
	CollCommands = "commands"
	CollTokens   = "oauth_tokens"
)

// Connect opens a MongoDB connection using MONGO_URI and MONGO_DB (or sane
// defaults when running in Docker compose).
func Connect(ctx context.Context) (*mongo.Database, error) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://mongo:27017"
	}
	name := os.Getenv("MONGO_DB")
	if name == "" {
		name = "chatrelay"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return client.Database(name), nil
}

// EnsureIndexes applies idempotent index creation for all collections,
// including the compound keyset indexes the pagination queries seek on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	steps := []struct {
		coll   string
		models []mongo.IndexModel
	}{
		{CollMessages, []mongo.IndexModel{
			{Keys: bson.D{{Key: "channel", Value: 1}, {Key: "sent_at", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "channel", Value: 1}, {Key: "username", Value: 1}}},
		}},
		{CollCommands, []mongo.IndexModel{
			{Keys: bson.D{{Key: "channel", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "channel", Value: 1}, {Key: "name", Value: 1}, {Key: "_id", Value: 1}}},
		}},
	}
	for _, s := range steps {
		if _, err := db.Collection(s.coll).Indexes().CreateMany(ctx, s.models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", s.coll, err)
		}
	}
	return nil
}

// Store is the document store handed to the bot and HTTP handlers as an
// explicit dependency. Token encryption is enabled when ENCRYPTION_KEY is
// set; otherwise tokens are stored in plaintext.
type Store struct {
	db        *mongo.Database
	encryptor crypto.Encryptor
}

// NewStore wraps a connected database. A malformed ENCRYPTION_KEY is an
// error; an absent one only logs a warning.
func NewStore(db *mongo.Database) (*Store, error) {
	s := &Store{db: db}
	if key := os.Getenv("ENCRYPTION_KEY"); key != "" {
		enc, err := crypto.NewAESEncryptor(key)
		if err != nil {
			return nil, fmt.Errorf("init token encryption: %w", err)
		}
		s.encryptor = enc
		slog.Info("OAuth token encryption enabled (AES-256-GCM)", slog.String("component", "db"))
	} else {
		slog.Warn("ENCRYPTION_KEY not set, OAuth tokens will be stored in plaintext (not recommended for production)", slog.String("component", "db"))
	}
	return s, nil
}

// Ping verifies the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

var registerKindsOnce sync.Once

// RegisterKinds populates the pagination kind table for every paginable
// collection. Called once at process start (and from tests).
func RegisterKinds() {
	registerKindsOnce.Do(func() {
		pagination.MustRegisterKind(KindMessage)
		pagination.MustRegisterKind(KindCommand)
	})
}
