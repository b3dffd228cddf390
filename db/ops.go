package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound reports a lookup that matched no document.
var ErrNotFound = errors.New("db: not found")

// InsertMessage persists one recorded chat message and fills in its id.
func (s *Store) InsertMessage(ctx context.Context, m *ChatMessage) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	if _, err := s.db.Collection(CollMessages).InsertOne(ctx, m); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetCommand looks up a channel command by name.
func (s *Store) GetCommand(ctx context.Context, channel, name string) (*Command, error) {
	var c Command
	err := s.db.Collection(CollCommands).FindOne(ctx, bson.D{
		{Key: "channel", Value: channel},
		{Key: "name", Value: normalizeCommandName(name)},
	}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get command: %w", err)
	}
	return &c, nil
}

// UpsertCommand creates or replaces a channel command, keyed by
// (channel, name). The stored name is lowercased without the prefix.
func (s *Store) UpsertCommand(ctx context.Context, c *Command) error {
	c.Name = normalizeCommandName(c.Name)
	if c.Channel == "" || c.Name == "" {
		return fmt.Errorf("upsert command: channel and name required")
	}
	now := time.Now().UTC()
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "response", Value: c.Response},
			{Key: "mod_only", Value: c.ModOnly},
			{Key: "created_by", Value: c.CreatedBy},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "created_at", Value: now},
			{Key: "use_count", Value: int64(0)},
		}},
	}
	res, err := s.db.Collection(CollCommands).UpdateOne(ctx,
		bson.D{{Key: "channel", Value: c.Channel}, {Key: "name", Value: c.Name}},
		update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert command: %w", err)
	}
	if id, ok := res.UpsertedID.(primitive.ObjectID); ok {
		c.ID = id
	}
	return nil
}

// DeleteCommand removes a channel command; ErrNotFound when absent.
func (s *Store) DeleteCommand(ctx context.Context, channel, name string) error {
	res, err := s.db.Collection(CollCommands).DeleteOne(ctx, bson.D{
		{Key: "channel", Value: channel},
		{Key: "name", Value: normalizeCommandName(name)},
	})
	if err != nil {
		return fmt.Errorf("delete command: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCommandNames returns a channel's command names, sorted.
func (s *Store) ListCommandNames(ctx context.Context, channel string) ([]string, error) {
	cur, err := s.db.Collection(CollCommands).Find(ctx,
		bson.D{{Key: "channel", Value: channel}},
		options.Find().
			SetSort(bson.D{{Key: "name", Value: 1}}).
			SetProjection(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list command names: %w", err)
	}
	var docs []struct {
		Name string `bson:"name"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode command names: %w", err)
	}
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	return names, nil
}

// IncrementCommandUse bumps a command's use counter; missing commands are a
// no-op (the command may have been deleted mid-dispatch).
func (s *Store) IncrementCommandUse(ctx context.Context, channel, name string) error {
	_, err := s.db.Collection(CollCommands).UpdateOne(ctx,
		bson.D{{Key: "channel", Value: channel}, {Key: "name", Value: normalizeCommandName(name)}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "use_count", Value: int64(1)}}}})
	if err != nil {
		return fmt.Errorf("increment command use: %w", err)
	}
	return nil
}

func normalizeCommandName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "!"))
}
