package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quillen/chatrelay/pagination"
	"github.com/quillen/chatrelay/telemetry"
)

// keysetFilter builds the exclusive-bound seek clause for one keyset page:
// strictly past the bound on the sort field, or equal on the sort field and
// strictly past on the tiebreaker. Backward traversal flips the comparator.
func keysetFilter(order pagination.SortOrder, value, id any, dir pagination.Direction) bson.E {
	asc := !order.Descending
	if dir == pagination.Backward {
		asc = !asc
	}
	op := "$gt"
	if !asc {
		op = "$lt"
	}
	return bson.E{Key: "$or", Value: bson.A{
		bson.D{{Key: order.Field, Value: bson.D{{Key: op, Value: value}}}},
		bson.D{{Key: order.Field, Value: value}, {Key: order.Tiebreaker, Value: bson.D{{Key: op, Value: id}}}},
	}}
}

// sortSpec returns the sort document for a traversal: the declared order for
// forward pages, its mirror for backward pages (the paginator restores the
// natural order when it reverses the edges).
func sortSpec(order pagination.SortOrder, dir pagination.Direction) bson.D {
	d := 1
	if order.Descending {
		d = -1
	}
	if dir == pagination.Backward {
		d = -d
	}
	return bson.D{{Key: order.Field, Value: d}, {Key: order.Tiebreaker, Value: d}}
}

func boundID(k *pagination.Key) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(k.ID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: tiebreaker %q is not an object id", pagination.ErrInvalidCursor, k.ID)
	}
	return id, nil
}

// messageBound parses a message cursor's canonical value back into the
// sent_at/_id pair the filter seeks on.
func messageBound(k *pagination.Key) (time.Time, primitive.ObjectID, error) {
	t, err := time.Parse(time.RFC3339Nano, k.Value)
	if err != nil {
		return time.Time{}, primitive.NilObjectID, fmt.Errorf("%w: %q is not a timestamp", pagination.ErrInvalidCursor, k.Value)
	}
	id, err := boundID(k)
	if err != nil {
		return time.Time{}, primitive.NilObjectID, err
	}
	return t, id, nil
}

// Messages returns the keyset query capability for one channel's chat
// messages, ordered by sent_at ascending.
func (s *Store) Messages(channel string) pagination.QueryFunc[ChatMessage] {
	coll := s.db.Collection(CollMessages)
	return func(ctx context.Context, order pagination.SortOrder, bound *pagination.Key, dir pagination.Direction, limit int) ([]ChatMessage, error) {
		filter := bson.D{{Key: "channel", Value: channel}}
		if bound != nil {
			v, id, err := messageBound(bound)
			if err != nil {
				return nil, err
			}
			filter = append(filter, keysetFilter(order, v, id, dir))
		}
		start := time.Now()
		cur, err := coll.Find(ctx, filter, options.Find().SetSort(sortSpec(order, dir)).SetLimit(int64(limit)))
		telemetry.ObserveStoreQuery(CollMessages, time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("find messages: %w", err)
		}
		var out []ChatMessage
		if err := cur.All(ctx, &out); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
		return out, nil
	}
}

// Commands returns the keyset query capability for one channel's custom
// commands, ordered by name ascending.
func (s *Store) Commands(channel string) pagination.QueryFunc[Command] {
	coll := s.db.Collection(CollCommands)
	return func(ctx context.Context, order pagination.SortOrder, bound *pagination.Key, dir pagination.Direction, limit int) ([]Command, error) {
		filter := bson.D{{Key: "channel", Value: channel}}
		if bound != nil {
			id, err := boundID(bound)
			if err != nil {
				return nil, err
			}
			filter = append(filter, keysetFilter(order, bound.Value, id, dir))
		}
		start := time.Now()
		cur, err := coll.Find(ctx, filter, options.Find().SetSort(sortSpec(order, dir)).SetLimit(int64(limit)))
		telemetry.ObserveStoreQuery(CollCommands, time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("find commands: %w", err)
		}
		var out []Command
		if err := cur.All(ctx, &out); err != nil {
			return nil, fmt.Errorf("decode commands: %w", err)
		}
		return out, nil
	}
}
