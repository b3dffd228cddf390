package db

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/quillen/chatrelay/pagination"
)

// Pagination kind tags. One per paginable collection.
const (
	KindMessage = "message"
	KindCommand = "command"
)

// Canonical sort orders. The _id tiebreaker keeps the ordering total when
// the primary field has duplicates (two messages in the same nanosecond,
// same-named commands across channels).
var (
	MessageSortOrder = pagination.SortOrder{Field: "sent_at", Tiebreaker: "_id"}
	CommandSortOrder = pagination.SortOrder{Field: "name", Tiebreaker: "_id"}
)

// ChatMessage is one recorded IRC message.
type ChatMessage struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Channel  string             `bson:"channel" json:"channel"`
	Username string             `bson:"username" json:"username"`
	Message  string             `bson:"message" json:"message"`
	SentAt   time.Time          `bson:"sent_at" json:"sent_at"`
	Badges   string             `bson:"badges,omitempty" json:"badges,omitempty"`
	Emotes   string             `bson:"emotes,omitempty" json:"emotes,omitempty"`
	Color    string             `bson:"color,omitempty" json:"color,omitempty"`

	ReplyToID       string `bson:"reply_to_id,omitempty" json:"reply_to_id,omitempty"`
	ReplyToUsername string `bson:"reply_to_username,omitempty" json:"reply_to_username,omitempty"`
}

// CursorKey implements pagination.Cursorable. The timestamp is rendered in
// RFC3339Nano so the cursor survives process restarts unchanged.
func (m ChatMessage) CursorKey() pagination.Key {
	return pagination.Key{
		Kind:  KindMessage,
		Value: m.SentAt.UTC().Format(time.RFC3339Nano),
		ID:    m.ID.Hex(),
	}
}

// Command is a channel-defined chat command served by the bot.
type Command struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Channel   string             `bson:"channel" json:"channel"`
	Name      string             `bson:"name" json:"name"`
	Response  string             `bson:"response" json:"response"`
	CreatedBy string             `bson:"created_by,omitempty" json:"created_by,omitempty"`
	ModOnly   bool               `bson:"mod_only" json:"mod_only"`
	UseCount  int64              `bson:"use_count" json:"use_count"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// CursorKey implements pagination.Cursorable.
func (c Command) CursorKey() pagination.Key {
	return pagination.Key{Kind: KindCommand, Value: c.Name, ID: c.ID.Hex()}
}
