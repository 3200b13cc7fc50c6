package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatSession is the per-sender coordination record for the WhatsApp
// debounce pipeline. One document per phone number, never deleted.
type ChatSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // "chat_<phone>"
	Phone     string             `bson:"phone" json:"phone"`

	Buffer []string `bson:"buffer" json:"buffer"`
	// Unix millis of the newest buffered message. Compared against the
	// arrival tolerance after the quiet-period wait.
	LastMessageAt int64 `bson:"last_message_at" json:"last_message_at"`
	Dispatching   bool  `bson:"dispatching" json:"dispatching"`
	// Monotonic counter bumped on every mutation; the dispatch claim is
	// a CAS on this value.
	Version int64 `bson:"version" json:"version"`

	LeadID        string `bson:"lead_id,omitempty" json:"lead_id,omitempty"`
	OriginContext string `bson:"origin_context,omitempty" json:"origin_context,omitempty"` // set at creation, read-only after

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

const (
	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
)

// TurnEntry is one line of a session's conversation history. Exactly
// two are appended per dispatched turn: the coalesced user message and
// the assistant reply (which carries the full decision as metadata).
type TurnEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	Role      string             `bson:"role" json:"role"` // user|assistant
	Content   string             `bson:"content" json:"content"`
	Media     []string           `bson:"media,omitempty" json:"media,omitempty"`
	Metadata  bson.M             `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}
