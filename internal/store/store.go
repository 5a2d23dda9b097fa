// ABOUTME: Store interface and data types for gateway persistence.
// ABOUTME: Defines User, Conversation, Message structs and the Store interface.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when creating a user whose username is taken.
var ErrDuplicateUser = errors.New("username already registered")

// Conversation status values.
const (
	ConversationActive  = "active"
	ConversationDeleted = "deleted"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// User is a registered account. PasswordHash is a bcrypt hash; the
// plaintext password never touches storage.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Settings     json.RawMessage
	CreatedAt    time.Time
}

// Conversation is one chat transcript owned by a user.
type Conversation struct {
	ID        string
	Title     string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one append-only transcript entry. An assistant message
// populates exactly one of Content or ToolCalls; a tool message always
// carries the ToolCallID of the assistant tool-call entry it answers.
type Message struct {
	ID         string
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  string // serialized tool-call list, empty when absent
	CreatedAt  time.Time
}

// Store is the persistence contract the orchestration core depends on.
// Message retrieval is strictly insertion-ordered per conversation.
type Store interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserSettings(ctx context.Context, userID string) (json.RawMessage, error)
	AddUserToolServer(ctx context.Context, userID string, server json.RawMessage) error

	CreateConversation(ctx context.Context, conv *Conversation, userID string) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListUserConversations(ctx context.Context, userID string) ([]*Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, msg *Message, conversationID string) error
	GetConversationMessages(ctx context.Context, conversationID string) ([]*Message, error)

	Close() error
}
