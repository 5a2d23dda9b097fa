// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite.
// ABOUTME: Provides user/conversation/message persistence with automatic schema creation.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
// conversation_messages carries its own monotonic rowid; message ordering
// within a conversation is the insertion order of join rows, not timestamps.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			settings TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS user_conversations (
			user_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, conversation_id),
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			role TEXT NOT NULL,
			content TEXT,
			tool_call_id TEXT,
			tool_calls TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversation_messages (
			conversation_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (conversation_id, message_id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id),
			FOREIGN KEY (message_id) REFERENCES messages(id)
		);

		CREATE INDEX IF NOT EXISTS idx_conversation_messages_conversation
			ON conversation_messages(conversation_id);

		CREATE INDEX IF NOT EXISTS idx_user_conversations_user
			ON user_conversations(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateUser inserts a new user. Returns ErrDuplicateUser when the
// username is already registered.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	var settings any
	if len(user.Settings) > 0 {
		settings = string(user.Settings)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, settings, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, settings, user.CreatedAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUserByUsername looks up a user by username. Returns ErrNotFound if
// no such user exists.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	var settings sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, settings, created_at
		 FROM users WHERE username = ?`, username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &settings, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	if settings.Valid {
		user.Settings = json.RawMessage(settings.String)
	}
	return &user, nil
}

// GetUserSettings returns the user's settings document. A user with no
// stored settings gets an empty object rather than ErrNotFound.
func (s *SQLiteStore) GetUserSettings(ctx context.Context, userID string) (json.RawMessage, error) {
	var settings sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT settings FROM users WHERE id = ?`, userID,
	).Scan(&settings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user settings: %w", err)
	}
	if !settings.Valid || settings.String == "" {
		return json.RawMessage(`{"tool_servers":[]}`), nil
	}
	return json.RawMessage(settings.String), nil
}

// AddUserToolServer appends a tool server entry to the user's settings
// document under the tool_servers key.
func (s *SQLiteStore) AddUserToolServer(ctx context.Context, userID string, server json.RawMessage) error {
	current, err := s.GetUserSettings(ctx, userID)
	if err != nil {
		return err
	}

	var doc struct {
		ToolServers []json.RawMessage `json:"tool_servers"`
	}
	if err := json.Unmarshal(current, &doc); err != nil {
		return fmt.Errorf("parsing stored settings: %w", err)
	}
	doc.ToolServers = append(doc.ToolServers, server)

	updated, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET settings = ? WHERE id = ?`, string(updated), userID,
	)
	if err != nil {
		return fmt.Errorf("updating settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateConversation inserts a conversation and links it to its owner.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, title, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.Status, conv.CreatedAt.UTC(), conv.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_conversations (user_id, conversation_id, created_at)
		 VALUES (?, ?, ?)`,
		userID, conv.ID, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("linking conversation to user: %w", err)
	}

	return tx.Commit()
}

// GetConversation retrieves a conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(title, ''), status, created_at, updated_at
		 FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.Title, &conv.Status, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return &conv, nil
}

// ListUserConversations returns the user's active conversations, most
// recently updated first.
func (s *SQLiteStore) ListUserConversations(ctx context.Context, userID string) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, COALESCE(c.title, ''), c.status, c.created_at, c.updated_at
		 FROM conversations c
		 JOIN user_conversations uc ON uc.conversation_id = c.id
		 WHERE uc.user_id = ? AND c.status = ?
		 ORDER BY c.updated_at DESC`,
		userID, ConversationActive,
	)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.Status, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		conversations = append(conversations, &conv)
	}
	return conversations, rows.Err()
}

// DeleteConversation soft-deletes a conversation by flipping its status.
// The transcript stays in place.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ?, updated_at = ? WHERE id = ?`,
		ConversationDeleted, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateMessage appends a message to a conversation and bumps the
// conversation's updated_at.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *Message, conversationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var content, toolCallID, toolCalls any
	if msg.Content != "" {
		content = msg.Content
	}
	if msg.ToolCallID != "" {
		toolCallID = msg.ToolCallID
	}
	if msg.ToolCalls != "" {
		toolCalls = msg.ToolCalls
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, role, content, tool_call_id, tool_calls, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Role, content, toolCallID, toolCalls, msg.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_messages (conversation_id, message_id, created_at)
		 VALUES (?, ?, ?)`,
		conversationID, msg.ID, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("linking message to conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), conversationID,
	); err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}

	return tx.Commit()
}

// GetConversationMessages returns the full transcript in insertion order.
func (s *SQLiteStore) GetConversationMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.role, COALESCE(m.content, ''), COALESCE(m.tool_call_id, ''),
		        COALESCE(m.tool_calls, ''), m.created_at
		 FROM messages m
		 JOIN conversation_messages cm ON cm.message_id = m.id
		 WHERE cm.conversation_id = ?
		 ORDER BY cm.rowid`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.ToolCallID, &msg.ToolCalls, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
