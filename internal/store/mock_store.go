// ABOUTME: In-memory Store implementation for tests.
// ABOUTME: Backs users, conversations and messages with mutex-guarded maps.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockStore is an in-memory Store for unit tests. Error fields can be set
// to force specific failures.
type MockStore struct {
	mu sync.Mutex

	users         map[string]*User // keyed by username
	conversations map[string]*Conversation
	owners        map[string]string     // conversation id -> user id
	messages      map[string][]*Message // conversation id -> ordered transcript

	// CreateMessageErr, when set, is returned by CreateMessage.
	CreateMessageErr error
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:         make(map[string]*User),
		conversations: make(map[string]*Conversation),
		owners:        make(map[string]string),
		messages:      make(map[string][]*Message),
	}
}

func (m *MockStore) CreateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Username]; exists {
		return ErrDuplicateUser
	}
	u := *user
	m.users[user.Username] = &u
	return nil
}

func (m *MockStore) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	u := *user
	return &u, nil
}

func (m *MockStore) GetUserSettings(_ context.Context, userID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == userID {
			if len(user.Settings) == 0 {
				return json.RawMessage(`{"tool_servers":[]}`), nil
			}
			return user.Settings, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) AddUserToolServer(_ context.Context, userID string, server json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID != userID {
			continue
		}
		var doc struct {
			ToolServers []json.RawMessage `json:"tool_servers"`
		}
		if len(user.Settings) > 0 {
			if err := json.Unmarshal(user.Settings, &doc); err != nil {
				return fmt.Errorf("parsing stored settings: %w", err)
			}
		}
		doc.ToolServers = append(doc.ToolServers, server)
		updated, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		user.Settings = updated
		return nil
	}
	return ErrNotFound
}

func (m *MockStore) CreateConversation(_ context.Context, conv *Conversation, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *conv
	m.conversations[conv.ID] = &c
	m.owners[conv.ID] = userID
	return nil
}

func (m *MockStore) GetConversation(_ context.Context, id string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *conv
	return &c, nil
}

func (m *MockStore) ListUserConversations(_ context.Context, userID string) ([]*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Conversation
	for id, owner := range m.owners {
		if owner != userID {
			continue
		}
		conv := m.conversations[id]
		if conv.Status != ConversationActive {
			continue
		}
		c := *conv
		out = append(out, &c)
	}
	return out, nil
}

func (m *MockStore) DeleteConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	conv.Status = ConversationDeleted
	return nil
}

func (m *MockStore) CreateMessage(_ context.Context, msg *Message, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateMessageErr != nil {
		return m.CreateMessageErr
	}
	mm := *msg
	m.messages[conversationID] = append(m.messages[conversationID], &mm)
	return nil
}

func (m *MockStore) GetConversationMessages(_ context.Context, conversationID string) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	out := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		mm := *msg
		out = append(out, &mm)
	}
	return out, nil
}

func (m *MockStore) Close() error { return nil }
