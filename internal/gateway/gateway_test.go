// ABOUTME: Tests for the per-connection lifecycle and the HTTP surface.
// ABOUTME: Verifies pre-auth teardown and token-guarded conversation listing.

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhilian/gateway/internal/auth"
	"github.com/zhilian/gateway/internal/config"
	"github.com/zhilian/gateway/internal/conversation"
	"github.com/zhilian/gateway/internal/registry"
	"github.com/zhilian/gateway/internal/store"
)

// closeTracker records when the underlying connection is closed.
type closeTracker struct {
	net.Conn
	closed chan struct{}
	once   sync.Once
}

func (c *closeTracker) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() { close(c.closed) })
	return err
}

func newTestGateway(t *testing.T) (*Gateway, *store.MockStore) {
	t.Helper()
	mock := store.NewMockStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(logger)
	issuer := auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"))
	convs := conversation.New(mock, silentStreamer{}, reg, conversation.NewToolInvoker(logger), "", logger)

	return &Gateway{
		config:   &config.Config{},
		store:    mock,
		registry: reg,
		gate:     auth.NewGate(mock, issuer, logger),
		tokens:   issuer,
		convs:    convs,
		logger:   logger,
	}, mock
}

func TestHandleConnection_ClosesOnPreAuthDisconnect(t *testing.T) {
	g, _ := newTestGateway(t)

	client, server := net.Pipe()
	tracked := &closeTracker{Conn: server, closed: make(chan struct{})}

	done := make(chan struct{})
	go func() {
		g.handleConnection(context.Background(), tracked)
		close(done)
	}()

	// peer vanishes before sending the login frame
	require.NoError(t, client.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleConnection did not return after peer disconnect")
	}
	select {
	case <-tracked.closed:
	case <-time.After(time.Second):
		t.Fatal("connection left open after failed authentication")
	}
}

func TestListConversationsEndpoint(t *testing.T) {
	g, mock := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, mock.CreateUser(ctx, &store.User{ID: "u1", Username: "alice"}))
	require.NoError(t, mock.CreateConversation(ctx, &store.Conversation{
		ID:     "c1",
		Title:  "Weather chat",
		Status: store.ConversationActive,
	}, "u1"))

	handler := auth.RequireToken(g.tokens, g.logger, http.HandlerFunc(g.handleListConversations))

	token, err := g.tokens.Issue("u1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, "c1", resp.Conversations[0].ID)
	assert.Equal(t, "Weather chat", resp.Conversations[0].Title)
}

func TestListConversationsEndpoint_RequiresToken(t *testing.T) {
	g, _ := newTestGateway(t)
	handler := auth.RequireToken(g.tokens, g.logger, http.HandlerFunc(g.handleListConversations))

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
