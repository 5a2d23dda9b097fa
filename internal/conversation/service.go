// ABOUTME: Conversation service: the central layer for message persistence and turns.
// ABOUTME: All transcript writes flow through here; history is the source of truth.

package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhilian/gateway/internal/model"
	"github.com/zhilian/gateway/internal/store"
	"github.com/zhilian/gateway/internal/wire"
)

// defaultSystemPrompt seeds slot 0 of every conversation unless the
// config overrides it.
const defaultSystemPrompt = `You are a professional assistant. You are fluent in calling external tool functions: parse the user's need precisely and call the best tool to fetch structured data when the conversation alone cannot answer. Answer from the conversation context whenever it is sufficient.`

// Sender is what the service needs to push frames to a user: delivery is
// best effort, a vanished connection is not an error for the turn.
type Sender interface {
	SendToUser(userID string, frame any)
}

// Service executes turns and conversation operations for authenticated
// users. One instance serves all connections; per-conversation locks keep
// two connections from interleaving persistence on the same transcript.
type Service struct {
	store        store.Store
	streamer     model.Streamer
	sender       Sender
	invoker      *ToolInvoker
	systemPrompt string
	logger       *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a conversation service.
func New(st store.Store, streamer model.Streamer, sender Sender, invoker *ToolInvoker, systemPrompt string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &Service{
		store:        st,
		streamer:     streamer,
		sender:       sender,
		invoker:      invoker,
		systemPrompt: systemPrompt,
		logger:       logger.With("component", "conversation"),
		locks:        make(map[string]*sync.Mutex),
	}
}

// lockConversation serializes turns per conversation id.
func (s *Service) lockConversation(id string) func() {
	s.locksMu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// AnswerConversationQuestion starts a brand-new conversation from a first
// question: generates a title, persists the conversation with its system
// prompt and the question, then runs a turn over the fresh history.
func (s *Service) AnswerConversationQuestion(ctx context.Context, question, userID string, servers []wire.ToolServer) error {
	conversationID := uuid.New().String()

	title, err := s.generateTitle(ctx, question, userID, conversationID)
	if err != nil {
		return err
	}

	now := time.Now()
	conv := &store.Conversation{
		ID:        conversationID,
		Title:     title,
		Status:    store.ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv, userID); err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}

	unlock := s.lockConversation(conversationID)
	defer unlock()

	if err := s.appendMessage(ctx, conversationID, &store.Message{
		Role:    store.RoleSystem,
		Content: s.systemPrompt,
	}); err != nil {
		return err
	}
	if err := s.appendMessage(ctx, conversationID, &store.Message{
		Role:    store.RoleUser,
		Content: question,
	}); err != nil {
		return err
	}

	history, err := s.store.GetConversationMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	return s.runTurn(ctx, history, userID, conversationID, servers)
}

// AnswerQuestion appends a question to an existing conversation and runs
// a turn over the updated history.
func (s *Service) AnswerQuestion(ctx context.Context, question, userID, conversationID string, servers []wire.ToolServer) error {
	unlock := s.lockConversation(conversationID)
	defer unlock()

	if err := s.appendMessage(ctx, conversationID, &store.Message{
		Role:    store.RoleUser,
		Content: question,
	}); err != nil {
		return err
	}

	history, err := s.store.GetConversationMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	return s.runTurn(ctx, history, userID, conversationID, servers)
}

// ExecuteTools runs a client-approved set of tool calls in the order
// given, persists the assistant tool-call message and each tool result,
// then starts a follow-up turn over the reloaded history.
func (s *Service) ExecuteTools(ctx context.Context, userID, conversationID string, selected []wire.SelectedCall, servers []wire.ToolServer) error {
	unlock := s.lockConversation(conversationID)
	defer unlock()

	toolCalls, err := assembleToolCalls(selected)
	if err != nil {
		return err
	}
	if err := s.appendMessage(ctx, conversationID, &store.Message{
		Role:      store.RoleAssistant,
		ToolCalls: toolCalls,
	}); err != nil {
		return err
	}

	for _, call := range selected {
		result, err := s.invoker.Invoke(ctx, call)
		if err != nil {
			return err
		}
		if err := s.appendMessage(ctx, conversationID, &store.Message{
			Role:       store.RoleTool,
			Content:    string(result),
			ToolCallID: call.ID,
		}); err != nil {
			return err
		}
		s.logger.Debug("tool call succeeded", "tool", call.Name, "call_id", call.ID)
	}

	history, err := s.store.GetConversationMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	return s.runTurn(ctx, history, userID, conversationID, servers)
}

// History sends the displayable transcript of a conversation: system
// messages and content-less assistant entries are filtered out.
func (s *Service) History(ctx context.Context, userID, conversationID string) error {
	messages, err := s.store.GetConversationMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	var visible []wire.HistoryMessage
	for _, msg := range messages {
		if msg.Role != store.RoleUser && msg.Role != store.RoleAssistant {
			continue
		}
		if msg.Content == "" {
			continue
		}
		visible = append(visible, wire.HistoryMessage{Role: msg.Role, Content: msg.Content})
	}

	s.sender.SendToUser(userID, wire.NewConversationHistory(conversationID, visible))
	return nil
}

// Delete soft-deletes a conversation and confirms to the user.
func (s *Service) Delete(ctx context.Context, userID, conversationID string) error {
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("looking up conversation: %w", err)
	}
	if err := s.store.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	s.logger.Info("conversation deleted", "conversation_id", conversationID)
	s.sender.SendToUser(userID, wire.NewDeleteConversationSuccess(conversationID))
	return nil
}

// List sends the user's active conversations.
func (s *Service) List(ctx context.Context, userID string) error {
	conversations, err := s.store.ListUserConversations(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	summaries := make([]wire.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summaries = append(summaries, wire.ConversationSummary{
			ConversationID: conv.ID,
			Title:          conv.Title,
			CreatedAt:      conv.CreatedAt.Format(time.RFC3339),
			UpdatedAt:      conv.UpdatedAt.Format(time.RFC3339),
		})
	}
	s.sender.SendToUser(userID, wire.NewConversationList(summaries))
	return nil
}

// appendMessage persists one transcript entry with a fresh id.
func (s *Service) appendMessage(ctx context.Context, conversationID string, msg *store.Message) error {
	msg.ID = uuid.New().String()
	msg.CreatedAt = time.Now()
	if err := s.store.CreateMessage(ctx, msg, conversationID); err != nil {
		return fmt.Errorf("persisting %s message: %w", msg.Role, err)
	}
	return nil
}
