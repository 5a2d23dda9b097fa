// ABOUTME: The turn protocol: stream one model response and realize its outcome.
// ABOUTME: Accumulates content and tool-call fragments into an answer or a pending-call offer.

package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zhilian/gateway/internal/model"
	"github.com/zhilian/gateway/internal/store"
	"github.com/zhilian/gateway/internal/wire"
)

// pendingToolCall accumulates one tool call from streamed fragments. Not
// persisted until the client approves execution.
type pendingToolCall struct {
	id        string
	name      string
	arguments string
	address   string
}

// titlePrompt drives the short title-generation turn for new conversations.
const titlePrompt = `You generate concise conversation titles. Given the user's message, reply with a short title of at most ten words that accurately reflects the topic. Reply with the title only.`

// runTurn executes one turn: build the tool lookup, stream the model's
// response forwarding content fragments in order, assemble pending tool
// calls, and finish with either a persisted assistant answer or a
// server_select_function offer.
func (s *Service) runTurn(ctx context.Context, history []*store.Message, userID, conversationID string, servers []wire.ToolServer) error {
	addressByName := make(map[string]string)
	var tools []json.RawMessage
	for _, server := range servers {
		for _, fn := range server.Functions {
			name, err := wire.FunctionName(fn)
			if err != nil {
				return wire.WrapError(wire.KindMessage, wire.CodeMsgJSONParse, "invalid tool declaration", err)
			}
			addressByName[name] = server.Address
			tools = append(tools, fn)
		}
	}

	messages := make([]model.ChatMessage, 0, len(history))
	for i, msg := range history {
		content := msg.Content
		if i == 0 && msg.Role == store.RoleSystem {
			content = s.systemPrompt
		}
		messages = append(messages, model.ChatMessage{
			Role:       msg.Role,
			Content:    content,
			ToolCallID: msg.ToolCallID,
			ToolCalls:  msg.ToolCalls,
		})
	}

	deltas, err := s.streamer.StreamChat(ctx, messages, tools, 0)
	if err != nil {
		return wire.WrapError(wire.KindMessage, wire.CodeMsgModelResponse, "model request failed", err)
	}

	var answer string
	var pending []*pendingToolCall

	for delta := range deltas {
		if delta.Err != nil {
			return wire.WrapError(wire.KindMessage, wire.CodeMsgModelResponse, "model stream failed", delta.Err)
		}

		if delta.Content != "" {
			answer += delta.Content
			s.sender.SendToUser(userID, wire.NewAnswer(conversationID, delta.Content))
		}

		if frag := delta.ToolCall; frag != nil {
			if frag.ID != "" {
				address, ok := addressByName[frag.Name]
				if !ok {
					return wire.NewError(wire.KindMessage, wire.CodeMsgModelResponse,
						fmt.Sprintf("model requested unknown tool %q", frag.Name))
				}
				pending = append(pending, &pendingToolCall{
					id:        frag.ID,
					name:      frag.Name,
					arguments: frag.Arguments,
					address:   address,
				})
				continue
			}
			// continuation fragment: belongs to the last started call
			if len(pending) == 0 {
				return wire.NewError(wire.KindMessage, wire.CodeMsgModelResponse,
					"model sent a tool-call continuation before any call started")
			}
			pending[len(pending)-1].arguments += frag.Arguments
		}
	}

	if len(pending) > 0 {
		calls := make([]wire.SelectedCall, 0, len(pending))
		for _, p := range pending {
			calls = append(calls, wire.SelectedCall{
				ID:            p.id,
				Name:          p.name,
				Parameters:    p.arguments,
				ServerAddress: p.address,
			})
		}
		s.logger.Info("turn ended with pending tool calls", "conversation_id", conversationID, "calls", len(calls))
		s.sender.SendToUser(userID, wire.NewSelectFunctions(conversationID, calls))
		return nil
	}

	if err := s.appendMessage(ctx, conversationID, &store.Message{
		Role:    store.RoleAssistant,
		Content: answer,
	}); err != nil {
		return err
	}
	s.logger.Debug("turn completed", "conversation_id", conversationID, "answer_len", len(answer))
	return nil
}

// generateTitle runs a dedicated short turn to produce the conversation
// title, streaming fragments to the client as conversation_title frames.
func (s *Service) generateTitle(ctx context.Context, question, userID, conversationID string) (string, error) {
	messages := []model.ChatMessage{
		{Role: store.RoleSystem, Content: titlePrompt},
		{Role: store.RoleUser, Content: question},
	}

	deltas, err := s.streamer.StreamChat(ctx, messages, nil, 0)
	if err != nil {
		return "", wire.WrapError(wire.KindMessage, wire.CodeMsgModelResponse, "title request failed", err)
	}

	var title string
	for delta := range deltas {
		if delta.Err != nil {
			return "", wire.WrapError(wire.KindMessage, wire.CodeMsgModelResponse, "title stream failed", delta.Err)
		}
		if delta.Content == "" {
			continue
		}
		title += delta.Content
		s.sender.SendToUser(userID, wire.NewConversationTitle(conversationID, delta.Content))
	}
	return title, nil
}
