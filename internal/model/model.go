// ABOUTME: Model backend contract: streaming chat completion with tool support.
// ABOUTME: Defines the delta sequence the orchestrator consumes during a turn.

package model

import (
	"context"
	"encoding/json"
)

// ChatMessage is one entry of the ordered history handed to the model.
// ToolCalls holds the serialized tool-call list for assistant tool-call
// messages; ToolCallID links a tool-role message to the call it answers.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  string
}

// ToolCallFragment is one streamed piece of a tool call. A fragment with a
// non-empty ID starts a new call; a fragment without an ID continues the
// arguments of the most recently started call.
type ToolCallFragment struct {
	ID        string
	Name      string
	Arguments string
}

// Delta is one increment of the model's streamed response. At most one of
// Content or ToolCall is set. Err terminates the stream with a failure;
// a closed channel without Err is normal completion.
type Delta struct {
	Content  string
	ToolCall *ToolCallFragment
	Err      error
}

// Streamer is the model backend collaborator: one operation, stream chat
// completion over an ordered history with optional tool declarations.
type Streamer interface {
	StreamChat(ctx context.Context, messages []ChatMessage, tools []json.RawMessage, temperature float32) (<-chan Delta, error)
}
