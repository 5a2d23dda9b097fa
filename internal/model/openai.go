// ABOUTME: OpenAI-compatible Streamer implementation over go-openai.
// ABOUTME: Maps streamed completion chunks to the gateway's delta sequence.

package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIStreamer talks to any OpenAI-compatible chat completion endpoint.
type OpenAIStreamer struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIStreamer creates a streamer against the given endpoint.
func NewOpenAIStreamer(baseURL, apiKey, modelName string) *OpenAIStreamer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIStreamer{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
		logger: slog.Default().With("component", "model"),
	}
}

// StreamChat opens a streaming completion and converts each chunk into a
// Delta. Tool-call fragments are passed through exactly as received: the
// id-bearing fragment of a call and its argument continuations are
// separate deltas, assembled by the caller.
func (s *OpenAIStreamer) StreamChat(ctx context.Context, messages []ChatMessage, tools []json.RawMessage, temperature float32) (<-chan Delta, error) {
	// The SDK's temperature field is omitempty, so a literal zero would be
	// dropped from the request and the backend would use its own default.
	// The smallest representable float stands in for exact zero.
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: temperature,
		Stream:      true,
	}

	converted, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}
	req.Messages = converted

	for _, raw := range tools {
		var tool openai.Tool
		if err := json.Unmarshal(raw, &tool); err != nil {
			return nil, fmt.Errorf("parsing tool declaration: %w", err)
		}
		req.Tools = append(req.Tools, tool)
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("opening completion stream: %w", err)
	}

	deltas := make(chan Delta, 16)
	go s.pump(ctx, stream, deltas)
	return deltas, nil
}

// pump reads the SDK stream and forwards deltas until EOF or error.
func (s *OpenAIStreamer) pump(ctx context.Context, stream *openai.ChatCompletionStream, deltas chan<- Delta) {
	defer close(deltas)
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			deltas <- Delta{Err: fmt.Errorf("receiving completion chunk: %w", err)}
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			select {
			case deltas <- Delta{Content: delta.Content}:
			case <-ctx.Done():
				return
			}
		}
		for _, tc := range delta.ToolCalls {
			fragment := &ToolCallFragment{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			}
			select {
			case deltas <- Delta{ToolCall: fragment}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// convertMessages maps stored history entries to the SDK message format.
func convertMessages(messages []ChatMessage) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		converted := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		if msg.ToolCalls != "" {
			var calls []openai.ToolCall
			if err := json.Unmarshal([]byte(msg.ToolCalls), &calls); err != nil {
				return nil, fmt.Errorf("parsing stored tool calls: %w", err)
			}
			converted.ToolCalls = calls
		}
		out = append(out, converted)
	}
	return out, nil
}
