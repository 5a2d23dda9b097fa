// ABOUTME: Tests for the OpenAI streamer
// ABOUTME: Verifies message conversion and streamed delta mapping over SSE

package model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseServer streams the given chunk payloads as a chat completion stream.
func sseServer(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func collect(t *testing.T, deltas <-chan Delta) []Delta {
	t.Helper()
	var out []Delta
	for d := range deltas {
		out = append(out, d)
	}
	return out
}

func TestStreamChat_ContentDeltas(t *testing.T) {
	server := sseServer(t,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
	)
	defer server.Close()

	streamer := NewOpenAIStreamer(server.URL+"/v1", "test-key", "gpt-test")
	deltas, err := streamer.StreamChat(context.Background(), []ChatMessage{
		{Role: "user", Content: "greet me"},
	}, nil, 0)
	require.NoError(t, err)

	got := collect(t, deltas)
	require.Len(t, got, 2)
	assert.Equal(t, "Hel", got[0].Content)
	assert.Equal(t, "lo", got[1].Content)
	for _, d := range got {
		assert.NoError(t, d.Err)
		assert.Nil(t, d.ToolCall)
	}
}

func TestStreamChat_ToolCallFragments(t *testing.T) {
	server := sseServer(t,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"t1","type":"function","function":{"name":"get_current_time","arguments":"{\"tz\":"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"UTC\"}"}}]}}]}`,
	)
	defer server.Close()

	streamer := NewOpenAIStreamer(server.URL+"/v1", "test-key", "gpt-test")
	deltas, err := streamer.StreamChat(context.Background(), []ChatMessage{
		{Role: "user", Content: "what time is it"},
	}, nil, 0)
	require.NoError(t, err)

	got := collect(t, deltas)
	require.Len(t, got, 2)

	first := got[0].ToolCall
	require.NotNil(t, first)
	assert.Equal(t, "t1", first.ID)
	assert.Equal(t, "get_current_time", first.Name)
	assert.Equal(t, `{"tz":`, first.Arguments)

	second := got[1].ToolCall
	require.NotNil(t, second)
	assert.Empty(t, second.ID)
	assert.Equal(t, `"UTC"}`, second.Arguments)
}

func TestStreamChat_ZeroTemperatureIsSent(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	streamer := NewOpenAIStreamer(server.URL+"/v1", "test-key", "gpt-test")
	deltas, err := streamer.StreamChat(context.Background(), []ChatMessage{
		{Role: "user", Content: "hi"},
	}, nil, 0)
	require.NoError(t, err)
	collect(t, deltas)

	body := <-bodies
	temp, ok := body["temperature"]
	require.True(t, ok, "temperature must be present in the request body")
	assert.InDelta(t, 0, temp.(float64), 1e-6)
}

func TestStreamChat_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"backend down"}}`, http.StatusBadGateway)
	}))
	defer server.Close()

	streamer := NewOpenAIStreamer(server.URL+"/v1", "test-key", "gpt-test")
	_, err := streamer.StreamChat(context.Background(), []ChatMessage{
		{Role: "user", Content: "hi"},
	}, nil, 0)
	assert.Error(t, err)
}

func TestConvertMessages(t *testing.T) {
	calls := `[{"id":"t1","type":"function","function":{"name":"get_current_time","arguments":"{}"}}]`
	converted, err := convertMessages([]ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "assistant", ToolCalls: calls},
		{Role: "tool", Content: "12:00", ToolCallID: "t1"},
	})
	require.NoError(t, err)
	require.Len(t, converted, 3)

	assert.Equal(t, "system", converted[0].Role)
	assert.Empty(t, converted[0].ToolCalls)

	require.Len(t, converted[1].ToolCalls, 1)
	assert.Equal(t, "t1", converted[1].ToolCalls[0].ID)
	assert.Equal(t, openai.ToolTypeFunction, converted[1].ToolCalls[0].Type)
	assert.Equal(t, "get_current_time", converted[1].ToolCalls[0].Function.Name)

	assert.Equal(t, "t1", converted[2].ToolCallID)
}

func TestConvertMessages_BadToolCalls(t *testing.T) {
	_, err := convertMessages([]ChatMessage{
		{Role: "assistant", ToolCalls: "not json"},
	})
	assert.Error(t, err)
}

func TestStreamChat_BadToolDeclaration(t *testing.T) {
	streamer := NewOpenAIStreamer("http://127.0.0.1:1/v1", "test-key", "gpt-test")
	_, err := streamer.StreamChat(context.Background(), nil, []json.RawMessage{
		json.RawMessage(`{broken`),
	}, 0)
	assert.Error(t, err)
}
