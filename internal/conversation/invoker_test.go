// ABOUTME: Tests for ToolInvoker validation and error-code mapping
// ABOUTME: Verifies each missing field and failure class maps to its own code

package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhilian/gateway/internal/jsonrpc"
	"github.com/zhilian/gateway/internal/wire"
)

func validCall() wire.SelectedCall {
	return wire.SelectedCall{
		ID:            "t1",
		Name:          "get_current_time",
		Parameters:    "{}",
		ServerAddress: "http://localhost:8001",
	}
}

func TestInvoke_FieldValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*wire.SelectedCall)
		wantCode int
	}{
		{"missing id", func(c *wire.SelectedCall) { c.ID = "" }, wire.CodeToolMissingID},
		{"missing name", func(c *wire.SelectedCall) { c.Name = "" }, wire.CodeToolMissingName},
		{"missing parameters", func(c *wire.SelectedCall) { c.Parameters = "" }, wire.CodeToolMissingParams},
		{"missing address", func(c *wire.SelectedCall) { c.ServerAddress = "" }, wire.CodeToolMissingAddress},
		{"malformed parameters", func(c *wire.SelectedCall) { c.Parameters = "{not json" }, wire.CodeToolParamsFormat},
	}

	invoker := NewToolInvoker(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := validCall()
			tt.mutate(&call)

			_, err := invoker.Invoke(context.Background(), call)
			require.Error(t, err)
			ge := wire.AsError(err)
			assert.Equal(t, tt.wantCode, ge.Code)
			assert.Equal(t, wire.KindTool, ge.Kind)
		})
	}
}

func TestInvoke_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "tool exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	call := validCall()
	call.ServerAddress = srv.URL

	_, err := NewToolInvoker(nil).Invoke(context.Background(), call)
	require.Error(t, err)
	assert.Equal(t, wire.CodeToolHTTPError, wire.AsError(err).Code)
}

func TestInvoke_UnreachableServer(t *testing.T) {
	call := validCall()
	call.ServerAddress = "http://127.0.0.1:1"

	_, err := NewToolInvoker(nil).Invoke(context.Background(), call)
	require.Error(t, err)
	assert.Equal(t, wire.CodeToolHTTPError, wire.AsError(err).Code)
	assert.Equal(t, wire.KindTool, wire.AsError(err).Kind)
}

func TestInvoke_PassesParamsThrough(t *testing.T) {
	var gotParams json.RawMessage
	rpc := jsonrpc.NewHandler(nil)
	rpc.Register("get_current_time", func(params json.RawMessage) (any, error) {
		gotParams = params
		return "now", nil
	})
	srv := httptest.NewServer(rpc)
	defer srv.Close()

	call := validCall()
	call.ServerAddress = srv.URL
	call.Parameters = `{"tz":"UTC"}`

	result, err := NewToolInvoker(nil).Invoke(context.Background(), call)
	require.NoError(t, err)
	assert.JSONEq(t, `"now"`, string(result))
	assert.JSONEq(t, `{"tz":"UTC"}`, string(gotParams))
}

func TestAssembleToolCalls(t *testing.T) {
	calls := []wire.SelectedCall{
		{ID: "t1", Name: "first_tool", Parameters: `{"a":1}`},
		{ID: "t2", Name: "second_tool", Parameters: "{}"},
	}

	out, err := assembleToolCalls(calls)
	require.NoError(t, err)

	var decoded []struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "t1", decoded[0].ID)
	assert.Equal(t, "function", decoded[0].Type)
	assert.Equal(t, "first_tool", decoded[0].Function.Name)
	assert.Equal(t, `{"a":1}`, decoded[0].Function.Arguments)
}
