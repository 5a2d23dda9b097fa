// ABOUTME: ToolInvoker executes one approved tool call via JSON-RPC over HTTP.
// ABOUTME: Validates the call, posts it, and returns the raw result for the transcript.

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/zhilian/gateway/internal/jsonrpc"
	"github.com/zhilian/gateway/internal/wire"
)

// toolCallTimeout bounds a single tool server round trip.
const toolCallTimeout = 10 * time.Second

// ToolInvoker turns one approved call into a JSON-RPC request. The result
// becomes a tool message in the transcript; every failure maps to a
// distinct tool error code and aborts the surrounding execute request.
type ToolInvoker struct {
	rpc    *jsonrpc.Client
	logger *slog.Logger
}

// NewToolInvoker creates an invoker with the standard call timeout.
func NewToolInvoker(logger *slog.Logger) *ToolInvoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolInvoker{
		rpc:    jsonrpc.NewClient(toolCallTimeout),
		logger: logger.With("component", "tools"),
	}
}

// Invoke validates and executes one tool call, returning the serialized
// result field of the JSON-RPC response.
func (ti *ToolInvoker) Invoke(ctx context.Context, call wire.SelectedCall) (json.RawMessage, error) {
	if call.ID == "" {
		return nil, wire.NewError(wire.KindTool, wire.CodeToolMissingID, "tool call missing id")
	}
	if call.Name == "" {
		return nil, wire.NewError(wire.KindTool, wire.CodeToolMissingName, "tool call missing name")
	}
	if call.Parameters == "" {
		return nil, wire.NewError(wire.KindTool, wire.CodeToolMissingParams, "tool call missing parameters")
	}
	if call.ServerAddress == "" {
		return nil, wire.NewError(wire.KindTool, wire.CodeToolMissingAddress, "tool call missing server_address")
	}

	var params any
	if err := json.Unmarshal([]byte(call.Parameters), &params); err != nil {
		return nil, wire.WrapError(wire.KindTool, wire.CodeToolParamsFormat, "tool parameters are not valid JSON", err)
	}

	req, err := jsonrpc.NewRequest(call.ID, call.Name, params)
	if err != nil {
		return nil, wire.WrapError(wire.KindTool, wire.CodeToolExecution, "building tool request", err)
	}

	result, err := ti.rpc.Call(ctx, call.ServerAddress, req)
	if err != nil {
		ti.logger.Warn("tool call failed", "tool", call.Name, "address", call.ServerAddress, "error", err)
		switch {
		case errors.Is(err, jsonrpc.ErrTimeout):
			return nil, wire.WrapError(wire.KindTool, wire.CodeToolTimeout, "tool call timed out", err)
		case errors.Is(err, jsonrpc.ErrHTTPStatus):
			return nil, wire.WrapError(wire.KindTool, wire.CodeToolHTTPError, "tool server returned an error status", err)
		case errors.Is(err, jsonrpc.ErrUnreachable):
			return nil, wire.WrapError(wire.KindTool, wire.CodeToolHTTPError, "tool server unreachable", err)
		default:
			return nil, wire.WrapError(wire.KindTool, wire.CodeToolExecution, "tool call failed", err)
		}
	}
	return result, nil
}

// assembleToolCalls serializes the approved calls into the tool-call list
// stored on the assistant message, fixing the transcript invariant that a
// tool message always answers a prior assistant tool-call entry.
func assembleToolCalls(selected []wire.SelectedCall) (string, error) {
	type fn struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	}
	type toolCall struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Function fn     `json:"function"`
	}

	calls := make([]toolCall, 0, len(selected))
	for _, call := range selected {
		calls = append(calls, toolCall{
			ID:   call.ID,
			Type: "function",
			Function: fn{
				Name:      call.Name,
				Arguments: call.Parameters,
			},
		})
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return "", wire.WrapError(wire.KindTool, wire.CodeToolExecution, "encoding tool calls", err)
	}
	return string(data), nil
}
