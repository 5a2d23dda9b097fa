// ABOUTME: Minimal JSON-RPC 2.0 HTTP handler for tool server binaries.
// ABOUTME: Dispatches method calls to registered functions over POST.

package jsonrpc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// Method handles one JSON-RPC method: params in, result out.
type Method func(params json.RawMessage) (any, error)

// Handler serves JSON-RPC 2.0 over HTTP POST for a set of named methods.
type Handler struct {
	methods map[string]Method
	logger  *slog.Logger
}

// NewHandler creates a handler with no registered methods.
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		methods: make(map[string]Method),
		logger:  logger.With("component", "jsonrpc"),
	}
}

// Register adds a method under the given name.
func (h *Handler) Register(name string, method Method) {
	h.methods[name] = method
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize))
	if err != nil {
		h.writeError(w, nil, CodeParseError, "reading request body")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != Version || req.Method == "" {
		h.writeError(w, req.ID, CodeInvalidRequest, "invalid request")
		return
	}

	method, ok := h.methods[req.Method]
	if !ok {
		h.writeError(w, req.ID, CodeMethodNotFound, "method not found: "+req.Method)
		return
	}

	result, err := method(req.Params)
	if err != nil {
		h.logger.Warn("method failed", "method", req.Method, "error", err)
		h.writeError(w, req.ID, CodeInternalError, err.Error())
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		h.writeError(w, req.ID, CodeInternalError, "encoding result")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Response{
		JSONRPC: Version,
		ID:      req.ID,
		Result:  raw,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	})
}
