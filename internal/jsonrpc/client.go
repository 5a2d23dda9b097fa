// ABOUTME: HTTP client for calling JSON-RPC 2.0 tool servers.
// ABOUTME: One bounded POST per call; distinguishes timeout, HTTP and protocol failures.

package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client errors, distinguished so callers can map them to wire error codes.
var (
	ErrTimeout       = errors.New("tool call timed out")
	ErrHTTPStatus    = errors.New("tool server returned non-200 status")
	ErrUnreachable   = errors.New("tool server unreachable")
	ErrMissingResult = errors.New("tool response missing result field")
)

// Client posts JSON-RPC requests to tool servers.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client with the given per-call timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Call posts one request to addr and returns the raw result field.
// The response must be a JSON-RPC envelope carrying result; a JSON-RPC
// error object or a missing result is reported as ErrMissingResult.
func (c *Client) Call(ctx context.Context, addr string, req *Request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, addr, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		// Do only fails before a response exists: dial refused, no route,
		// DNS. Anything past that point arrives as a status code instead.
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxRequestBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var rpcResp Response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingResult, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingResult, rpcResp.Error.Message)
	}
	if len(rpcResp.Result) == 0 {
		return nil, ErrMissingResult
	}
	return rpcResp.Result, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
