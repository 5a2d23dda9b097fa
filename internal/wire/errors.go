// ABOUTME: Typed error values with wire-level error codes for the gateway.
// ABOUTME: Every failure surfaced to a client maps to exactly one code here.

package wire

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how the connection handler must react to them.
type Kind int

const (
	// KindAuth errors are connection-fatal: the socket is closed and the
	// client must reconnect.
	KindAuth Kind = iota
	// KindMessage errors are reported, the connection survives.
	KindMessage
	// KindTool errors abort the current execute_tools request, the
	// connection survives.
	KindTool
	// KindHeartbeat errors terminate the connection after retry exhaustion.
	KindHeartbeat
	// KindInternal is the catch-all for unexpected failures.
	KindInternal
)

// Wire error codes. Grouped: 1xxx auth, 2xxx message processing,
// 3xxx tool execution, 4xxx heartbeat, 5xxx server.
const (
	CodeAuthMissingType     = 1001
	CodeAuthUnsupportedType = 1002
	CodeAuthMissingUsername = 1003
	CodeAuthMissingPassword = 1004
	CodeAuthUserNotFound    = 1005
	CodeAuthInvalidPassword = 1006
	CodeAuthInvalidFormat   = 1007
	CodeAuthTimeout         = 1008
	CodeAuthUserExists      = 1009
	CodeAuthInvalidUsername = 1010
	CodeAuthInvalidToken    = 1011

	CodeMsgInvalidType   = 2001
	CodeMsgJSONParse     = 2002
	CodeMsgModelResponse = 2003

	CodeToolMissingID      = 3001
	CodeToolMissingName    = 3002
	CodeToolMissingParams  = 3003
	CodeToolMissingAddress = 3004
	CodeToolHTTPError      = 3005
	CodeToolTimeout        = 3006
	CodeToolParamsFormat   = 3007
	CodeToolExecution      = 3008

	CodeHeartbeatTimeout    = 4001
	CodeHeartbeatMaxRetries = 4002

	CodeServerInternal       = 5001
	CodeServerSettingsUpdate = 5003
)

// Error is a gateway error carrying the integer code sent in error frames.
// Handlers return these instead of raising; the router inspects the Kind to
// decide whether the connection survives.
type Error struct {
	Code    int
	Kind    Kind
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// NewError creates a gateway error with the given kind and code.
func NewError(kind Kind, code int, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

// WrapError creates a gateway error wrapping an underlying cause.
func WrapError(kind Kind, code int, message string, err error) *Error {
	return &Error{Code: code, Kind: kind, Message: message, wrapped: err}
}

// AsError extracts a *Error from err, or wraps err as a server-internal
// error so that every failure has a code before it reaches the wire.
func AsError(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return &Error{Code: CodeServerInternal, Kind: KindInternal, Message: err.Error(), wrapped: err}
}
