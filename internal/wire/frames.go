// ABOUTME: Frame types for the newline-delimited JSON client protocol.
// ABOUTME: Defines the inbound envelope, outbound frame structs, and frame type constants.

package wire

import (
	"encoding/json"
	"fmt"
)

// Inbound frame types.
const (
	TypeLogin                = "login"
	TypeHeartbeatAck         = "heartbeat_ack"
	TypeUserQuestion         = "user_question"
	TypeConversationQuestion = "conversation_question"
	TypeConversationMessage  = "conversation_message"
	TypeExecuteTools         = "execute_tools"
	TypeSettingsAddServer    = "settings_add_server"
	TypeDeleteConversation   = "delete_conversation"
	TypeLogout               = "logout"
)

// Outbound frame types.
const (
	TypeAuthSuccess          = "auth_success"
	TypeHeartbeat            = "heartbeat"
	TypeServerAnswer         = "server_answer"
	TypeSelectFunction       = "server_select_function"
	TypeConversationTitle    = "conversation_title"
	TypeConversationList     = "conversation_list"
	TypeUserSettings         = "user_settings"
	TypeDeleteConversationOK = "delete_conversation_success"
	TypeLogoutSuccess        = "logout_success"
	TypeRegisterSuccess      = "register_success"
	TypeError                = "error"
)

// ToolServer describes one external tool server advertised by the client:
// a name, the address of the JSON-RPC endpoint that implements its
// functions, and the function declarations passed to the model verbatim.
type ToolServer struct {
	Name      string            `json:"server_name"`
	Address   string            `json:"server_address"`
	Functions []json.RawMessage `json:"server_functions"`
}

// FunctionName extracts the function name from a raw tool declaration
// ({"type":"function","function":{"name":...}}).
func FunctionName(raw json.RawMessage) (string, error) {
	var decl struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &decl); err != nil {
		return "", fmt.Errorf("parsing tool declaration: %w", err)
	}
	if decl.Function.Name == "" {
		return "", fmt.Errorf("tool declaration has no function name")
	}
	return decl.Function.Name, nil
}

// SelectedCall is one fully-assembled tool call. The server offers these in
// server_select_function frames; the client returns the approved subset in
// execute_tools frames with the same shape.
type SelectedCall struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Parameters    string `json:"parameters"`
	ServerAddress string `json:"server_address"`
}

// Inbound is the decoded envelope of one client frame. Only the fields
// relevant to the frame's Type are populated.
type Inbound struct {
	Type string `json:"type"`

	// login
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// question / execute_tools / conversation operations
	Question        string         `json:"question,omitempty"`
	ConversationID  string         `json:"conversation_id,omitempty"`
	ToolServers     []ToolServer   `json:"mcp_servers,omitempty"`
	SelectFunctions []SelectedCall `json:"select_functions,omitempty"`

	// settings_add_server
	Server *ToolServer `json:"server,omitempty"`
}

// ParseInbound decodes one frame. A failure here is a client protocol
// error, not a connection-fatal condition.
func ParseInbound(data []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, WrapError(KindMessage, CodeMsgJSONParse, "invalid JSON frame", err)
	}
	return &in, nil
}

// IsHeartbeatAck reports whether a raw frame is a heartbeat acknowledgement.
// Unparseable frames are not acks; they fall through to the router.
func IsHeartbeatAck(data []byte) bool {
	var in struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return false
	}
	return in.Type == TypeHeartbeatAck
}

// AuthSuccess acknowledges a successful login. Token is an HS256 session
// token accepted by the HTTP API.
type AuthSuccess struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}

func NewAuthSuccess(userID, username, token string) AuthSuccess {
	return AuthSuccess{Type: TypeAuthSuccess, UserID: userID, Username: username, Token: token}
}

// HeartbeatData is the payload of a heartbeat probe.
type HeartbeatData struct {
	UserID    string  `json:"user_id"`
	Timestamp float64 `json:"timestamp"`
}

// Heartbeat is the periodic liveness probe sent to the client.
type Heartbeat struct {
	Type string        `json:"type"`
	Data HeartbeatData `json:"data"`
}

func NewHeartbeat(userID string, timestamp float64) Heartbeat {
	return Heartbeat{Type: TypeHeartbeat, Data: HeartbeatData{UserID: userID, Timestamp: timestamp}}
}

// Answer carries one streamed fragment of the model's reply.
type Answer struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Answer         string `json:"answer"`
}

func NewAnswer(conversationID, fragment string) Answer {
	return Answer{Type: TypeServerAnswer, ConversationID: conversationID, Answer: fragment}
}

// SelectFunctions offers the turn's assembled tool calls to the client for
// approval. Execution does not start until the client answers with
// execute_tools.
type SelectFunctions struct {
	Type            string         `json:"type"`
	ConversationID  string         `json:"conversation_id,omitempty"`
	SelectFunctions []SelectedCall `json:"select_functions"`
}

func NewSelectFunctions(conversationID string, calls []SelectedCall) SelectFunctions {
	return SelectFunctions{Type: TypeSelectFunction, ConversationID: conversationID, SelectFunctions: calls}
}

// ConversationTitle carries one streamed fragment of a generated title.
type ConversationTitle struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}

func NewConversationTitle(conversationID, fragment string) ConversationTitle {
	return ConversationTitle{Type: TypeConversationTitle, ConversationID: conversationID, Title: fragment}
}

// ConversationSummary is one entry in a conversation_list frame.
type ConversationSummary struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// ConversationList lists the user's active conversations.
type ConversationList struct {
	Type          string                `json:"type"`
	Conversations []ConversationSummary `json:"conversations"`
}

func NewConversationList(conversations []ConversationSummary) ConversationList {
	return ConversationList{Type: TypeConversationList, Conversations: conversations}
}

// HistoryMessage is one transcript entry in a conversation_message frame.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationHistory returns the displayable transcript of one
// conversation. The frame type mirrors the inbound request type.
type ConversationHistory struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversation_id"`
	Messages       []HistoryMessage `json:"messages"`
}

func NewConversationHistory(conversationID string, messages []HistoryMessage) ConversationHistory {
	return ConversationHistory{Type: TypeConversationMessage, ConversationID: conversationID, Messages: messages}
}

// UserSettings echoes the user's stored settings (registered tool servers).
type UserSettings struct {
	Type     string          `json:"type"`
	Settings json.RawMessage `json:"settings"`
}

func NewUserSettings(settings json.RawMessage) UserSettings {
	return UserSettings{Type: TypeUserSettings, Settings: settings}
}

// DeleteConversationSuccess confirms a conversation deletion.
type DeleteConversationSuccess struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

func NewDeleteConversationSuccess(conversationID string) DeleteConversationSuccess {
	return DeleteConversationSuccess{Type: TypeDeleteConversationOK, ConversationID: conversationID}
}

// LogoutSuccess acknowledges a logout request.
type LogoutSuccess struct {
	Type string `json:"type"`
}

func NewLogoutSuccess() LogoutSuccess {
	return LogoutSuccess{Type: TypeLogoutSuccess}
}

// ErrorFrame is the wire shape of every reported failure.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewErrorFrame converts any error to its wire representation.
func NewErrorFrame(err error) ErrorFrame {
	ge := AsError(err)
	return ErrorFrame{Type: TypeError, Code: ge.Code, Message: ge.Message}
}
