// ABOUTME: Per-connection frame router for authenticated clients.
// ABOUTME: Offers frames to the heartbeat supervisor first, then dispatches by type.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zhilian/gateway/internal/conversation"
	"github.com/zhilian/gateway/internal/heartbeat"
	"github.com/zhilian/gateway/internal/registry"
	"github.com/zhilian/gateway/internal/store"
	"github.com/zhilian/gateway/internal/wire"
)

// Router runs the read loop for one authenticated connection. Handler
// failures become error frames on the same connection; only connection
// loss, logout, and heartbeat exhaustion end the loop.
type Router struct {
	conn       *registry.Conn
	userID     string
	supervisor *heartbeat.Supervisor
	convs      *conversation.Service
	store      store.Store
	logger     *slog.Logger
}

func NewRouter(conn *registry.Conn, userID string, sup *heartbeat.Supervisor, convs *conversation.Service, st store.Store, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		conn:       conn,
		userID:     userID,
		supervisor: sup,
		convs:      convs,
		store:      st,
		logger:     logger.With("component", "router", "user_id", userID),
	}
}

// Run reads frames until the connection closes. Every frame is offered to
// the heartbeat supervisor before any parsing happens, so acks never leak
// into the dispatch path.
func (r *Router) Run(ctx context.Context) {
	for {
		frame, err := r.conn.ReadFrame()
		if err != nil {
			if errors.Is(err, registry.ErrConnClosed) {
				r.logger.Info("connection closed by peer")
			} else {
				r.logger.Warn("read failed", "error", err)
			}
			return
		}

		if r.supervisor.HandleMessage(frame) {
			continue
		}

		in, err := wire.ParseInbound(frame)
		if err != nil {
			r.logger.Warn("unparseable frame", "error", err)
			if werr := r.conn.WriteFrame(wire.NewErrorFrame(err)); werr != nil {
				return
			}
			continue
		}

		if done := r.dispatch(ctx, in); done {
			return
		}
	}
}

// dispatch handles one parsed frame. The return value reports whether the
// connection should close.
func (r *Router) dispatch(ctx context.Context, in *wire.Inbound) bool {
	var err error

	switch in.Type {
	case wire.TypeLogout:
		r.logger.Info("logout requested")
		_ = r.conn.WriteFrame(wire.NewLogoutSuccess())
		return true
	case wire.TypeSettingsAddServer:
		err = r.handleAddServer(ctx, in)
	case wire.TypeConversationQuestion:
		err = r.convs.AnswerConversationQuestion(ctx, in.Question, r.userID, in.ToolServers)
	case wire.TypeUserQuestion:
		if in.ConversationID == "" {
			err = r.convs.AnswerConversationQuestion(ctx, in.Question, r.userID, in.ToolServers)
		} else {
			err = r.convs.AnswerQuestion(ctx, in.Question, r.userID, in.ConversationID, in.ToolServers)
		}
	case wire.TypeExecuteTools:
		err = r.convs.ExecuteTools(ctx, r.userID, in.ConversationID, in.SelectFunctions, in.ToolServers)
	case wire.TypeConversationMessage:
		err = r.convs.History(ctx, r.userID, in.ConversationID)
	case wire.TypeDeleteConversation:
		err = r.convs.Delete(ctx, r.userID, in.ConversationID)
	case wire.TypeConversationList:
		err = r.convs.List(ctx, r.userID)
	default:
		err = wire.NewError(wire.KindMessage, wire.CodeMsgInvalidType, fmt.Sprintf("unknown message type %q", in.Type))
	}

	if err != nil {
		if errors.Is(err, registry.ErrConnClosed) {
			return true
		}
		r.logger.Error("handler failed", "type", in.Type, "error", err)
		if werr := r.conn.WriteFrame(wire.NewErrorFrame(err)); werr != nil {
			return true
		}
	}
	return false
}

// handleAddServer appends a tool server to the user's stored settings and
// echoes the updated settings back.
func (r *Router) handleAddServer(ctx context.Context, in *wire.Inbound) error {
	if in.Server == nil {
		return wire.NewError(wire.KindInternal, wire.CodeServerSettingsUpdate, "settings_add_server requires a server object")
	}
	raw, err := json.Marshal(in.Server)
	if err != nil {
		return wire.WrapError(wire.KindInternal, wire.CodeServerSettingsUpdate, "encoding server settings", err)
	}
	if err := r.store.AddUserToolServer(ctx, r.userID, raw); err != nil {
		return wire.WrapError(wire.KindInternal, wire.CodeServerSettingsUpdate, "updating user settings", err)
	}

	settings, err := r.store.GetUserSettings(ctx, r.userID)
	if err != nil {
		return wire.WrapError(wire.KindInternal, wire.CodeServerSettingsUpdate, "reloading user settings", err)
	}
	return r.conn.WriteFrame(wire.NewUserSettings(settings))
}
