// ABOUTME: Authentication gate validating the first frame on a new connection.
// ABOUTME: Admits login frames with valid credentials; all failures are connection-fatal.

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zhilian/gateway/internal/registry"
	"github.com/zhilian/gateway/internal/store"
	"github.com/zhilian/gateway/internal/wire"
)

// authWait bounds how long a new connection may sit unauthenticated.
const authWait = 10 * time.Second

// dummyHash keeps password verification constant-time when the username
// does not exist.
var dummyHash = func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("gateway-dummy-password"), bcrypt.DefaultCost)
	return h
}()

// UserStore is what the gate needs from storage.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
}

// Gate authenticates new connections before they are admitted.
type Gate struct {
	users  UserStore
	tokens *TokenIssuer
	logger *slog.Logger
}

// NewGate creates an authentication gate.
func NewGate(users UserStore, tokens *TokenIssuer, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		users:  users,
		tokens: tokens,
		logger: logger.With("component", "auth"),
	}
}

// Authenticate reads exactly one frame from a fresh connection and
// validates it. On success the authenticated user is returned and an
// auth_success acknowledgement has been written. On failure the error
// frame has been written, the connection is closed, and the typed error
// is returned; the client must reconnect.
func (g *Gate) Authenticate(ctx context.Context, conn *registry.Conn) (*store.User, error) {
	frame, err := conn.ReadFrameTimeout(authWait)
	if err != nil {
		if errors.Is(err, registry.ErrTimeout) {
			return nil, g.reject(conn, wire.NewError(wire.KindAuth, wire.CodeAuthTimeout, "authentication timed out"))
		}
		return nil, err
	}

	in, err := wire.ParseInbound(frame)
	if err != nil {
		return nil, g.reject(conn, wire.NewError(wire.KindAuth, wire.CodeAuthInvalidFormat, "authentication frame is not valid JSON"))
	}

	switch in.Type {
	case wire.TypeLogin:
	case "":
		return nil, g.reject(conn, wire.NewError(wire.KindAuth, wire.CodeAuthMissingType, "authentication frame missing type"))
	default:
		return nil, g.reject(conn, wire.NewError(wire.KindAuth, wire.CodeAuthUnsupportedType, "unsupported authentication type: "+in.Type))
	}

	if in.Username == "" {
		return nil, g.reject(conn, wire.NewError(wire.KindAuth, wire.CodeAuthMissingUsername, "login missing username"))
	}
	if in.Password == "" {
		return nil, g.reject(conn, wire.NewError(wire.KindAuth, wire.CodeAuthMissingPassword, "login missing password"))
	}

	user, err := g.users.GetUserByUsername(ctx, in.Username)
	if err != nil {
		// burn a bcrypt comparison to keep lookup failures constant-time
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(in.Password))
		if errors.Is(err, store.ErrNotFound) {
			return nil, g.reject(conn, wire.NewError(wire.KindAuth, wire.CodeAuthUserNotFound, "user not found"))
		}
		return nil, g.reject(conn, wire.WrapError(wire.KindAuth, wire.CodeServerInternal, "looking up user", err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, g.reject(conn, wire.NewError(wire.KindAuth, wire.CodeAuthInvalidPassword, "invalid password"))
	}

	token := ""
	if g.tokens != nil {
		token, err = g.tokens.Issue(user.ID)
		if err != nil {
			g.logger.Warn("issuing session token failed", "user_id", user.ID, "error", err)
		}
	}

	if err := conn.WriteFrame(wire.NewAuthSuccess(user.ID, user.Username, token)); err != nil {
		return nil, err
	}

	g.logger.Info("user authenticated", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// reject reports the failure to the client, closes the connection, and
// returns the error for the caller's logs.
func (g *Gate) reject(conn *registry.Conn, ge *wire.Error) error {
	g.logger.Warn("authentication rejected", "code", ge.Code, "reason", ge.Message)
	_ = conn.WriteFrame(wire.NewErrorFrame(ge))
	_ = conn.Close()
	return ge
}
