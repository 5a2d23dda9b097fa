// ABOUTME: Gateway orchestrator that coordinates the chat listener and HTTP API.
// ABOUTME: Owns the store, connection registry, and per-connection lifecycle.

package gateway

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zhilian/gateway/internal/auth"
	"github.com/zhilian/gateway/internal/config"
	"github.com/zhilian/gateway/internal/conversation"
	"github.com/zhilian/gateway/internal/heartbeat"
	"github.com/zhilian/gateway/internal/model"
	"github.com/zhilian/gateway/internal/registry"
	"github.com/zhilian/gateway/internal/store"
	"github.com/zhilian/gateway/internal/wire"
)

// Gateway wires the chat socket listener, the HTTP registration API, the
// store, and the conversation service together, and owns their lifecycle.
type Gateway struct {
	config   *config.Config
	store    store.Store
	registry *registry.Registry
	gate     *auth.Gate
	tokens   *auth.TokenIssuer
	convs    *conversation.Service
	logger   *slog.Logger

	httpServer *http.Server
	listener   net.Listener

	connWG sync.WaitGroup
}

// New builds a Gateway from configuration. The JWT secret is taken from
// config when set; otherwise an ephemeral secret is generated, which
// invalidates outstanding tokens across restarts.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		logger.Warn("auth.jwt_secret not set, using ephemeral secret")
	}

	reg := registry.New(logger)
	tokens := auth.NewTokenIssuer(secret)
	gate := auth.NewGate(st, tokens, logger)
	streamer := model.NewOpenAIStreamer(cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.Name)
	invoker := conversation.NewToolInvoker(logger)
	convs := conversation.New(st, streamer, reg, invoker, cfg.Model.SystemPrompt, logger)

	return &Gateway{
		config:   cfg,
		store:    st,
		registry: reg,
		gate:     gate,
		tokens:   tokens,
		convs:    convs,
		logger:   logger.With("component", "gateway"),
	}, nil
}

// Run starts the chat listener and HTTP server and blocks until the
// context is canceled or a server fails.
func (g *Gateway) Run(ctx context.Context) error {
	chatLn, err := net.Listen("tcp", g.config.Server.ChatAddr)
	if err != nil {
		return fmt.Errorf("listening on chat address: %w", err)
	}
	g.listener = chatLn

	mux := http.NewServeMux()
	mux.Handle("/api/register", auth.RegisterHandler(g.store, g.logger))
	mux.Handle("/api/conversations", auth.RequireToken(g.tokens, g.logger, http.HandlerFunc(g.handleListConversations)))
	mux.HandleFunc("/health", g.handleHealth)
	g.httpServer = &http.Server{
		Addr:              g.config.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		g.logger.Info("chat listener started", "addr", chatLn.Addr().String())
		errCh <- g.acceptLoop(ctx, chatLn)
	}()
	go func() {
		g.logger.Info("http server started", "addr", g.config.Server.HTTPAddr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("shutdown signal received")
	case serverErr = <-errCh:
		if serverErr != nil {
			g.logger.Error("server failed", "error", serverErr)
		}
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// acceptLoop accepts chat connections until the listener closes.
func (g *Gateway) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		raw, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}

		g.connWG.Add(1)
		go func() {
			defer g.connWG.Done()
			g.handleConnection(ctx, raw)
		}()
	}
}

// handleConnection runs the full lifecycle of one client connection:
// authenticate, register, start the heartbeat supervisor, push initial
// data, then route frames until the connection ends.
func (g *Gateway) handleConnection(ctx context.Context, raw net.Conn) {
	conn := registry.NewConn(raw)
	defer conn.Close()

	user, err := g.gate.Authenticate(ctx, conn)
	if err != nil {
		g.logger.Warn("authentication failed", "remote", conn.RemoteAddr(), "error", err)
		return
	}

	g.registry.Add(user.ID, conn)
	defer g.registry.Remove(user.ID, conn)

	hb := g.config.Heartbeat
	sup := heartbeat.NewSupervisor(conn, user.ID, hb.Interval, hb.Timeout, hb.MaxRetries, g.logger)
	sup.Start()
	defer sup.Stop()

	g.sendInitialData(ctx, user.ID)

	router := NewRouter(conn, user.ID, sup, g.convs, g.store, g.logger)
	router.Run(ctx)

	g.logger.Info("connection finished", "user_id", user.ID, "remote", conn.RemoteAddr())
}

// sendInitialData pushes the conversation list and stored settings to a
// freshly authenticated client. Failures are logged, not fatal; the client
// can still operate without the initial snapshot.
func (g *Gateway) sendInitialData(ctx context.Context, userID string) {
	if err := g.convs.List(ctx, userID); err != nil {
		g.logger.Warn("sending initial conversation list failed", "user_id", userID, "error", err)
	}

	settings, err := g.store.GetUserSettings(ctx, userID)
	if err != nil {
		g.logger.Warn("loading user settings failed", "user_id", userID, "error", err)
		return
	}
	g.registry.SendToUser(userID, wire.NewUserSettings(settings))
}

// gracefulShutdown closes the listeners, waits briefly for in-flight
// connections, and closes the store.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if g.listener != nil {
		_ = g.listener.Close()
	}
	if g.httpServer != nil {
		if err := g.httpServer.Shutdown(ctx); err != nil {
			g.logger.Warn("http shutdown failed", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		g.connWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		g.logger.Warn("timed out waiting for connections to finish")
	}

	if err := g.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// handleListConversations answers GET /api/conversations for the token's
// user with the same summaries the socket conversation_list frame carries.
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	convs, err := g.store.ListUserConversations(r.Context(), userID)
	if err != nil {
		g.logger.Error("listing conversations failed", "user_id", userID, "error", err)
		http.Error(w, "listing conversations failed", http.StatusInternalServerError)
		return
	}

	type summary struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	}
	out := struct {
		Conversations []summary `json:"conversations"`
	}{Conversations: make([]summary, 0, len(convs))}
	for _, c := range convs {
		out.Conversations = append(out.Conversations, summary{
			ID:        c.ID,
			Title:     c.Title,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
			UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","connections":%d}`, g.registry.Len())
}
