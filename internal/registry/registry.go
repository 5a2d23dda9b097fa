// ABOUTME: Thread-safe table of user id to active connection.
// ABOUTME: Central lookup used to stream frames to a user from any goroutine.

package registry

import (
	"log/slog"
	"sync"
)

// Registry maps authenticated user ids to their active connections.
// All operations serialize on one lock; contention is low relative to the
// correctness requirement of at most one entry per user id.
type Registry struct {
	mu     sync.Mutex
	conns  map[string]*Conn
	logger *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:  make(map[string]*Conn),
		logger: logger.With("component", "registry"),
	}
}

// Add registers a connection under a user id. A prior entry for the same
// user is replaced, not merged; the superseded connection is not closed
// here, the caller decides its fate.
func (r *Registry) Add(userID string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[userID] = conn
	r.logger.Info("user connected", "user_id", userID, "online", len(r.conns))
}

// Remove evicts the entry for a user id. Removing an absent user is a no-op.
// The connection passed in must match the registered one; a stale removal
// racing a reconnect must not evict the fresh connection.
func (r *Registry) Remove(userID string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.conns[userID]; ok && (conn == nil || current == conn) {
		delete(r.conns, userID)
		r.logger.Info("user disconnected", "user_id", userID, "online", len(r.conns))
	}
}

// Get returns the active connection for a user id, or nil.
func (r *Registry) Get(userID string) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[userID]
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// SendToUser writes a frame to a user's connection if one is registered.
// A write failure means the peer closed mid-send; the stale entry is
// evicted and the failure is not propagated as fatal to the sender.
func (r *Registry) SendToUser(userID string, frame any) {
	conn := r.Get(userID)
	if conn == nil {
		return
	}
	if err := conn.WriteFrame(frame); err != nil {
		r.logger.Warn("send to user failed, evicting connection", "user_id", userID, "error", err)
		r.Remove(userID, conn)
	}
}
