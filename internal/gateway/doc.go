// Package gateway orchestrates the zhilian-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the server. It owns
// the chat socket listener, the HTTP registration API, the SQLite store,
// the connection registry, and the conversation service, and manages
// their lifecycle from startup to graceful shutdown.
//
// # Connection lifecycle
//
// Each accepted chat connection goes through a fixed sequence:
//
//  1. AuthenticationGate reads one login frame within a bounded wait
//  2. On success the connection is registered under the user id
//  3. A heartbeat supervisor starts probing the connection
//  4. The conversation list and stored settings are pushed to the client
//  5. The Router reads frames until logout, heartbeat exhaustion, or
//     connection loss
//
// Frames are offered to the heartbeat supervisor before parsing, so
// acknowledgement frames never reach business logic. Handler failures are
// converted to error frames on the same connection; they do not close it.
//
// # HTTP API
//
//   - POST /api/register - Create a user account
//   - GET /health - Liveness check with connection count
//
// # Lifecycle
//
// Start the gateway:
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx)
//
// Run blocks until the context is canceled, then shuts down the
// listeners, waits for in-flight connections, and closes the store.
package gateway
