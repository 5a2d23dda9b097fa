// Package store provides persistent storage for the gateway using SQLite.
//
// # Data Models
//
//   - User: Registered account with bcrypt password hash and settings JSON
//   - Conversation: Chat thread with title and soft-delete status
//   - Message: One transcript entry with role, content, and tool-call fields
//
// Conversations belong to users through the user_conversations join table;
// messages keep transcript order through conversation_messages insertion
// order, so two messages created in the same instant still replay in the
// order they were added.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created automatically on open.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateUser: Username is already registered
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore with a temp-dir
// path for integration tests with real SQLite.
package store
