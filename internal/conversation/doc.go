// Package conversation orchestrates chat turns between clients, the model
// backend, and tool servers.
//
// # Turn Protocol
//
// A turn streams the model's response over the conversation transcript.
// Content deltas are forwarded to the client as server_answer fragments
// and accumulated for persistence. Tool-call deltas accumulate into
// pending calls: a fragment with an ID starts a new call, a fragment
// without one extends the arguments of the most recent. When the stream
// ends with pending calls the client receives a server_select_function
// frame instead of a persisted assistant message; the client answers with
// execute_tools to run them.
//
// # Tool Execution
//
// ExecuteTools persists the assistant tool-call message, invokes each call
// sequentially in client order over JSON-RPC, persists each result as a
// tool message, then reruns the turn over the extended transcript. The
// first failing call aborts the batch.
//
// # Concurrency
//
// Operations on the same conversation are serialized with a per-ID mutex;
// turns on different conversations run concurrently.
package conversation
