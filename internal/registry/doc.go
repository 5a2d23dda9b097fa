// Package registry tracks live client connections and wraps the raw socket
// in a framed reader/writer.
//
// Conn handles one newline-delimited JSON frame per read or write, with an
// exclusive write lock so concurrent senders (the router, the heartbeat
// supervisor, streamed model output) never interleave bytes. Registry maps
// user IDs to their current Conn; a user reconnecting replaces the old
// entry, and a failed delivery evicts it.
package registry
