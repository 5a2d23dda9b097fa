// Package jsonrpc implements JSON-RPC 2.0 over HTTP POST.
//
// # Client
//
// Client.Call posts a single request and decodes the response, mapping
// transport and protocol failures to typed errors:
//
//   - ErrTimeout: the deadline elapsed before a response arrived
//   - ErrHTTPStatus: the server answered with a non-200 status
//   - ErrUnreachable: the request never reached the server
//   - ErrMissingResult: the response carried an error object or no result
//
// # Server
//
// Handler dispatches registered methods and answers with the standard
// error codes (-32700 parse error, -32600 invalid request, -32601 method
// not found, -32603 internal error). Request bodies are capped at 1 MiB.
package jsonrpc
