// Package wire defines the newline-delimited JSON frame protocol spoken
// between clients and the gateway, and the error codes carried in error
// frames.
package wire
