// Package heartbeat supervises connection liveness with periodic probes.
//
// # Protocol
//
// The supervisor sends a heartbeat frame every interval and waits for a
// heartbeat_ack from the client. A missed ack raises the retry count; when
// retries are exhausted the supervisor emits an error frame and closes the
// connection. Any ack resets the count to zero.
//
// # Lifecycle
//
//	sup := heartbeat.NewSupervisor(conn, userID, interval, timeout, retries, logger)
//	sup.Start()
//	defer sup.Stop()
//
// The message router feeds inbound frames through HandleMessage; frames the
// supervisor consumes (acks) return true and never reach dispatch.
package heartbeat
