// Package model defines the streaming chat backend contract and its OpenAI
// implementation.
//
// The orchestrator consumes a channel of Delta values: content fragments,
// tool-call fragments, or a terminal error. OpenAIStreamer adapts the
// OpenAI chat completion stream to this shape, forwarding tool-call deltas
// raw so the accumulation rules live in one place upstream.
package model
