// Package board provides type-safe Go definitions and Redis schema patterns
// for the Easel session board. The board is the shared state system where all
// Easel components (engine, CLI, transports) interact via well-defined data
// structures stored in Redis.
//
// All Redis keys and channels are namespaced by instance name to enable
// multiple Easel instances to safely coexist on a single Redis server.
//
// The board holds the durable half of a session: the session row itself, the
// append-only activity log, per-identity paint balances, prompt submissions,
// the latest authorization signature per identity, and per-identity sequence
// counters. Canvas buffers live in the content-addressed canvas store, not
// here.
package board
