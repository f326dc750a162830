package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to
// enable multiple Easel instances to safely coexist on a single Redis server.
//
// Key pattern: easel:{instance_name}:{entity}:{id}
// Channel pattern: easel:{instance_name}:{event_type}_events

// SessionKey returns the Redis key for a session hash (Redis HASH).
// Pattern: easel:{instance_name}:session:{session_hash}
func SessionKey(instanceName, sessionHash string) string {
	return fmt.Sprintf("easel:%s:session:%s", instanceName, sessionHash)
}

// SessionIndexKey returns the Redis key for the session index ZSET, scored
// by creation timestamp so listings come back in creation order.
// Pattern: easel:{instance_name}:sessions
func SessionIndexKey(instanceName string) string {
	return fmt.Sprintf("easel:%s:sessions", instanceName)
}

// ActivityKey returns the Redis key for a session's activity log LIST.
// Entries are JSON-encoded Activity records in acceptance order.
// Pattern: easel:{instance_name}:activity:{session_hash}
func ActivityKey(instanceName, sessionHash string) string {
	return fmt.Sprintf("easel:%s:activity:%s", instanceName, sessionHash)
}

// PaintKey returns the Redis key for a session's paint balance HASH
// (field = identity, value = integer balance).
// Pattern: easel:{instance_name}:paint:{session_hash}
func PaintKey(instanceName, sessionHash string) string {
	return fmt.Sprintf("easel:%s:paint:%s", instanceName, sessionHash)
}

// SignatureKey returns the Redis key for a session's authorization
// signature HASH (field = identity, value = latest chain signature).
// Pattern: easel:{instance_name}:signatures:{session_hash}
func SignatureKey(instanceName, sessionHash string) string {
	return fmt.Sprintf("easel:%s:signatures:%s", instanceName, sessionHash)
}

// PromptKey returns the Redis key for a session's prompt submission HASH
// (field = identity, value = JSON-encoded PromptEntry).
// Pattern: easel:{instance_name}:prompts:{session_hash}
func PromptKey(instanceName, sessionHash string) string {
	return fmt.Sprintf("easel:%s:prompts:%s", instanceName, sessionHash)
}

// UserKey returns the Redis key for an identity's user metrics HASH.
// Pattern: easel:{instance_name}:user:{identity}
func UserKey(instanceName, identity string) string {
	return fmt.Sprintf("easel:%s:user:%s", instanceName, identity)
}

// SequenceKey returns the Redis key for an identity's global authorization
// sequence counter (STRING, incremented on each accepted non-paint mutation).
// Pattern: easel:{instance_name}:sequence:{identity}
func SequenceKey(instanceName, identity string) string {
	return fmt.Sprintf("easel:%s:sequence:%s", instanceName, identity)
}

// ActivityEventsChannel returns the Pub/Sub channel name for accepted paint
// activity events.
// Pattern: easel:{instance_name}:activity_events
func ActivityEventsChannel(instanceName string) string {
	return fmt.Sprintf("easel:%s:activity_events", instanceName)
}

// SessionEventsChannel returns the Pub/Sub channel name for session
// lifecycle events (creation, phase advance, finalization).
// Pattern: easel:{instance_name}:session_events
func SessionEventsChannel(instanceName string) string {
	return fmt.Sprintf("easel:%s:session_events", instanceName)
}
