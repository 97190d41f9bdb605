// Package conversation keeps per-user conversation state in process memory.
//
// Each user owns a slot with its own mutex, so updates for one user never
// wait on another. Nothing expires; the Redis store applies a TTL instead.
package conversation
