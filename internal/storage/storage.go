// Package storage implements the pluggable storage back-end contract
// (spec.md §4.7): synchronous POSIX writes and an asynchronous
// completion-queue-style variant, both invoked only from the consumer's
// goroutine.
//
// Grounded on agilira-lethe's Logger (file lifecycle, rotation-adjacent
// reopen discipline, atomic byte/latency counters) generalized from a
// single do-everything logger into the narrow four-method Backend
// contract the consumer's output buffer expects.
package storage

import "errors"

// ErrNoPath is returned by Reopen when the backend was not constructed
// with a path (spec.md: "if no path was given, return not-found").
var ErrNoPath = errors.New("storage: backend has no path to reopen")

// Backend is the storage contract. All four methods are called only from
// the consumer's single background goroutine; none of it needs to be
// concurrency-safe against itself.
type Backend interface {
	// AllocateBuffer returns a buffer to be filled. May block (the async
	// backend) when its buffer pool is exhausted.
	AllocateBuffer() ([]byte, error)
	// SubmitBuffer hands off a filled buffer; buf[:used] is the payload.
	SubmitBuffer(buf []byte, used int) error
	// Flush hints there is no more data imminently; completes any
	// batched submissions.
	Flush() error
	// Sync ensures all previously submitted bytes are durable.
	Sync() error
	// Reopen re-opens the backing path (append mode), swapping in a new
	// descriptor. Returns ErrNoPath if the backend has no path.
	Reopen() error
}
