// Package store provides a durable, file-backed key-value store partitioned
// into named collections.
//
// Each (collection, key) pair is one JSON file; raw blobs live alongside the
// collections for opaque artifacts such as a serialized vector index. I/O
// failures are reported, not retried; retry policy belongs to the caller.
// The store claims no multi-key atomicity: the guarantee is per-record
// last-successful-write-wins.
package store
