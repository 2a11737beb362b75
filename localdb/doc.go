// Package localdb is the embedded, file-backed persistence layer for an
// agent runtime that must run without any external database server.
//
// Architecture:
//   - store.CollectionStore: durable source of truth, one JSON file per
//     (collection, key)
//   - vector.Index: in-process similarity index over memory embeddings
//     (native HNSW by default), a rebuildable cache over the store
//   - Adapter: composes the two and owns lifecycle and the embedding
//     dimension
//
// Callers never touch the store or the index directly. The write path
// updates both; the search path queries the index and hydrates full records
// from the store.
//
// Concurrency: Init and Close do file I/O and take a context; memory
// insertion and graph search are CPU-bound blocking work and should be
// offloaded from any shared event loop. The adapter performs no internal
// locking around index mutation; wrap it in a single-writer /
// multiple-reader discipline.
package localdb
