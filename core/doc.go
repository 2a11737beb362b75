// Package core defines the record schemas shared across the storage layer.
//
// Records are plain structs with JSON tags; the store serializes them as-is.
// Fields the runtime treats as opaque (content, metadata, settings) are
// json.RawMessage so the storage core stays decoupled from domain schema
// evolution.
package core
