package localdb

// Defaults applied by New when Config leaves fields zero.
const (
	// DefaultEmbeddingDimension matches all-MiniLM-L6-v2, the model the
	// local embedder ships with.
	DefaultEmbeddingDimension = 384

	// DefaultIndexPath is the blob path the serialized vector index is
	// persisted under, relative to the data directory.
	DefaultIndexPath = "vectors/memories.json"
)

// Config holds adapter initialization parameters.
type Config struct {
	// Dir is the data directory owning all persisted state. Required.
	Dir string

	// AgentID is the bound agent id, used to default ownership fields on
	// created records.
	AgentID string

	// EmbeddingDimension fixes the vector dimension for the lifetime of the
	// loaded index. Default 384. Changing it later via
	// EnsureEmbeddingDimension discards the index.
	EmbeddingDimension int

	// IndexPath overrides where the index snapshot blob is stored.
	IndexPath string
}

func (c Config) withDefaults() Config {
	if c.EmbeddingDimension == 0 {
		c.EmbeddingDimension = DefaultEmbeddingDimension
	}
	if c.IndexPath == "" {
		c.IndexPath = DefaultIndexPath
	}
	return c
}
