package localdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/burrowdb/burrow/core"
	"github.com/burrowdb/burrow/store"
	"github.com/burrowdb/burrow/vector"
	"github.com/burrowdb/burrow/vector/hnsw"
)

// Adapter is the only component application code talks to. It binds a
// CollectionStore and a vector Index to one logical agent: writes update
// both, similarity search queries the index and hydrates full records from
// the store.
//
// The adapter holds no internal locking around index mutation. The
// embedding application wraps it in a single-writer / multiple-reader
// discipline: Add/Remove/EnsureEmbeddingDimension need exclusive access,
// searches may run concurrently with each other but not with mutation.
type Adapter struct {
	cfg      Config
	store    *store.CollectionStore
	index    vector.Index
	embedder core.Embedder
}

// SearchResult pairs a hydrated memory with its similarity to the query.
type SearchResult struct {
	Memory     core.Memory
	Similarity float32
}

// Option configures the adapter.
type Option func(*Adapter)

// WithEmbedder enables automatic embedding: memories created without an
// embedding get one computed from their content text.
func WithEmbedder(e core.Embedder) Option {
	return func(a *Adapter) { a.embedder = e }
}

// WithIndex swaps the vector index backend. The default is the native HNSW
// index; vector/chromem provides exact search for small corpora.
func WithIndex(idx vector.Index) Option {
	return func(a *Adapter) { a.index = idx }
}

// New creates an adapter over the given data directory. Call Init before
// use and Close when done.
func New(cfg Config, opts ...Option) *Adapter {
	cfg = cfg.withDefaults()

	a := &Adapter{
		cfg:   cfg,
		store: store.New(cfg.Dir),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.index == nil {
		a.index = hnsw.New(cfg.EmbeddingDimension)
	}
	return a
}

// Init initializes the store, then brings the index up: a persisted
// snapshot is loaded when present and dimension-compatible, otherwise the
// adapter starts from an empty index (fail-soft; a bad snapshot never
// blocks startup). Backends without snapshot support are rebuilt from the
// memories collection instead.
func (a *Adapter) Init(ctx context.Context) error {
	if err := a.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	snap, ok := a.index.(vector.Snapshotter)
	if !ok {
		n, err := a.RebuildIndex(ctx)
		if err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
		log.Printf("[LOCALDB] Rebuilt index from store: %d vectors", n)
		return nil
	}

	data, err := a.store.LoadBlob(ctx, a.cfg.IndexPath)
	if err != nil {
		log.Printf("[LOCALDB] Failed to load index snapshot, starting empty: %v", err)
		return nil
	}
	if data == nil {
		return nil
	}

	if err := snap.Restore(data); err != nil {
		log.Printf("[LOCALDB] Discarding unreadable index snapshot: %v", err)
		a.index.Reset(a.cfg.EmbeddingDimension)
		return nil
	}
	if a.index.Dimension() != a.cfg.EmbeddingDimension {
		log.Printf("[LOCALDB] Discarding index snapshot: dimension %d, configured %d",
			a.index.Dimension(), a.cfg.EmbeddingDimension)
		a.index.Reset(a.cfg.EmbeddingDimension)
		return nil
	}

	log.Printf("[LOCALDB] Loaded index snapshot: %d vectors", a.index.Len())
	return nil
}

// Close serializes the index to its blob path, then closes the store. The
// snapshot is best-effort: a serialization failure is logged and the store
// is still closed.
func (a *Adapter) Close(ctx context.Context) error {
	if snap, ok := a.index.(vector.Snapshotter); ok && a.store.Ready() {
		data, err := snap.Snapshot()
		if err != nil {
			log.Printf("[LOCALDB] Failed to serialize index: %v", err)
		} else if err := a.store.SaveBlob(ctx, a.cfg.IndexPath, data); err != nil {
			log.Printf("[LOCALDB] Failed to persist index snapshot: %v", err)
		}
	}
	return a.store.Close(ctx)
}

// EnsureEmbeddingDimension is a no-op when dimension is unchanged.
// Otherwise it reinitializes the index at the new dimension, discarding all
// indexed vectors. This is a maintenance action, not a hot-path call: raw
// embeddings survive in the memories collection, and callers that need
// search continuity run RebuildIndex afterward (which only re-indexes
// embeddings matching the new dimension).
func (a *Adapter) EnsureEmbeddingDimension(dimension int) error {
	if dimension == a.cfg.EmbeddingDimension {
		return nil
	}

	log.Printf("[LOCALDB] Embedding dimension change %d -> %d, discarding index",
		a.cfg.EmbeddingDimension, dimension)
	if err := a.index.Reset(dimension); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	a.cfg.EmbeddingDimension = dimension
	return nil
}

// CreateMemory assigns an id if absent, defaults agent ownership, persists
// the record, and indexes its embedding when one is present. When the
// adapter has an embedder and the memory arrives without an embedding, one
// is computed from the content's "text" field. Returns the final id.
func (a *Adapter) CreateMemory(ctx context.Context, m *core.Memory) (string, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.AgentID == "" {
		m.AgentID = a.cfg.AgentID
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	if len(m.Embedding) == 0 && a.embedder != nil {
		if text := contentText(m.Content); text != "" {
			emb, err := a.embedder.Embed(ctx, text)
			if err != nil {
				return "", fmt.Errorf("embed memory %s: %w", m.ID, err)
			}
			m.Embedding = emb
		}
	}

	if len(m.Embedding) > 0 && len(m.Embedding) != a.cfg.EmbeddingDimension {
		return "", fmt.Errorf("memory %s: embedding has %d dimensions, adapter bound to %d: %w",
			m.ID, len(m.Embedding), a.cfg.EmbeddingDimension, vector.ErrDimensionMismatch)
	}

	if err := a.store.Set(ctx, core.CollectionMemories, m.ID, m); err != nil {
		return "", err
	}

	if len(m.Embedding) > 0 {
		if err := a.index.Add(ctx, m.ID, m.Embedding); err != nil {
			return "", fmt.Errorf("index memory %s: %w", m.ID, err)
		}
	}
	return m.ID, nil
}

// GetMemory looks up a memory by id, returning nil when absent.
func (a *Adapter) GetMemory(ctx context.Context, id string) (*core.Memory, error) {
	return store.Get[core.Memory](ctx, a.store, core.CollectionMemories, id)
}

// DeleteMemory removes a memory from the index and the store. Index removal
// is best-effort ("not present" is non-fatal); the return value reports
// whether the stored record existed.
func (a *Adapter) DeleteMemory(ctx context.Context, id string) (bool, error) {
	if _, err := a.index.Remove(ctx, id); err != nil {
		log.Printf("[LOCALDB] Failed to unindex memory %s: %v", id, err)
	}
	return a.store.Delete(ctx, core.CollectionMemories, id)
}

// SearchMemories returns up to count memories ranked by similarity to
// embedding, dropping matches below threshold. The index is over-fetched at
// twice the requested count so candidates whose backing record has been
// deleted can be skipped without shrinking the result set.
func (a *Adapter) SearchMemories(ctx context.Context, embedding []float32, count int, threshold float32) ([]SearchResult, error) {
	if count <= 0 {
		return nil, nil
	}

	matches, err := a.index.Search(ctx, embedding, count*2, threshold)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	results := make([]SearchResult, 0, count)
	for _, match := range matches {
		m, err := a.GetMemory(ctx, match.ID)
		if err != nil || m == nil {
			// Stale index entry; the record is gone or unreadable.
			continue
		}
		results = append(results, SearchResult{Memory: *m, Similarity: match.Similarity})
		if len(results) == count {
			break
		}
	}
	return results, nil
}

// RebuildIndex re-derives the index from the memories collection, the
// durable source of truth. Memories whose embedding does not match the
// configured dimension are skipped. Returns the number of vectors indexed.
func (a *Adapter) RebuildIndex(ctx context.Context) (int, error) {
	if err := a.index.Reset(a.cfg.EmbeddingDimension); err != nil {
		return 0, fmt.Errorf("reset index: %w", err)
	}

	ids, err := a.store.List(ctx, core.CollectionMemories)
	if err != nil {
		return 0, fmt.Errorf("list memories: %w", err)
	}

	indexed := 0
	for _, id := range ids {
		m, err := a.GetMemory(ctx, id)
		if err != nil || m == nil {
			continue
		}
		if len(m.Embedding) != a.cfg.EmbeddingDimension {
			continue
		}
		if err := a.index.Add(ctx, m.ID, m.Embedding); err != nil {
			return indexed, fmt.Errorf("index memory %s: %w", m.ID, err)
		}
		indexed++
	}
	return indexed, nil
}

// contentText extracts the conventional "text" field from an opaque content
// payload, for automatic embedding. Non-object payloads yield "".
func contentText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}
	var probe struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &probe); err != nil {
		return ""
	}
	return probe.Text
}
