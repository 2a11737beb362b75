package localdb_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/burrowdb/burrow/core"
	"github.com/burrowdb/burrow/embedder/mock"
	"github.com/burrowdb/burrow/localdb"
	"github.com/burrowdb/burrow/vector"
)

func newAdapter(t *testing.T, cfg localdb.Config, opts ...localdb.Option) *localdb.Adapter {
	t.Helper()

	a := localdb.New(cfg, opts...)
	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init adapter: %v", err)
	}
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func TestAdapter_MemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a := localdb.New(localdb.Config{Dir: dir, AgentID: "agent-1", EmbeddingDimension: 3})
	if err := a.Init(ctx); err != nil {
		t.Fatalf("Failed to init adapter: %v", err)
	}

	id, err := a.CreateMemory(ctx, &core.Memory{
		Content:   json.RawMessage(`{"text":"the sky is blue"}`),
		Embedding: []float32{1, 0, 0},
	})
	if err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}
	if id == "" {
		t.Fatal("Expected generated id")
	}

	got, err := a.GetMemory(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("Failed to get memory: got %v, err %v", got, err)
	}
	if got.AgentID != "agent-1" {
		t.Errorf("Expected agent ownership default, got %q", got.AgentID)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be defaulted")
	}

	results, err := a.SearchMemories(ctx, []float32{1, 0, 0}, 5, 0.8)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 1 || results[0].Memory.ID != id {
		t.Fatalf("Expected the created memory as sole match, got %v", results)
	}
	if math.Abs(float64(results[0].Similarity)-1) > 1e-5 {
		t.Errorf("Expected similarity ~1, got %f", results[0].Similarity)
	}

	// Close persists the index snapshot; a fresh adapter over the same
	// directory must search without re-indexing.
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	a2 := newAdapter(t, localdb.Config{Dir: dir, AgentID: "agent-1", EmbeddingDimension: 3})
	results, err = a2.SearchMemories(ctx, []float32{1, 0, 0}, 5, 0.8)
	if err != nil {
		t.Fatalf("Failed to search after reopen: %v", err)
	}
	if len(results) != 1 || results[0].Memory.ID != id {
		t.Fatalf("Expected match to survive reopen, got %v", results)
	}
}

func TestAdapter_DeleteMemoryRemovesFromSearch(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t, localdb.Config{Dir: t.TempDir(), EmbeddingDimension: 2})

	id, err := a.CreateMemory(ctx, &core.Memory{Embedding: []float32{1, 0}})
	if err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}

	existed, err := a.DeleteMemory(ctx, id)
	if err != nil {
		t.Fatalf("Failed to delete memory: %v", err)
	}
	if !existed {
		t.Error("Delete of present memory should report true")
	}

	got, err := a.GetMemory(ctx, id)
	if err != nil {
		t.Fatalf("Get after delete should not error: %v", err)
	}
	if got != nil {
		t.Error("Expected nil after delete")
	}

	results, err := a.SearchMemories(ctx, []float32{1, 0}, 5, 0)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no matches after delete, got %v", results)
	}
}

func TestAdapter_DimensionMismatchRejected(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t, localdb.Config{Dir: t.TempDir(), EmbeddingDimension: 3})

	_, err := a.CreateMemory(ctx, &core.Memory{Embedding: []float32{1, 0}})
	if !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestAdapter_MemoryWithoutEmbedding(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t, localdb.Config{Dir: t.TempDir(), EmbeddingDimension: 3})

	// No embedder configured and no embedding supplied: stored but not
	// searchable.
	id, err := a.CreateMemory(ctx, &core.Memory{Content: json.RawMessage(`{"text":"plain"}`)})
	if err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}

	got, err := a.GetMemory(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("Failed to get memory: got %v, err %v", got, err)
	}

	results, err := a.SearchMemories(ctx, []float32{1, 0, 0}, 5, 0)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Unembedded memory should not be searchable, got %v", results)
	}
}

func TestAdapter_AutoEmbedding(t *testing.T) {
	ctx := context.Background()
	embedder := mock.New(8)
	a := newAdapter(t,
		localdb.Config{Dir: t.TempDir(), EmbeddingDimension: 8},
		localdb.WithEmbedder(embedder),
	)

	id, err := a.CreateMemory(ctx, &core.Memory{Content: json.RawMessage(`{"text":"embed this"}`)})
	if err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}

	got, err := a.GetMemory(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("Failed to get memory: got %v, err %v", got, err)
	}
	if len(got.Embedding) != 8 {
		t.Fatalf("Expected auto-computed 8-dim embedding, got %d", len(got.Embedding))
	}

	// Searching with the same text's embedding must surface the memory.
	query, err := embedder.Embed(ctx, "embed this")
	if err != nil {
		t.Fatalf("Failed to embed query: %v", err)
	}
	results, err := a.SearchMemories(ctx, query, 1, 0.9)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 1 || results[0].Memory.ID != id {
		t.Fatalf("Expected auto-embedded memory as match, got %v", results)
	}
}

func TestAdapter_SearchSkipsStaleIndexEntries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a := localdb.New(localdb.Config{Dir: dir, EmbeddingDimension: 2})
	if err := a.Init(ctx); err != nil {
		t.Fatalf("Failed to init adapter: %v", err)
	}

	keep, err := a.CreateMemory(ctx, &core.Memory{Embedding: []float32{1, 0}})
	if err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}
	stale, err := a.CreateMemory(ctx, &core.Memory{Embedding: []float32{0.9, 0.1}})
	if err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	// Remove one backing record behind the adapter's back. The persisted
	// index snapshot still references it; search must skip it silently.
	path := filepath.Join(dir, core.CollectionMemories, url.PathEscape(stale)+".json")
	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove record file: %v", err)
	}

	a2 := newAdapter(t, localdb.Config{Dir: dir, EmbeddingDimension: 2})
	results, err := a2.SearchMemories(ctx, []float32{1, 0}, 5, 0)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 1 || results[0].Memory.ID != keep {
		t.Fatalf("Expected stale entry skipped, got %v", results)
	}
}

func TestAdapter_CorruptSnapshotFailSoft(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(dir, "vectors"), 0o755); err != nil {
		t.Fatalf("Failed to create vectors dir: %v", err)
	}
	path := filepath.Join(dir, localdb.DefaultIndexPath)
	if err := os.WriteFile(path, []byte("{corrupt"), 0o644); err != nil {
		t.Fatalf("Failed to write corrupt snapshot: %v", err)
	}

	// Init must succeed with an empty, usable index.
	a := newAdapter(t, localdb.Config{Dir: dir, EmbeddingDimension: 2})

	results, err := a.SearchMemories(ctx, []float32{1, 0}, 5, 0)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected empty index after corrupt snapshot, got %v", results)
	}

	if _, err := a.CreateMemory(ctx, &core.Memory{Embedding: []float32{1, 0}}); err != nil {
		t.Fatalf("Index should accept inserts after fail-soft init: %v", err)
	}
}

func TestAdapter_EnsureEmbeddingDimension(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t, localdb.Config{Dir: t.TempDir(), EmbeddingDimension: 2})

	if _, err := a.CreateMemory(ctx, &core.Memory{Embedding: []float32{1, 0}}); err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}

	if err := a.EnsureEmbeddingDimension(2); err != nil {
		t.Fatalf("Unchanged dimension should be a no-op: %v", err)
	}
	results, err := a.SearchMemories(ctx, []float32{1, 0}, 5, 0)
	if err != nil || len(results) != 1 {
		t.Fatalf("Index should be intact after no-op: %v (%d matches)", err, len(results))
	}

	if err := a.EnsureEmbeddingDimension(4); err != nil {
		t.Fatalf("Failed to change dimension: %v", err)
	}

	// Old-dimension queries are now rejected, new-dimension inserts accepted.
	if _, err := a.SearchMemories(ctx, []float32{1, 0}, 5, 0); !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch for old-dimension query, got %v", err)
	}
	if _, err := a.CreateMemory(ctx, &core.Memory{Embedding: []float32{0, 1, 0, 0}}); err != nil {
		t.Fatalf("Failed to create memory at new dimension: %v", err)
	}
}

func TestAdapter_RebuildIndex(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t, localdb.Config{Dir: t.TempDir(), EmbeddingDimension: 2})

	if _, err := a.CreateMemory(ctx, &core.Memory{ID: "m1", Embedding: []float32{1, 0}}); err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}
	if _, err := a.CreateMemory(ctx, &core.Memory{ID: "m2", Embedding: []float32{0, 1}}); err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}
	if _, err := a.CreateMemory(ctx, &core.Memory{ID: "m3"}); err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}

	n, err := a.RebuildIndex(ctx)
	if err != nil {
		t.Fatalf("Failed to rebuild index: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 indexed vectors (unembedded skipped), got %d", n)
	}

	results, err := a.SearchMemories(ctx, []float32{1, 0}, 1, 0.9)
	if err != nil {
		t.Fatalf("Failed to search after rebuild: %v", err)
	}
	if len(results) != 1 || results[0].Memory.ID != "m1" {
		t.Fatalf("Expected m1 as top match after rebuild, got %v", results)
	}
}

func TestAdapter_TypedCollections(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t, localdb.Config{Dir: t.TempDir(), AgentID: "agent-1", EmbeddingDimension: 2})

	agentID, err := a.CreateAgent(ctx, &core.Agent{Name: "helper"})
	if err != nil {
		t.Fatalf("Failed to create agent: %v", err)
	}
	agent, err := a.GetAgent(ctx, agentID)
	if err != nil || agent == nil {
		t.Fatalf("Failed to get agent: got %v, err %v", agent, err)
	}
	if agent.Name != "helper" {
		t.Errorf("Agent roundtrip mismatch: %q", agent.Name)
	}

	roomID, err := a.CreateRoom(ctx, &core.Room{Name: "lobby"})
	if err != nil {
		t.Fatalf("Failed to create room: %v", err)
	}
	room, err := a.GetRoom(ctx, roomID)
	if err != nil || room == nil {
		t.Fatalf("Failed to get room: got %v, err %v", room, err)
	}
	if room.AgentID != "agent-1" {
		t.Errorf("Expected agent ownership default on room, got %q", room.AgentID)
	}

	existed, err := a.DeleteRoom(ctx, roomID)
	if err != nil || !existed {
		t.Fatalf("Failed to delete room: existed %v, err %v", existed, err)
	}
	room, err = a.GetRoom(ctx, roomID)
	if err != nil {
		t.Fatalf("Get after delete should not error: %v", err)
	}
	if room != nil {
		t.Error("Expected nil room after delete")
	}
}

func TestAdapter_Logs(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t, localdb.Config{Dir: t.TempDir(), EmbeddingDimension: 2})

	first, err := a.CreateLog(ctx, &core.LogEntry{Type: "action", CreatedAt: time.Unix(100, 0)})
	if err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}
	second, err := a.CreateLog(ctx, &core.LogEntry{Type: "action", CreatedAt: time.Unix(200, 0)})
	if err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}

	entries, err := a.ListLogs(ctx)
	if err != nil {
		t.Fatalf("Failed to list logs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(entries))
	}
	if entries[0].ID != first || entries[1].ID != second {
		t.Errorf("Expected oldest-first ordering, got %s then %s", entries[0].ID, entries[1].ID)
	}

	existed, err := a.DeleteLog(ctx, first)
	if err != nil || !existed {
		t.Fatalf("Failed to delete log: existed %v, err %v", existed, err)
	}
}

func TestAdapter_Cache(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t, localdb.Config{Dir: t.TempDir(), EmbeddingDimension: 2})

	if err := a.SetCache(ctx, "settings", map[string]int{"limit": 5}); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	raw, err := a.GetCache(ctx, "settings")
	if err != nil {
		t.Fatalf("Failed to get cache: %v", err)
	}
	var value map[string]int
	if err := json.Unmarshal(raw, &value); err != nil {
		t.Fatalf("Failed to decode cache value: %v", err)
	}
	if value["limit"] != 5 {
		t.Errorf("Cache roundtrip mismatch: %v", value)
	}

	existed, err := a.DeleteCache(ctx, "settings")
	if err != nil || !existed {
		t.Fatalf("Failed to delete cache: existed %v, err %v", existed, err)
	}
	raw, err = a.GetCache(ctx, "missing")
	if err != nil {
		t.Fatalf("Get of absent cache key should not error: %v", err)
	}
	if raw != nil {
		t.Errorf("Expected nil for absent cache key, got %q", raw)
	}
}
