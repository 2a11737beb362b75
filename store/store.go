package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto"
)

// Sentinel errors for store operations.
var (
	// ErrNotReady is returned when an operation runs before Init or after Close.
	ErrNotReady = errors.New("store not ready")
)

const (
	// cacheMaxCost bounds the read cache to 32 MiB of serialized records.
	cacheMaxCost = 32 << 20

	// cacheNumCounters sizes ristretto's admission frequency sketch
	// (~10x the expected number of live entries).
	cacheNumCounters = 100_000
)

// CollectionStore is a durable key-value store namespaced by collection.
// Each (collection, key) pair maps to one JSON file under the root
// directory; writes are atomic (temp file + rename) so a crash never leaves
// a half-written record behind.
//
// Reads go through a ristretto cache of serialized bytes. Mutations update
// the cache and wait for the update to land, so a Get immediately after a
// Set always observes the written value.
//
// CollectionStore is safe for concurrent use.
type CollectionStore struct {
	root  string
	cache *ristretto.Cache

	mu    sync.RWMutex
	ready bool
}

// New creates a CollectionStore rooted at dir. Call Init before use.
func New(dir string) *CollectionStore {
	return &CollectionStore{root: dir}
}

// Init prepares the on-disk layout. It is idempotent; calling it on a ready
// store is a no-op.
func (s *CollectionStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create store root: %w", err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return fmt.Errorf("create read cache: %w", err)
	}

	s.cache = cache
	s.ready = true
	log.Printf("[STORE] Initialized at %s", s.root)
	return nil
}

// Ready reports whether the store is initialized and not closed.
func (s *CollectionStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Close releases the read cache and marks the store not ready. Records are
// written through on every Set, so there is nothing to flush. Closing an
// already-closed store is a no-op.
func (s *CollectionStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	s.cache.Close()
	s.cache = nil
	s.ready = false
	log.Printf("[STORE] Closed %s", s.root)
	return nil
}

// Set serializes value as JSON and persists it under (collection, key),
// replacing any prior value. Last write wins.
func (s *CollectionStore) Set(ctx context.Context, collection, key string, value any) error {
	if err := s.check(); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, key, err)
	}

	path := s.recordPath(collection, key)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write %s/%s: %w", collection, key, err)
	}

	s.cache.Set(cacheKey(collection, key), data, int64(len(data)))
	s.cache.Wait()
	return nil
}

// GetRaw returns the serialized bytes stored under (collection, key), or
// (nil, nil) if absent.
func (s *CollectionStore) GetRaw(ctx context.Context, collection, key string) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	ck := cacheKey(collection, key)
	if cached, ok := s.cache.Get(ck); ok {
		return cached.([]byte), nil
	}

	data, err := os.ReadFile(s.recordPath(collection, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s/%s: %w", collection, key, err)
	}

	s.cache.Set(ck, data, int64(len(data)))
	return data, nil
}

// Delete removes the value at (collection, key), reporting whether a value
// existed. Deleting an absent key is not an error.
func (s *CollectionStore) Delete(ctx context.Context, collection, key string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}

	s.cache.Del(cacheKey(collection, key))
	s.cache.Wait()

	err := os.Remove(s.recordPath(collection, key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return true, nil
}

// List returns every key present in the collection. An absent collection
// yields an empty list.
func (s *CollectionStore) List(ctx context.Context, collection string) ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, collection))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// SaveBlob persists an opaque blob at a path relative to the store root,
// outside the typed collection model. Used for artifacts like the serialized
// vector index.
func (s *CollectionStore) SaveBlob(ctx context.Context, rel string, data []byte) error {
	if err := s.check(); err != nil {
		return err
	}

	path := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write blob %s: %w", rel, err)
	}
	return nil
}

// LoadBlob retrieves a blob saved by SaveBlob, or (nil, nil) if absent.
func (s *CollectionStore) LoadBlob(ctx context.Context, rel string) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read blob %s: %w", rel, err)
	}
	return data, nil
}

// Get deserializes the value stored under (collection, key) as T. Returns
// (nil, nil) if absent. Stored bytes that do not decode as T are a hard
// error, never silently coerced.
func Get[T any](ctx context.Context, s *CollectionStore, collection, key string) (*T, error) {
	data, err := s.GetRaw(ctx, collection, key)
	if err != nil || data == nil {
		return nil, err
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return &value, nil
}

func (s *CollectionStore) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return ErrNotReady
	}
	return nil
}

// recordPath maps (collection, key) to a file path. Keys are path-escaped so
// arbitrary key strings cannot traverse outside the collection directory.
func (s *CollectionStore) recordPath(collection, key string) string {
	return filepath.Join(s.root, collection, url.PathEscape(key)+".json")
}

func cacheKey(collection, key string) string {
	return collection + "/" + key
}

// writeFileAtomic writes data to path via a temp file and rename, creating
// parent directories as needed.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
