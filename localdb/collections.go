package localdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/burrowdb/burrow/core"
	"github.com/burrowdb/burrow/store"
)

// Typed pass-throughs for the non-memory collections. These are pure
// CollectionStore delegation: no vector-index interaction, absence reported
// as nil/false rather than errors.

func (a *Adapter) CreateAgent(ctx context.Context, rec *core.Agent) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec.ID, a.store.Set(ctx, core.CollectionAgents, rec.ID, rec)
}

func (a *Adapter) GetAgent(ctx context.Context, id string) (*core.Agent, error) {
	return store.Get[core.Agent](ctx, a.store, core.CollectionAgents, id)
}

func (a *Adapter) DeleteAgent(ctx context.Context, id string) (bool, error) {
	return a.store.Delete(ctx, core.CollectionAgents, id)
}

func (a *Adapter) CreateEntity(ctx context.Context, rec *core.Entity) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.AgentID == "" {
		rec.AgentID = a.cfg.AgentID
	}
	return rec.ID, a.store.Set(ctx, core.CollectionEntities, rec.ID, rec)
}

func (a *Adapter) GetEntity(ctx context.Context, id string) (*core.Entity, error) {
	return store.Get[core.Entity](ctx, a.store, core.CollectionEntities, id)
}

func (a *Adapter) DeleteEntity(ctx context.Context, id string) (bool, error) {
	return a.store.Delete(ctx, core.CollectionEntities, id)
}

func (a *Adapter) CreateRoom(ctx context.Context, rec *core.Room) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.AgentID == "" {
		rec.AgentID = a.cfg.AgentID
	}
	return rec.ID, a.store.Set(ctx, core.CollectionRooms, rec.ID, rec)
}

func (a *Adapter) GetRoom(ctx context.Context, id string) (*core.Room, error) {
	return store.Get[core.Room](ctx, a.store, core.CollectionRooms, id)
}

func (a *Adapter) DeleteRoom(ctx context.Context, id string) (bool, error) {
	return a.store.Delete(ctx, core.CollectionRooms, id)
}

func (a *Adapter) CreateWorld(ctx context.Context, rec *core.World) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.AgentID == "" {
		rec.AgentID = a.cfg.AgentID
	}
	return rec.ID, a.store.Set(ctx, core.CollectionWorlds, rec.ID, rec)
}

func (a *Adapter) GetWorld(ctx context.Context, id string) (*core.World, error) {
	return store.Get[core.World](ctx, a.store, core.CollectionWorlds, id)
}

func (a *Adapter) DeleteWorld(ctx context.Context, id string) (bool, error) {
	return a.store.Delete(ctx, core.CollectionWorlds, id)
}

func (a *Adapter) CreateComponent(ctx context.Context, rec *core.Component) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.AgentID == "" {
		rec.AgentID = a.cfg.AgentID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec.ID, a.store.Set(ctx, core.CollectionComponents, rec.ID, rec)
}

func (a *Adapter) GetComponent(ctx context.Context, id string) (*core.Component, error) {
	return store.Get[core.Component](ctx, a.store, core.CollectionComponents, id)
}

func (a *Adapter) DeleteComponent(ctx context.Context, id string) (bool, error) {
	return a.store.Delete(ctx, core.CollectionComponents, id)
}

func (a *Adapter) CreateRelationship(ctx context.Context, rec *core.Relationship) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.AgentID == "" {
		rec.AgentID = a.cfg.AgentID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec.ID, a.store.Set(ctx, core.CollectionRelationships, rec.ID, rec)
}

func (a *Adapter) GetRelationship(ctx context.Context, id string) (*core.Relationship, error) {
	return store.Get[core.Relationship](ctx, a.store, core.CollectionRelationships, id)
}

func (a *Adapter) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	return a.store.Delete(ctx, core.CollectionRelationships, id)
}

func (a *Adapter) CreateParticipant(ctx context.Context, rec *core.Participant) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.AgentID == "" {
		rec.AgentID = a.cfg.AgentID
	}
	return rec.ID, a.store.Set(ctx, core.CollectionParticipants, rec.ID, rec)
}

func (a *Adapter) GetParticipant(ctx context.Context, id string) (*core.Participant, error) {
	return store.Get[core.Participant](ctx, a.store, core.CollectionParticipants, id)
}

func (a *Adapter) DeleteParticipant(ctx context.Context, id string) (bool, error) {
	return a.store.Delete(ctx, core.CollectionParticipants, id)
}

func (a *Adapter) CreateTask(ctx context.Context, rec *core.Task) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.AgentID == "" {
		rec.AgentID = a.cfg.AgentID
	}
	rec.UpdatedAt = time.Now().UTC()
	return rec.ID, a.store.Set(ctx, core.CollectionTasks, rec.ID, rec)
}

func (a *Adapter) GetTask(ctx context.Context, id string) (*core.Task, error) {
	return store.Get[core.Task](ctx, a.store, core.CollectionTasks, id)
}

func (a *Adapter) DeleteTask(ctx context.Context, id string) (bool, error) {
	return a.store.Delete(ctx, core.CollectionTasks, id)
}

// SetCache stores an arbitrary value under a caller-chosen cache key,
// replacing any prior value.
func (a *Adapter) SetCache(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value %s: %w", key, err)
	}
	entry := core.CacheEntry{Key: key, Value: data, CreatedAt: time.Now().UTC()}
	return a.store.Set(ctx, core.CollectionCache, key, &entry)
}

// GetCache returns the raw cached value for key, or nil when absent.
func (a *Adapter) GetCache(ctx context.Context, key string) (json.RawMessage, error) {
	entry, err := store.Get[core.CacheEntry](ctx, a.store, core.CollectionCache, key)
	if err != nil || entry == nil {
		return nil, err
	}
	return entry.Value, nil
}

func (a *Adapter) DeleteCache(ctx context.Context, key string) (bool, error) {
	return a.store.Delete(ctx, core.CollectionCache, key)
}

// CreateLog appends a diagnostic record to the logs collection.
func (a *Adapter) CreateLog(ctx context.Context, rec *core.LogEntry) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec.ID, a.store.Set(ctx, core.CollectionLogs, rec.ID, rec)
}

func (a *Adapter) GetLog(ctx context.Context, id string) (*core.LogEntry, error) {
	return store.Get[core.LogEntry](ctx, a.store, core.CollectionLogs, id)
}

// ListLogs returns every log entry, oldest first.
func (a *Adapter) ListLogs(ctx context.Context) ([]core.LogEntry, error) {
	ids, err := a.store.List(ctx, core.CollectionLogs)
	if err != nil {
		return nil, err
	}

	entries := make([]core.LogEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := a.GetLog(ctx, id)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

func (a *Adapter) DeleteLog(ctx context.Context, id string) (bool, error) {
	return a.store.Delete(ctx, core.CollectionLogs, id)
}
