package core

import (
	"encoding/json"
	"time"
)

// Collection names understood by the adapter. Every record type below maps to
// exactly one collection; the store itself treats collection names as opaque.
const (
	CollectionAgents        = "agents"
	CollectionEntities      = "entities"
	CollectionMemories      = "memories"
	CollectionRooms         = "rooms"
	CollectionWorlds        = "worlds"
	CollectionComponents    = "components"
	CollectionRelationships = "relationships"
	CollectionParticipants  = "participants"
	CollectionTasks         = "tasks"
	CollectionCache         = "cache"
	CollectionLogs          = "logs"
)

// Memory is the record shape indexed for similarity search.
//
// Content and Metadata are opaque to the storage layer: they are persisted
// verbatim and never interpreted, so domain schemas can evolve without
// touching this package. The only structural assumption made anywhere is the
// optional `content.text` field used for automatic embedding (see localdb).
type Memory struct {
	ID        string          `json:"id"`
	EntityID  string          `json:"entity_id"`
	AgentID   string          `json:"agent_id,omitempty"`
	RoomID    string          `json:"room_id"`
	WorldID   string          `json:"world_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Embedding []float32       `json:"embedding,omitempty"`
	Unique    bool            `json:"unique,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Agent is the identity record for one agent runtime.
type Agent struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Username  string          `json:"username,omitempty"`
	Bio       string          `json:"bio,omitempty"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// Entity is a participant identity (user, bot, service) known to an agent.
type Entity struct {
	ID       string          `json:"id"`
	AgentID  string          `json:"agent_id"`
	Names    []string        `json:"names,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Room is a conversation scope (channel, DM, thread).
type Room struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	AgentID   string          `json:"agent_id,omitempty"`
	WorldID   string          `json:"world_id,omitempty"`
	Source    string          `json:"source,omitempty"`
	Type      string          `json:"type,omitempty"`
	ChannelID string          `json:"channel_id,omitempty"`
	ServerID  string          `json:"server_id,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// World groups rooms belonging to one external server or deployment.
type World struct {
	ID       string          `json:"id"`
	AgentID  string          `json:"agent_id,omitempty"`
	Name     string          `json:"name,omitempty"`
	ServerID string          `json:"server_id,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Component attaches typed auxiliary data to an entity.
type Component struct {
	ID             string          `json:"id"`
	EntityID       string          `json:"entity_id"`
	AgentID        string          `json:"agent_id,omitempty"`
	RoomID         string          `json:"room_id,omitempty"`
	WorldID        string          `json:"world_id,omitempty"`
	SourceEntityID string          `json:"source_entity_id,omitempty"`
	Type           string          `json:"type"`
	Data           json.RawMessage `json:"data,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Relationship is a directed link between two entities.
type Relationship struct {
	ID             string          `json:"id"`
	SourceEntityID string          `json:"source_entity_id"`
	TargetEntityID string          `json:"target_entity_id"`
	AgentID        string          `json:"agent_id,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Participant records an entity's membership in a room.
type Participant struct {
	ID       string `json:"id"`
	EntityID string `json:"entity_id"`
	RoomID   string `json:"room_id"`
	AgentID  string `json:"agent_id,omitempty"`
	State    string `json:"state,omitempty"`
}

// Task is a unit of scheduled or deferred agent work.
type Task struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	RoomID      string          `json:"room_id,omitempty"`
	WorldID     string          `json:"world_id,omitempty"`
	AgentID     string          `json:"agent_id,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

// CacheEntry holds an arbitrary cached value under a caller-chosen key.
type CacheEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
}

// LogEntry is an append-style diagnostic record scoped to an entity and room.
type LogEntry struct {
	ID        string          `json:"id"`
	EntityID  string          `json:"entity_id,omitempty"`
	RoomID    string          `json:"room_id,omitempty"`
	Type      string          `json:"type,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
