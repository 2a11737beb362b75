package hnsw

import (
	"encoding/json"
	"fmt"
	"math"
)

// snapshot is the serialized form of the whole graph: vectors, adjacency
// lists, layer assignments, entry point, and dimension. It is self-contained
// so a process restart can reload the index without replaying insertions.
type snapshot struct {
	Dimension      int                     `json:"dimension"`
	M              int                     `json:"m"`
	EFConstruction int                     `json:"ef_construction"`
	EFSearch       int                     `json:"ef_search"`
	EntryPoint     string                  `json:"entry_point"`
	MaxLayer       int                     `json:"max_layer"`
	Vectors        map[string]snapshotNode `json:"vectors"`
}

type snapshotNode struct {
	Vector []float32  `json:"vector"`
	Layers [][]string `json:"layers"`
}

// Snapshot captures the entire graph as JSON.
func (x *Index) Snapshot() ([]byte, error) {
	snap := snapshot{
		Dimension:      x.dim,
		M:              x.m,
		EFConstruction: x.efConstruction,
		EFSearch:       x.efSearch,
		EntryPoint:     x.entry,
		MaxLayer:       x.maxLayer,
		Vectors:        make(map[string]snapshotNode, len(x.nodes)),
	}
	for id, n := range x.nodes {
		snap.Vectors[id] = snapshotNode{Vector: n.vector, Layers: n.layers}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal index snapshot: %w", err)
	}
	return data, nil
}

// Restore replaces the index state with a snapshot produced by Snapshot.
// The snapshot's own dimension and tuning parameters take effect; callers
// that require a specific dimension check Dimension afterward.
func (x *Index) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal index snapshot: %w", err)
	}
	if snap.Dimension <= 0 {
		return fmt.Errorf("invalid index snapshot: dimension %d", snap.Dimension)
	}
	if snap.Vectors == nil {
		snap.Vectors = make(map[string]snapshotNode)
	}
	if len(snap.Vectors) > 0 {
		if _, ok := snap.Vectors[snap.EntryPoint]; !ok {
			return fmt.Errorf("invalid index snapshot: entry point %q not present", snap.EntryPoint)
		}
	}

	nodes := make(map[string]*node, len(snap.Vectors))
	for id, sn := range snap.Vectors {
		if len(sn.Vector) != snap.Dimension {
			return fmt.Errorf("invalid index snapshot: vector %q has %d dimensions, snapshot declares %d",
				id, len(sn.Vector), snap.Dimension)
		}
		layers := sn.Layers
		if layers == nil {
			layers = make([][]string, 1)
		}
		nodes[id] = &node{vector: sn.Vector, layers: layers}
	}

	x.dim = snap.Dimension
	if snap.M > 0 {
		x.m = snap.M
		x.levelMult = 1 / math.Log(float64(x.m))
	}
	if snap.EFConstruction > 0 {
		x.efConstruction = snap.EFConstruction
	}
	if snap.EFSearch > 0 {
		x.efSearch = snap.EFSearch
	}
	x.nodes = nodes
	x.entry = snap.EntryPoint
	x.maxLayer = snap.MaxLayer
	return nil
}
