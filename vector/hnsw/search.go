package hnsw

import (
	"container/heap"
	"sort"
)

// scored pairs a node id with its distance to the current query.
type scored struct {
	id   string
	dist float32
}

func sortScored(s []scored) {
	sort.Slice(s, func(i, j int) bool { return s[i].dist < s[j].dist })
}

// neighbors returns id's adjacency list at layer l, or nil if the node does
// not participate in that layer.
func (x *Index) neighbors(id string, l int) []string {
	n := x.nodes[id]
	if l >= len(n.layers) {
		return nil
	}
	return n.layers[l]
}

// greedyClosest runs single-path greedy search at one layer: repeatedly move
// to the neighbor closest to q until no neighbor improves.
func (x *Index) greedyClosest(q []float32, entry string, l int) string {
	cur := entry
	curDist := x.distanceTo(q, cur)

	for {
		improved := false
		for _, nb := range x.neighbors(cur, l) {
			if d := x.distanceTo(q, nb); d < curDist {
				cur, curDist = nb, d
				improved = true
			}
		}
		if !improved {
			return cur
		}
	}
}

// searchLayer runs best-first search at one layer with a dynamic candidate
// list of size ef, returning up to ef results sorted by ascending distance.
func (x *Index) searchLayer(q []float32, entry string, ef, l int) []scored {
	entryDist := x.distanceTo(q, entry)
	visited := map[string]bool{entry: true}

	candidates := &minHeap{{id: entry, dist: entryDist}}
	results := &maxHeap{{id: entry, dist: entryDist}}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(scored)

		// The closest unexpanded candidate is already farther than the
		// worst kept result: the frontier cannot improve anything.
		if results.Len() >= ef && c.dist > (*results)[0].dist {
			break
		}

		for _, nb := range x.neighbors(c.id, l) {
			if visited[nb] {
				continue
			}
			visited[nb] = true

			d := x.distanceTo(q, nb)
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(candidates, scored{id: nb, dist: d})
				heap.Push(results, scored{id: nb, dist: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]scored, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(scored)
	}
	return out
}

// minHeap orders scored entries closest-first (the search frontier).
type minHeap []scored

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(v interface{}) { *h = append(*h, v.(scored)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// maxHeap orders scored entries farthest-first, so the worst kept result is
// always at the top and cheap to evict.
type maxHeap []scored

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(v interface{}) { *h = append(*h, v.(scored)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
