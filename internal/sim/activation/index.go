// Package activation classifies loaded chunks by distance to the player and
// answers region queries through a quadtree.
package activation

import (
	"math"
	"sort"

	"sandcraft.ai/internal/sim/mathx"
	"sandcraft.ai/internal/sim/terrain/store"
)

type State uint8

const (
	Dormant State = iota
	Active
	Simulating
)

func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Simulating:
		return "SIMULATING"
	default:
		return "DORMANT"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Record struct {
	Key   store.ChunkKey `json:"key"`
	State State          `json:"state"`
}

// ChunkSource is the view of the chunk store used by Sync.
type ChunkSource interface {
	LoadedChunkKeys() []store.ChunkKey
}

const (
	treeMaxItems  = 8
	treeMaxDepth  = 10
	initialExtent = 64
)

type Index struct {
	chunkSize int
	radius    int

	player     store.ChunkKey
	havePlayer bool

	states map[store.ChunkKey]State
	tree   *QuadTree[Record]

	rebuilds int
}

func New(chunkSize, activeRadius int) *Index {
	ix := &Index{
		chunkSize: chunkSize,
		radius:    max(0, activeRadius),
		states:    map[store.ChunkKey]State{},
	}
	ix.tree = NewQuadTree[Record](Rect{-initialExtent, -initialExtent, initialExtent - 1, initialExtent - 1}, treeMaxItems, treeMaxDepth)
	return ix
}

func (ix *Index) Len() int             { return len(ix.states) }
func (ix *Index) ActiveRadius() int    { return ix.radius }
func (ix *Index) TreeStats() TreeStats { return ix.tree.Stats() }
func (ix *Index) Rebuilds() int        { return ix.rebuilds }

func (ix *Index) TreeBounds() Rect { return ix.tree.Bounds() }

func (ix *Index) PlayerChunk() (store.ChunkKey, bool) {
	return ix.player, ix.havePlayer
}

// State returns Dormant for chunks that are not registered.
func (ix *Index) State(cx, cy int) State {
	return ix.states[store.ChunkKey{CX: cx, CY: cy}]
}

func (ix *Index) classify(k store.ChunkKey) State {
	if ix.havePlayer && mathx.Chebyshev(k.CX, k.CY, ix.player.CX, ix.player.CY) <= ix.radius {
		return Simulating
	}
	return Active
}

// Register tracks a loaded chunk. Registering twice is a no-op.
func (ix *Index) Register(cx, cy int) {
	k := store.ChunkKey{CX: cx, CY: cy}
	if _, ok := ix.states[k]; ok {
		return
	}
	st := ix.classify(k)
	ix.states[k] = st
	if !ix.tree.Insert(cx, cy, Record{Key: k, State: st}) {
		ix.rebuild()
	}
}

// Unregister drops a chunk. Unknown chunks are ignored.
func (ix *Index) Unregister(cx, cy int) {
	k := store.ChunkKey{CX: cx, CY: cy}
	if _, ok := ix.states[k]; !ok {
		return
	}
	delete(ix.states, k)
	ix.tree.Remove(cx, cy, nil)
}

// UpdatePlayerPosition reclassifies every chunk when the player has moved
// into a different chunk. It reports whether that happened.
func (ix *Index) UpdatePlayerPosition(x, y float64) bool {
	k := store.ChunkKey{
		CX: mathx.FloorDiv(int(math.Floor(x)), ix.chunkSize),
		CY: mathx.FloorDiv(int(math.Floor(y)), ix.chunkSize),
	}
	if ix.havePlayer && k == ix.player {
		return false
	}
	ix.player = k
	ix.havePlayer = true
	ix.reclassify()
	return true
}

func (ix *Index) SetActiveRadius(r int) bool {
	r = max(0, r)
	if r == ix.radius {
		return false
	}
	ix.radius = r
	ix.reclassify()
	return true
}

func (ix *Index) reclassify() {
	for k := range ix.states {
		ix.states[k] = ix.classify(k)
	}
	ix.rebuild()
}

// rebuild recreates the tree, growing the root until it covers every key.
func (ix *Index) rebuild() {
	b := ix.tree.Bounds()
	for _, k := range ix.keys() {
		for !b.Contains(k.CX, k.CY) {
			w := b.MaxX - b.MinX + 1
			b = Rect{b.MinX - w, b.MinY - w, b.MaxX + w, b.MaxY + w}
		}
	}
	ix.tree = NewQuadTree[Record](b, treeMaxItems, treeMaxDepth)
	for _, k := range ix.keys() {
		ix.tree.Insert(k.CX, k.CY, Record{Key: k, State: ix.states[k]})
	}
	ix.rebuilds++
}

func (ix *Index) keys() []store.ChunkKey {
	keys := make([]store.ChunkKey, 0, len(ix.states))
	for k := range ix.states {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []store.ChunkKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CY < keys[j].CY
	})
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Key.CX != recs[j].Key.CX {
			return recs[i].Key.CX < recs[j].Key.CX
		}
		return recs[i].Key.CY < recs[j].Key.CY
	})
}

// QueryRegion returns the registered chunks inside the inclusive rectangle
// [min, max], ordered by CX then CY.
func (ix *Index) QueryRegion(minK, maxK store.ChunkKey) []Record {
	var out []Record
	ix.tree.Query(Rect{minK.CX, minK.CY, maxK.CX, maxK.CY}, func(_, _ int, r Record) bool {
		out = append(out, r)
		return true
	})
	sortRecords(out)
	return out
}

// SimulatingRegion returns the Simulating chunks without scanning every
// registered chunk.
func (ix *Index) SimulatingRegion() []store.ChunkKey {
	if !ix.havePlayer {
		return nil
	}
	p, r := ix.player, ix.radius
	var out []store.ChunkKey
	for _, rec := range ix.QueryRegion(store.ChunkKey{CX: p.CX - r, CY: p.CY - r}, store.ChunkKey{CX: p.CX + r, CY: p.CY + r}) {
		if rec.State == Simulating {
			out = append(out, rec.Key)
		}
	}
	return out
}

func (ix *Index) Simulating() []store.ChunkKey { return ix.withState(Simulating) }
func (ix *Index) Active() []store.ChunkKey     { return ix.withState(Active) }

func (ix *Index) withState(s State) []store.ChunkKey {
	var out []store.ChunkKey
	for k, st := range ix.states {
		if st == s {
			out = append(out, k)
		}
	}
	sortKeys(out)
	return out
}

// Sync registers newly loaded chunks and drops evicted ones.
func (ix *Index) Sync(src ChunkSource) (added, removed int) {
	loaded := src.LoadedChunkKeys()
	seen := make(map[store.ChunkKey]struct{}, len(loaded))
	for _, k := range loaded {
		seen[k] = struct{}{}
		if _, ok := ix.states[k]; !ok {
			ix.Register(k.CX, k.CY)
			added++
		}
	}
	for _, k := range ix.keys() {
		if _, ok := seen[k]; !ok {
			ix.Unregister(k.CX, k.CY)
			removed++
		}
	}
	return added, removed
}
