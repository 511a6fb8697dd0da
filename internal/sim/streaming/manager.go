// Package streaming keeps the chunk store populated around the camera.
package streaming

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"sort"

	"sandcraft.ai/internal/sim/cell"
	"sandcraft.ai/internal/sim/mathx"
	"sandcraft.ai/internal/sim/terrain/store"
)

// Generator produces the initial contents of a chunk. It must be
// deterministic for a given coordinate.
type Generator interface {
	GenerateChunk(cx, cy int) ([]cell.Cell, error)
}

type Camera interface {
	Position() (x, y float64)
}

// Point is a fixed camera position.
type Point struct{ X, Y float64 }

func (p Point) Position() (float64, float64) { return p.X, p.Y }

// Archive persists chunks across eviction. LoadChunk reports false when the
// chunk was never saved.
type Archive interface {
	LoadChunk(cx, cy, size int) ([]cell.Cell, bool, error)
	SaveChunk(ch *store.Chunk) error
}

type Config struct {
	RenderDistance int
	// UnloadDistance is the Chebyshev radius beyond which chunks are evicted.
	// Values below RenderDistance mean RenderDistance.
	UnloadDistance int
	// MaxGenPerUpdate bounds chunk loads per Update call; 0 is unlimited.
	MaxGenPerUpdate int
}

type Stats struct {
	Loaded    int `json:"loaded"`
	Pending   int `json:"pending"`
	Generated int `json:"generated"`
	Restored  int `json:"restored"`
	Evicted   int `json:"evicted"`
	Failed    int `json:"failed"`
	// SaveFailed counts evictions held back by an archive error.
	SaveFailed int `json:"save_failed"`
}

type Manager struct {
	store   *store.Store
	gen     Generator
	archive Archive
	log     *log.Logger

	renderDistance int
	unloadDistance int
	maxPerUpdate   int

	center     store.ChunkKey
	haveCenter bool
	pending    []store.ChunkKey

	stats Stats
}

type Option func(*Manager)

func WithArchive(a Archive) Option { return func(m *Manager) { m.archive = a } }

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func New(s *store.Store, gen Generator, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		store:          s,
		gen:            gen,
		log:            log.New(io.Discard, "", 0),
		renderDistance: max(0, cfg.RenderDistance),
		unloadDistance: max(0, cfg.UnloadDistance),
		maxPerUpdate:   max(0, cfg.MaxGenPerUpdate),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) RenderDistance() int { return m.renderDistance }

// UnloadDistance is the effective eviction radius.
func (m *Manager) UnloadDistance() int { return max(m.renderDistance, m.unloadDistance) }

// SetRenderDistance changes the radius; the next Update recomputes the
// required set even without a chunk crossing.
func (m *Manager) SetRenderDistance(r int) {
	r = max(0, r)
	if r == m.renderDistance {
		return
	}
	m.renderDistance = r
	m.haveCenter = false
}

// Reset forgets the camera chunk and the load queue. The next Update
// recomputes the required set.
func (m *Manager) Reset() {
	m.haveCenter = false
	m.pending = nil
}

func (m *Manager) CenterChunk() (store.ChunkKey, bool) { return m.center, m.haveCenter }

func (m *Manager) Pending() int { return len(m.pending) }

func (m *Manager) Stats() Stats {
	s := m.stats
	s.Loaded = m.store.Len()
	s.Pending = len(m.pending)
	return s
}

// ChunkOf converts a camera position to its chunk coordinate.
func ChunkOf(x, y float64, size int) store.ChunkKey {
	return store.ChunkKey{
		CX: mathx.FloorDiv(int(math.Floor(x)), size),
		CY: mathx.FloorDiv(int(math.Floor(y)), size),
	}
}

// RequiredPositions lists the chunk coordinates within render distance of
// center, nearest first.
func (m *Manager) RequiredPositions(center store.ChunkKey) []store.ChunkKey {
	r := m.renderDistance
	out := make([]store.ChunkKey, 0, (2*r+1)*(2*r+1))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			out = append(out, store.ChunkKey{CX: center.CX + dx, CY: center.CY + dy})
		}
	}
	sortByDistance(out, center)
	return out
}

func sortByDistance(keys []store.ChunkKey, c store.ChunkKey) {
	sort.SliceStable(keys, func(i, j int) bool {
		di := mathx.Chebyshev(keys[i].CX, keys[i].CY, c.CX, c.CY)
		dj := mathx.Chebyshev(keys[j].CX, keys[j].CY, c.CX, c.CY)
		if di != dj {
			return di < dj
		}
		if keys[i].CY != keys[j].CY {
			return keys[i].CY < keys[j].CY
		}
		return keys[i].CX < keys[j].CX
	})
}

// Update evicts and queues chunks when the camera has entered a new chunk,
// then loads queued chunks up to the per-update budget. It reports whether
// the store changed.
func (m *Manager) Update(ctx context.Context, cam Camera) (bool, error) {
	x, y := cam.Position()
	center := ChunkOf(x, y, m.store.ChunkSize())

	changed := false
	if !m.haveCenter || center != m.center {
		m.center = center
		m.haveCenter = true
		if m.evict() {
			changed = true
		}
		m.pending = m.pending[:0]
		for _, k := range m.RequiredPositions(center) {
			if !m.store.Has(k.CX, k.CY) {
				m.pending = append(m.pending, k)
			}
		}
	}

	loaded, err := m.drain(ctx)
	return changed || loaded, err
}

// evict drops chunks beyond the unload distance. A modified chunk the
// archive refuses stays loaded and is retried on the next crossing.
func (m *Manager) evict() bool {
	evicted := false
	limit := m.UnloadDistance()
	for _, k := range m.store.LoadedChunkKeys() {
		if mathx.Chebyshev(k.CX, k.CY, m.center.CX, m.center.CY) <= limit {
			continue
		}
		ch, _ := m.store.Chunk(k.CX, k.CY)
		if m.archive != nil && ch.Modified() {
			if err := m.archive.SaveChunk(ch); err != nil {
				m.stats.SaveFailed++
				m.log.Printf("archive chunk (%d,%d): %v; keeping it loaded", k.CX, k.CY, err)
				continue
			}
			ch.ClearModified()
		}
		m.store.Remove(k.CX, k.CY)
		m.stats.Evicted++
		evicted = true
	}
	return evicted
}

func (m *Manager) drain(ctx context.Context) (bool, error) {
	loaded := false
	n := 0
	for len(m.pending) > 0 {
		if m.maxPerUpdate > 0 && n >= m.maxPerUpdate {
			break
		}
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		k := m.pending[0]
		m.pending = m.pending[1:]
		if m.store.Has(k.CX, k.CY) {
			continue
		}
		n++
		if err := m.load(k); err != nil {
			// Left unloaded; retried after the next chunk crossing.
			m.stats.Failed++
			m.log.Printf("load chunk (%d,%d): %v", k.CX, k.CY, err)
			continue
		}
		loaded = true
	}
	return loaded, nil
}

// ForceLoad loads the chunk at (cx, cy) now, from the archive or the
// generator, regardless of the camera. It is a no-op for a loaded chunk.
// The chunk is evicted like any other once it lies beyond the unload
// distance at a chunk crossing.
func (m *Manager) ForceLoad(cx, cy int) (bool, error) {
	if m.store.Has(cx, cy) {
		return false, nil
	}
	if err := m.load(store.ChunkKey{CX: cx, CY: cy}); err != nil {
		m.stats.Failed++
		return false, fmt.Errorf("force load chunk (%d,%d): %w", cx, cy, err)
	}
	return true, nil
}

func (m *Manager) load(k store.ChunkKey) error {
	size := m.store.ChunkSize()
	if m.archive != nil {
		cells, ok, err := m.archive.LoadChunk(k.CX, k.CY, size)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		if ok {
			ch := store.NewChunkWithCells(k.CX, k.CY, size, cells)
			ch.MarkDirty()
			ch.ClearModified()
			if err := m.store.Insert(ch); err != nil {
				return err
			}
			m.stats.Restored++
			return nil
		}
	}
	cells, err := m.gen.GenerateChunk(k.CX, k.CY)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	ch := store.NewChunkWithCells(k.CX, k.CY, size, cells)
	ch.MarkDirty()
	ch.ClearModified()
	if err := m.store.Insert(ch); err != nil {
		return err
	}
	m.stats.Generated++
	return nil
}

// Flush saves every modified loaded chunk to the archive.
func (m *Manager) Flush() error {
	if m.archive == nil {
		return nil
	}
	for _, k := range m.store.LoadedChunkKeys() {
		ch, _ := m.store.Chunk(k.CX, k.CY)
		if !ch.Modified() {
			continue
		}
		if err := m.archive.SaveChunk(ch); err != nil {
			return fmt.Errorf("archive chunk (%d,%d): %w", k.CX, k.CY, err)
		}
		ch.ClearModified()
	}
	return nil
}
