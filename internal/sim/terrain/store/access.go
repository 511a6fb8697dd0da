package store

import (
	"fmt"
	"sort"

	"sandcraft.ai/internal/sim/cell"
	"sandcraft.ai/internal/sim/mathx"
)

func errLength(got, want int) error {
	return fmt.Errorf("chunk cells length mismatch: got %d want %d", got, want)
}

func WorldToChunk(x, y, size int) (int, int) {
	return mathx.FloorDiv(x, size), mathx.FloorDiv(y, size)
}

func WorldToLocal(x, y, size int) (int, int) {
	return mathx.Mod(x, size), mathx.Mod(y, size)
}

func (s *Store) Len() int { return len(s.chunks) }

func (s *Store) Has(cx, cy int) bool {
	_, ok := s.chunks[ChunkKey{CX: cx, CY: cy}]
	return ok
}

func (s *Store) Chunk(cx, cy int) (*Chunk, bool) {
	ch, ok := s.chunks[ChunkKey{CX: cx, CY: cy}]
	return ch, ok
}

func (s *Store) ChunkAtWorld(x, y int) (*Chunk, bool) {
	cx, cy := WorldToChunk(x, y, s.size)
	return s.Chunk(cx, cy)
}

// Insert adds ch, replacing any chunk at the same coordinate.
func (s *Store) Insert(ch *Chunk) error {
	if ch.Size != s.size || len(ch.Cells) != s.size*s.size {
		return fmt.Errorf("chunk (%d,%d): %w", ch.CX, ch.CY, errLength(len(ch.Cells), s.size*s.size))
	}
	s.chunks[ch.Key()] = ch
	return nil
}

func (s *Store) Remove(cx, cy int) (*Chunk, bool) {
	k := ChunkKey{CX: cx, CY: cy}
	ch, ok := s.chunks[k]
	if ok {
		delete(s.chunks, k)
	}
	return ch, ok
}

func (s *Store) Get(x, y int) (cell.Cell, bool) {
	ch, ok := s.ChunkAtWorld(x, y)
	if !ok {
		return cell.Empty, false
	}
	lx, ly := WorldToLocal(x, y, s.size)
	return ch.Get(lx, ly), true
}

// GetMut returns a pointer to the cell at (x, y) and marks its chunk dirty,
// or nil when the chunk is not loaded.
func (s *Store) GetMut(x, y int) *cell.Cell {
	ch, ok := s.ChunkAtWorld(x, y)
	if !ok {
		return nil
	}
	lx, ly := WorldToLocal(x, y, s.size)
	return ch.At(lx, ly)
}

// Set writes v and reports whether the chunk was loaded.
func (s *Store) Set(x, y int, v cell.Cell) bool {
	ch, ok := s.ChunkAtWorld(x, y)
	if !ok {
		return false
	}
	lx, ly := WorldToLocal(x, y, s.size)
	ch.Set(lx, ly, v)
	return true
}

func sortKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CY < keys[j].CY
	})
}

func (s *Store) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func (s *Store) DirtyChunks() []*Chunk {
	var keys []ChunkKey
	for k, ch := range s.chunks {
		if ch.dirty {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	out := make([]*Chunk, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.chunks[k])
	}
	return out
}

func (s *Store) DirtyCount() int {
	n := 0
	for _, ch := range s.chunks {
		if ch.dirty {
			n++
		}
	}
	return n
}

// ClearDirty resets the dirty flag of the given chunks, or of every chunk
// when no keys are passed.
func (s *Store) ClearDirty(keys ...ChunkKey) {
	if len(keys) == 0 {
		for _, ch := range s.chunks {
			ch.ClearDirty()
		}
		return
	}
	for _, k := range keys {
		if ch, ok := s.chunks[k]; ok {
			ch.ClearDirty()
		}
	}
}

func (s *Store) MarkAllDirty() {
	for _, ch := range s.chunks {
		ch.MarkDirty()
	}
}

func (s *Store) Clear() {
	s.chunks = map[ChunkKey]*Chunk{}
}
