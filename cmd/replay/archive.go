package main

import (
	"sandcraft.ai/internal/sim/cell"
	"sandcraft.ai/internal/sim/terrain/store"
)

// memArchive keeps evicted chunks for the length of a replay so a revisited
// chunk comes back with its edits, as it would from the server's archive.
type memArchive struct {
	chunks map[store.ChunkKey][]cell.Cell
}

func newMemArchive() *memArchive {
	return &memArchive{chunks: make(map[store.ChunkKey][]cell.Cell)}
}

func (a *memArchive) LoadChunk(cx, cy, size int) ([]cell.Cell, bool, error) {
	cells, ok := a.chunks[store.ChunkKey{CX: cx, CY: cy}]
	if !ok || len(cells) != size*size {
		return nil, false, nil
	}
	return append([]cell.Cell(nil), cells...), true, nil
}

func (a *memArchive) SaveChunk(ch *store.Chunk) error {
	a.chunks[ch.Key()] = append([]cell.Cell(nil), ch.Cells...)
	return nil
}
