package world

import (
	"fmt"

	"sandcraft.ai/internal/persistence/snapshot"
	"sandcraft.ai/internal/sim/terrain/store"
)

func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	keys := w.store.LoadedChunkKeys()
	chunks := make([]snapshot.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch, _ := w.store.Chunk(k.CX, k.CY)
		chunks = append(chunks, snapshot.ChunkV1{CX: k.CX, CY: k.CY, Cells: store.EncodeCells(ch.Cells)})
	}
	return snapshot.SnapshotV1{
		Header:         snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.ID, Frame: w.frame},
		Seed:           w.cfg.Seed,
		ChunkSize:      w.cfg.ChunkSize,
		RenderDistance: w.stream.RenderDistance(),
		ActiveRadius:   w.index.ActiveRadius(),
		DayFrames:      w.clock.DayFrames,
		StartTimeOfDay: w.clock.Start,
		RainOverride:   w.weather.Override(),
		Digest:         w.Digest(),
		Chunks:         chunks,
	}
}

// ImportSnapshot replaces the loaded chunks and clock with the snapshot's.
// Chunks are restored as loaded; the next Step evicts any that fall outside
// the render distance.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.ChunkSize != w.cfg.ChunkSize {
		return fmt.Errorf("snapshot chunk size %d does not match world %d", s.ChunkSize, w.cfg.ChunkSize)
	}
	if s.Seed != w.cfg.Seed {
		return fmt.Errorf("snapshot seed %d does not match world %d", s.Seed, w.cfg.Seed)
	}
	n := w.cfg.ChunkSize * w.cfg.ChunkSize
	restored := make([]*store.Chunk, 0, len(s.Chunks))
	for _, c := range s.Chunks {
		cells, err := store.DecodeCells(c.Cells, n)
		if err != nil {
			return fmt.Errorf("snapshot chunk (%d,%d): %w", c.CX, c.CY, err)
		}
		ch := store.NewChunkWithCells(c.CX, c.CY, w.cfg.ChunkSize, cells)
		ch.MarkDirty()
		restored = append(restored, ch)
	}

	w.store.Clear()
	for _, ch := range restored {
		if err := w.store.Insert(ch); err != nil {
			return err
		}
	}
	w.frame = s.Header.Frame
	if s.DayFrames > 0 {
		w.clock = Clock{DayFrames: s.DayFrames, Start: s.StartTimeOfDay}
	}
	w.weather.SetOverride(s.RainOverride)
	w.stream.SetRenderDistance(s.RenderDistance)
	w.stream.Reset()
	w.index.SetActiveRadius(s.ActiveRadius)
	w.index.Sync(w.store)
	w.cfg.RenderDistance = w.stream.RenderDistance()
	w.cfg.ActiveRadius = w.index.ActiveRadius()

	if s.Digest != "" {
		if got := w.Digest(); got != s.Digest {
			return fmt.Errorf("snapshot digest mismatch: got %s want %s", got, s.Digest)
		}
	}
	w.publish(FrameStats{Frame: w.frame})
	return nil
}
