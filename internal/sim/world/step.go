package world

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"sandcraft.ai/internal/sim/streaming"
	"sandcraft.ai/internal/sim/terrain/store"
	"sandcraft.ai/internal/sim/transition"
)

// Step runs one frame: stream chunks around the camera, refresh the
// activation index, advance every Simulating chunk, then mark changes.
// Streaming finishes before any chunk is dispatched.
func (w *World) Step(ctx context.Context, cam Camera) (FrameStats, error) {
	start := time.Now()
	x, y := cam.Position()

	streamed, err := w.stream.Update(ctx, streaming.Point{X: x, Y: y})
	if streamed {
		w.index.Sync(w.store)
	}
	if err != nil {
		return FrameStats{}, err
	}
	reclassified := w.index.UpdatePlayerPosition(x, y)

	raining := w.Raining()
	params := transition.Params{
		Seed:      w.cfg.Seed,
		Frame:     w.frame,
		Raining:   raining,
		TimeOfDay: w.TimeOfDay(),
		Env:       w.cfg.Env,
	}

	keys := w.index.SimulatingRegion()
	chunks := make([]*store.Chunk, 0, len(keys))
	for _, k := range keys {
		if ch, ok := w.store.Chunk(k.CX, k.CY); ok {
			chunks = append(chunks, ch)
		}
	}
	changed := w.dispatch(chunks, params)

	nChanged := 0
	for i, ch := range chunks {
		if changed[i] {
			ch.MarkDirty()
			nChanged++
		}
	}

	stats := FrameStats{
		Frame:        w.frame,
		Simulated:    len(chunks),
		Changed:      nChanged,
		Raining:      raining,
		TimeOfDay:    params.TimeOfDay,
		Streaming:    w.stream.Stats(),
		Reclassified: reclassified,
		Micros:       time.Since(start).Microseconds(),
	}
	if w.frameLogger != nil {
		entry := FrameLogEntry{
			Frame:     stats.Frame,
			CamX:      x,
			CamY:      y,
			Simulated: stats.Simulated,
			Changed:   stats.Changed,
			Loaded:    stats.Streaming.Loaded,
			Pending:   stats.Streaming.Pending,
			Raining:   stats.Raining,
			TimeOfDay: stats.TimeOfDay,
			Micros:    stats.Micros,
		}
		if every := uint64(w.cfg.DigestEveryFrames); every > 0 && w.frame%every == 0 {
			entry.Digest = w.Digest()
		}
		if err := w.frameLogger.WriteFrame(entry); err != nil {
			w.log.Printf("frame log: %v", err)
		}
	}

	w.frame++
	if now := w.Raining(); now != raining {
		w.event("WEATHER", map[string]any{"raining": now})
	}
	w.publish(stats)
	return stats, nil
}

// dispatch steps every chunk independently. Each chunk only touches its own
// buffers, so the goroutines share nothing but the material table.
func (w *World) dispatch(chunks []*store.Chunk, params transition.Params) []bool {
	changed := make([]bool, len(chunks))
	var g errgroup.Group
	if w.cfg.ChunkWorkers > 0 {
		g.SetLimit(w.cfg.ChunkWorkers)
	}
	for i, ch := range chunks {
		p := params
		p.OriginX, p.OriginY = ch.Origin()
		front, back := ch.Cells, ch.Scratch()
		i := i
		g.Go(func() error {
			changed[i] = w.engine.Step(front, back, p)
			return nil
		})
	}
	_ = g.Wait()
	return changed
}
