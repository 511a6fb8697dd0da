package world

import (
	"context"
	"errors"
	"time"

	"sandcraft.ai/internal/sim/cell"
)

type snapshotReq struct {
	Resp chan snapshotResp
}

type snapshotResp struct {
	Frame uint64
	Err   string
}

// Run steps the world at TickRateHz until ctx is done or Stop is called.
func (w *World) Run(ctx context.Context, cam Camera) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingSnapshots []snapshotReq
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case fn := <-w.control:
			fn(w)
		case req := <-w.admin:
			pendingSnapshots = append(pendingSnapshots, req)
		case <-ticker.C:
			if _, err := w.Step(ctx, cam); err != nil {
				return err
			}
			if every := uint64(w.cfg.SnapshotEveryFrames); every > 0 && w.frame%every == 0 {
				w.emitSnapshot()
			}
			w.handleSnapshotRequests(pendingSnapshots)
			pendingSnapshots = pendingSnapshots[:0]
		}
	}
}

func (w *World) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Submit runs fn on the loop goroutine before the next frame.
func (w *World) Submit(ctx context.Context, fn func(*World)) error {
	select {
	case w.control <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestSnapshot asks the loop to hand a snapshot to the sink. It is safe
// to call from other goroutines.
func (w *World) RequestSnapshot(ctx context.Context) (uint64, error) {
	resp := make(chan snapshotResp, 1)
	select {
	case w.admin <- snapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Frame, errors.New(r.Err)
		}
		return r.Frame, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) emitSnapshot() string {
	if w.snapshotSink == nil {
		return "snapshot sink not configured"
	}
	snap := w.ExportSnapshot()
	select {
	case w.snapshotSink <- snap:
		w.event("SNAPSHOT", map[string]any{"frame": snap.Header.Frame, "chunks": len(snap.Chunks)})
		return ""
	default:
		return "snapshot sink backpressure"
	}
}

func (w *World) handleSnapshotRequests(reqs []snapshotReq) {
	if len(reqs) == 0 {
		return
	}
	resp := snapshotResp{Frame: w.frame, Err: w.emitSnapshot()}
	for _, r := range reqs {
		select {
		case r.Resp <- resp:
		default:
		}
	}
}

// ChunkCells copies a loaded chunk on the loop goroutine. It blocks until
// Run picks up the request, so it needs a running loop.
func (w *World) ChunkCells(ctx context.Context, cx, cy int) ([]cell.Cell, bool, error) {
	type result struct {
		cells []cell.Cell
		ok    bool
	}
	out := make(chan result, 1)
	err := w.Submit(ctx, func(w *World) {
		ch, ok := w.store.Chunk(cx, cy)
		if !ok {
			out <- result{}
			return
		}
		out <- result{cells: append([]cell.Cell(nil), ch.Cells...), ok: true}
	})
	if err != nil {
		return nil, false, err
	}
	select {
	case r := <-out:
		return r.cells, r.ok, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
