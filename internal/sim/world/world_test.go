package world

import (
	"context"
	"testing"
	"time"

	"sandcraft.ai/internal/persistence/snapshot"
	"sandcraft.ai/internal/sim/activation"
	"sandcraft.ai/internal/sim/cell"
	"sandcraft.ai/internal/sim/streaming"
	"sandcraft.ai/internal/sim/terrain/gen"
	"sandcraft.ai/internal/sim/terrain/store"
)

const testChunk = 16

type airGen struct{}

func (airGen) GenerateChunk(cx, cy int) ([]cell.Cell, error) {
	return make([]cell.Cell, testChunk*testChunk), nil
}

func testConfig() Config {
	return Config{
		ID:             "test",
		Seed:           5,
		ChunkSize:      testChunk,
		RenderDistance: 2,
		ActiveRadius:   1,
		TickRateHz:     1000,
		Workers:        2,
		DayFrames:      100,
		StartTimeOfDay: 0.5,
	}
}

func newTestWorld(t *testing.T, cfg Config, g streaming.Generator) *World {
	t.Helper()
	w, err := New(cfg, cell.DefaultMaterials(), g)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func terrainGen(cfg Config) *gen.Generator {
	return gen.New(cfg.Seed, cfg.ChunkSize, gen.DefaultParams(), cell.DefaultMaterials())
}

func TestStepLoadsAndClassifies(t *testing.T) {
	w := newTestWorld(t, testConfig(), airGen{})
	stats, err := w.Step(context.Background(), streaming.Point{X: 1, Y: 1})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if w.Store().Len() != 25 {
		t.Fatalf("loaded=%d want 25", w.Store().Len())
	}
	if stats.Simulated != 9 || len(w.SimulatingChunks()) != 9 || len(w.ActiveChunks()) != 16 {
		t.Fatalf("simulated=%d sim=%d active=%d", stats.Simulated, len(w.SimulatingChunks()), len(w.ActiveChunks()))
	}
	if w.ActivationState(2, 2) != activation.Active || w.ActivationState(0, 0) != activation.Simulating {
		t.Fatalf("unexpected states")
	}
	if w.ActivationState(9, 9) != activation.Dormant {
		t.Fatalf("unloaded chunk should be dormant")
	}
	if w.Frame() != 1 {
		t.Fatalf("frame=%d", w.Frame())
	}
	v := w.View()
	if v.Frame != 1 || v.Player == nil || len(v.Simulating) != 9 {
		t.Fatalf("view=%+v", v)
	}
}

func TestOnlySimulatingChunksAdvance(t *testing.T) {
	w := newTestWorld(t, testConfig(), airGen{})
	ctx := context.Background()
	cam := streaming.Point{X: 1, Y: 1}
	if _, err := w.Step(ctx, cam); err != nil {
		t.Fatalf("Step: %v", err)
	}
	sand := cell.DefaultMaterials().Cell(cell.Sand)
	// (0,0) is simulating, chunk (2,0) is only active.
	w.Store().Set(3, 0, sand)
	w.Store().Set(2*testChunk+3, 0, sand)
	w.ClearDirty()

	for i := 0; i < 5; i++ {
		if _, err := w.Step(ctx, cam); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if c, _ := w.Cell(3, 5); c.Material != cell.Sand {
		t.Fatalf("simulating sand did not fall: %+v", c)
	}
	if c, _ := w.Cell(2*testChunk+3, 0); c.Material != cell.Sand {
		t.Fatalf("active chunk was simulated")
	}
	dirty := w.DirtyChunks()
	if len(dirty) != 1 || dirty[0].CX != 0 || dirty[0].CY != 0 {
		t.Fatalf("dirty=%d", len(dirty))
	}
}

func TestIndexSyncFollowsStreamingChanges(t *testing.T) {
	w := newTestWorld(t, testConfig(), airGen{})
	ctx := context.Background()
	cam := streaming.Point{X: 1, Y: 1}
	if _, err := w.Step(ctx, cam); err != nil {
		t.Fatalf("Step: %v", err)
	}

	// Nothing streamed, so a chunk inserted directly is not registered.
	if err := w.Store().Insert(store.NewChunk(8, 8, testChunk)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := w.Step(ctx, cam); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if w.ActivationState(8, 8) != activation.Dormant {
		t.Fatalf("index resynced on an idle frame")
	}

	loaded, err := w.ForceLoad(-6, 0)
	if err != nil || !loaded {
		t.Fatalf("ForceLoad: loaded=%v err=%v", loaded, err)
	}
	if w.ActivationState(-6, 0) != activation.Active || w.ActivationState(8, 8) != activation.Active {
		t.Fatalf("force-loaded chunks not registered")
	}
}

func TestWorldDeterministic(t *testing.T) {
	cfg := testConfig()
	cfg.WeatherPeriodFrames = 10
	cfg.RainPermille = 500
	a := newTestWorld(t, cfg, terrainGen(cfg))
	b := newTestWorld(t, cfg, terrainGen(cfg))
	camA := &PathCamera{X: 0, Y: 60, VX: 1.5}
	camB := &PathCamera{X: 0, Y: 60, VX: 1.5}
	ctx := context.Background()
	for i := 0; i < 40; i++ {
		if _, err := a.Step(ctx, camA); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if _, err := b.Step(ctx, camB); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("digests differ")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	cfg := testConfig()
	a := newTestWorld(t, cfg, terrainGen(cfg))
	cam := streaming.Point{X: 8, Y: 60}
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := a.Step(ctx, cam); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	rain := true
	a.SetRaining(&rain)
	snap := a.ExportSnapshot()

	b := newTestWorld(t, cfg, terrainGen(cfg))
	if err := b.ImportSnapshot(snap); err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	if b.Frame() != a.Frame() || b.Digest() != a.Digest() || !b.Raining() {
		t.Fatalf("imported world differs")
	}
	for i := 0; i < 10; i++ {
		if _, err := a.Step(ctx, cam); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if _, err := b.Step(ctx, cam); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("worlds diverged after import")
	}

	bad := snap
	bad.Seed++
	if err := newTestWorld(t, cfg, airGen{}).ImportSnapshot(bad); err == nil {
		t.Fatalf("expected seed mismatch")
	}
	bad = snap
	bad.Chunks = append([]snapshot.ChunkV1(nil), snap.Chunks...)
	bad.Chunks[0].Cells = bad.Chunks[0].Cells[:8]
	if err := newTestWorld(t, cfg, airGen{}).ImportSnapshot(bad); err == nil {
		t.Fatalf("expected chunk length error")
	}
}

func TestRunLoopSnapshotAndStop(t *testing.T) {
	cfg := testConfig()
	w := newTestWorld(t, cfg, airGen{})
	sink := make(chan snapshot.SnapshotV1, 1)
	w.SetSnapshotSink(sink)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, streaming.Point{}) }()

	applied := make(chan int, 1)
	if err := w.Submit(ctx, func(w *World) {
		w.SetActiveRadius(0)
		applied <- w.Config().ActiveRadius
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r := <-applied; r != 0 {
		t.Fatalf("radius=%d", r)
	}
	frame, err := w.RequestSnapshot(ctx)
	if err != nil {
		t.Fatalf("RequestSnapshot: %v", err)
	}
	snap := <-sink
	if snap.Header.Frame != frame || snap.ActiveRadius != 0 {
		t.Fatalf("snapshot frame=%d want %d radius=%d", snap.Header.Frame, frame, snap.ActiveRadius)
	}

	cells, ok, err := w.ChunkCells(ctx, 0, 0)
	if err != nil || !ok || len(cells) != testChunk*testChunk {
		t.Fatalf("ChunkCells: ok=%v len=%d err=%v", ok, len(cells), err)
	}
	if _, ok, _ := w.ChunkCells(ctx, 50, 50); ok {
		t.Fatalf("unloaded chunk reported loaded")
	}

	w.Stop()
	w.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRequestSnapshotWithoutSink(t *testing.T) {
	w := newTestWorld(t, testConfig(), airGen{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = w.Run(ctx, streaming.Point{}) }()
	defer w.Stop()
	if _, err := w.RequestSnapshot(ctx); err == nil {
		t.Fatalf("expected error without sink")
	}
}

func TestNewRejectsMissingDeps(t *testing.T) {
	if _, err := New(testConfig(), nil, airGen{}); err == nil {
		t.Fatalf("expected material error")
	}
	if _, err := New(testConfig(), cell.DefaultMaterials(), nil); err == nil {
		t.Fatalf("expected generator error")
	}
}
