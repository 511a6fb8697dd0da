package chunkdb

import (
	"errors"
	"path/filepath"
	"testing"

	"sandcraft.ai/internal/persistence/snapshot"
	"sandcraft.ai/internal/sim/cell"
	"sandcraft.ai/internal/sim/streaming"
	"sandcraft.ai/internal/sim/terrain/store"
)

var _ streaming.Archive = (*DB)(nil)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "chunks.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestChunkSaveLoad(t *testing.T) {
	db := openTest(t)
	mats := cell.DefaultMaterials()

	ch := store.NewChunk(-2, 3, 8)
	ch.Set(1, 1, mats.Cell(cell.Sand))
	ch.Set(7, 7, mats.Cell(cell.Water))
	if err := db.SaveChunk(ch); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, ok, err := db.LoadChunk(0, 0, 8); err != nil || ok {
		t.Fatalf("missing chunk: ok=%v err=%v", ok, err)
	}
	cells, ok, err := db.LoadChunk(-2, 3, 8)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	got := store.NewChunkWithCells(-2, 3, 8, cells)
	if got.Digest() != ch.Digest() {
		t.Fatalf("round trip changed cells")
	}
	if _, _, err := db.LoadChunk(-2, 3, 16); err == nil {
		t.Fatalf("expected size mismatch")
	}

	ch.Set(2, 2, mats.Cell(cell.Stone))
	if err := db.SaveChunk(ch); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if n, err := db.Count(); err != nil || n != 1 {
		t.Fatalf("count=%d err=%v", n, err)
	}
	cells, _, _ = db.LoadChunk(-2, 3, 8)
	if cells[2*8+2].Material != cell.Stone {
		t.Fatalf("upsert lost the update")
	}

	if err := db.DeleteChunk(-2, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := db.Count(); n != 0 {
		t.Fatalf("count after delete=%d", n)
	}
}

func TestChunkDigestMismatch(t *testing.T) {
	db := openTest(t)
	ch := store.NewChunk(0, 0, 4)
	if err := db.SaveChunk(ch); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := db.db.Exec(`UPDATE chunks SET digest='00' WHERE cx=0 AND cy=0;`); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, _, err := db.LoadChunk(0, 0, 4); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("err=%v", err)
	}
}

func TestMetaCatalogAndSnapshots(t *testing.T) {
	db := openTest(t)
	if v, err := db.Meta("seed"); err != nil || v != "" {
		t.Fatalf("missing meta: %q %v", v, err)
	}
	if err := db.SetMeta("seed", "42"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.SetMeta("seed", "43"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := db.Meta("seed"); v != "43" {
		t.Fatalf("meta=%q", v)
	}

	if err := db.UpsertCatalog("materials", "abc", []byte(`{"materials":[]}`)); err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if d, _ := db.CatalogDigest("materials"); d != "abc" {
		t.Fatalf("digest=%q", d)
	}

	if _, ok, err := db.LatestSnapshot(); ok || err != nil {
		t.Fatalf("expected no snapshots: ok=%v err=%v", ok, err)
	}
	for _, f := range []uint64{100, 300, 200} {
		snap := snapshot.SnapshotV1{Header: snapshot.Header{Version: snapshot.Version, Frame: f}, Seed: 7}
		if err := db.RecordSnapshot(snapshot.PathFor("snaps", f), snap); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	r, ok, err := db.LatestSnapshot()
	if err != nil || !ok || r.Frame != 300 || r.Seed != 7 {
		t.Fatalf("latest=%+v ok=%v err=%v", r, ok, err)
	}
}
