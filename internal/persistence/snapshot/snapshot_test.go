package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func sampleSnapshot(frame uint64) SnapshotV1 {
	rain := true
	return SnapshotV1{
		Header:         Header{Version: Version, WorldID: "world_1", Frame: frame},
		Seed:           42,
		ChunkSize:      4,
		RenderDistance: 2,
		ActiveRadius:   1,
		DayFrames:      100,
		StartTimeOfDay: 0.25,
		RainOverride:   &rain,
		Digest:         "abc",
		Chunks: []ChunkV1{
			{CX: -1, CY: 0, Cells: make([]byte, 4*4*8)},
			{CX: 0, CY: 0, Cells: []byte{1, 0, 2, 20, 0, 1, 0, 0}},
		},
	}
}

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(filepath.Join(dir, "snapshots"), 12)
	if err := WriteSnapshot(path, sampleSnapshot(12)); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if got.Header.Frame != 12 || got.Seed != 42 || len(got.Chunks) != 2 || got.RainOverride == nil || !*got.RainOverride {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.Chunks[1].Cells[3] != 20 || got.Chunks[0].CX != -1 {
		t.Fatalf("chunk payload mismatch: %+v", got.Chunks)
	}
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.WorldID != "world_1" || h.Frame != 12 {
		t.Fatalf("header=%+v", h)
	}
}

func TestReadSnapshotRejectsVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1.snap.zst")
	s := sampleSnapshot(1)
	s.Header.Version = 9
	if err := WriteSnapshot(path, s); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if Latest(dir) != "" {
		t.Fatalf("expected no snapshot")
	}
	for _, f := range []uint64{5, 120, 30} {
		if err := WriteSnapshot(PathFor(dir, f), sampleSnapshot(f)); err != nil {
			t.Fatalf("WriteSnapshot: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := Latest(dir); filepath.Base(got) != "120.snap.zst" {
		t.Fatalf("Latest=%q", got)
	}
}
