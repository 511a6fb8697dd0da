package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "sandcraft.ai/internal/persistence/log"
	"sandcraft.ai/internal/persistence/snapshot"
	"sandcraft.ai/internal/sim/catalogs"
	"sandcraft.ai/internal/sim/streaming"
	"sandcraft.ai/internal/sim/terrain/gen"
	"sandcraft.ai/internal/sim/tuning"
	"sandcraft.ai/internal/sim/world"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst to start from (optional)")
		framesDir  = flag.String("frames", "", "frames dir containing frames-*.jsonl.zst; verifies against the log (requires -snapshot)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 1337, "world seed for a fresh run")
		frames     = flag.Uint64("n", 600, "frames to run in headless mode")
		every      = flag.Uint64("every", 60, "print the digest every N frames")
		toFrame    = flag.Uint64("to_frame", 0, "stop verifying after this frame (inclusive, optional)")

		camX  = flag.Float64("cam_x", 0, "camera start x")
		camY  = flag.Float64("cam_y", 64, "camera start y")
		camVX = flag.Float64("cam_vx", 0.5, "camera x velocity per frame")
		camVY = flag.Float64("cam_vy", 0, "camera y velocity per frame")
	)
	flag.Parse()

	if *framesDir != "" && *snapPath == "" {
		fmt.Fprintln(os.Stderr, "-frames requires -snapshot")
		os.Exit(2)
	}

	cat, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}

	var snap *snapshot.SnapshotV1
	worldID := "replay"
	worldSeed := *seed
	if *snapPath != "" {
		s, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		snap = &s
		worldID = s.Header.WorldID
		worldSeed = s.Seed
		tune.ChunkSize = s.ChunkSize
		fmt.Printf("snapshot v%d world=%s frame=%d seed=%d chunk_size=%d chunks=%d\n",
			s.Header.Version, s.Header.WorldID, s.Header.Frame, s.Seed, s.ChunkSize, len(s.Chunks))
	}

	cfg := world.ConfigFromTuning(worldID, worldSeed, tune)
	g := gen.New(worldSeed, cfg.ChunkSize, gen.ParamsFromTuning(tune.WorldGen), cat.Materials)
	w, err := world.New(cfg, cat.Materials, g, world.WithArchive(newMemArchive()))
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	if snap != nil {
		if err := w.ImportSnapshot(*snap); err != nil {
			fmt.Fprintln(os.Stderr, "import snapshot:", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	if *framesDir != "" {
		checked, err := verify(ctx, w, *framesDir, *toFrame)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		fmt.Printf("replay ok: checked=%d digests (from snapshot frame=%d)\n", checked, snap.Header.Frame)
		return
	}

	cam := &world.PathCamera{X: *camX, Y: *camY, VX: *camVX, VY: *camVY}
	for i := uint64(0); i < *frames; i++ {
		if _, err := w.Step(ctx, cam); err != nil {
			fmt.Fprintln(os.Stderr, "step:", err)
			os.Exit(1)
		}
		if *every > 0 && w.Frame()%*every == 0 {
			fmt.Printf("frame=%d digest=%s\n", w.Frame(), w.Digest())
		}
	}
	fmt.Printf("final frame=%d digest=%s\n", w.Frame(), w.Digest())
}

// verify steps w along the camera path recorded in the frame log and
// compares every logged digest.
func verify(ctx context.Context, w *world.World, dir string, toFrame uint64) (int, error) {
	files, err := persistlog.Files(dir, "frames")
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no frames files found in %s", dir)
	}
	start := w.Frame()
	checked := 0
	errStop := errors.New("stop")
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(raw json.RawMessage) error {
			var entry world.FrameLogEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			if entry.Frame < start {
				return nil
			}
			if toFrame != 0 && entry.Frame > toFrame {
				return errStop
			}
			if entry.Frame != w.Frame() {
				return fmt.Errorf("frame mismatch: want=%d got=%d (file=%s)", w.Frame(), entry.Frame, filepath.Base(path))
			}
			stats, err := w.Step(ctx, streaming.Point{X: entry.CamX, Y: entry.CamY})
			if err != nil {
				return err
			}
			if stats.Changed != entry.Changed {
				return fmt.Errorf("changed chunks mismatch at frame %d: got=%d want=%d", entry.Frame, stats.Changed, entry.Changed)
			}
			if entry.Digest != "" {
				checked++
				if got := w.Digest(); got != entry.Digest {
					return fmt.Errorf("digest mismatch at frame %d: got=%s want=%s", entry.Frame, got, entry.Digest)
				}
			}
			return nil
		})
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			return checked, err
		}
	}
	return checked, nil
}
