package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"sandcraft.ai/internal/persistence/snapshot"
	"sandcraft.ai/internal/sim/catalogs"
	"sandcraft.ai/internal/sim/terrain/store"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "weather":
			weatherCmd(os.Args[2:])
			return
		case "radius":
			radiusCmd(os.Args[2:])
			return
		case "load":
			loadCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		latest := snapshot.Latest(filepath.Join(base, e.Name(), "snapshots"))
		if latest == "" {
			fmt.Printf("%s\t(no snapshots)\n", e.Name())
			continue
		}
		h, err := snapshot.ReadHeader(latest)
		if err != nil {
			fmt.Printf("%s\t%s: %v\n", e.Name(), filepath.Base(latest), err)
			continue
		}
		fmt.Printf("%s\tframe=%s\t%s\n", e.Name(), humanize.Comma(int64(h.Frame)), filepath.Base(latest))
	}
}

// inspectCmd prints a snapshot summary with a material histogram.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	configDir := fs.String("configs", "./configs", "config directory (for material names)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		path = snapshot.Latest(filepath.Join(*dataDir, "worlds", *worldID, "snapshots"))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	cat, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	fi, _ := os.Stat(path)
	fmt.Printf("snapshot v%d world=%s frame=%s seed=%d chunk_size=%d chunks=%d size=%s\n",
		snap.Header.Version, snap.Header.WorldID, humanize.Comma(int64(snap.Header.Frame)), snap.Seed,
		snap.ChunkSize, len(snap.Chunks), humanize.Bytes(uint64(fi.Size())))
	fmt.Printf("render_distance=%d active_radius=%d digest=%s\n", snap.RenderDistance, snap.ActiveRadius, snap.Digest)

	counts := map[uint16]int64{}
	n := snap.ChunkSize * snap.ChunkSize
	for _, ch := range snap.Chunks {
		cells, err := store.DecodeCells(ch.Cells, n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chunk %d,%d: %v\n", ch.CX, ch.CY, err)
			os.Exit(1)
		}
		for _, c := range cells {
			counts[c.Material]++
		}
	}
	ids := make([]uint16, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return counts[ids[i]] > counts[ids[j]] })
	for _, id := range ids {
		name := cat.Materials.Name(id)
		if name == "" {
			name = fmt.Sprintf("#%d", id)
		}
		fmt.Printf("  %-10s %s\n", name, humanize.Comma(counts[id]))
	}
}
