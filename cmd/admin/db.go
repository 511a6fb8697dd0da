package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"sandcraft.ai/internal/persistence/chunkdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	_ = fs.Parse(args)

	path := filepath.Join(*dataDir, "worlds", *worldID, "index", "chunks.sqlite")
	fi, err := os.Stat(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stat:", err)
		os.Exit(1)
	}
	db, err := chunkdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	n, err := db.Count()
	if err != nil {
		fmt.Fprintln(os.Stderr, "count:", err)
		os.Exit(1)
	}
	seed, _ := db.Meta("seed")
	digest, _ := db.CatalogDigest("materials")
	fmt.Printf("db=%s size=%s\n", path, humanize.Bytes(uint64(fi.Size())))
	fmt.Printf("seed=%s archived_chunks=%s materials_digest=%s\n", seed, humanize.Comma(int64(n)), digest)

	if r, ok, err := db.LatestSnapshot(); err != nil {
		fmt.Fprintln(os.Stderr, "latest snapshot:", err)
	} else if ok {
		fmt.Printf("latest_snapshot frame=%s chunks=%d path=%s\n", humanize.Comma(int64(r.Frame)), r.Chunks, r.Path)
	}
}
