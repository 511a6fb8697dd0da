package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strconv"

	"sandcraft.ai/internal/persistence/chunkdb"
	"sandcraft.ai/internal/sim/catalogs"
)

func openArchive(worldDir string, disableDB bool) (*chunkdb.DB, error) {
	if disableDB {
		return nil, nil
	}
	return chunkdb.OpenSQLite(filepath.Join(worldDir, "index", "chunks.sqlite"))
}

// reconcileArchive pins the world seed to the one the archive was written
// with. Archived chunks from a different seed would not line up with fresh
// terrain.
func reconcileArchive(db *chunkdb.DB, worldID string, seed int64, cat *catalogs.Catalog, logger *log.Logger) (int64, error) {
	if db == nil {
		return seed, nil
	}
	stored, err := db.Meta("seed")
	if err != nil {
		return seed, err
	}
	if stored != "" {
		s, err := strconv.ParseInt(stored, 10, 64)
		if err != nil {
			return seed, fmt.Errorf("bad stored seed %q: %w", stored, err)
		}
		if s != seed {
			logger.Printf("archive was written with seed=%d; ignoring seed=%d", s, seed)
			seed = s
		}
	}
	if err := db.SetMeta("seed", strconv.FormatInt(seed, 10)); err != nil {
		return seed, err
	}
	if err := db.SetMeta("world_id", worldID); err != nil {
		return seed, err
	}

	prev, err := db.CatalogDigest("materials")
	if err != nil {
		return seed, err
	}
	if prev != "" && prev != cat.Digest {
		logger.Printf("material catalog changed since the archive was written (%s -> %s)", prev, cat.Digest)
	}
	return seed, db.UpsertCatalog("materials", cat.Digest, cat.Raw)
}
