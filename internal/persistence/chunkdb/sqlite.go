// Package chunkdb keeps evicted chunks and snapshot bookkeeping in a local
// SQLite file so the streaming window can revisit edited terrain.
package chunkdb

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"sandcraft.ai/internal/persistence/snapshot"
	"sandcraft.ai/internal/sim/cell"
	"sandcraft.ai/internal/sim/terrain/store"
)

var ErrDigestMismatch = errors.New("chunkdb: digest mismatch")

type DB struct {
	db *sql.DB

	enc *zstd.Encoder
	dec *zstd.Decoder

	once sync.Once
}

func OpenSQLite(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db, enc: enc, dec: dec}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			size INTEGER NOT NULL,
			digest TEXT NOT NULL,
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (cx, cy)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			frame INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			chunk_size INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			digest TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Close() error {
	var err error
	d.once.Do(func() {
		d.dec.Close()
		_ = d.enc.Close()
		err = d.db.Close()
	})
	return err
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// SaveChunk stores the chunk's cells, replacing any earlier copy.
func (d *DB) SaveChunk(ch *store.Chunk) error {
	if d == nil || ch == nil {
		return nil
	}
	sum := ch.Digest()
	blob := d.enc.EncodeAll(store.EncodeCells(ch.Cells), nil)
	_, err := d.db.Exec(
		`INSERT INTO chunks(cx, cy, size, digest, data, updated_at) VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(cx, cy) DO UPDATE SET size=excluded.size, digest=excluded.digest, data=excluded.data, updated_at=excluded.updated_at;`,
		ch.CX, ch.CY, ch.Size, hex.EncodeToString(sum[:]), blob, now(),
	)
	if err != nil {
		return fmt.Errorf("save chunk %d,%d: %w", ch.CX, ch.CY, err)
	}
	return nil
}

// LoadChunk returns the saved cells for (cx, cy). It reports false when the
// chunk was never saved.
func (d *DB) LoadChunk(cx, cy, size int) ([]cell.Cell, bool, error) {
	if d == nil {
		return nil, false, nil
	}
	var (
		gotSize int
		digest  string
		blob    []byte
	)
	err := d.db.QueryRow(`SELECT size, digest, data FROM chunks WHERE cx=? AND cy=?;`, cx, cy).Scan(&gotSize, &digest, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load chunk %d,%d: %w", cx, cy, err)
	}
	if gotSize != size {
		return nil, false, fmt.Errorf("load chunk %d,%d: stored size %d, want %d", cx, cy, gotSize, size)
	}
	raw, err := d.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, false, fmt.Errorf("load chunk %d,%d: %w", cx, cy, err)
	}
	cells, err := store.DecodeCells(raw, size*size)
	if err != nil {
		return nil, false, fmt.Errorf("load chunk %d,%d: %w", cx, cy, err)
	}
	sum := store.NewChunkWithCells(cx, cy, size, cells).Digest()
	if hex.EncodeToString(sum[:]) != digest {
		return nil, false, fmt.Errorf("load chunk %d,%d: %w", cx, cy, ErrDigestMismatch)
	}
	return cells, true, nil
}

func (d *DB) DeleteChunk(cx, cy int) error {
	_, err := d.db.Exec(`DELETE FROM chunks WHERE cx=? AND cy=?;`, cx, cy)
	return err
}

func (d *DB) Count() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM chunks;`).Scan(&n)
	return n, err
}

func (d *DB) SetMeta(key, value string) error {
	_, err := d.db.Exec(
		`INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
		key, value,
	)
	return err
}

// Meta returns "" for a missing key.
func (d *DB) Meta(key string) (string, error) {
	var v string
	err := d.db.QueryRow(`SELECT value FROM meta WHERE key=?;`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// UpsertCatalog records the raw catalog JSON a world was started with.
func (d *DB) UpsertCatalog(name, digest string, raw []byte) error {
	_, err := d.db.Exec(
		`INSERT INTO catalogs(name, digest, json, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET digest=excluded.digest, json=excluded.json, updated_at=excluded.updated_at;`,
		name, digest, string(raw), now(),
	)
	return err
}

func (d *DB) CatalogDigest(name string) (string, error) {
	var v string
	err := d.db.QueryRow(`SELECT digest FROM catalogs WHERE name=?;`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (d *DB) RecordSnapshot(path string, snap snapshot.SnapshotV1) error {
	if d == nil {
		return nil
	}
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO snapshots(frame, path, seed, chunk_size, chunks, digest, recorded_at) VALUES(?, ?, ?, ?, ?, ?, ?);`,
		int64(snap.Header.Frame), path, snap.Seed, snap.ChunkSize, len(snap.Chunks), snap.Digest, now(),
	)
	return err
}

type SnapshotRow struct {
	Frame  uint64
	Path   string
	Seed   int64
	Chunks int
	Digest string
}

// LatestSnapshot reports false when no snapshot was recorded.
func (d *DB) LatestSnapshot() (SnapshotRow, bool, error) {
	var (
		r     SnapshotRow
		frame int64
	)
	err := d.db.QueryRow(`SELECT frame, path, seed, chunks, digest FROM snapshots ORDER BY frame DESC LIMIT 1;`).
		Scan(&frame, &r.Path, &r.Seed, &r.Chunks, &r.Digest)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRow{}, false, nil
	}
	if err != nil {
		return SnapshotRow{}, false, err
	}
	r.Frame = uint64(frame)
	return r, true, nil
}
