package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"sandcraft.ai/internal/persistence/snapshot"
	"sandcraft.ai/internal/sim/activation"
	"sandcraft.ai/internal/sim/cell"
	"sandcraft.ai/internal/sim/streaming"
	"sandcraft.ai/internal/sim/terrain/store"
	"sandcraft.ai/internal/sim/transition"
)

type FrameLogger interface {
	WriteFrame(entry FrameLogEntry) error
}

type EventLogger interface {
	WriteEvent(entry EventEntry) error
}

type FrameLogEntry struct {
	Frame     uint64  `json:"frame"`
	CamX      float64 `json:"cam_x"`
	CamY      float64 `json:"cam_y"`
	Simulated int     `json:"simulated"`
	Changed   int     `json:"changed"`
	Loaded    int     `json:"loaded"`
	Pending   int     `json:"pending"`
	Raining   bool    `json:"raining"`
	TimeOfDay float64 `json:"time_of_day"`
	Micros    int64   `json:"micros"`
	// Digest is set every DigestEveryFrames frames.
	Digest string `json:"digest,omitempty"`
}

type EventEntry struct {
	Frame uint64         `json:"frame"`
	Kind  string         `json:"kind"`
	Data  map[string]any `json:"data,omitempty"`
}

// FrameStats summarises one Step.
type FrameStats struct {
	Frame        uint64          `json:"frame"`
	Simulated    int             `json:"simulated"`
	Changed      int             `json:"changed"`
	Raining      bool            `json:"raining"`
	TimeOfDay    float64         `json:"time_of_day"`
	Streaming    streaming.Stats `json:"streaming"`
	Reclassified bool            `json:"reclassified"`
	Micros       int64           `json:"micros"`
}

// World owns the chunk store and runs the frame pipeline. Methods other
// than View, RequestSnapshot, Submit and Stop must be called from the
// goroutine driving Step or Run.
type World struct {
	cfg  Config
	mats *cell.Materials
	log  *log.Logger

	store  *store.Store
	stream *streaming.Manager
	index  *activation.Index
	engine *transition.Engine

	clock   Clock
	weather Weather
	frame   uint64

	frameLogger FrameLogger
	eventLogger EventLogger

	snapshotSink chan<- snapshot.SnapshotV1
	admin        chan snapshotReq
	control      chan func(*World)
	stop         chan struct{}
	stopOnce     sync.Once

	view atomic.Pointer[View]
}

type Option func(*worldOptions)

type worldOptions struct {
	log     *log.Logger
	archive streaming.Archive
}

func WithLogger(l *log.Logger) Option { return func(o *worldOptions) { o.log = l } }

func WithArchive(a streaming.Archive) Option { return func(o *worldOptions) { o.archive = a } }

func New(cfg Config, mats *cell.Materials, gen streaming.Generator, opts ...Option) (*World, error) {
	cfg = cfg.withDefaults()
	if mats == nil {
		return nil, fmt.Errorf("world %s: nil material table", cfg.ID)
	}
	if gen == nil {
		return nil, fmt.Errorf("world %s: nil generator", cfg.ID)
	}
	o := worldOptions{log: log.New(io.Discard, "", 0)}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = log.New(io.Discard, "", 0)
	}

	s := store.NewStore(cfg.ChunkSize)
	sopts := []streaming.Option{streaming.WithLogger(o.log)}
	if o.archive != nil {
		sopts = append(sopts, streaming.WithArchive(o.archive))
	}
	w := &World{
		cfg:   cfg,
		mats:  mats,
		log:   o.log,
		store: s,
		stream: streaming.New(s, gen, streaming.Config{
			RenderDistance:  cfg.RenderDistance,
			UnloadDistance:  cfg.UnloadDistance,
			MaxGenPerUpdate: cfg.MaxGenPerUpdate,
		}, sopts...),
		index:   activation.New(cfg.ChunkSize, cfg.ActiveRadius),
		engine:  transition.New(mats, cfg.ChunkSize, cfg.Workers),
		clock:   Clock{DayFrames: cfg.DayFrames, Start: cfg.StartTimeOfDay},
		weather: Weather{Seed: cfg.Seed, PeriodFrames: cfg.WeatherPeriodFrames, RainPermille: cfg.RainPermille},
		admin:   make(chan snapshotReq, 8),
		control: make(chan func(*World), 64),
		stop:    make(chan struct{}),
	}
	w.publish(FrameStats{})
	return w, nil
}

func (w *World) ID() string                 { return w.cfg.ID }
func (w *World) Config() Config             { return w.cfg }
func (w *World) Frame() uint64              { return w.frame }
func (w *World) Materials() *cell.Materials { return w.mats }
func (w *World) Store() *store.Store        { return w.store }

func (w *World) SetFrameLogger(l FrameLogger)                  { w.frameLogger = l }
func (w *World) SetEventLogger(l EventLogger)                  { w.eventLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) TimeOfDay() float64 { return w.clock.TimeOfDay(w.frame) }
func (w *World) DayCount() int      { return w.clock.DayCount(w.frame) }
func (w *World) Raining() bool      { return w.weather.Raining(w.frame) }

// SetRaining pins the weather; nil restores the seeded schedule.
func (w *World) SetRaining(v *bool) {
	before := w.Raining()
	w.weather.SetOverride(v)
	if after := w.Raining(); after != before {
		w.event("WEATHER", map[string]any{"raining": after, "override": v != nil})
	}
}

func (w *World) SetActiveRadius(r int) {
	if w.index.SetActiveRadius(r) {
		w.cfg.ActiveRadius = w.index.ActiveRadius()
	}
}

func (w *World) SetRenderDistance(r int) {
	w.stream.SetRenderDistance(r)
	w.cfg.RenderDistance = w.stream.RenderDistance()
}

// ForceLoad loads one chunk outside the streaming schedule and registers it
// with the activation index.
func (w *World) ForceLoad(cx, cy int) (bool, error) {
	loaded, err := w.stream.ForceLoad(cx, cy)
	if loaded {
		w.index.Sync(w.store)
	}
	return loaded, err
}

func (w *World) Cell(x, y int) (cell.Cell, bool) { return w.store.Get(x, y) }

func (w *World) Chunk(cx, cy int) (*store.Chunk, bool) { return w.store.Chunk(cx, cy) }

func (w *World) DirtyChunks() []*store.Chunk { return w.store.DirtyChunks() }

func (w *World) ClearDirty(keys ...store.ChunkKey) { w.store.ClearDirty(keys...) }

func (w *World) ActivationState(cx, cy int) activation.State { return w.index.State(cx, cy) }

func (w *World) SimulatingChunks() []store.ChunkKey { return w.index.Simulating() }

func (w *World) ActiveChunks() []store.ChunkKey { return w.index.Active() }

func (w *World) QueryRegion(minK, maxK store.ChunkKey) []activation.Record {
	return w.index.QueryRegion(minK, maxK)
}

func (w *World) StreamingStats() streaming.Stats { return w.stream.Stats() }

// FlushArchive writes every modified chunk to the archive, if any.
func (w *World) FlushArchive() error { return w.stream.Flush() }

// Digest hashes every loaded chunk in coordinate order.
func (w *World) Digest() string {
	h := sha256.New()
	var tmp [16]byte
	for _, k := range w.store.LoadedChunkKeys() {
		ch, _ := w.store.Chunk(k.CX, k.CY)
		binary.LittleEndian.PutUint64(tmp[0:8], uint64(int64(k.CX)))
		binary.LittleEndian.PutUint64(tmp[8:16], uint64(int64(k.CY)))
		h.Write(tmp[:])
		d := ch.Digest()
		h.Write(d[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) event(kind string, data map[string]any) {
	if w.eventLogger == nil {
		return
	}
	if err := w.eventLogger.WriteEvent(EventEntry{Frame: w.frame, Kind: kind, Data: data}); err != nil {
		w.log.Printf("event log: %v", err)
	}
}
