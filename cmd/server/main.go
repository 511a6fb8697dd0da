package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"sandcraft.ai/internal/observerproto"
	"sandcraft.ai/internal/persistence/chunkdb"
	persistlog "sandcraft.ai/internal/persistence/log"
	"sandcraft.ai/internal/persistence/snapshot"
	"sandcraft.ai/internal/sim/catalogs"
	"sandcraft.ai/internal/sim/terrain/gen"
	"sandcraft.ai/internal/sim/tuning"
	"sandcraft.ai/internal/sim/world"
	"sandcraft.ai/internal/transport/observer"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		worldID     = flag.String("world", "world_1", "world id")
		seed        = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		configDir   = flag.String("configs", "./configs", "config directory")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB   = flag.Bool("disable_db", false, "disable the chunk archive (evicted edits are lost)")
		digestEvery = flag.Int("digest_every", 60, "write the world digest to the frame log every N frames (0 disables)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		camX  = flag.Float64("cam_x", 0, "camera start x (cells)")
		camY  = flag.Float64("cam_y", 64, "camera start y (cells, grows downward)")
		camVX = flag.Float64("cam_vx", 0, "camera x velocity (cells/frame)")
		camVY = flag.Float64("cam_vy", 0, "camera y velocity (cells/frame)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cat, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	snapDir := filepath.Join(worldDir, "snapshots")
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(snapDir)
	}

	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !errors.Is(tuneErr, os.ErrNotExist) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	db, err := openArchive(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open chunk archive: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	var snap *snapshot.SnapshotV1
	worldSeed := *seed
	if snapshotToLoad != "" {
		s, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if s.Header.WorldID != "" && s.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, s.Header.WorldID)
		}
		snap = &s
		worldSeed = s.Seed
		tune.ChunkSize = s.ChunkSize
	}
	worldSeed, err = reconcileArchive(db, *worldID, worldSeed, cat, logger)
	if err != nil {
		logger.Fatalf("chunk archive: %v", err)
	}

	cfg := world.ConfigFromTuning(*worldID, worldSeed, tune)
	cfg.DigestEveryFrames = *digestEvery
	g := gen.New(worldSeed, cfg.ChunkSize, gen.ParamsFromTuning(tune.WorldGen), cat.Materials)
	opts := []world.Option{world.WithLogger(logger)}
	if db != nil {
		opts = append(opts, world.WithArchive(db))
	}
	w, err := world.New(cfg, cat.Materials, g, opts...)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if snap != nil {
		if err := w.ImportSnapshot(*snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s frame=%d", filepath.Base(snapshotToLoad), w.Frame())
	} else {
		logger.Printf("fresh world id=%s seed=%d chunk_size=%d", *worldID, worldSeed, cfg.ChunkSize)
	}

	frameLog := persistlog.NewFrameLogger(worldDir)
	eventLog := persistlog.NewEventLogger(worldDir)
	defer frameLog.Close()
	defer eventLog.Close()
	w.SetFrameLogger(frameLog)
	w.SetEventLogger(eventLog)

	ctx, cancel := signalContext()
	defer cancel()

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-snapCh:
				writeSnapshot(snapDir, s, db, logger)
			}
		}
	}()

	cam := &world.PathCamera{X: *camX, Y: *camY, VX: *camVX, VY: *camVY}
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := w.Run(ctx, cam); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
			cancel()
		}
	}()

	names := make([]string, 0, cat.Materials.Len())
	for id := 0; id < cat.Materials.Len(); id++ {
		names = append(names, cat.Materials.Name(uint16(id)))
	}
	obsSrv := observer.NewServer(w, observer.Config{
		Interval: time.Second / time.Duration(max(1, min(cfg.TickRateHz, 30))),
		Params: observerproto.WorldParams{
			TickRateHz: cfg.TickRateHz,
			ChunkSize:  cfg.ChunkSize,
			Seed:       cfg.Seed,
			DayFrames:  cfg.DayFrames,
		},
		Materials: names,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, *worldID, w.View(), obsSrv.Sessions())
	})
	mux.HandleFunc("/v1/observe", obsSrv.WSHandler())
	mux.HandleFunc("/v1/observe/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observe/chunk", obsSrv.ChunkHandler())

	if envBool("SC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(w.View())
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			frame, err := w.RequestSnapshot(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "frame": frame, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "frame": frame})
		})
		mux.HandleFunc("/admin/v1/weather", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			override, err := parseRainOverride(r.URL.Query().Get("rain"))
			if err != nil {
				http.Error(rw, err.Error(), http.StatusBadRequest)
				return
			}
			if err := w.Submit(r.Context(), func(w *world.World) { w.SetRaining(override) }); err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("/admin/v1/radius", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			active, err1 := strconv.Atoi(r.URL.Query().Get("active"))
			render, err2 := strconv.Atoi(r.URL.Query().Get("render"))
			if err1 != nil && err2 != nil {
				http.Error(rw, "need active= or render=", http.StatusBadRequest)
				return
			}
			err := w.Submit(r.Context(), func(w *world.World) {
				if err1 == nil && active >= 0 {
					w.SetActiveRadius(active)
				}
				if err2 == nil && render >= 0 {
					w.SetRenderDistance(render)
				}
			})
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("/admin/v1/load", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			cx, err1 := strconv.Atoi(r.URL.Query().Get("cx"))
			cy, err2 := strconv.Atoi(r.URL.Query().Get("cy"))
			if err1 != nil || err2 != nil {
				http.Error(rw, "need cx= and cy=", http.StatusBadRequest)
				return
			}
			var (
				loaded  bool
				loadErr error
			)
			done := make(chan struct{})
			err := w.Submit(r.Context(), func(w *world.World) {
				loaded, loadErr = w.ForceLoad(cx, cy)
				close(done)
			})
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			select {
			case <-done:
			case <-r.Context().Done():
				http.Error(rw, r.Context().Err().Error(), http.StatusServiceUnavailable)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			if loadErr != nil {
				rw.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": loadErr.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "loaded": loaded})
		})
	} else {
		logger.Printf("admin endpoints disabled (SC_ENABLE_ADMIN_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The loop has returned, so the world is safe to read from here.
	cancel()
	<-runDone
	<-writerDone
	writeSnapshot(snapDir, w.ExportSnapshot(), db, logger)
	if err := w.FlushArchive(); err != nil {
		logger.Printf("flush archive: %v", err)
	}
	logger.Printf("stopped at frame=%d", w.Frame())
}

func writeSnapshot(dir string, s snapshot.SnapshotV1, db *chunkdb.DB, logger *log.Logger) {
	path := snapshot.PathFor(dir, s.Header.Frame)
	if err := snapshot.WriteSnapshot(path, s); err != nil {
		logger.Printf("snapshot write: %v", err)
		return
	}
	size := "?"
	if fi, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	logger.Printf("snapshot frame=%d chunks=%d size=%s", s.Header.Frame, len(s.Chunks), size)
	if db != nil {
		if err := db.RecordSnapshot(path, s); err != nil {
			logger.Printf("record snapshot: %v", err)
		}
	}
}

func writeMetrics(rw http.ResponseWriter, worldID string, v *world.View, observers int) {
	fmt.Fprintf(rw, "# HELP sandcraft_world_frame Current world frame.\n")
	fmt.Fprintf(rw, "# TYPE sandcraft_world_frame gauge\n")
	fmt.Fprintf(rw, "sandcraft_world_frame{world=%q} %d\n", worldID, v.Frame)

	fmt.Fprintf(rw, "# HELP sandcraft_world_chunks Chunk count by activation state.\n")
	fmt.Fprintf(rw, "# TYPE sandcraft_world_chunks gauge\n")
	fmt.Fprintf(rw, "sandcraft_world_chunks{world=%q,state=%q} %d\n", worldID, "simulating", len(v.Simulating))
	fmt.Fprintf(rw, "sandcraft_world_chunks{world=%q,state=%q} %d\n", worldID, "active", len(v.Active))
	fmt.Fprintf(rw, "sandcraft_world_chunks{world=%q,state=%q} %d\n", worldID, "dirty", v.Dirty)

	fmt.Fprintf(rw, "# HELP sandcraft_streaming_pending Chunks queued for load.\n")
	fmt.Fprintf(rw, "# TYPE sandcraft_streaming_pending gauge\n")
	fmt.Fprintf(rw, "sandcraft_streaming_pending{world=%q} %d\n", worldID, v.Last.Streaming.Pending)

	fmt.Fprintf(rw, "# HELP sandcraft_world_step_us Last frame step duration in microseconds.\n")
	fmt.Fprintf(rw, "# TYPE sandcraft_world_step_us gauge\n")
	fmt.Fprintf(rw, "sandcraft_world_step_us{world=%q} %d\n", worldID, v.Last.Micros)

	fmt.Fprintf(rw, "# HELP sandcraft_observers Connected observer sessions.\n")
	fmt.Fprintf(rw, "# TYPE sandcraft_observers gauge\n")
	fmt.Fprintf(rw, "sandcraft_observers{world=%q} %d\n", worldID, observers)
}

// parseRainOverride accepts "on", "off" or "auto".
func parseRainOverride(v string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1":
		b := true
		return &b, nil
	case "off", "false", "0":
		b := false
		return &b, nil
	case "auto", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("bad rain value %q", v)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
