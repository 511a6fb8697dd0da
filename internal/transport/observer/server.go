// Package observer streams activation state to debug viewers over
// websockets.
package observer

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sandcraft.ai/internal/observerproto"
	"sandcraft.ai/internal/sim/cell"
	"sandcraft.ai/internal/sim/encoding"
	"sandcraft.ai/internal/sim/terrain/store"
	"sandcraft.ai/internal/sim/world"
)

// Source is satisfied by *world.World.
type Source interface {
	View() *world.View
	ChunkCells(ctx context.Context, cx, cy int) ([]cell.Cell, bool, error)
}

type Config struct {
	// Interval is how often a session polls for a new frame.
	Interval    time.Duration
	Params      observerproto.WorldParams
	Materials   []string
	AllowRemote bool
}

type Server struct {
	src Source
	cfg Config
	log *log.Logger

	upgrader websocket.Upgrader
	sessions atomic.Int64
}

func NewServer(src Source, cfg Config, logger *log.Logger) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		src: src,
		cfg: cfg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Sessions reports the number of connected observers.
func (s *Server) Sessions() int { return int(s.sessions.Load()) }

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		v := s.src.View()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         v.WorldID,
			Frame:           v.Frame,
			WorldParams:     s.cfg.Params,
			Materials:       s.cfg.Materials,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// ChunkHandler serves the material layer of one loaded chunk.
func (s *Server) ChunkHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		q := r.URL.Query()
		cx, err1 := strconv.Atoi(q.Get("cx"))
		cy, err2 := strconv.Atoi(q.Get("cy"))
		if err1 != nil || err2 != nil {
			http.Error(rw, "need integer cx and cy", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		cells, ok, err := s.src.ChunkCells(ctx, cx, cy)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if !ok {
			http.Error(rw, "chunk not loaded", http.StatusNotFound)
			return
		}
		msg := observerproto.ChunkMsg{
			Type:            observerproto.TypeChunk,
			ProtocolVersion: observerproto.Version,
			Frame:           s.src.View().Frame,
			CX:              cx,
			CY:              cy,
			Size:            s.cfg.Params.ChunkSize,
			Materials:       encoding.EncodeRLE(encoding.Materials(cells)),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(msg)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := uuid.NewString()
		v := s.src.View()
		hello := observerproto.HelloMsg{
			Type:            observerproto.TypeHello,
			ProtocolVersion: observerproto.Version,
			SessionID:       sid,
			WorldID:         v.WorldID,
			Frame:           v.Frame,
			WorldParams:     s.cfg.Params,
		}
		if err := writeJSON(conn, hello); err != nil {
			return
		}

		s.sessions.Add(1)
		defer s.sessions.Add(-1)
		s.log.Printf("observer %s connected from %s", sid, r.RemoteAddr)

		var settings atomic.Pointer[observerproto.SubscribeMsg]
		settings.Store(&sub)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			writeErr <- s.push(ctx, conn, &settings)
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if next, ok := decodeSubscribe(msg); ok {
				settings.Store(&next)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.log.Printf("observer %s disconnected", sid)
	}
}

// push sends an ACTIVATION message for every newly published frame.
func (s *Server) push(ctx context.Context, conn *websocket.Conn, settings *atomic.Pointer[observerproto.SubscribeMsg]) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var last *world.View
	for {
		if v := s.src.View(); v != nil && v != last {
			last = v
			if err := writeJSON(conn, Activation(v, *settings.Load())); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Activation converts a world view into the wire message, capping each
// coordinate list at sub.MaxChunks.
func Activation(v *world.View, sub observerproto.SubscribeMsg) observerproto.ActivationMsg {
	m := observerproto.ActivationMsg{
		Type:            observerproto.TypeActivation,
		ProtocolVersion: observerproto.Version,
		Frame:           v.Frame,
		TimeOfDay:       v.TimeOfDay,
		DayCount:        v.DayCount,
		Raining:         v.Raining,
		ActiveRadius:    v.ActiveRadius,
		RenderDistance:  v.RenderDistance,
		Dirty:           v.Dirty,
		Tree: observerproto.TreeInfo{
			Nodes:    v.Tree.Nodes,
			Items:    v.Tree.Items,
			MaxDepth: v.Tree.MaxDepth,
		},
		Loaded:  v.Last.Streaming.Loaded,
		Pending: v.Last.Streaming.Pending,
		Changed: v.Last.Changed,
		Micros:  v.Last.Micros,
	}
	if v.Player != nil {
		m.Player = &[2]int{v.Player.CX, v.Player.CY}
	}
	var cut bool
	m.Simulating, cut = coords(v.Simulating, sub.MaxChunks)
	m.Truncated = cut
	if sub.IncludeActive {
		m.Active, cut = coords(v.Active, sub.MaxChunks)
		m.Truncated = m.Truncated || cut
	}
	return m
}

func coords(keys []store.ChunkKey, limit int) ([][2]int, bool) {
	cut := false
	if len(keys) > limit {
		keys = keys[:limit]
		cut = true
	}
	out := make([][2]int, len(keys))
	for i, k := range keys {
		out[i] = [2]int{k.CX, k.CY}
	}
	return out, cut
}

func decodeSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	normalizeSubscribe(&sub)
	return sub, true
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.MaxChunks <= 0 {
		sub.MaxChunks = 1024
	}
	if sub.MaxChunks > 16384 {
		sub.MaxChunks = 16384
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (s *Server) allowed(r *http.Request) bool {
	return s.cfg.AllowRemote || isLoopbackRemote(r.RemoteAddr)
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
