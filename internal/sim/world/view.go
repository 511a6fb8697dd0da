package world

import (
	"sandcraft.ai/internal/sim/activation"
	"sandcraft.ai/internal/sim/terrain/store"
)

// View is an immutable per-frame summary that other goroutines may read.
type View struct {
	WorldID        string               `json:"world_id"`
	Frame          uint64               `json:"frame"`
	TimeOfDay      float64              `json:"time_of_day"`
	DayCount       int                  `json:"day_count"`
	Raining        bool                 `json:"raining"`
	Player         *store.ChunkKey      `json:"player,omitempty"`
	ActiveRadius   int                  `json:"active_radius"`
	RenderDistance int                  `json:"render_distance"`
	Simulating     []store.ChunkKey     `json:"simulating"`
	Active         []store.ChunkKey     `json:"active"`
	Dirty          int                  `json:"dirty"`
	Tree           activation.TreeStats `json:"tree"`
	Last           FrameStats           `json:"last"`
}

// View returns the most recently published frame summary.
func (w *World) View() *View { return w.view.Load() }

func (w *World) publish(last FrameStats) {
	v := &View{
		WorldID:        w.cfg.ID,
		Frame:          w.frame,
		TimeOfDay:      w.TimeOfDay(),
		DayCount:       w.DayCount(),
		Raining:        w.Raining(),
		ActiveRadius:   w.index.ActiveRadius(),
		RenderDistance: w.stream.RenderDistance(),
		Simulating:     w.index.Simulating(),
		Active:         w.index.Active(),
		Dirty:          w.store.DirtyCount(),
		Tree:           w.index.TreeStats(),
		Last:           last,
	}
	if p, ok := w.index.PlayerChunk(); ok {
		v.Player = &p
	}
	w.view.Store(v)
}
