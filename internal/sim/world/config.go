package world

import (
	"sandcraft.ai/internal/sim/transition"
	"sandcraft.ai/internal/sim/tuning"
)

type Config struct {
	ID   string
	Seed int64

	ChunkSize       int
	RenderDistance  int
	UnloadDistance  int
	ActiveRadius    int
	TickRateHz      int
	Workers         int
	ChunkWorkers    int
	MaxGenPerUpdate int

	SnapshotEveryFrames int
	// DigestEveryFrames adds the world digest to every Nth frame log entry.
	DigestEveryFrames int

	Env transition.EnvRules

	DayFrames           int
	StartTimeOfDay      float64
	WeatherPeriodFrames int
	RainPermille        int
}

// ConfigFromTuning maps a tuning file onto a world config.
func ConfigFromTuning(id string, seed int64, t tuning.Tuning) Config {
	e := t.Environment
	return Config{
		ID:                  id,
		Seed:                seed,
		ChunkSize:           t.ChunkSize,
		RenderDistance:      t.RenderDistance,
		UnloadDistance:      t.UnloadDistance,
		ActiveRadius:        t.ActiveRadius,
		TickRateHz:          t.TickRateHz,
		Workers:             t.Workers,
		ChunkWorkers:        t.ChunkWorkers,
		MaxGenPerUpdate:     t.MaxGenPerUpdate,
		SnapshotEveryFrames: t.SnapshotEveryFrames,
		Env: transition.EnvRules{
			RainRows:       e.RainRows,
			RainChance:     e.RainChance,
			GrowthRate:     e.GrowthRate,
			GrowthChance:   e.GrassGrowthChance,
			DecayChance:    e.GrassDecayChance,
			SpreadChance:   e.GrassSpreadChance,
			NewGrassGrowth: uint8(e.NewGrassGrowth),
		},
		DayFrames:           e.DayFrames,
		StartTimeOfDay:      e.StartTimeOfDay,
		WeatherPeriodFrames: e.WeatherPeriodFrames,
		RainPermille:        e.RainPermille,
	}
}

func (c Config) withDefaults() Config {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 256
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 60
	}
	if c.DayFrames <= 0 {
		c.DayFrames = 72000
	}
	if c.Env == (transition.EnvRules{}) {
		c.Env = transition.DefaultEnvRules()
	}
	return c
}
