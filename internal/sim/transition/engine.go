// Package transition implements the per-frame cell rules. A pass reads one
// buffer and writes another; every output index is computed from the input
// alone, so rows can be split across workers without locking.
package transition

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"sandcraft.ai/internal/sim/cell"
	"sandcraft.ai/internal/sim/mathx"
)

// Params carries the per-frame inputs of a pass.
type Params struct {
	Seed  int64
	Frame uint64

	// World coordinates of the tile's top-left cell. Rolls are keyed on
	// world positions so neighbouring chunks do not share a pattern.
	OriginX int
	OriginY int

	Raining   bool
	TimeOfDay float64
	Env       EnvRules
}

type EnvRules struct {
	RainRows   int
	RainChance float64

	GrowthRate     float64
	GrowthChance   float64
	DecayChance    float64
	SpreadChance   float64
	NewGrassGrowth uint8
}

func DefaultEnvRules() EnvRules {
	return EnvRules{
		RainRows:       4,
		RainChance:     0.002,
		GrowthRate:     1,
		GrowthChance:   0.05,
		DecayChance:    0.02,
		SpreadChance:   0.01,
		NewGrassGrowth: 32,
	}
}

type Engine struct {
	materials *cell.Materials
	size      int
	workers   int
}

// New returns an engine for size x size tiles. workers <= 0 uses GOMAXPROCS.
func New(materials *cell.Materials, size, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > size {
		workers = size
	}
	if workers < 1 {
		workers = 1
	}
	return &Engine{materials: materials, size: size, workers: workers}
}

func (e *Engine) Size() int    { return e.size }
func (e *Engine) Workers() int { return e.workers }

// Step advances one frame: physics from front into back, then environment
// from back into front. On return front holds the new frame and back is
// scratch. It reports whether any cell changed.
func (e *Engine) Step(front, back []cell.Cell, p Params) bool {
	moved := e.PhysicsPass(front, back, p)
	grew := e.EnvironmentPass(back, front, p)
	return moved || grew
}

func (e *Engine) PhysicsPass(src, dst []cell.Cell, p Params) bool {
	t := e.tile(src, dst, p)
	return e.rows(func(y0, y1 int) bool {
		changed := false
		for y := y0; y < y1; y++ {
			row := y * t.n
			for x := 0; x < t.n; x++ {
				out := t.physics(x, y)
				if out != src[row+x] {
					changed = true
				}
				dst[row+x] = out
			}
		}
		return changed
	})
}

func (e *Engine) EnvironmentPass(src, dst []cell.Cell, p Params) bool {
	t := e.tile(src, dst, p)
	return e.rows(func(y0, y1 int) bool {
		changed := false
		for y := y0; y < y1; y++ {
			row := y * t.n
			for x := 0; x < t.n; x++ {
				out := t.environment(x, y)
				if out != src[row+x] {
					changed = true
				}
				dst[row+x] = out
			}
		}
		return changed
	})
}

func (e *Engine) tile(src, dst []cell.Cell, p Params) *tile {
	want := e.size * e.size
	if len(src) != want || len(dst) != want {
		panic(fmt.Sprintf("transition: buffer length mismatch: src=%d dst=%d want %d", len(src), len(dst), want))
	}
	return &tile{src: src, n: e.size, mats: e.materials, p: p}
}

// rows splits [0, size) into contiguous bands, one per worker.
func (e *Engine) rows(fn func(y0, y1 int) bool) bool {
	if e.workers <= 1 {
		return fn(0, e.size)
	}
	band := (e.size + e.workers - 1) / e.workers
	changed := make([]bool, e.workers)
	var g errgroup.Group
	for i := 0; i < e.workers; i++ {
		y0 := i * band
		y1 := min(y0+band, e.size)
		if y0 >= y1 {
			break
		}
		i := i
		g.Go(func() error {
			changed[i] = fn(y0, y1)
			return nil
		})
	}
	_ = g.Wait()
	for _, c := range changed {
		if c {
			return true
		}
	}
	return false
}

const (
	saltLiquid uint64 = iota + 1
	saltContest
	saltRain
	saltGrow
	saltDecay
	saltSpread
)

// Roll is the deterministic per-cell random source.
func Roll(seed int64, frame uint64, x, y int, salt uint64) uint64 {
	return mathx.HashFrame(int64(uint64(seed)^(salt*0x632be59bd9b4e019)), frame, x, y)
}

type tile struct {
	src  []cell.Cell
	n    int
	mats *cell.Materials
	p    Params
}

// at returns air outside the tile.
func (t *tile) at(x, y int) cell.Cell {
	if x < 0 || y < 0 || x >= t.n || y >= t.n {
		return cell.Empty
	}
	return t.src[y*t.n+x]
}

func (t *tile) density(c cell.Cell) uint16 {
	return t.mats.Get(c.Material).Density
}

func (t *tile) roll(x, y int, salt uint64) uint64 {
	return Roll(t.p.Seed, t.p.Frame, t.p.OriginX+x, t.p.OriginY+y, salt)
}

func (t *tile) chance(x, y int, salt uint64) float64 {
	return mathx.Unit(t.roll(x, y, salt))
}
