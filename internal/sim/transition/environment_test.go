package transition

import (
	"testing"

	"sandcraft.ai/internal/sim/cell"
)

func TestDayFactor(t *testing.T) {
	if f := DayFactor(0); f > 1e-9 {
		t.Fatalf("midnight factor=%v", f)
	}
	if f := DayFactor(0.5); f < 1-1e-9 {
		t.Fatalf("noon factor=%v", f)
	}
	if f := DayFactor(0.25); f < 0.49 || f > 0.51 {
		t.Fatalf("morning factor=%v", f)
	}
}

func TestGrassWithoutWaterOrLightBecomesDirt(t *testing.T) {
	e := newEngine(t, 1)
	mats := cell.DefaultMaterials()
	src := make([]cell.Cell, testSize*testSize)
	dst := make([]cell.Cell, testSize*testSize)
	put(src, 3, 3, mats.Cell(cell.Stone))
	put(src, 3, 4, mats.Cell(cell.Grass).WithGrowth(0).WithBiome(2))

	e.EnvironmentPass(src, dst, quietParams())
	got := get(dst, 3, 4)
	if got.Material != cell.Dirt || !got.IsSolid() || got.Biome() != 2 {
		t.Fatalf("expected solid dirt keeping biome, got %+v", got)
	}
}

func TestGrassGrowthSaturates(t *testing.T) {
	e := newEngine(t, 1)
	mats := cell.DefaultMaterials()
	src := make([]cell.Cell, testSize*testSize)
	dst := make([]cell.Cell, testSize*testSize)
	put(src, 3, 4, mats.Cell(cell.Grass).WithGrowth(255))
	put(src, 4, 4, mats.Cell(cell.Water))
	put(src, 1, 4, mats.Cell(cell.Grass).WithGrowth(10))
	put(src, 0, 5, mats.Cell(cell.Water))

	p := quietParams()
	p.Env.GrowthChance = 1
	for f := uint64(0); f < 20; f++ {
		p.Frame = f
		e.EnvironmentPass(src, dst, p)
		if g := get(dst, 3, 4).Growth(); g != 255 {
			t.Fatalf("frame %d: growth=%d want 255", f, g)
		}
		if g := get(dst, 1, 4).Growth(); g != uint8(11+f) {
			t.Fatalf("frame %d: growth=%d want %d", f, g, 11+f)
		}
		src, dst = dst, src
	}
}

func TestGrassDoesNotGrowAtMidnight(t *testing.T) {
	e := newEngine(t, 1)
	mats := cell.DefaultMaterials()
	src := make([]cell.Cell, testSize*testSize)
	dst := make([]cell.Cell, testSize*testSize)
	put(src, 3, 4, mats.Cell(cell.Grass).WithGrowth(10))
	put(src, 4, 4, mats.Cell(cell.Water))

	p := quietParams()
	p.TimeOfDay = 0
	p.Env.GrowthChance = 1
	e.EnvironmentPass(src, dst, p)
	if g := get(dst, 3, 4).Growth(); g != 10 {
		t.Fatalf("growth=%d want 10", g)
	}
}

func TestGrassDecayReachesDirt(t *testing.T) {
	e := newEngine(t, 1)
	mats := cell.DefaultMaterials()
	src := make([]cell.Cell, testSize*testSize)
	dst := make([]cell.Cell, testSize*testSize)
	put(src, 3, 3, mats.Cell(cell.Stone))
	put(src, 3, 4, mats.Cell(cell.Grass).WithGrowth(3))

	p := quietParams()
	p.Env.DecayChance = 1
	for _, want := range []uint8{2, 1} {
		e.EnvironmentPass(src, dst, p)
		if got := get(dst, 3, 4); got.Material != cell.Grass || got.Growth() != want {
			t.Fatalf("got %+v want grass growth %d", got, want)
		}
		src, dst = dst, src
	}
	e.EnvironmentPass(src, dst, p)
	if got := get(dst, 3, 4); got.Material != cell.Dirt {
		t.Fatalf("expected dirt, got %+v", got)
	}
}

func TestGrassWithOnlyOneResourceIsStable(t *testing.T) {
	e := newEngine(t, 1)
	mats := cell.DefaultMaterials()
	src := make([]cell.Cell, testSize*testSize)
	dst := make([]cell.Cell, testSize*testSize)
	// Light but no water.
	put(src, 3, 4, mats.Cell(cell.Grass).WithGrowth(0))
	p := quietParams()
	p.Env.DecayChance = 1
	p.Env.GrowthChance = 1
	e.EnvironmentPass(src, dst, p)
	if got := get(dst, 3, 4); got != get(src, 3, 4) {
		t.Fatalf("grass changed: %+v", got)
	}
}

func TestDirtSpreadsNextToGrass(t *testing.T) {
	e := newEngine(t, 1)
	mats := cell.DefaultMaterials()
	src := make([]cell.Cell, testSize*testSize)
	dst := make([]cell.Cell, testSize*testSize)
	put(src, 3, 4, mats.Cell(cell.Dirt).WithBiome(5))
	put(src, 4, 4, mats.Cell(cell.Grass).WithGrowth(200))
	put(src, 6, 4, mats.Cell(cell.Dirt))
	put(src, 6, 3, mats.Cell(cell.Stone))
	put(src, 7, 4, mats.Cell(cell.Grass))

	p := quietParams()
	p.Env.SpreadChance = 1
	e.EnvironmentPass(src, dst, p)
	got := get(dst, 3, 4)
	if got.Material != cell.Grass || got.Growth() != p.Env.NewGrassGrowth || got.Biome() != 5 {
		t.Fatalf("expected new grass, got %+v", got)
	}
	if get(dst, 6, 4).Material != cell.Dirt {
		t.Fatalf("covered dirt should not turn into grass")
	}
}

func TestRainFillsTopRows(t *testing.T) {
	e := newEngine(t, 1)
	src := make([]cell.Cell, testSize*testSize)
	dst := make([]cell.Cell, testSize*testSize)
	p := quietParams()
	p.Raining = true
	p.Env.RainRows = 2
	p.Env.RainChance = 1
	e.EnvironmentPass(src, dst, p)
	for y := 0; y < testSize; y++ {
		for x := 0; x < testSize; x++ {
			c := get(dst, x, y)
			if y < 2 && (c.Material != cell.Water || !c.IsLiquid()) {
				t.Fatalf("(%d,%d): expected water, got %+v", x, y, c)
			}
			if y >= 2 && !c.IsEmpty() {
				t.Fatalf("(%d,%d): expected air, got %+v", x, y, c)
			}
		}
	}
}

func TestRainHydratesNeighbours(t *testing.T) {
	e := newEngine(t, 1)
	mats := cell.DefaultMaterials()
	src := make([]cell.Cell, testSize*testSize)
	dst := make([]cell.Cell, testSize*testSize)
	put(src, 3, 5, mats.Cell(cell.Water))
	put(src, 4, 6, mats.Cell(cell.Stone))
	put(src, 0, 0, mats.Cell(cell.Stone))

	p := quietParams()
	e.EnvironmentPass(src, dst, p)
	if get(dst, 4, 6).Hydrated() {
		t.Fatalf("hydrated without rain")
	}
	p.Raining = true
	e.EnvironmentPass(src, dst, p)
	if !get(dst, 4, 6).Hydrated() {
		t.Fatalf("stone next to water not hydrated")
	}
	if get(dst, 0, 0).Hydrated() || get(dst, 3, 5).Hydrated() {
		t.Fatalf("unexpected hydration")
	}
}

func TestEnvironmentPassDeterministic(t *testing.T) {
	e := newEngine(t, 2)
	mats := cell.DefaultMaterials()
	src := make([]cell.Cell, testSize*testSize)
	for x := 0; x < testSize; x++ {
		put(src, x, 5, mats.Cell(cell.Dirt))
		if x%3 == 0 {
			put(src, x, 5, mats.Cell(cell.Grass).WithGrowth(uint8(x)))
		}
		put(src, x, 6, mats.Cell(cell.Water))
	}
	a := make([]cell.Cell, len(src))
	b := make([]cell.Cell, len(src))
	p := quietParams()
	p.Raining = true
	p.Env.RainChance = 0.3
	p.Env.SpreadChance = 0.3
	p.Frame = 77
	e.EnvironmentPass(src, a, p)
	e.EnvironmentPass(src, b, p)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("cell %d differs", i)
		}
	}
}
