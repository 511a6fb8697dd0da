package gen

import (
	"testing"

	"sandcraft.ai/internal/sim/cell"
	"sandcraft.ai/internal/sim/tuning"
)

func newGen(seed int64) *Generator {
	return New(seed, 64, DefaultParams(), cell.DefaultMaterials())
}

func TestGenerateChunkDeterministic(t *testing.T) {
	g := newGen(7)
	for _, k := range [][2]int{{0, 0}, {-3, 1}, {5, 2}} {
		a, err := g.GenerateChunk(k[0], k[1])
		if err != nil {
			t.Fatalf("GenerateChunk: %v", err)
		}
		b, err := newGen(7).GenerateChunk(k[0], k[1])
		if err != nil {
			t.Fatalf("GenerateChunk: %v", err)
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("chunk %v cell %d differs", k, i)
			}
		}
	}
}

func TestGenerateChunkSeedMatters(t *testing.T) {
	a, _ := newGen(1).GenerateChunk(0, 1)
	b, _ := newGen(2).GenerateChunk(0, 1)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("different seeds produced identical chunks")
	}
}

func TestColumnLayers(t *testing.T) {
	g := newGen(3)
	const size = 64
	for cx := -4; cx < 4; cx++ {
		// Rows 0..191 cover the whole surface band for the default params.
		var chunks [3][]cell.Cell
		for cy := 0; cy < 3; cy++ {
			c, err := g.GenerateChunk(cx, cy)
			if err != nil {
				t.Fatalf("GenerateChunk: %v", err)
			}
			chunks[cy] = c
		}
		at := func(lx, wy int) cell.Cell { return chunks[wy/size][(wy%size)*size+lx] }
		for lx := 0; lx < size; lx++ {
			wx := cx*size + lx
			surface := g.SurfaceAt(wx)
			if surface < 0 || surface >= 3*size {
				t.Fatalf("x=%d: surface %d outside test window", wx, surface)
			}
			for wy := 0; wy < surface; wy++ {
				c := at(lx, wy)
				if wy < DefaultParams().SeaLevel && !c.IsEmpty() {
					t.Fatalf("(%d,%d): expected air above sea level, got %d", wx, wy, c.Material)
				}
				if wy >= DefaultParams().SeaLevel && c.Material != cell.Water {
					t.Fatalf("(%d,%d): expected water, got %d", wx, wy, c.Material)
				}
			}
			top := at(lx, surface)
			if top.IsEmpty() || top.IsLiquid() {
				t.Fatalf("(%d,%d): surface cell %+v", wx, surface, top)
			}
			if top.Biome() != uint8(BiomeAt(3, wx, DefaultParams().BiomeRegionSize)) {
				t.Fatalf("(%d,%d): biome %d", wx, surface, top.Biome())
			}
			if top.Material == cell.Grass && top.Growth() != DefaultParams().InitialGrowth {
				t.Fatalf("grass growth=%d", top.Growth())
			}
		}
	}
}

func TestGenerateChunkErrors(t *testing.T) {
	if _, err := New(1, 0, DefaultParams(), cell.DefaultMaterials()).GenerateChunk(0, 0); err == nil {
		t.Fatalf("expected size error")
	}
	if _, err := New(1, 16, DefaultParams(), nil).GenerateChunk(0, 0); err == nil {
		t.Fatalf("expected materials error")
	}
}

func TestInCluster(t *testing.T) {
	if InCluster(1, 0, 0, 0, 3, 500) || InCluster(1, 0, 0, 16, 3, 0) {
		t.Fatalf("degenerate cluster params should never match")
	}
	hits := 0
	for x := 0; x < 256; x++ {
		if InCluster(1, x, 0, 16, 4, 1000) {
			hits++
		}
	}
	if hits == 0 {
		t.Fatalf("expected some cluster hits with probability 1000")
	}
}

func TestParamsFromTuning(t *testing.T) {
	p := ParamsFromTuning(tuning.WorldGen{SeaLevel: 80, InitialGrowth: 900, CaveScalePermille: 250})
	if p.SeaLevel != 80 || p.InitialGrowth != 255 || p.CaveScalePermille != 250 {
		t.Fatalf("params=%+v", p)
	}
	if p.TerrainScale != DefaultParams().TerrainScale || p.Vegetation {
		t.Fatalf("defaults not kept: %+v", p)
	}
}
