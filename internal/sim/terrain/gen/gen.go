package gen

import (
	"errors"
	"fmt"

	"sandcraft.ai/internal/sim/cell"
	"sandcraft.ai/internal/sim/mathx"
	"sandcraft.ai/internal/sim/tuning"
)

type Params struct {
	SeaLevel        int
	BaseHeight      int
	HeightAmplitude int
	TerrainScale    int
	BiomeRegionSize int

	// Cluster probability scales; <= 0 means 1000 (unscaled).
	CaveScalePermille int
	OreScalePermille  int

	Vegetation    bool
	InitialGrowth uint8
}

func DefaultParams() Params {
	return Params{
		SeaLevel:          64,
		BaseHeight:        48,
		HeightAmplitude:   40,
		TerrainScale:      64,
		BiomeRegionSize:   512,
		CaveScalePermille: 1000,
		OreScalePermille:  1000,
		Vegetation:        true,
		InitialGrowth:     128,
	}
}

// ParamsFromTuning maps the worldgen section of tuning.yaml. Zero fields
// keep their defaults.
func ParamsFromTuning(t tuning.WorldGen) Params {
	p := DefaultParams()
	if t.SeaLevel != 0 {
		p.SeaLevel = t.SeaLevel
	}
	if t.BaseHeight != 0 {
		p.BaseHeight = t.BaseHeight
	}
	if t.HeightAmplitude > 0 {
		p.HeightAmplitude = t.HeightAmplitude
	}
	if t.TerrainScale > 0 {
		p.TerrainScale = t.TerrainScale
	}
	if t.BiomeRegionSize > 0 {
		p.BiomeRegionSize = t.BiomeRegionSize
	}
	p.CaveScalePermille = t.CaveScalePermille
	p.OreScalePermille = t.OreScalePermille
	p.Vegetation = t.Vegetation
	if t.InitialGrowth > 0 {
		p.InitialGrowth = uint8(min(t.InitialGrowth, 255))
	}
	return p
}

const (
	topsoilDepth   = 4
	sandstoneDepth = 12
	caveMinDepth   = 8
)

// Generator builds chunk contents from the world seed. Output depends only
// on (seed, params, chunk coordinate), so a chunk regenerates identically
// after eviction.
type Generator struct {
	seed   int64
	size   int
	params Params
	mats   *cell.Materials
}

func New(seed int64, size int, params Params, mats *cell.Materials) *Generator {
	return &Generator{seed: seed, size: size, params: params, mats: mats}
}

func (g *Generator) Seed() int64 { return g.seed }

func (g *Generator) GenerateChunk(cx, cy int) ([]cell.Cell, error) {
	if g.size <= 0 {
		return nil, fmt.Errorf("generate chunk (%d,%d): invalid chunk size %d", cx, cy, g.size)
	}
	if g.mats == nil {
		return nil, errors.New("generate chunk: nil material table")
	}
	if g.params.TerrainScale <= 0 {
		return nil, fmt.Errorf("generate chunk (%d,%d): invalid terrain scale %d", cx, cy, g.params.TerrainScale)
	}

	cells := make([]cell.Cell, g.size*g.size)
	for x := 0; x < g.size; x++ {
		wx := cx*g.size + x
		col := g.column(wx)
		for y := 0; y < g.size; y++ {
			wy := cy*g.size + y
			cells[y*g.size+x] = g.cellAt(col, wx, wy)
		}
	}
	return cells, nil
}

type column struct {
	surface int
	biome   Biome
	data    cell.Cell
}

// SurfaceAt returns the world row of the topmost ground cell in column x.
func (g *Generator) SurfaceAt(x int) int {
	p := g.params
	n := 0.7*valueNoise(g.seed+11, x, p.TerrainScale) + 0.3*valueNoise(g.seed+12, x, max(1, p.TerrainScale/4))
	return p.BaseHeight + int((n-0.5)*2*float64(p.HeightAmplitude))
}

func (g *Generator) column(x int) column {
	surface := g.SurfaceAt(x)
	biome := BiomeAt(g.seed, x, g.params.BiomeRegionSize)
	elev := mathx.ClampInt(g.params.SeaLevel-surface+cell.MaxElevation/2, 0, cell.MaxElevation)
	data := cell.Empty.WithBiome(uint8(biome)).WithElevation(uint8(elev))
	return column{surface: surface, biome: biome, data: data}
}

func (g *Generator) cellAt(col column, x, y int) cell.Cell {
	p := g.params
	var id uint16
	depth := y - col.surface
	underwater := col.surface > p.SeaLevel

	switch {
	case depth < 0:
		if y < p.SeaLevel {
			return cell.Empty
		}
		id = cell.Water
	case depth > caveMinDepth && InCluster(g.seed+301, x, y, 24, 5, ScalePermille(350, p.CaveScalePermille)):
		return cell.Empty
	case depth == 0:
		id = g.surfaceMaterial(col, underwater)
	case depth < topsoilDepth:
		id = g.topsoilMaterial(col, underwater)
	case col.biome == BiomeDesert && depth < sandstoneDepth:
		id = cell.Sandstone
	default:
		id = g.deepMaterial(x, y, depth)
	}

	c := g.mats.Cell(id)
	c.Data = col.data.Data
	if id == cell.Grass {
		c = c.WithGrowth(p.InitialGrowth)
	}
	return c
}

func (g *Generator) surfaceMaterial(col column, underwater bool) uint16 {
	if underwater {
		return cell.Sand
	}
	switch col.biome {
	case BiomeDesert:
		return cell.Sand
	case BiomeMountain:
		if col.surface < g.params.BaseHeight-g.params.HeightAmplitude/2 {
			return cell.Snow
		}
		return cell.Stone
	default:
		if g.params.Vegetation {
			return cell.Grass
		}
		return cell.Dirt
	}
}

func (g *Generator) topsoilMaterial(col column, underwater bool) uint16 {
	switch {
	case underwater:
		return cell.Sand
	case col.biome == BiomeDesert:
		return cell.Sand
	case col.biome == BiomeMountain:
		return cell.Gravel
	default:
		return cell.Dirt
	}
}

func (g *Generator) deepMaterial(x, y, depth int) uint16 {
	scale := g.params.OreScalePermille
	switch {
	case depth > 60 && InCluster(g.seed+101, x, y, 96, 2, ScalePermille(200, scale)):
		return cell.GoldOre
	case depth > 30 && InCluster(g.seed+102, x, y, 64, 3, ScalePermille(450, scale)):
		return cell.IronOre
	case depth > 30 && InCluster(g.seed+103, x, y, 64, 3, ScalePermille(450, scale)):
		return cell.CopperOre
	case depth > 10 && InCluster(g.seed+104, x, y, 32, 3, ScalePermille(650, scale)):
		return cell.CoalOre
	case InCluster(g.seed+105, x, y, 48, 4, ScalePermille(300, 1000)):
		return cell.Clay
	default:
		return cell.Stone
	}
}
