package gen

import "sandcraft.ai/internal/sim/mathx"

type Biome uint8

const (
	BiomeNone Biome = iota
	BiomePlains
	BiomeForest
	BiomeDesert
	BiomeMountain
)

func (b Biome) String() string {
	switch b {
	case BiomePlains:
		return "PLAINS"
	case BiomeForest:
		return "FOREST"
	case BiomeDesert:
		return "DESERT"
	case BiomeMountain:
		return "MOUNTAIN"
	default:
		return "NONE"
	}
}

func BiomeFrom(noise uint64) Biome {
	return Biome(noise%4) + BiomePlains
}

// BiomeAt assigns biomes per vertical strip of regionSize columns.
func BiomeAt(seed int64, x, regionSize int) Biome {
	if regionSize <= 0 {
		regionSize = 1
	}
	return BiomeFrom(mathx.Hash2(seed, mathx.FloorDiv(x, regionSize), 0))
}

func ClampPermille(v int) int {
	return mathx.ClampInt(v, 0, 1000)
}

func ScalePermille(base uint64, scalePermille int) uint64 {
	if scalePermille <= 0 {
		scalePermille = 1000
	}
	scaled := (base*uint64(scalePermille) + 500) / 1000
	if scaled > 1000 {
		return 1000
	}
	return scaled
}

// InCluster reports whether (x, y) falls inside one of the round blobs
// scattered over a grid of the given spacing. Each grid cell holds a blob
// with probability probPermille.
func InCluster(seed int64, x, y, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := mathx.FloorDiv(x, grid)
	gy := mathx.FloorDiv(y, grid)
	r2 := radius * radius

	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			cgx := gx + dx
			cgy := gy + dy
			h := mathx.Hash2(seed, cgx, cgy)
			if h%1000 >= probPermille {
				continue
			}

			ox := int((h >> 10) % uint64(grid))
			oy := int((h >> 20) % uint64(grid))
			ddx := x - (cgx*grid + ox)
			ddy := y - (cgy*grid + oy)
			if ddx*ddx+ddy*ddy <= r2 {
				return true
			}
		}
	}
	return false
}

// valueNoise is 1D smoothed lattice noise in [0, 1).
func valueNoise(seed int64, x, scale int) float64 {
	i := mathx.FloorDiv(x, scale)
	f := float64(mathx.Mod(x, scale)) / float64(scale)
	a := mathx.Unit(mathx.Hash2(seed, i, 0))
	b := mathx.Unit(mathx.Hash2(seed, i+1, 0))
	f = f * f * (3 - 2*f)
	return a + (b-a)*f
}
