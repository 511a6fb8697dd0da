package transition

import (
	"math"

	"sandcraft.ai/internal/sim/cell"
)

// DayFactor scales growth by time of day: 0 at midnight (t=0), 1 at noon.
func DayFactor(timeOfDay float64) float64 {
	return 0.5 - 0.5*math.Cos(2*math.Pi*timeOfDay)
}

func (t *tile) environment(x, y int) cell.Cell {
	c := t.at(x, y)
	r := t.p.Env

	switch {
	case c.IsEmpty():
		if t.p.Raining && y < r.RainRows && t.chance(x, y, saltRain) < r.RainChance {
			return t.mats.Cell(cell.Water)
		}
		return c
	case c.Material == cell.Grass:
		c = t.grass(c, x, y)
	case c.Material == cell.Dirt:
		c = t.spread(c, x, y)
	}

	if t.p.Raining && c.Material != cell.Water && !c.Hydrated() && t.near(x, y, cell.Water) > 0 {
		c = c.WithHydrated(true)
	}
	return c
}

func (t *tile) grass(c cell.Cell, x, y int) cell.Cell {
	r := t.p.Env
	water := t.near(x, y, cell.Water) > 0
	light := t.at(x, y-1).IsEmpty()

	switch {
	case water && light:
		g := c.Growth()
		if g < math.MaxUint8 && t.chance(x, y, saltGrow) < r.GrowthChance*DayFactor(t.p.TimeOfDay)*r.GrowthRate {
			return c.WithGrowth(g + 1)
		}
	case !water && !light:
		g := c.Growth()
		if g == 0 {
			return t.toDirt(c)
		}
		if t.chance(x, y, saltDecay) < r.DecayChance {
			if g == 1 {
				return t.toDirt(c)
			}
			return c.WithGrowth(g - 1)
		}
	}
	return c
}

func (t *tile) spread(c cell.Cell, x, y int) cell.Cell {
	if !t.at(x, y-1).IsEmpty() {
		return c
	}
	n := t.near(x, y, cell.Grass)
	if n == 0 {
		return c
	}
	if t.chance(x, y, saltSpread) < math.Min(1, t.p.Env.SpreadChance*float64(n)) {
		g := t.mats.Cell(cell.Grass).WithGrowth(t.p.Env.NewGrassGrowth)
		g.Data = c.Data
		return g
	}
	return c
}

func (t *tile) toDirt(c cell.Cell) cell.Cell {
	d := t.mats.Cell(cell.Dirt).With(cell.FlagSolid)
	d.Data = c.Data
	return d
}

// near counts cells of material m among the 8 neighbours.
func (t *tile) near(x, y int, m uint16) int {
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if t.at(x+dx, y+dy).Material == m {
				n++
			}
		}
	}
	return n
}
