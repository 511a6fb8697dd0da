package transition

import "sandcraft.ai/internal/sim/cell"

type move uint8

const (
	stay move = iota
	down
	left
	right
)

// intent is the move the cell at (x, y) wants this pass. A heavier cell only
// sinks into a lighter one that is not itself moving; the recursion follows a
// strictly decreasing density chain, so it terminates.
func (t *tile) intent(x, y int) move {
	c := t.at(x, y)
	if c.IsEmpty() || c.IsSolid() {
		return stay
	}
	if y+1 < t.n {
		b := t.at(x, y+1)
		if b.IsEmpty() {
			return down
		}
		if !b.IsSolid() && t.density(b) < t.density(c) && t.intent(x, y+1) == stay {
			return down
		}
	}
	if c.IsLiquid() {
		lOpen := x > 0 && t.at(x-1, y).IsEmpty()
		rOpen := x+1 < t.n && t.at(x+1, y).IsEmpty()
		switch {
		case lOpen && rOpen:
			if t.roll(x, y, saltLiquid)&1 == 0 {
				return left
			}
			return right
		case lOpen:
			return left
		case rOpen:
			return right
		}
	}
	return stay
}

// arrival picks the mover that lands on the empty cell (x, y): the cell above
// first, then one of the two side movers.
func (t *tile) arrival(x, y int) (sx int, sy int, ok bool) {
	if y > 0 && t.intent(x, y-1) == down {
		return x, y - 1, true
	}
	fromLeft := x > 0 && t.intent(x-1, y) == right
	fromRight := x+1 < t.n && t.intent(x+1, y) == left
	switch {
	case fromLeft && fromRight:
		if t.roll(x, y, saltContest)&1 == 0 {
			return x - 1, y, true
		}
		return x + 1, y, true
	case fromLeft:
		return x - 1, y, true
	case fromRight:
		return x + 1, y, true
	}
	return 0, 0, false
}

func (t *tile) physics(x, y int) cell.Cell {
	c := t.at(x, y)
	if c.IsEmpty() {
		sx, sy, ok := t.arrival(x, y)
		if !ok {
			return c
		}
		if sy < y {
			return fall(t.at(sx, sy))
		}
		return slide(t.at(sx, sy), x-sx)
	}

	switch t.intent(x, y) {
	case down:
		below := t.at(x, y+1)
		if below.IsEmpty() {
			return below
		}
		return below.With(cell.FlagUpdated)
	case left, right:
		tx := x - 1
		if t.intent(x, y) == right {
			tx = x + 1
		}
		if sx, _, ok := t.arrival(tx, y); ok && sx == x {
			return t.at(tx, y)
		}
	default:
		// Displaced upward by a heavier cell sinking into this one.
		if y > 0 && t.intent(x, y-1) == down {
			return fall(t.at(x, y-1))
		}
	}
	return c.Without(cell.FlagUpdated)
}

func fall(c cell.Cell) cell.Cell {
	if c.VelY < 127 {
		c.VelY++
	}
	return c.With(cell.FlagUpdated)
}

func slide(c cell.Cell, dir int) cell.Cell {
	c.VelX = int8(dir)
	return c.With(cell.FlagUpdated)
}
