package mathx

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Chebyshev returns the chessboard distance between two grid points.
func Chebyshev(ax, ay, bx, by int) int {
	dx := AbsInt(ax - bx)
	dy := AbsInt(ay - by)
	if dx > dy {
		return dx
	}
	return dy
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, y int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// HashFrame mixes a frame counter into a cell position. The frame goes
// through its own mix round so consecutive frames decorrelate.
func HashFrame(seed int64, frame uint64, x, y int) uint64 {
	return mix64(Hash2(seed, x, y) ^ mix64(frame*0xc2b2ae3d27d4eb4f))
}

// Unit maps a hash to [0, 1).
func Unit(h uint64) float64 {
	return float64(h>>11) / float64(uint64(1)<<53)
}
