package world

import "sandcraft.ai/internal/sim/streaming"

type Camera = streaming.Camera

// PathCamera moves at a constant velocity. Each Position call advances it
// by one frame, and the world calls Position exactly once per step.
type PathCamera struct {
	X, Y   float64
	VX, VY float64

	frames uint64
}

func (c *PathCamera) Position() (float64, float64) {
	f := float64(c.frames)
	c.frames++
	return c.X + c.VX*f, c.Y + c.VY*f
}
