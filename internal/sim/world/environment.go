package world

import (
	"math"

	"sandcraft.ai/internal/sim/mathx"
)

// Clock derives the time of day from the frame counter so it never drifts
// and survives snapshots as a single number.
type Clock struct {
	DayFrames int
	Start     float64
}

func (c Clock) at(frame uint64) float64 {
	return c.Start + float64(frame)/float64(c.DayFrames)
}

// TimeOfDay is in [0, 1): 0 midnight, 0.5 noon.
func (c Clock) TimeOfDay(frame uint64) float64 {
	v := c.at(frame)
	return v - math.Floor(v)
}

func (c Clock) DayCount(frame uint64) int {
	return int(math.Floor(c.at(frame)))
}

// SunIntensity is a convenience for renderers; it matches the growth curve.
func (c Clock) SunIntensity(frame uint64) float64 {
	return 0.5 - 0.5*math.Cos(2*math.Pi*c.TimeOfDay(frame))
}

// Weather rolls rain once per period from the world seed. An override
// pins the state until cleared.
type Weather struct {
	Seed         int64
	PeriodFrames int
	RainPermille int

	override *bool
}

func (w *Weather) Raining(frame uint64) bool {
	if w.override != nil {
		return *w.override
	}
	if w.PeriodFrames <= 0 || w.RainPermille <= 0 {
		return false
	}
	period := int(frame / uint64(w.PeriodFrames))
	return mathx.Hash2(w.Seed+777, period, 0)%1000 < uint64(w.RainPermille)
}

func (w *Weather) Override() *bool { return w.override }

// SetOverride pins rain on or off; nil returns to the seeded schedule.
func (w *Weather) SetOverride(v *bool) {
	if v == nil {
		w.override = nil
		return
	}
	b := *v
	w.override = &b
}
