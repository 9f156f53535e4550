package pipeline

import (
	"time"
)

// fpsMeter counts frames over wall-clock and recomputes rate once per second
type fpsMeter struct {
	now    func() time.Time
	since  time.Time
	frames int
	fps    float64
}

func newFPSMeter(now func() time.Time) *fpsMeter {
	return &fpsMeter{
		now:   now,
		since: now(),
	}
}

// tick registers a frame. Second value is true when the estimate was refreshed.
func (meter *fpsMeter) tick() (float64, bool) {
	meter.frames++
	elapsed := meter.now().Sub(meter.since)
	if elapsed < time.Second {
		return meter.fps, false
	}
	meter.fps = float64(meter.frames) / elapsed.Seconds()
	meter.frames = 0
	meter.since = meter.since.Add(elapsed)
	return meter.fps, true
}
