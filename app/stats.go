package app

import (
	"log/slog"
	"time"

	"github.com/loov/hrtime"

	"github.com/vkngwrapper/triangle/gfx"
)

// frameStats accumulates per-frame timings and reports them once per interval.
type frameStats struct {
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Duration

	frames     int
	suboptimal int

	windowStart  time.Duration
	windowFrames int
	frameStart   time.Duration
	frameTotal   time.Duration
}

func newFrameStats(logger *slog.Logger, interval time.Duration) *frameStats {
	s := &frameStats{
		logger:   logger,
		interval: interval,
		now:      hrtime.Now,
	}
	s.windowStart = s.now()
	return s
}

func (s *frameStats) begin() {
	s.frameStart = s.now()
}

// end records a presented frame with the worse of its acquire and present statuses.
func (s *frameStats) end(status gfx.Status) {
	now := s.now()
	s.frames++
	s.windowFrames++
	s.frameTotal += now - s.frameStart
	if status == gfx.StatusSuboptimal {
		s.suboptimal++
	}

	if s.interval <= 0 {
		return
	}

	elapsed := now - s.windowStart
	if elapsed < s.interval {
		return
	}

	s.logger.Debug("frame stats",
		"frames", s.windowFrames,
		"fps", float64(s.windowFrames)/elapsed.Seconds(),
		"avgFrameTime", s.frameTotal/time.Duration(s.windowFrames),
		"suboptimal", s.suboptimal)

	s.windowStart = now
	s.windowFrames = 0
	s.frameTotal = 0
}
