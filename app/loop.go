package app

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"

	"github.com/vkngwrapper/triangle/gfx"
)

type frameState int

const (
	stateIdle frameState = iota
	stateAcquiring
	stateSubmitting
	statePresentPending
	stateFatal
	stateClosed
)

func (s frameState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAcquiring:
		return "acquiring"
	case stateSubmitting:
		return "submitting"
	case statePresentPending:
		return "present pending"
	case stateFatal:
		return "fatal"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

type eventSource interface {
	ShouldClose() bool
	PollEvents()
}

type frameTarget interface {
	AcquireNextImage() (int, gfx.Status, error)
	SubmitCommandBuffers(buffer core1_0.CommandBuffer, imageIndex int) (gfx.Status, error)
}

type idler interface {
	WaitIdle() error
}

// frameLoop replays the pre-recorded command buffers until the window asks to close.
type frameLoop struct {
	events         eventSource
	target         frameTarget
	device         idler
	commandBuffers []core1_0.CommandBuffer
	stats          *frameStats

	state frameState
}

// run drives frames until a close request or a fatal frame error. Whatever the outcome, it
// returns only after the device is idle.
func (l *frameLoop) run() (err error) {
	defer func() {
		idleErr := l.device.WaitIdle()
		if idleErr != nil {
			err = errors.CombineErrors(err, idleErr)
		}
	}()

	for !l.events.ShouldClose() {
		l.state = stateIdle
		l.events.PollEvents()

		err = l.drawFrame()
		if err != nil {
			l.state = stateFatal
			return err
		}
	}

	l.state = stateClosed
	return nil
}

func (l *frameLoop) drawFrame() error {
	l.state = stateAcquiring
	l.stats.begin()

	imageIndex, acquireStatus, err := l.target.AcquireNextImage()
	if !acquireStatus.Usable() {
		return errors.Wrap(err, "failed to acquire swap chain image")
	}

	l.state = stateSubmitting
	presentStatus, err := l.target.SubmitCommandBuffers(l.commandBuffers[imageIndex], imageIndex)
	if !presentStatus.Usable() {
		return errors.Wrap(err, "failed to present swap chain image")
	}

	l.state = statePresentPending
	status := presentStatus
	if acquireStatus == gfx.StatusSuboptimal {
		status = acquireStatus
	}
	l.stats.end(status)

	l.state = stateIdle
	return nil
}
