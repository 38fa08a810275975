package app

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/triangle/gfx"
)

type loopFixture struct {
	loop   *frameLoop
	events *fakeEvents
	target *fakeTarget
	idler  *fakeIdler
}

func newLoopFixture(imageCount, closeAfter int) *loopFixture {
	f := &loopFixture{
		events: &fakeEvents{closeAfter: closeAfter},
		target: &fakeTarget{imageCount: imageCount},
		idler:  &fakeIdler{},
	}
	f.loop = &frameLoop{
		events:         f.events,
		target:         f.target,
		device:         f.idler,
		commandBuffers: commandBuffers(imageCount),
		stats:          newFrameStats(discardLogger(), 0),
	}
	return f
}

func TestLoopClosedImmediately(t *testing.T) {
	f := newLoopFixture(3, 0)

	require.NoError(t, f.loop.run())

	assert.Zero(t, f.target.acquires)
	assert.Empty(t, f.target.submits)
	assert.Zero(t, f.loop.stats.frames)
	assert.Equal(t, 1, f.idler.calls)
	assert.Equal(t, stateClosed, f.loop.state)
}

func TestLoopSubmitsRecordedBuffers(t *testing.T) {
	const imageCount, frames = 3, 5

	f := newLoopFixture(imageCount, frames)

	require.NoError(t, f.loop.run())

	assert.Equal(t, frames, f.events.polls)
	assert.Equal(t, frames, f.target.acquires)
	require.Len(t, f.target.submits, frames)
	for i, submit := range f.target.submits {
		assert.Equal(t, i%imageCount, submit.imageIndex)
		assert.Same(t, f.loop.commandBuffers[submit.imageIndex], submit.buffer)
	}
	assert.Equal(t, frames, f.loop.stats.frames)
	assert.Equal(t, 1, f.idler.calls)
	assert.Equal(t, stateClosed, f.loop.state)
}

func TestLoopToleratesSuboptimal(t *testing.T) {
	f := newLoopFixture(2, 3)
	f.target.acquireScript = []acquireResult{{index: 0, status: gfx.StatusSuboptimal}}
	f.target.presentScript = []presentResult{{status: gfx.StatusSuccess}, {status: gfx.StatusSuboptimal}}

	require.NoError(t, f.loop.run())

	assert.Len(t, f.target.submits, 3)
	assert.Equal(t, 3, f.loop.stats.frames)
	assert.Equal(t, 2, f.loop.stats.suboptimal)
}

func TestLoopStaleAcquireIsFatal(t *testing.T) {
	f := newLoopFixture(3, 10)
	stale := errors.Mark(errors.New("swapchain out of date"), gfx.ErrSwapchainStale)
	f.target.acquireScript = []acquireResult{{}, {status: gfx.StatusStale, err: stale}}

	err := f.loop.run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, gfx.ErrSwapchainStale))

	assert.Len(t, f.target.submits, 1, "nothing is submitted for the failed acquire")
	assert.Equal(t, 1, f.idler.calls)
	assert.Equal(t, stateFatal, f.loop.state)
}

func TestLoopPresentFailureIsFatal(t *testing.T) {
	f := newLoopFixture(3, 10)
	failure := errors.Mark(errors.New("surface lost"), gfx.ErrPresent)
	f.target.presentScript = []presentResult{{status: gfx.StatusError, err: failure}}

	err := f.loop.run()
	assert.True(t, errors.Is(err, gfx.ErrPresent))
	assert.Len(t, f.target.submits, 1)
	assert.Zero(t, f.loop.stats.frames)
	assert.Equal(t, 1, f.idler.calls)
	assert.Equal(t, stateFatal, f.loop.state)
}

func TestLoopIdleFailure(t *testing.T) {
	t.Run("after clean close", func(t *testing.T) {
		f := newLoopFixture(3, 2)
		idleErr := errors.New("device lost while idling")
		f.idler.err = idleErr

		err := f.loop.run()
		assert.True(t, errors.Is(err, idleErr))
	})

	t.Run("after frame failure", func(t *testing.T) {
		f := newLoopFixture(3, 10)
		frameErr := errors.New("acquire failed")
		f.target.acquireScript = []acquireResult{{status: gfx.StatusError, err: frameErr}}
		f.idler.err = errors.New("device lost while idling")

		err := f.loop.run()
		assert.True(t, errors.Is(err, frameErr), "the frame error stays primary")
		assert.Contains(t, fmt.Sprintf("%+v", err), "device lost while idling")
	})
}

func TestFrameStateString(t *testing.T) {
	assert.Equal(t, "present pending", statePresentPending.String())
	assert.Equal(t, "unknown", frameState(99).String())
}
