package gfx

import (
	"time"

	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

// The fakes embed the vkngwrapper interfaces so they satisfy them; only the methods a test
// exercises are implemented, anything else panics on the nil embedded value.

type fakeSemaphore struct {
	core1_0.Semaphore
	id int
}

type fakeFence struct {
	core1_0.Fence
	id int

	// pending is set by a submit and cleared once the CPU has waited on the fence.
	pending bool
	reset   bool
	waits   int
	resets  int
}

func (f *fakeFence) Wait(timeout time.Duration) (common.VkResult, error) {
	f.waits++
	f.pending = false
	return core1_0.VKSuccess, nil
}

type fakeSyncDevice struct {
	core1_0.Device

	fenceWaits int
	resets     int
	idleWaits  int
	idleErr    error
}

func (d *fakeSyncDevice) WaitForFences(waitForAll bool, timeout time.Duration, fences []core1_0.Fence) (common.VkResult, error) {
	d.fenceWaits++
	for _, fence := range fences {
		f := fence.(*fakeFence)
		f.waits++
		f.pending = false
	}
	return core1_0.VKSuccess, nil
}

func (d *fakeSyncDevice) ResetFences(fences []core1_0.Fence) (common.VkResult, error) {
	d.resets++
	for _, fence := range fences {
		f := fence.(*fakeFence)
		f.resets++
		f.reset = true
	}
	return core1_0.VKSuccess, nil
}

func (d *fakeSyncDevice) WaitIdle() (common.VkResult, error) {
	d.idleWaits++
	return core1_0.VKSuccess, d.idleErr
}

type submission struct {
	fence          *fakeFence
	waitSemaphore  core1_0.Semaphore
	signal         core1_0.Semaphore
	commandBuffers []core1_0.CommandBuffer
}

type fakeQueue struct {
	core1_0.Queue

	submits []submission
	// violations counts submits of a fence that was not waited on and reset since its
	// previous submit.
	violations int
	submitErr  error
}

func (q *fakeQueue) Submit(fence core1_0.Fence, o []core1_0.SubmitInfo) (common.VkResult, error) {
	if q.submitErr != nil {
		return core1_0.VKSuccess, q.submitErr
	}

	f := fence.(*fakeFence)
	if f.pending || !f.reset {
		q.violations++
	}
	f.pending = true
	f.reset = false

	q.submits = append(q.submits, submission{
		fence:          f,
		waitSemaphore:  o[0].WaitSemaphores[0],
		signal:         o[0].SignalSemaphores[0],
		commandBuffers: o[0].CommandBuffers,
	})
	return core1_0.VKSuccess, nil
}

type acquireResult struct {
	index int
	res   common.VkResult
	err   error
}

type fakeSwapchain struct {
	khr_swapchain.Swapchain

	imageCount int
	next       int
	// script overrides the round-robin result of the next acquisitions, in order.
	script   []acquireResult
	acquires []core1_0.Semaphore
}

func (s *fakeSwapchain) AcquireNextImage(timeout time.Duration, semaphore core1_0.Semaphore, fence core1_0.Fence) (int, common.VkResult, error) {
	s.acquires = append(s.acquires, semaphore)

	if len(s.script) > 0 {
		result := s.script[0]
		s.script = s.script[1:]
		return result.index, result.res, result.err
	}

	index := s.next
	s.next = (s.next + 1) % s.imageCount
	return index, core1_0.VKSuccess, nil
}

type presentResult struct {
	res common.VkResult
	err error
}

type fakeSwapchainExtension struct {
	khr_swapchain.Extension

	presented []int
	waits     []core1_0.Semaphore
	script    []presentResult
}

func (e *fakeSwapchainExtension) QueuePresent(queue core1_0.Queue, o khr_swapchain.PresentInfo) (common.VkResult, error) {
	e.presented = append(e.presented, o.ImageIndices...)
	e.waits = append(e.waits, o.WaitSemaphores...)

	if len(e.script) > 0 {
		result := e.script[0]
		e.script = e.script[1:]
		return result.res, result.err
	}
	return core1_0.VKSuccess, nil
}

type fakeCommandBuffer struct {
	core1_0.CommandBuffer
	id int

	boundPipelines []core1_0.Pipeline
}

func (c *fakeCommandBuffer) CmdBindPipeline(bindPoint core1_0.PipelineBindPoint, pipeline core1_0.Pipeline) {
	c.boundPipelines = append(c.boundPipelines, pipeline)
}

type fakePipeline struct {
	core1_0.Pipeline
}

type swapChainFixture struct {
	swapChain *SwapChain
	device    *fakeSyncDevice
	queue     *fakeQueue
	swapchain *fakeSwapchain
	extension *fakeSwapchainExtension
	fences    []*fakeFence
}

// newSwapChainFixture builds a SwapChain wired to fakes the way createSyncObjects would
// leave it: every in-flight fence starts signalled.
func newSwapChainFixture(imageCount, framesInFlight int) *swapChainFixture {
	f := &swapChainFixture{
		device:    &fakeSyncDevice{},
		queue:     &fakeQueue{},
		swapchain: &fakeSwapchain{imageCount: imageCount},
		extension: &fakeSwapchainExtension{},
	}

	s := &SwapChain{
		device:         f.device,
		extension:      f.extension,
		swapchain:      f.swapchain,
		graphicsQueue:  f.queue,
		presentQueue:   f.queue,
		images:         make([]core1_0.Image, imageCount),
		framesInFlight: framesInFlight,
		imagesInFlight: make([]core1_0.Fence, imageCount),
	}

	for i := 0; i < framesInFlight; i++ {
		fence := &fakeFence{id: i}
		f.fences = append(f.fences, fence)
		s.inFlightFences = append(s.inFlightFences, fence)
		s.imageAvailableSemaphores = append(s.imageAvailableSemaphores, &fakeSemaphore{id: i})
		s.renderFinishedSemaphores = append(s.renderFinishedSemaphores, &fakeSemaphore{id: 100 + i})
	}

	f.swapChain = s
	return f
}
