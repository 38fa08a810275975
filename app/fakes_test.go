package app

import (
	"io"
	"log/slog"

	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"

	"github.com/vkngwrapper/triangle/gfx"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEvents asks to close once it has been polled closeAfter times.
type fakeEvents struct {
	closeAfter int
	polls      int
}

func (e *fakeEvents) ShouldClose() bool { return e.polls >= e.closeAfter }
func (e *fakeEvents) PollEvents()       { e.polls++ }

type acquireResult struct {
	index  int
	status gfx.Status
	err    error
}

type presentResult struct {
	status gfx.Status
	err    error
}

type submitted struct {
	buffer     core1_0.CommandBuffer
	imageIndex int
}

// fakeTarget hands out images round-robin unless a scripted result is queued.
type fakeTarget struct {
	imageCount int
	next       int

	acquireScript []acquireResult
	presentScript []presentResult

	acquires int
	submits  []submitted
}

func (f *fakeTarget) AcquireNextImage() (int, gfx.Status, error) {
	f.acquires++

	if len(f.acquireScript) > 0 {
		result := f.acquireScript[0]
		f.acquireScript = f.acquireScript[1:]
		return result.index, result.status, result.err
	}

	index := f.next
	f.next = (f.next + 1) % f.imageCount
	return index, gfx.StatusSuccess, nil
}

func (f *fakeTarget) SubmitCommandBuffers(buffer core1_0.CommandBuffer, imageIndex int) (gfx.Status, error) {
	f.submits = append(f.submits, submitted{buffer: buffer, imageIndex: imageIndex})

	if len(f.presentScript) > 0 {
		result := f.presentScript[0]
		f.presentScript = f.presentScript[1:]
		return result.status, result.err
	}
	return gfx.StatusSuccess, nil
}

type fakeIdler struct {
	calls int
	err   error
}

func (i *fakeIdler) WaitIdle() error {
	i.calls++
	return i.err
}

type fakeFramebuffer struct {
	core1_0.Framebuffer
	index int
}

type fakeRenderPass struct {
	core1_0.RenderPass
}

type fakeRenderTarget struct {
	renderPass   *fakeRenderPass
	framebuffers []*fakeFramebuffer
	extent       core1_0.Extent2D
}

func newFakeRenderTarget(imageCount int) *fakeRenderTarget {
	target := &fakeRenderTarget{
		renderPass: &fakeRenderPass{},
		extent:     core1_0.Extent2D{Width: 800, Height: 600},
	}
	for i := 0; i < imageCount; i++ {
		target.framebuffers = append(target.framebuffers, &fakeFramebuffer{index: i})
	}
	return target
}

func (t *fakeRenderTarget) RenderPass() core1_0.RenderPass { return t.renderPass }
func (t *fakeRenderTarget) Framebuffer(index int) core1_0.Framebuffer {
	return t.framebuffers[index]
}
func (t *fakeRenderTarget) ImageCount() int          { return len(t.framebuffers) }
func (t *fakeRenderTarget) Extent() core1_0.Extent2D { return t.extent }

// fakeCommandBuffer records the commands written to it as a list of names.
type fakeCommandBuffer struct {
	core1_0.CommandBuffer

	commands   []string
	renderPass core1_0.RenderPassBeginInfo
	contents   core1_0.SubpassContents

	beginErr error
}

func (c *fakeCommandBuffer) record(command string) {
	c.commands = append(c.commands, command)
}

func (c *fakeCommandBuffer) Begin(o core1_0.CommandBufferBeginInfo) (common.VkResult, error) {
	c.record("begin")
	return core1_0.VKSuccess, c.beginErr
}

func (c *fakeCommandBuffer) End() (common.VkResult, error) {
	c.record("end")
	return core1_0.VKSuccess, nil
}

func (c *fakeCommandBuffer) CmdBeginRenderPass(contents core1_0.SubpassContents, o core1_0.RenderPassBeginInfo) error {
	c.record("beginRenderPass")
	c.contents = contents
	c.renderPass = o
	return nil
}

func (c *fakeCommandBuffer) CmdEndRenderPass() {
	c.record("endRenderPass")
}

type fakePipeline struct {
	binds int
}

func (p *fakePipeline) Bind(cmd core1_0.CommandBuffer) {
	p.binds++
	cmd.(*fakeCommandBuffer).record("bindPipeline")
}

type fakeMesh struct {
	binds int
	draws int
}

func (m *fakeMesh) Bind(cmd core1_0.CommandBuffer) {
	m.binds++
	cmd.(*fakeCommandBuffer).record("bindMesh")
}

func (m *fakeMesh) Draw(cmd core1_0.CommandBuffer) {
	m.draws++
	cmd.(*fakeCommandBuffer).record("draw")
}

type fakeDevice struct {
	core1_0.Device

	allocated []core1_0.CommandBufferAllocateInfo
	allocErr  error
}

func (d *fakeDevice) AllocateCommandBuffers(o core1_0.CommandBufferAllocateInfo) ([]core1_0.CommandBuffer, common.VkResult, error) {
	d.allocated = append(d.allocated, o)
	if d.allocErr != nil {
		return nil, core1_0.VKSuccess, d.allocErr
	}

	buffers := make([]core1_0.CommandBuffer, o.CommandBufferCount)
	for i := range buffers {
		buffers[i] = &fakeCommandBuffer{}
	}
	return buffers, core1_0.VKSuccess, nil
}

func commandBuffers(count int) []core1_0.CommandBuffer {
	buffers := make([]core1_0.CommandBuffer, count)
	for i := range buffers {
		buffers[i] = &fakeCommandBuffer{}
	}
	return buffers
}
