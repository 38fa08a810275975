package app

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"

	"github.com/vkngwrapper/triangle/gfx"
)

// renderTarget is the part of the swapchain command recording draws into.
type renderTarget interface {
	RenderPass() core1_0.RenderPass
	Framebuffer(index int) core1_0.Framebuffer
	ImageCount() int
	Extent() core1_0.Extent2D
}

type binder interface {
	Bind(cmd core1_0.CommandBuffer)
}

type drawable interface {
	binder
	Draw(cmd core1_0.CommandBuffer)
}

var clearValues = []core1_0.ClearValue{
	core1_0.ClearValueFloat{0.1, 0.1, 0.1, 1},
	core1_0.ClearValueDepthStencil{Depth: 1.0, Stencil: 0},
}

func allocateCommandBuffers(device core1_0.Device, pool core1_0.CommandPool, count int) ([]core1_0.CommandBuffer, error) {
	buffers, _, err := device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to allocate command buffers"), gfx.ErrResourceCreation)
	}
	if len(buffers) != count {
		return nil, errors.Mark(errors.Newf("allocated %d command buffers, wanted %d", len(buffers), count), gfx.ErrResourceCreation)
	}
	return buffers, nil
}

// recordCommandBuffers records buffers[i] to draw mesh with pipeline into framebuffer i of
// target. Each buffer is recorded once and resubmitted unchanged every frame.
func recordCommandBuffers(buffers []core1_0.CommandBuffer, target renderTarget, pipeline binder, mesh drawable) error {
	if len(buffers) != target.ImageCount() {
		return errors.AssertionFailedf("%d command buffers for %d swapchain images", len(buffers), target.ImageCount())
	}

	for bufferIdx, buffer := range buffers {
		err := recordCommandBuffer(buffer, target, bufferIdx, pipeline, mesh)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "failed to record command buffer %d", bufferIdx), gfx.ErrResourceCreation)
		}
	}
	return nil
}

func recordCommandBuffer(buffer core1_0.CommandBuffer, target renderTarget, imageIndex int, pipeline binder, mesh drawable) error {
	_, err := buffer.Begin(core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return errors.Wrap(err, "failed to begin recording")
	}

	err = buffer.CmdBeginRenderPass(core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  target.RenderPass(),
			Framebuffer: target.Framebuffer(imageIndex),
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: target.Extent(),
			},
			ClearValues: clearValues,
		})
	if err != nil {
		return errors.Wrap(err, "failed to begin render pass")
	}

	pipeline.Bind(buffer)
	mesh.Bind(buffer)
	mesh.Draw(buffer)

	buffer.CmdEndRenderPass()

	_, err = buffer.End()
	if err != nil {
		return errors.Wrap(err, "failed to end recording")
	}
	return nil
}
