package app

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/core1_0"

	"github.com/vkngwrapper/triangle/gfx"
)

type fakeCommandPool struct {
	core1_0.CommandPool
}

func TestAllocateCommandBuffers(t *testing.T) {
	device := &fakeDevice{}
	pool := &fakeCommandPool{}

	buffers, err := allocateCommandBuffers(device, pool, 3)
	require.NoError(t, err)
	assert.Len(t, buffers, 3)

	require.Len(t, device.allocated, 1)
	assert.Same(t, pool, device.allocated[0].CommandPool)
	assert.Equal(t, core1_0.CommandBufferLevelPrimary, device.allocated[0].Level)
	assert.EqualValues(t, 3, device.allocated[0].CommandBufferCount)

	device.allocErr = errors.New("out of host memory")
	_, err = allocateCommandBuffers(device, pool, 3)
	assert.True(t, errors.Is(err, gfx.ErrResourceCreation))
}

func TestRecordCommandBuffers(t *testing.T) {
	const imageCount = 3

	target := newFakeRenderTarget(imageCount)
	pipeline := &fakePipeline{}
	mesh := &fakeMesh{}
	buffers := commandBuffers(imageCount)

	require.NoError(t, recordCommandBuffers(buffers, target, pipeline, mesh))

	assert.Equal(t, imageCount, pipeline.binds)
	assert.Equal(t, imageCount, mesh.binds)
	assert.Equal(t, imageCount, mesh.draws)

	for i, buffer := range buffers {
		cmd := buffer.(*fakeCommandBuffer)

		assert.Equal(t, []string{
			"begin",
			"beginRenderPass",
			"bindPipeline",
			"bindMesh",
			"draw",
			"endRenderPass",
			"end",
		}, cmd.commands, "buffer %d", i)

		assert.Equal(t, core1_0.SubpassContentsInline, cmd.contents)
		assert.Same(t, target.renderPass, cmd.renderPass.RenderPass)
		assert.Same(t, target.framebuffers[i], cmd.renderPass.Framebuffer, "buffer %d draws into framebuffer %d", i, i)
		assert.Equal(t, target.extent, cmd.renderPass.RenderArea.Extent)
		assert.Equal(t, clearValues, cmd.renderPass.ClearValues)
	}
}

func TestRecordCommandBuffersCountMismatch(t *testing.T) {
	target := newFakeRenderTarget(3)

	err := recordCommandBuffers(commandBuffers(2), target, &fakePipeline{}, &fakeMesh{})
	assert.True(t, errors.HasAssertionFailure(err))
}

func TestRecordCommandBuffersBeginFailure(t *testing.T) {
	target := newFakeRenderTarget(2)
	buffers := commandBuffers(2)
	buffers[1].(*fakeCommandBuffer).beginErr = errors.New("device lost")

	mesh := &fakeMesh{}
	err := recordCommandBuffers(buffers, target, &fakePipeline{}, mesh)
	assert.True(t, errors.Is(err, gfx.ErrResourceCreation))
	assert.Contains(t, err.Error(), "command buffer 1")
	assert.Equal(t, 1, mesh.draws)
}

func TestClearValues(t *testing.T) {
	require.Len(t, clearValues, 2)
	assert.Equal(t, core1_0.ClearValueFloat{0.1, 0.1, 0.1, 1}, clearValues[0])
	assert.Equal(t, core1_0.ClearValueDepthStencil{Depth: 1, Stencil: 0}, clearValues[1])
}
