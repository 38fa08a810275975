package gfx

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
)

func (d *Device) FindMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memProperties := d.physicalDevice.MemoryProperties()
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Newf("failed to find any suitable memory type for filter 0x%x", typeFilter)
}

// FindSupportedFormat returns the first of formats whose tiling supports features.
func (d *Device) FindSupportedFormat(formats []core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range formats {
		props := d.physicalDevice.FormatProperties(format)

		if tiling == core1_0.ImageTilingLinear && (props.LinearTilingFeatures&features) == features {
			return format, nil
		} else if tiling == core1_0.ImageTilingOptimal && (props.OptimalTilingFeatures&features) == features {
			return format, nil
		}
	}

	return 0, errors.Newf("failed to find supported format for tiling %s, featureset %s", tiling, features)
}

// CreateBuffer creates a buffer and binds freshly allocated memory to it. When an error is
// returned after the buffer was created, the partial resources are returned so the caller
// can release them.
func (d *Device) CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	buffer, _, err := d.device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create buffer")
	}

	memRequirements := buffer.MemoryRequirements()
	memoryTypeIndex, err := d.FindMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		return buffer, nil, err
	}

	memory, _, err := d.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return buffer, nil, errors.Wrap(err, "failed to allocate buffer memory")
	}

	_, err = buffer.BindBufferMemory(memory, 0)
	if err != nil {
		return buffer, memory, errors.Wrap(err, "failed to bind buffer memory")
	}
	return buffer, memory, nil
}

func (d *Device) CreateImage(width, height int, format core1_0.Format, tiling core1_0.ImageTiling, usage core1_0.ImageUsageFlags, memoryProperties core1_0.MemoryPropertyFlags) (core1_0.Image, core1_0.DeviceMemory, error) {
	image, _, err := d.device.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create image")
	}

	memReqs := image.MemoryRequirements()
	memoryIndex, err := d.FindMemoryType(memReqs.MemoryTypeBits, memoryProperties)
	if err != nil {
		image.Destroy(nil)
		return nil, nil, err
	}

	imageMemory, _, err := d.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		image.Destroy(nil)
		return nil, nil, errors.Wrap(err, "failed to allocate image memory")
	}

	_, err = image.BindImageMemory(imageMemory, 0)
	if err != nil {
		image.Destroy(nil)
		imageMemory.Free(nil)
		return nil, nil, errors.Wrap(err, "failed to bind image memory")
	}

	return image, imageMemory, nil
}

func (d *Device) CreateImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (core1_0.ImageView, error) {
	imageView, _, err := d.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create image view")
	}
	return imageView, nil
}

func (d *Device) beginSingleTimeCommands() (core1_0.CommandBuffer, error) {
	buffers, _, err := d.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate transfer command buffer")
	}

	buffer := buffers[0]
	_, err = buffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		d.device.FreeCommandBuffers(buffers)
		return nil, errors.Wrap(err, "failed to begin transfer command buffer")
	}
	return buffer, nil
}

func (d *Device) endSingleTimeCommands(buffer core1_0.CommandBuffer) error {
	defer d.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})

	_, err := buffer.End()
	if err != nil {
		return errors.Wrap(err, "failed to end transfer command buffer")
	}

	_, err = d.graphicsQueue.Submit(nil, []core1_0.SubmitInfo{
		{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to submit transfer command buffer")
	}

	_, err = d.graphicsQueue.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "failed to wait for transfer")
	}
	return nil
}

// CopyBuffer copies size bytes from srcBuffer to dstBuffer and waits for the copy to finish.
func (d *Device) CopyBuffer(srcBuffer core1_0.Buffer, dstBuffer core1_0.Buffer, size int) error {
	buffer, err := d.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = buffer.CmdCopyBuffer(srcBuffer, dstBuffer, []core1_0.BufferCopy{
		{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	})
	if err != nil {
		d.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})
		return errors.Wrap(err, "failed to record buffer copy")
	}

	return d.endSingleTimeCommands(buffer)
}

// encodeData serializes data in the byte order the device expects.
func encodeData(data any) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode buffer data")
	}
	return buf.Bytes(), nil
}

func writeData(memory core1_0.DeviceMemory, offset int, data any) error {
	encoded, err := encodeData(data)
	if err != nil {
		return err
	}

	memoryPtr, _, err := memory.Map(offset, len(encoded), 0)
	if err != nil {
		return errors.Wrap(err, "failed to map memory")
	}
	defer memory.Unmap()

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), len(encoded))
	copy(dataBuffer, encoded)
	return nil
}
