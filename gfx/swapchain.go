package gfx

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

// DefaultFramesInFlight is the number of frames the CPU may record ahead of the GPU.
const DefaultFramesInFlight = 2

var depthFormatCandidates = []core1_0.Format{
	core1_0.FormatD32SignedFloat,
	core1_0.FormatD32SignedFloatS8UnsignedInt,
	core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
}

// SwapChain owns the presentable images, the render pass they are drawn with, one
// framebuffer per image and the semaphores and fences that pace frames against the GPU.
//
// Per-image resources live in slices sized at creation and are indexed by the image index
// AcquireNextImage returns.
type SwapChain struct {
	logger *slog.Logger

	device        core1_0.Device
	extension     khr_swapchain.Extension
	swapchain     khr_swapchain.Swapchain
	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue

	imageFormat core1_0.Format
	depthFormat core1_0.Format
	extent      core1_0.Extent2D

	images       []core1_0.Image
	imageViews   []core1_0.ImageView
	framebuffers []core1_0.Framebuffer
	renderPass   core1_0.RenderPass

	depthImage       core1_0.Image
	depthImageMemory core1_0.DeviceMemory
	depthImageView   core1_0.ImageView

	framesInFlight           int
	imageAvailableSemaphores []core1_0.Semaphore
	renderFinishedSemaphores []core1_0.Semaphore
	inFlightFences           []core1_0.Fence
	imagesInFlight           []core1_0.Fence
	currentFrame             int
}

// NewSwapChain creates a swapchain for the device's surface sized to windowExtent, along
// with its render pass, framebuffers and synchronization objects. A framesInFlight below 1
// selects DefaultFramesInFlight. Errors match ErrResourceCreation.
func NewSwapChain(device *Device, windowExtent core1_0.Extent2D, framesInFlight int) (*SwapChain, error) {
	if framesInFlight < 1 {
		framesInFlight = DefaultFramesInFlight
	}

	s := &SwapChain{
		logger:         device.Logger(),
		device:         device.Device(),
		graphicsQueue:  device.GraphicsQueue(),
		presentQueue:   device.PresentQueue(),
		framesInFlight: framesInFlight,
	}

	err := s.init(device, windowExtent)
	if err != nil {
		s.Destroy()
		return nil, mark(err, ErrResourceCreation)
	}

	s.logger.Info("created swapchain",
		"images", len(s.images),
		"width", s.extent.Width,
		"height", s.extent.Height,
		"framesInFlight", s.framesInFlight)
	return s, nil
}

func (s *SwapChain) init(device *Device, windowExtent core1_0.Extent2D) error {
	err := s.createSwapchain(device, windowExtent)
	if err != nil {
		return err
	}

	err = s.createImageViews(device)
	if err != nil {
		return err
	}

	err = s.createRenderPass(device)
	if err != nil {
		return err
	}

	err = s.createDepthResources(device)
	if err != nil {
		return err
	}

	err = s.createFramebuffers()
	if err != nil {
		return err
	}

	return s.createSyncObjects()
}

func chooseSwapSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

func chooseSwapPresentMode(availablePresentModes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, presentMode := range availablePresentModes {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

// chooseSwapExtent uses the surface's current extent unless the surface leaves the choice
// to the swapchain, in which case the window extent is clamped to the supported range.
func chooseSwapExtent(capabilities *khr_surface.SurfaceCapabilities, windowExtent core1_0.Extent2D) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width := windowExtent.Width
	height := windowExtent.Height

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return core1_0.Extent2D{Width: width, Height: height}
}

// chooseImageCount asks for one image more than the minimum, capped at the maximum when
// the surface has one (a maximum of 0 means unbounded).
func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func (s *SwapChain) createSwapchain(device *Device, windowExtent core1_0.Extent2D) error {
	s.extension = khr_swapchain.CreateExtensionFromDevice(s.device)

	swapchainSupport, err := device.SwapchainSupport()
	if err != nil {
		return err
	}
	if len(swapchainSupport.Formats) == 0 {
		return errors.New("surface reports no formats")
	}

	surfaceFormat := chooseSwapSurfaceFormat(swapchainSupport.Formats)
	presentMode := chooseSwapPresentMode(swapchainSupport.PresentModes)
	extent := chooseSwapExtent(swapchainSupport.Capabilities, windowExtent)
	imageCount := chooseImageCount(swapchainSupport.Capabilities)

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int

	indices := device.QueueFamilies()
	if !indices.Shared() {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, *indices.GraphicsFamily, *indices.PresentFamily)
	}

	swapchain, _, err := s.extension.CreateSwapchain(s.device, nil, khr_swapchain.SwapchainCreateInfo{
		Surface: device.Surface(),

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   swapchainSupport.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create swapchain")
	}

	s.swapchain = swapchain
	s.extent = extent
	s.imageFormat = surfaceFormat.Format
	return nil
}

func (s *SwapChain) createImageViews(device *Device) error {
	images, _, err := s.swapchain.SwapchainImages()
	if err != nil {
		return errors.Wrap(err, "failed to get swapchain images")
	}
	s.images = images

	for _, image := range images {
		view, err := device.CreateImageView(image, s.imageFormat, core1_0.ImageAspectColor)
		if err != nil {
			return err
		}

		s.imageViews = append(s.imageViews, view)
	}

	return nil
}

func (s *SwapChain) createRenderPass(device *Device) error {
	var err error
	s.depthFormat, err = device.FindSupportedFormat(depthFormatCandidates,
		core1_0.ImageTilingOptimal,
		core1_0.FormatFeatureDepthStencilAttachment)
	if err != nil {
		return err
	}

	s.renderPass, _, err = s.device.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         s.imageFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
			{
				Format:         s.depthFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpDontCare,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: 1,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create render pass")
	}
	return nil
}

func (s *SwapChain) createDepthResources(device *Device) error {
	var err error
	s.depthImage, s.depthImageMemory, err = device.CreateImage(s.extent.Width,
		s.extent.Height,
		s.depthFormat,
		core1_0.ImageTilingOptimal,
		core1_0.ImageUsageDepthStencilAttachment,
		core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return err
	}

	s.depthImageView, err = device.CreateImageView(s.depthImage, s.depthFormat, core1_0.ImageAspectDepth)
	return err
}

func (s *SwapChain) createFramebuffers() error {
	for _, imageView := range s.imageViews {
		framebuffer, _, err := s.device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: s.renderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				imageView,
				s.depthImageView,
			},
			Width:  s.extent.Width,
			Height: s.extent.Height,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create framebuffer")
		}

		s.framebuffers = append(s.framebuffers, framebuffer)
	}

	return nil
}

func (s *SwapChain) createSyncObjects() error {
	for i := 0; i < s.framesInFlight; i++ {
		semaphore, _, err := s.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return errors.Wrap(err, "failed to create image available semaphore")
		}
		s.imageAvailableSemaphores = append(s.imageAvailableSemaphores, semaphore)

		semaphore, _, err = s.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return errors.Wrap(err, "failed to create render finished semaphore")
		}
		s.renderFinishedSemaphores = append(s.renderFinishedSemaphores, semaphore)

		fence, _, err := s.device.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create in flight fence")
		}
		s.inFlightFences = append(s.inFlightFences, fence)
	}

	s.imagesInFlight = make([]core1_0.Fence, len(s.images))
	return nil
}

// AcquireNextImage waits until the current in-flight frame slot is free, then acquires the
// next presentable image, signalling the slot's image-available semaphore. Suboptimal
// acquisition is reported as StatusSuboptimal without an error; an out of date swapchain
// as StatusStale with an error matching ErrSwapchainStale.
func (s *SwapChain) AcquireNextImage() (int, Status, error) {
	fences := []core1_0.Fence{s.inFlightFences[s.currentFrame]}

	_, err := s.device.WaitForFences(true, common.NoTimeout, fences)
	if err != nil {
		return 0, StatusError, mark(errors.Wrap(err, "failed to wait for in flight fence"), ErrFrame)
	}

	imageIndex, res, err := s.swapchain.AcquireNextImage(common.NoTimeout, s.imageAvailableSemaphores[s.currentFrame], nil)
	status, err := frameStatus(res, err, "acquire swapchain image")
	if !status.Usable() {
		return 0, status, err
	}

	if imageIndex < 0 || imageIndex >= len(s.images) {
		return 0, StatusError, mark(errors.AssertionFailedf("acquired image index %d outside [0, %d)", imageIndex, len(s.images)), ErrFrame)
	}
	return imageIndex, status, nil
}

// SubmitCommandBuffers submits buffer, pre-recorded for imageIndex, to the graphics queue
// and presents the image once rendering has finished.
func (s *SwapChain) SubmitCommandBuffers(buffer core1_0.CommandBuffer, imageIndex int) (Status, error) {
	if imageIndex < 0 || imageIndex >= len(s.images) {
		return StatusError, mark(errors.AssertionFailedf("image index %d outside [0, %d)", imageIndex, len(s.images)), ErrFrame)
	}

	// A previous frame slot may still be rendering into this image.
	if s.imagesInFlight[imageIndex] != nil {
		_, err := s.imagesInFlight[imageIndex].Wait(common.NoTimeout)
		if err != nil {
			return StatusError, mark(errors.Wrapf(err, "failed to wait for image %d", imageIndex), ErrFrame)
		}
	}
	fence := s.inFlightFences[s.currentFrame]
	s.imagesInFlight[imageIndex] = fence

	_, err := s.device.ResetFences([]core1_0.Fence{fence})
	if err != nil {
		return StatusError, mark(errors.Wrap(err, "failed to reset in flight fence"), ErrFrame)
	}

	_, err = s.graphicsQueue.Submit(fence, []core1_0.SubmitInfo{
		{
			WaitSemaphores:   []core1_0.Semaphore{s.imageAvailableSemaphores[s.currentFrame]},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{buffer},
			SignalSemaphores: []core1_0.Semaphore{s.renderFinishedSemaphores[s.currentFrame]},
		},
	})
	if err != nil {
		return StatusError, mark(errors.Wrap(err, "failed to submit draw command buffer"), ErrFrame)
	}

	res, err := s.extension.QueuePresent(s.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{s.renderFinishedSemaphores[s.currentFrame]},
		Swapchains:     []khr_swapchain.Swapchain{s.swapchain},
		ImageIndices:   []int{imageIndex},
	})

	s.currentFrame = (s.currentFrame + 1) % s.framesInFlight
	return presentStatus(res, err)
}

func (s *SwapChain) RenderPass() core1_0.RenderPass          { return s.renderPass }
func (s *SwapChain) Framebuffer(index int) core1_0.Framebuffer { return s.framebuffers[index] }
func (s *SwapChain) ImageCount() int                          { return len(s.images) }
func (s *SwapChain) FramebufferCount() int                    { return len(s.framebuffers) }
func (s *SwapChain) FramesInFlight() int                      { return s.framesInFlight }
func (s *SwapChain) ImageFormat() core1_0.Format              { return s.imageFormat }
func (s *SwapChain) DepthFormat() core1_0.Format              { return s.depthFormat }
func (s *SwapChain) Extent() core1_0.Extent2D                 { return s.extent }
func (s *SwapChain) Width() int                               { return s.extent.Width }
func (s *SwapChain) Height() int                              { return s.extent.Height }

func (s *SwapChain) ExtentAspectRatio() float32 {
	return float32(s.extent.Width) / float32(s.extent.Height)
}

// Destroy releases every resource of the swapchain. The device must be idle. Safe to call
// more than once.
func (s *SwapChain) Destroy() {
	for _, framebuffer := range s.framebuffers {
		framebuffer.Destroy(nil)
	}
	s.framebuffers = nil

	if s.depthImageView != nil {
		s.depthImageView.Destroy(nil)
		s.depthImageView = nil
	}

	if s.depthImage != nil {
		s.depthImage.Destroy(nil)
		s.depthImage = nil
	}

	if s.depthImageMemory != nil {
		s.depthImageMemory.Free(nil)
		s.depthImageMemory = nil
	}

	if s.renderPass != nil {
		s.renderPass.Destroy(nil)
		s.renderPass = nil
	}

	for _, imageView := range s.imageViews {
		imageView.Destroy(nil)
	}
	s.imageViews = nil

	if s.swapchain != nil {
		s.swapchain.Destroy(nil)
		s.swapchain = nil
	}

	for _, fence := range s.inFlightFences {
		fence.Destroy(nil)
	}
	s.inFlightFences = nil

	for _, semaphore := range s.renderFinishedSemaphores {
		semaphore.Destroy(nil)
	}
	s.renderFinishedSemaphores = nil

	for _, semaphore := range s.imageAvailableSemaphores {
		semaphore.Destroy(nil)
	}
	s.imageAvailableSemaphores = nil

	s.imagesInFlight = nil
}
