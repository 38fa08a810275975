// Package window provides the SDL2 window the renderer presents into.
package window

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2"
)

// Window is a fixed-size, non-resizable SDL2 window with Vulkan support. SDL must be driven
// from the thread that called New.
type Window struct {
	window      *sdl.Window
	width       int
	height      int
	title       string
	shouldClose bool
}

func New(width, height int, title string) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "failed to initialize sdl")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrapf(err, "failed to create %dx%d window", width, height)
	}

	return &Window{
		window: window,
		width:  width,
		height: height,
		title:  title,
	}, nil
}

// Loader returns a Vulkan loader resolved through SDL's vkGetInstanceProcAddr.
func (w *Window) Loader() (core.Loader, error) {
	loader, err := core.CreateLoaderFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create loader from sdl")
	}
	return loader, nil
}

func (w *Window) RequiredExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *Window) CreateSurface(instance core1_0.Instance) (khr_surface.Surface, error) {
	surfaceLoader := khr_surface.CreateExtensionFromInstance(instance)

	surface, err := vkng_sdl2.CreateSurface(instance, surfaceLoader, w.window)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create vulkan surface")
	}
	return surface, nil
}

// Extent is the size the window was created with.
func (w *Window) Extent() core1_0.Extent2D {
	return core1_0.Extent2D{Width: w.width, Height: w.height}
}

func (w *Window) ShouldClose() bool {
	return w.shouldClose
}

// PollEvents drains the SDL event queue, latching a close request.
func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			w.shouldClose = true
		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_CLOSE {
				w.shouldClose = true
			}
		}
	}
}

func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
