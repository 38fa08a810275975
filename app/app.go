// Package app ties the renderer together: it builds the GPU objects in dependency order,
// records one command buffer per swapchain image and replays them until the window closes.
package app

import (
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"

	"github.com/vkngwrapper/triangle/config"
	"github.com/vkngwrapper/triangle/gfx"
)

// Window is what the application needs from the window it presents into.
type Window interface {
	gfx.WindowSurface
	Extent() core1_0.Extent2D
	ShouldClose() bool
	PollEvents()
}

type Application struct {
	cfg    config.Config
	logger *slog.Logger
	window Window

	device         *gfx.Device
	swapChain      *gfx.SwapChain
	pipelineLayout core1_0.PipelineLayout
	pipelineCache  *gfx.PipelineCache
	pipeline       *gfx.Pipeline
	mesh           *gfx.Mesh
	commandBuffers []core1_0.CommandBuffer
}

// New builds every GPU object the application draws with. If any step fails, everything
// already built is released before the error is returned.
func New(cfg config.Config, window Window, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Application{
		cfg:    cfg,
		logger: logger,
		window: window,
	}

	err := a.init()
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) init() error {
	var err error
	a.device, err = gfx.NewDevice(a.window, gfx.DeviceOptions{
		ApplicationName:  a.cfg.Window.Title,
		EnableValidation: a.cfg.Renderer.Validation,
		Logger:           a.logger,
	})
	if err != nil {
		return err
	}

	a.swapChain, err = gfx.NewSwapChain(a.device, a.window.Extent(), a.cfg.Renderer.FramesInFlight)
	if err != nil {
		return err
	}

	err = a.createPipelineLayout()
	if err != nil {
		return err
	}

	if a.cfg.Renderer.PipelineCachePath != "" {
		a.pipelineCache, err = gfx.LoadPipelineCache(a.device, a.cfg.Renderer.PipelineCachePath)
		if err != nil {
			return err
		}
	}

	err = a.createPipeline()
	if err != nil {
		return err
	}

	err = a.loadMesh()
	if err != nil {
		return err
	}

	a.commandBuffers, err = allocateCommandBuffers(a.device.Device(), a.device.CommandPool(), a.swapChain.ImageCount())
	if err != nil {
		return err
	}

	return recordCommandBuffers(a.commandBuffers, a.swapChain, a.pipeline, a.mesh)
}

func (a *Application) createPipelineLayout() error {
	layout, _, err := a.device.Device().CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to create pipeline layout"), gfx.ErrResourceCreation)
	}
	a.pipelineLayout = layout
	return nil
}

func (a *Application) createPipeline() error {
	cfg := gfx.DefaultPipelineConfig(a.swapChain.Width(), a.swapChain.Height())
	cfg.RenderPass = a.swapChain.RenderPass()
	cfg.PipelineLayout = a.pipelineLayout

	src := gfx.ShaderSource{
		FS:       os.DirFS(a.cfg.Shaders.Dir),
		Vertex:   a.cfg.Shaders.Vertex,
		Fragment: a.cfg.Shaders.Fragment,
	}

	var err error
	a.pipeline, err = gfx.NewPipeline(a.device, src, cfg, a.pipelineCache)
	return err
}

func (a *Application) loadMesh() error {
	vertices := gfx.TriangleVertices()

	if path := a.cfg.Renderer.MeshPath; path != "" {
		file, err := os.Open(path)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "failed to open mesh %s", path), gfx.ErrResourceLoad)
		}
		defer file.Close()

		vertices, err = gfx.LoadOBJ(file)
		if err != nil {
			return errors.Wrapf(err, "failed to load mesh %s", path)
		}
		a.logger.Info("loaded mesh", "path", path, "vertices", len(vertices))
	}

	var err error
	a.mesh, err = gfx.NewMesh(a.device, vertices)
	return err
}

// Run draws frames until the window asks to close or a frame fails. The device is idle when
// Run returns, so Close may follow immediately.
func (a *Application) Run() error {
	loop := &frameLoop{
		events:         a.window,
		target:         a.swapChain,
		device:         a.device,
		commandBuffers: a.commandBuffers,
		stats:          newFrameStats(a.logger, a.cfg.Renderer.StatsInterval.Std()),
	}

	a.logger.Info("rendering",
		"device", a.device.Properties().DeviceName,
		"extent", a.swapChain.Extent(),
		"images", a.swapChain.ImageCount(),
		"framesInFlight", a.swapChain.FramesInFlight())

	err := loop.run()
	a.logger.Info("render loop finished", "frames", loop.stats.frames, "suboptimal", loop.stats.suboptimal, "state", loop.state)
	return err
}

// Close releases everything New built, in reverse order of creation. The window belongs to
// the caller and is left alone.
func (a *Application) Close() {
	if a.pipelineCache != nil {
		err := a.pipelineCache.Save()
		if err != nil {
			a.logger.Warn("failed to save pipeline cache", "error", err)
		}
	}

	// Command buffers go with the device's command pool.
	a.commandBuffers = nil

	if a.mesh != nil {
		a.mesh.Destroy()
		a.mesh = nil
	}

	if a.pipeline != nil {
		a.pipeline.Destroy()
		a.pipeline = nil
	}

	if a.pipelineCache != nil {
		a.pipelineCache.Destroy()
		a.pipelineCache = nil
	}

	if a.pipelineLayout != nil {
		a.pipelineLayout.Destroy(nil)
		a.pipelineLayout = nil
	}

	if a.swapChain != nil {
		a.swapChain.Destroy()
		a.swapChain = nil
	}

	if a.device != nil {
		a.device.Destroy()
		a.device = nil
	}
}
