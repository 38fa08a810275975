package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/core1_0"
)

const cullModeNone core1_0.CullModeFlags = 0

// PipelineConfig is the fixed-function state of a graphics pipeline. DefaultPipelineConfig
// fills in everything; callers set PipelineLayout, RenderPass and Subpass.
type PipelineConfig struct {
	Viewport             core1_0.Viewport
	Scissor              core1_0.Rect2D
	InputAssembly        core1_0.PipelineInputAssemblyStateCreateInfo
	Rasterization        core1_0.PipelineRasterizationStateCreateInfo
	Multisample          core1_0.PipelineMultisampleStateCreateInfo
	ColorBlendAttachment core1_0.PipelineColorBlendAttachmentState
	ColorBlend           core1_0.PipelineColorBlendStateCreateInfo
	DepthStencil         core1_0.PipelineDepthStencilStateCreateInfo

	PipelineLayout core1_0.PipelineLayout
	RenderPass     core1_0.RenderPass
	Subpass        int
}

// DefaultPipelineConfig returns the canonical state for drawing opaque triangle lists into
// a width x height target with depth testing.
func DefaultPipelineConfig(width, height int) PipelineConfig {
	var cfg PipelineConfig

	cfg.InputAssembly = core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	cfg.Viewport = core1_0.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(width),
		Height:   float32(height),
		MinDepth: 0,
		MaxDepth: 1,
	}

	cfg.Scissor = core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 0, Y: 0},
		Extent: core1_0.Extent2D{Width: width, Height: height},
	}

	cfg.Rasterization = core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    cullModeNone,
		FrontFace:   core1_0.FrontFaceClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	cfg.Multisample = core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	cfg.DepthStencil = core1_0.PipelineDepthStencilStateCreateInfo{
		DepthTestEnable:  true,
		DepthWriteEnable: true,
		DepthCompareOp:   core1_0.CompareOpLess,
		MinDepthBounds:   0,
		MaxDepthBounds:   1,
	}

	cfg.ColorBlendAttachment = core1_0.PipelineColorBlendAttachmentState{
		BlendEnabled:   false,
		ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,

		SrcColorBlendFactor: core1_0.BlendFactorOne,
		DstColorBlendFactor: core1_0.BlendFactorZero,
		ColorBlendOp:        core1_0.BlendOpAdd,
		SrcAlphaBlendFactor: core1_0.BlendFactorOne,
		DstAlphaBlendFactor: core1_0.BlendFactorZero,
		AlphaBlendOp:        core1_0.BlendOpAdd,
	}

	cfg.ColorBlend = core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,
		BlendConstants: [4]float32{0, 0, 0, 0},
	}

	return cfg
}

// Pipeline is an immutable graphics pipeline together with the shader modules it was
// built from.
type Pipeline struct {
	device     core1_0.Device
	pipeline   core1_0.Pipeline
	vertShader core1_0.ShaderModule
	fragShader core1_0.ShaderModule
}

// NewPipeline compiles the shaders in src and builds a graphics pipeline with cfg. cache
// may be nil.
//
// cfg.PipelineLayout and cfg.RenderPass must be set; a missing one is a construction-order
// bug and panics. Unreadable shader files yield an error matching ErrShaderLoad, invalid
// ones ErrShaderCompile.
func NewPipeline(device *Device, src ShaderSource, cfg PipelineConfig, cache *PipelineCache) (*Pipeline, error) {
	if cfg.PipelineLayout == nil {
		panic(errors.AssertionFailedf("cannot create graphics pipeline: no PipelineLayout provided in config"))
	}
	if cfg.RenderPass == nil {
		panic(errors.AssertionFailedf("cannot create graphics pipeline: no RenderPass provided in config"))
	}

	code, err := src.load()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{device: device.Device()}
	err = p.create(device, src, code, cfg, cache)
	if err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) create(device *Device, src ShaderSource, code shaderCode, cfg PipelineConfig, cache *PipelineCache) error {
	var err error
	p.vertShader, err = createShaderModule(p.device, code.vertex, src.Vertex)
	if err != nil {
		return err
	}

	p.fragShader, err = createShaderModule(p.device, code.fragment, src.Fragment)
	if err != nil {
		return err
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: p.vertShader,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: p.fragShader,
		Name:   "main",
	}

	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions:   VertexBindingDescriptions(),
		VertexAttributeDescriptions: VertexAttributeDescriptions(),
	}

	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{cfg.Viewport},
		Scissors:  []core1_0.Rect2D{cfg.Scissor},
	}

	colorBlend := cfg.ColorBlend
	colorBlend.Attachments = []core1_0.PipelineColorBlendAttachmentState{cfg.ColorBlendAttachment}

	var pipelineCache core1_0.PipelineCache
	if cache != nil {
		pipelineCache = cache.cache
	}

	start := hrtime.Now()
	pipelines, _, err := p.device.CreateGraphicsPipelines(pipelineCache, nil, []core1_0.GraphicsPipelineCreateInfo{
		{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: &cfg.InputAssembly,
			ViewportState:      viewport,
			RasterizationState: &cfg.Rasterization,
			MultisampleState:   &cfg.Multisample,
			DepthStencilState:  &cfg.DepthStencil,
			ColorBlendState:    &colorBlend,
			Layout:             cfg.PipelineLayout,
			RenderPass:         cfg.RenderPass,
			Subpass:            cfg.Subpass,
			BasePipelineIndex:  -1,
		},
	})
	if err != nil {
		return creationError(err, "failed to create graphics pipeline")
	}
	p.pipeline = pipelines[0]

	device.Logger().Debug("created graphics pipeline", "elapsed", hrtime.Since(start), "cached", cache != nil)
	return nil
}

// Bind records binding the pipeline to the graphics bind point of cmd.
func (p *Pipeline) Bind(cmd core1_0.CommandBuffer) {
	cmd.CmdBindPipeline(core1_0.PipelineBindPointGraphics, p.pipeline)
}

// Destroy releases the pipeline and its shader modules. Safe to call more than once.
func (p *Pipeline) Destroy() {
	if p.pipeline != nil {
		p.pipeline.Destroy(nil)
		p.pipeline = nil
	}

	if p.fragShader != nil {
		p.fragShader.Destroy(nil)
		p.fragShader = nil
	}

	if p.vertShader != nil {
		p.vertShader.Destroy(nil)
		p.vertShader = nil
	}
}
