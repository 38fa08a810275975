package gfx

import (
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/core1_0"
)

type Vertex struct {
	Position mgl32.Vec2
	Color    mgl32.Vec3
}

func VertexBindingDescriptions() []core1_0.VertexInputBindingDescription {
	v := Vertex{}
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    int(unsafe.Sizeof(v)),
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

func VertexAttributeDescriptions() []core1_0.VertexInputAttributeDescription {
	v := Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
	}
}

// TriangleVertices is the mesh drawn when no other geometry is configured.
func TriangleVertices() []Vertex {
	return []Vertex{
		{Position: mgl32.Vec2{0.0, -0.5}, Color: mgl32.Vec3{1, 0, 0}},
		{Position: mgl32.Vec2{0.5, 0.5}, Color: mgl32.Vec3{0, 1, 0}},
		{Position: mgl32.Vec2{-0.5, 0.5}, Color: mgl32.Vec3{0, 0, 1}},
	}
}

// Mesh is a device-local vertex buffer holding a fixed list of vertices.
type Mesh struct {
	vertexBuffer       core1_0.Buffer
	vertexBufferMemory core1_0.DeviceMemory
	vertexCount        int
}

// NewMesh uploads vertices to device-local memory through a staging buffer. At least one
// triangle's worth of vertices is required.
func NewMesh(device *Device, vertices []Vertex) (*Mesh, error) {
	if len(vertices) < 3 {
		return nil, mark(errors.Newf("mesh needs at least 3 vertices, got %d", len(vertices)), ErrResourceCreation)
	}

	m := &Mesh{vertexCount: len(vertices)}
	err := m.createVertexBuffer(device, vertices)
	if err != nil {
		m.Destroy()
		return nil, mark(err, ErrResourceCreation)
	}
	return m, nil
}

func (m *Mesh) createVertexBuffer(device *Device, vertices []Vertex) error {
	bufferSize := binary.Size(vertices)

	stagingBuffer, stagingBufferMemory, err := device.CreateBuffer(bufferSize, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if stagingBuffer != nil {
		defer stagingBuffer.Destroy(nil)
	}
	if stagingBufferMemory != nil {
		defer stagingBufferMemory.Free(nil)
	}

	if err != nil {
		return err
	}

	err = writeData(stagingBufferMemory, 0, vertices)
	if err != nil {
		return err
	}

	m.vertexBuffer, m.vertexBufferMemory, err = device.CreateBuffer(bufferSize, core1_0.BufferUsageTransferDst|core1_0.BufferUsageVertexBuffer, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return err
	}

	return device.CopyBuffer(stagingBuffer, m.vertexBuffer, bufferSize)
}

func (m *Mesh) VertexCount() int { return m.vertexCount }

// Bind records binding the vertex buffer to binding 0 of cmd.
func (m *Mesh) Bind(cmd core1_0.CommandBuffer) {
	cmd.CmdBindVertexBuffers(0, []core1_0.Buffer{m.vertexBuffer}, []int{0})
}

// Draw records a single non-indexed draw of every vertex.
func (m *Mesh) Draw(cmd core1_0.CommandBuffer) {
	cmd.CmdDraw(m.vertexCount, 1, 0, 0)
}

// Destroy releases the vertex buffer and its memory. Safe to call more than once.
func (m *Mesh) Destroy() {
	if m.vertexBuffer != nil {
		m.vertexBuffer.Destroy(nil)
		m.vertexBuffer = nil
	}

	if m.vertexBufferMemory != nil {
		m.vertexBufferMemory.Free(nil)
		m.vertexBufferMemory = nil
	}
}
