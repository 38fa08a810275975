package gfx

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
)

func TestVertexDescriptions(t *testing.T) {
	bindings := VertexBindingDescriptions()
	require.Len(t, bindings, 1)
	assert.EqualValues(t, 0, bindings[0].Binding)
	assert.Equal(t, 20, bindings[0].Stride)
	assert.Equal(t, core1_0.VertexInputRateVertex, bindings[0].InputRate)

	attributes := VertexAttributeDescriptions()
	require.Len(t, attributes, 2)

	assert.EqualValues(t, 0, attributes[0].Location)
	assert.Equal(t, core1_0.FormatR32G32SignedFloat, attributes[0].Format)
	assert.Equal(t, 0, attributes[0].Offset)

	assert.EqualValues(t, 1, attributes[1].Location)
	assert.Equal(t, core1_0.FormatR32G32B32SignedFloat, attributes[1].Format)
	assert.Equal(t, 8, attributes[1].Offset)
}

func TestTriangleVerticesEncoding(t *testing.T) {
	vertices := TriangleVertices()
	require.Len(t, vertices, 3)

	data, err := encodeData(vertices)
	require.NoError(t, err)
	require.Len(t, data, 3*VertexBindingDescriptions()[0].Stride)

	float := func(offset int) float32 {
		return math.Float32frombits(common.ByteOrder.Uint32(data[offset : offset+4]))
	}

	// First vertex: position (0, -0.5), red.
	assert.Equal(t, float32(0), float(0))
	assert.Equal(t, float32(-0.5), float(4))
	assert.Equal(t, float32(1), float(8))
	assert.Equal(t, float32(0), float(12))

	// Second vertex starts one stride in: position (0.5, 0.5), green.
	assert.Equal(t, float32(0.5), float(20))
	assert.Equal(t, float32(1), float(32))
}

func TestNewMeshNeedsATriangle(t *testing.T) {
	mesh, err := NewMesh(&Device{}, TriangleVertices()[:2])
	assert.Nil(t, mesh)
	assert.True(t, errors.Is(err, ErrResourceCreation))
}

func TestMeshDestroyTwice(t *testing.T) {
	m := &Mesh{vertexCount: 3}
	assert.Equal(t, 3, m.VertexCount())
	assert.NotPanics(t, func() {
		m.Destroy()
		m.Destroy()
	})
}
