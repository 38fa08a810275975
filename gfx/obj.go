package gfx

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

// LoadOBJ decodes a Wavefront OBJ stream into a flat triangle list. Polygons are fanned into
// triangles, positions are projected onto the XY plane and every vertex is white.
func LoadOBJ(r io.Reader) ([]Vertex, error) {
	// No materials are used; an empty library keeps the decoder from looking for one.
	decoder, err := obj.DecodeReader(r, strings.NewReader(""))
	if err != nil {
		return nil, mark(errors.Wrap(err, "failed to decode obj mesh"), ErrResourceLoad)
	}

	var vertices []Vertex
	addVertex := func(face obj.Face, faceIndex int) error {
		vertInd := face.Vertices[faceIndex]
		if vertInd < 0 || vertInd*3+2 >= len(decoder.Vertices) {
			return errors.Newf("face references missing vertex %d", vertInd)
		}

		vertices = append(vertices, Vertex{
			Position: mgl32.Vec2{
				decoder.Vertices[vertInd*3],
				decoder.Vertices[vertInd*3+1],
			},
			Color: mgl32.Vec3{1, 1, 1},
		})
		return nil
	}

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				for _, idx := range []int{0, i - 1, i} {
					err := addVertex(face, idx)
					if err != nil {
						return nil, mark(err, ErrResourceLoad)
					}
				}
			}
		}
	}

	if len(vertices) == 0 {
		return nil, mark(errors.New("obj mesh has no faces"), ErrResourceLoad)
	}
	return vertices, nil
}
