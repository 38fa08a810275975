// Package shaders holds the GLSL sources of the triangle pipeline. The SPIR-V binaries the
// renderer loads at runtime are produced by go generate.
package shaders

//go:generate glslc shader.vert -o shader.vert.spv
//go:generate glslc shader.frag -o shader.frag.spv
