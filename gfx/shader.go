package gfx

import (
	"io/fs"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"golang.org/x/sync/errgroup"
)

const spirvMagic uint32 = 0x07230203

// ShaderSource names the two SPIR-V binaries a graphics pipeline is built from.
type ShaderSource struct {
	FS       fs.FS
	Vertex   string
	Fragment string
}

type shaderCode struct {
	vertex   []uint32
	fragment []uint32
}

// bytesToBytecode reinterprets a little-endian SPIR-V blob as 32-bit words.
func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Newf("size %d is not a positive multiple of 4", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	if byteCode[0] != spirvMagic {
		return nil, errors.Newf("bad magic number 0x%08x", byteCode[0])
	}

	return byteCode, nil
}

// LoadShaderCode reads one SPIR-V binary from fsys.
func LoadShaderCode(fsys fs.FS, path string) ([]uint32, error) {
	b, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, shaderLoadError(err, path)
	}

	code, err := bytesToBytecode(b)
	if err != nil {
		return nil, shaderCompileError(err, path)
	}
	return code, nil
}

func (s ShaderSource) load() (shaderCode, error) {
	var code shaderCode
	var group errgroup.Group

	group.Go(func() error {
		var err error
		code.vertex, err = LoadShaderCode(s.FS, s.Vertex)
		return err
	})
	group.Go(func() error {
		var err error
		code.fragment, err = LoadShaderCode(s.FS, s.Fragment)
		return err
	})

	return code, group.Wait()
}

func createShaderModule(device core1_0.Device, code []uint32, path string) (core1_0.ShaderModule, error) {
	module, _, err := device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	if err != nil {
		return nil, shaderCompileError(err, path)
	}
	return module, nil
}
