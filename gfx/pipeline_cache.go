package gfx

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
)

// Pipeline cache header layout:
//
//	offset  size  meaning
//	     0     4  header length in bytes
//	     4     4  header version (1)
//	     8     4  vendor ID
//	    12     4  device ID
//	    16    16  pipeline cache UUID
const (
	pipelineCacheHeaderVersionOne = 1
	pipelineCacheHeaderSize       = 16 + len(uuid.UUID{})
)

type pipelineCacheHeader struct {
	Length   uint32
	Version  uint32
	VendorID uint32
	DeviceID uint32
	CacheID  uuid.UUID
}

// cacheIdentity is what a stored pipeline cache must match to be reused.
type cacheIdentity struct {
	VendorID uint32
	DeviceID uint32
	CacheID  uuid.UUID
}

func parsePipelineCacheHeader(data []byte) (pipelineCacheHeader, error) {
	var header pipelineCacheHeader
	if len(data) < pipelineCacheHeaderSize {
		return header, errors.Newf("cache data is %d bytes, shorter than its header", len(data))
	}

	err := binary.Read(bytes.NewReader(data), common.ByteOrder, &header)
	if err != nil {
		return header, errors.Wrap(err, "failed to read cache header")
	}
	return header, nil
}

// validatePipelineCache reports why data cannot seed a pipeline cache for id, or nil when
// it can.
func validatePipelineCache(data []byte, id cacheIdentity) error {
	header, err := parsePipelineCacheHeader(data)
	if err != nil {
		return err
	}

	switch {
	case header.Length < uint32(pipelineCacheHeaderSize):
		return errors.Newf("bad header length 0x%x", header.Length)
	case header.Version != pipelineCacheHeaderVersionOne:
		return errors.Newf("unsupported cache header version 0x%x", header.Version)
	case header.VendorID != id.VendorID:
		return errors.Newf("vendor ID mismatch: cache 0x%x, driver 0x%x", header.VendorID, id.VendorID)
	case header.DeviceID != id.DeviceID:
		return errors.Newf("device ID mismatch: cache 0x%x, driver 0x%x", header.DeviceID, id.DeviceID)
	case header.CacheID != id.CacheID:
		return errors.Newf("UUID mismatch: cache %s, driver %s", header.CacheID, id.CacheID)
	}
	return nil
}

// PipelineCache is a driver pipeline cache persisted to a file between runs.
type PipelineCache struct {
	device *Device
	path   string
	cache  core1_0.PipelineCache
}

// LoadPipelineCache creates a pipeline cache seeded from the file at path. A missing file or
// one written by a different driver or device starts an empty cache.
func LoadPipelineCache(device *Device, path string) (*PipelineCache, error) {
	props := device.Properties()
	id := cacheIdentity{
		VendorID: props.VendorID,
		DeviceID: props.DeviceID,
		CacheID:  props.PipelineCacheUUID,
	}

	initialData, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		initialData = nil
	case err != nil:
		return nil, mark(errors.Wrapf(err, "failed to read pipeline cache %s", path), ErrResourceLoad)
	default:
		if invalid := validatePipelineCache(initialData, id); invalid != nil {
			device.Logger().Warn("discarding pipeline cache", "path", path, "reason", invalid)
			initialData = nil
		}
	}

	cache, _, err := device.Device().CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: initialData,
	})
	if err != nil {
		return nil, creationError(err, "failed to create pipeline cache")
	}

	device.Logger().Debug("created pipeline cache", "path", path, "seeded", initialData != nil)
	return &PipelineCache{device: device, path: path, cache: cache}, nil
}

// Save writes the current cache contents back to the file it was loaded from.
func (c *PipelineCache) Save() error {
	data, _, err := c.cache.CacheData()
	if err != nil {
		return errors.Wrap(err, "failed to read pipeline cache data")
	}

	err = os.WriteFile(c.path, data, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to write pipeline cache %s", c.path)
	}
	return nil
}

func (c *PipelineCache) Destroy() {
	if c.cache != nil {
		c.cache.Destroy(nil)
		c.cache = nil
	}
}
