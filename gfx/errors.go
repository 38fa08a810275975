package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

// Failure classes. Every error returned from this package matches exactly one of
// ErrResourceCreation, ErrResourceLoad or ErrFrame under errors.Is, and possibly one of the
// more specific markers below it.
var (
	ErrResourceCreation = errors.New("resource creation failure")
	ErrResourceLoad     = errors.New("resource load failure")
	ErrFrame            = errors.New("frame failure")

	ErrShaderLoad     = errors.New("shader load failure")
	ErrShaderCompile  = errors.New("shader compile failure")
	ErrSwapchainStale = errors.New("swapchain stale")
	ErrPresent        = errors.New("present failure")
)

// Status is the outcome of a per-frame swapchain operation.
type Status int

const (
	StatusSuccess Status = iota
	// StatusSuboptimal means the swapchain no longer matches the surface exactly but the
	// frame was still acquired or presented.
	StatusSuboptimal
	// StatusStale means the swapchain is out of date and can no longer be presented to.
	StatusStale
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Usable reports whether the frame can continue after an operation returned s.
func (s Status) Usable() bool {
	return s == StatusSuccess || s == StatusSuboptimal
}

func mark(err error, references ...error) error {
	for _, ref := range references {
		err = errors.Mark(err, ref)
	}
	return err
}

func creationError(err error, format string, args ...interface{}) error {
	return mark(errors.Wrapf(err, format, args...), ErrResourceCreation)
}

func shaderLoadError(err error, path string) error {
	return mark(errors.Wrapf(err, "failed to open shader %s", path), ErrShaderLoad, ErrResourceLoad)
}

func shaderCompileError(err error, path string) error {
	return mark(errors.Wrapf(err, "failed to create shader module from %s", path), ErrShaderCompile, ErrResourceCreation)
}

// frameStatus maps the result of an acquire or present call onto a Status and, for
// anything but success and suboptimal, an error carrying the frame failure class.
func frameStatus(res common.VkResult, err error, op string) (Status, error) {
	switch {
	case res == khr_swapchain.VKErrorOutOfDate:
		if err == nil {
			err = errors.Newf("%s", res)
		}
		return StatusStale, mark(errors.Wrapf(err, "%s: swapchain out of date", op), ErrSwapchainStale, ErrFrame)
	case res == khr_swapchain.VKSuboptimal:
		return StatusSuboptimal, nil
	case err != nil:
		return StatusError, mark(errors.Wrapf(err, "failed to %s", op), ErrFrame)
	}
	return StatusSuccess, nil
}

func presentStatus(res common.VkResult, err error) (Status, error) {
	status, err := frameStatus(res, err, "present swapchain image")
	if status == StatusError {
		err = mark(err, ErrPresent)
	}
	return status, err
}
