package gfx

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/khr_portability_subset"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var deviceExtensions = []string{khr_swapchain.ExtensionName}

// WindowSurface is the part of a window the device needs to present into it.
type WindowSurface interface {
	Loader() (core.Loader, error)
	RequiredExtensions() []string
	CreateSurface(instance core1_0.Instance) (khr_surface.Surface, error)
}

type DeviceOptions struct {
	ApplicationName  string
	EnableValidation bool
	Logger           *slog.Logger
}

type QueueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
}

func (i *QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil
}

// Shared reports whether graphics and present work go to the same queue family.
func (i *QueueFamilyIndices) Shared() bool {
	return i.IsComplete() && *i.GraphicsFamily == *i.PresentFamily
}

type SwapchainSupportDetails struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

// Device owns the Vulkan instance, the window surface, the chosen physical device, the
// logical device with its graphics and present queues, and the command pool every command
// buffer in the application is allocated from. It must outlive everything built on it.
type Device struct {
	logger *slog.Logger

	loader         core.Loader
	instance       core1_0.Instance
	debugMessenger ext_debug_utils.DebugUtilsMessenger
	surface        khr_surface.Surface

	physicalDevice core1_0.PhysicalDevice
	properties     *core1_0.PhysicalDeviceProperties
	queueFamilies  QueueFamilyIndices
	device         core1_0.Device

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue
	commandPool   core1_0.CommandPool
}

// NewDevice brings up Vulkan against window. On failure everything created so far is
// released and the error matches ErrResourceCreation.
func NewDevice(window WindowSurface, opts DeviceOptions) (*Device, error) {
	d := &Device{logger: opts.Logger}
	if d.logger == nil {
		d.logger = slog.Default()
	}

	err := d.init(window, opts)
	if err != nil {
		d.Destroy()
		return nil, mark(err, ErrResourceCreation)
	}
	return d, nil
}

func (d *Device) init(window WindowSurface, opts DeviceOptions) error {
	var err error
	d.loader, err = window.Loader()
	if err != nil {
		return errors.Wrap(err, "failed to create vulkan loader")
	}

	err = d.createInstance(window, opts)
	if err != nil {
		return err
	}

	if opts.EnableValidation {
		err = d.setupDebugMessenger()
		if err != nil {
			return err
		}
	}

	d.surface, err = window.CreateSurface(d.instance)
	if err != nil {
		return errors.Wrap(err, "failed to create window surface")
	}

	err = d.pickPhysicalDevice()
	if err != nil {
		return err
	}

	err = d.createLogicalDevice()
	if err != nil {
		return err
	}

	return d.createCommandPool()
}

func (d *Device) createInstance(window WindowSurface, opts DeviceOptions) error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    opts.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := d.loader.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "failed to enumerate instance extensions")
	}

	for _, ext := range window.RequiredExtensions() {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Newf("createInstance: missing window extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if opts.EnableValidation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if opts.EnableValidation {
		layers, _, err := d.loader.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "failed to enumerate instance layers")
		}

		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.Newf("createInstance: validation layer %s not available- install LunarG Vulkan SDK", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = d.debugMessengerOptions()
	}

	d.instance, _, err = d.loader.CreateInstance(nil, instanceOptions)
	if err != nil {
		return errors.Wrap(err, "failed to create instance")
	}
	return nil
}

func (d *Device) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    d.logDebug,
	}
}

func (d *Device) setupDebugMessenger() error {
	var err error
	debugLoader := ext_debug_utils.CreateExtensionFromInstance(d.instance)
	d.debugMessenger, _, err = debugLoader.CreateDebugUtilsMessenger(d.instance, nil, d.debugMessengerOptions())
	if err != nil {
		return errors.Wrap(err, "failed to set up debug messenger")
	}
	return nil
}

func (d *Device) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelWarn
	if severity&ext_debug_utils.SeverityError != 0 {
		level = slog.LevelError
	}
	d.logger.Log(context.Background(), level, data.Message, slog.Any("type", msgType), slog.Any("severity", severity))
	return false
}

func (d *Device) pickPhysicalDevice() error {
	physicalDevices, _, err := d.instance.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "failed to enumerate physical devices")
	}

	for _, device := range physicalDevices {
		if d.isDeviceSuitable(device) {
			d.physicalDevice = device
			break
		}
	}

	if d.physicalDevice == nil {
		return errors.Newf("failed to find a suitable GPU among %d devices", len(physicalDevices))
	}

	d.properties, err = d.physicalDevice.Properties()
	if err != nil {
		return errors.Wrap(err, "failed to read physical device properties")
	}

	d.queueFamilies, err = d.findQueueFamilies(d.physicalDevice)
	if err != nil {
		return err
	}

	d.logger.Info("selected physical device", "name", d.properties.DeviceName)
	return nil
}

func (d *Device) isDeviceSuitable(device core1_0.PhysicalDevice) bool {
	indices, err := d.findQueueFamilies(device)
	if err != nil {
		return false
	}

	if !checkDeviceExtensionSupport(device) {
		return false
	}

	swapChainSupport, err := d.querySwapchainSupport(device)
	if err != nil {
		return false
	}

	swapChainAdequate := len(swapChainSupport.Formats) > 0 && len(swapChainSupport.PresentModes) > 0
	return indices.IsComplete() && swapChainAdequate
}

func checkDeviceExtensionSupport(device core1_0.PhysicalDevice) bool {
	extensions, _, err := device.EnumerateDeviceExtensionProperties()
	if err != nil {
		return false
	}

	for _, extension := range deviceExtensions {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			return false
		}
	}

	return true
}

func (d *Device) findQueueFamilies(device core1_0.PhysicalDevice) (QueueFamilyIndices, error) {
	indices := QueueFamilyIndices{}
	queueFamilies := device.QueueFamilyProperties()

	for queueFamilyIdx, queueFamily := range queueFamilies {
		if (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0 {
			indices.GraphicsFamily = new(int)
			*indices.GraphicsFamily = queueFamilyIdx
		}

		supported, _, err := d.surface.PhysicalDeviceSurfaceSupport(device, queueFamilyIdx)
		if err != nil {
			return indices, errors.Wrapf(err, "failed to query present support of queue family %d", queueFamilyIdx)
		}

		if supported {
			indices.PresentFamily = new(int)
			*indices.PresentFamily = queueFamilyIdx
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices, nil
}

func (d *Device) querySwapchainSupport(device core1_0.PhysicalDevice) (SwapchainSupportDetails, error) {
	var details SwapchainSupportDetails
	var err error

	details.Capabilities, _, err = d.surface.PhysicalDeviceSurfaceCapabilities(device)
	if err != nil {
		return details, errors.Wrap(err, "failed to query surface capabilities")
	}

	details.Formats, _, err = d.surface.PhysicalDeviceSurfaceFormats(device)
	if err != nil {
		return details, errors.Wrap(err, "failed to query surface formats")
	}

	details.PresentModes, _, err = d.surface.PhysicalDeviceSurfacePresentModes(device)
	if err != nil {
		return details, errors.Wrap(err, "failed to query surface present modes")
	}
	return details, nil
}

func (d *Device) createLogicalDevice() error {
	indices := d.queueFamilies

	uniqueQueueFamilies := []int{*indices.GraphicsFamily}
	if !indices.Shared() {
		uniqueQueueFamilies = append(uniqueQueueFamilies, *indices.PresentFamily)
	}

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range uniqueQueueFamilies {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, deviceExtensions...)

	// Portability implementations (MoltenVK) require the subset extension when exposed.
	extensions, _, err := d.physicalDevice.EnumerateDeviceExtensionProperties()
	if err != nil {
		return errors.Wrap(err, "failed to enumerate device extensions")
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	d.device, _, err = d.physicalDevice.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueFamilyOptions,
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create logical device")
	}

	d.graphicsQueue = d.device.GetQueue(*indices.GraphicsFamily, 0)
	d.presentQueue = d.device.GetQueue(*indices.PresentFamily, 0)
	return nil
}

func (d *Device) createCommandPool() error {
	pool, _, err := d.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: *d.queueFamilies.GraphicsFamily,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create command pool")
	}
	d.commandPool = pool
	return nil
}

func (d *Device) Device() core1_0.Device                 { return d.device }
func (d *Device) PhysicalDevice() core1_0.PhysicalDevice { return d.physicalDevice }
func (d *Device) Instance() core1_0.Instance             { return d.instance }
func (d *Device) Surface() khr_surface.Surface           { return d.surface }
func (d *Device) GraphicsQueue() core1_0.Queue           { return d.graphicsQueue }
func (d *Device) PresentQueue() core1_0.Queue            { return d.presentQueue }
func (d *Device) CommandPool() core1_0.CommandPool       { return d.commandPool }
func (d *Device) QueueFamilies() QueueFamilyIndices      { return d.queueFamilies }

func (d *Device) Logger() *slog.Logger {
	if d.logger == nil {
		return slog.Default()
	}
	return d.logger
}

// Properties returns the properties of the selected physical device.
func (d *Device) Properties() *core1_0.PhysicalDeviceProperties { return d.properties }

// SwapchainSupport queries the current surface support of the selected physical device.
func (d *Device) SwapchainSupport() (SwapchainSupportDetails, error) {
	return d.querySwapchainSupport(d.physicalDevice)
}

// WaitIdle blocks until every queue of the device has finished all submitted work.
func (d *Device) WaitIdle() error {
	if d.device == nil {
		return nil
	}
	_, err := d.device.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "failed to wait for device idle")
	}
	return nil
}

// Destroy releases the device and everything it created directly. Safe to call more than
// once and on a partially constructed device.
func (d *Device) Destroy() {
	if d.commandPool != nil {
		d.commandPool.Destroy(nil)
		d.commandPool = nil
	}

	if d.device != nil {
		d.device.Destroy(nil)
		d.device = nil
	}

	if d.debugMessenger != nil {
		d.debugMessenger.Destroy(nil)
		d.debugMessenger = nil
	}

	if d.surface != nil {
		d.surface.Destroy(nil)
		d.surface = nil
	}

	if d.instance != nil {
		d.instance.Destroy(nil)
		d.instance = nil
	}
}
