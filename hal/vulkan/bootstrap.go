package vulkan

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/textures/hal"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

// DefaultMaxTextures sizes the descriptor pool when Options.MaxTextures is unset.
const DefaultMaxTextures = 64

type Options struct {
	ApplicationName string

	// Validation enables the Khronos validation layer and routes its messages
	// to Logger.
	Validation  bool
	Logger      *slog.Logger
	MaxTextures int
	Bindings    hal.TextureBindings
}

// Context owns a headless instance and device with everything the texture
// core borrows: one graphics queue, a command pool on its family and a
// descriptor pool for texture sets.
type Context struct {
	Adapter     *Adapter
	Device      *Device
	CommandPool *CommandPool
	Queue       *Queue
	Descriptors *DescriptorAllocator

	logger *slog.Logger

	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	physicalDevice core1_0.PhysicalDevice
	graphicsFamily int
	graphicsQueue  core1_0.Queue

	commandPool         core1_0.CommandPool
	descriptorSetLayout core1_0.DescriptorSetLayout
	descriptorPool      core1_0.DescriptorPool
}

// Open brings up a device on the first physical device with a graphics queue.
// On error, anything already created is destroyed before returning.
func Open(globalDriver core1_0.GlobalDriver, opts Options) (*Context, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxTextures <= 0 {
		opts.MaxTextures = DefaultMaxTextures
	}
	if opts.ApplicationName == "" {
		opts.ApplicationName = "texupload"
	}

	ctx := &Context{logger: opts.Logger}
	steps := []struct {
		name string
		run  func() error
	}{
		{"create instance", func() error { return ctx.createInstance(globalDriver, opts) }},
		{"setup debug messenger", func() error { return ctx.setupDebugMessenger(opts) }},
		{"pick physical device", ctx.pickPhysicalDevice},
		{"create logical device", ctx.createLogicalDevice},
		{"create command pool", ctx.createCommandPool},
		{"create descriptor set layout", func() error { return ctx.createDescriptorSetLayout(opts.Bindings) }},
		{"create descriptor pool", func() error { return ctx.createDescriptorPool(opts.Bindings, opts.MaxTextures) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			ctx.Close()
			return nil, errors.Wrap(err, step.name)
		}
	}

	adapter, err := NewAdapter(ctx.instanceDriver, ctx.physicalDevice)
	if err != nil {
		ctx.Close()
		return nil, err
	}

	ctx.Adapter = adapter
	ctx.Device = NewDevice(opts.Logger, ctx.deviceDriver, adapter)
	ctx.CommandPool = NewCommandPool(ctx.Device, ctx.commandPool)
	ctx.Queue = NewQueue(ctx.Device, ctx.graphicsQueue)
	ctx.Descriptors = NewDescriptorAllocator(ctx.Device, ctx.descriptorPool, ctx.descriptorSetLayout, opts.Bindings)

	opts.Logger.Info("opened device",
		slog.String("Device", adapter.Name()),
		slog.Int("QueueFamily", ctx.graphicsFamily),
		slog.Int("RowPitchAlignment", adapter.Limits().OptimalBufferCopyRowPitchAlignment),
		slog.Bool("Validation", opts.Validation),
	)
	return ctx, nil
}

// Close destroys the device and instance. Textures created on the device must
// be released first.
func (c *Context) Close() {
	if c.Device != nil {
		if live := c.Device.LiveObjects(); live > 0 {
			c.logger.Warn("closing device with live objects", slog.Int("Live", live))
		}
	}

	if c.descriptorPool.Initialized() {
		c.deviceDriver.DestroyDescriptorPool(c.descriptorPool, nil)
		c.descriptorPool = core1_0.DescriptorPool{}
	}

	if c.descriptorSetLayout.Initialized() {
		c.deviceDriver.DestroyDescriptorSetLayout(c.descriptorSetLayout, nil)
		c.descriptorSetLayout = core1_0.DescriptorSetLayout{}
	}

	if c.commandPool.Initialized() {
		c.deviceDriver.DestroyCommandPool(c.commandPool, nil)
		c.commandPool = core1_0.CommandPool{}
	}

	if c.deviceDriver != nil {
		c.deviceDriver.DestroyDevice(nil)
		c.deviceDriver = nil
	}

	if c.debugMessenger.Initialized() {
		c.debugDriver.DestroyDebugUtilsMessenger(c.debugMessenger, nil)
		c.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if c.instanceDriver != nil {
		c.instanceDriver.DestroyInstance(nil)
		c.instanceDriver = nil
	}
}

func (c *Context) createInstance(globalDriver core1_0.GlobalDriver, opts Options) error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    opts.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := globalDriver.AvailableExtensions()
	if err != nil {
		return err
	}

	if opts.Validation {
		if _, ok := extensions[ext_debug_utils.ExtensionName]; !ok {
			return errors.Newf("missing extension %s", ext_debug_utils.ExtensionName)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if opts.Validation {
		layers, _, err := globalDriver.AvailableLayers()
		if err != nil {
			return err
		}

		for _, layer := range validationLayers {
			if _, ok := layers[layer]; !ok {
				return errors.WithHint(
					errors.Newf("validation layer %s not available", layer),
					"install the LunarG Vulkan SDK or disable validation",
				)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = c.debugMessengerOptions()
	}

	c.instanceDriver, _, err = globalDriver.CreateInstance(nil, instanceOptions)
	return err
}

func (c *Context) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    c.logDebug,
	}
}

func (c *Context) setupDebugMessenger(opts Options) error {
	if !opts.Validation {
		return nil
	}

	var err error
	c.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(c.instanceDriver)
	c.debugMessenger, _, err = c.debugDriver.CreateDebugUtilsMessenger(nil, c.debugMessengerOptions())
	return err
}

func (c *Context) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelWarn
	if severity&ext_debug_utils.SeverityError != 0 {
		level = slog.LevelError
	}
	c.logger.Log(context.Background(), level, data.Message,
		slog.Any("Severity", severity),
		slog.Any("Type", msgType),
	)
	return false
}

func (c *Context) pickPhysicalDevice() error {
	physicalDevices, _, err := c.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	for _, device := range physicalDevices {
		family, ok := c.graphicsQueueFamily(device)
		if ok {
			c.physicalDevice = device
			c.graphicsFamily = family
			break
		}
	}

	if !c.physicalDevice.Initialized() {
		return errors.New("no physical device with a graphics queue")
	}
	return nil
}

func (c *Context) graphicsQueueFamily(device core1_0.PhysicalDevice) (int, bool) {
	queueFamilies := c.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)
	for queueFamilyIdx, queueFamily := range queueFamilies {
		if (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0 {
			return queueFamilyIdx, true
		}
	}
	return 0, false
}

func (c *Context) createLogicalDevice() error {
	var extensionNames []string

	// Required on portability implementations such as MoltenVK.
	extensions, _, err := c.instanceDriver.EnumerateDeviceExtensionProperties(c.physicalDevice)
	if err != nil {
		return err
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	c.deviceDriver, _, err = c.instanceDriver.CreateDevice(c.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: []core1_0.DeviceQueueCreateInfo{
			{
				QueueFamilyIndex: c.graphicsFamily,
				QueuePriorities:  []float32{1.0},
			},
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}

	c.graphicsQueue = c.deviceDriver.GetQueue(c.graphicsFamily, 0)
	return nil
}

func (c *Context) createCommandPool() error {
	pool, _, err := c.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: c.graphicsFamily,
	})
	if err != nil {
		return err
	}

	c.commandPool = pool
	return nil
}

func (c *Context) createDescriptorSetLayout(bindings hal.TextureBindings) error {
	var err error
	c.descriptorSetLayout, _, err = c.deviceDriver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: textureSetLayoutBindings(bindings),
	})
	return err
}

func (c *Context) createDescriptorPool(bindings hal.TextureBindings, maxSets int) error {
	var err error
	c.descriptorPool, _, err = c.deviceDriver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		Flags:     core1_0.DescriptorPoolCreateFreeDescriptorSet,
		MaxSets:   maxSets,
		PoolSizes: texturePoolSizes(bindings, maxSets),
	})
	return err
}
