package render

import (
	"fmt"
	"math"

	vk "github.com/vulkan-go/vulkan"

	"nicegfx/queues"
)

// Device wraps the physical device, the logical device opened on it and the
// single graphics+present queue the whole program runs on. It is created once
// at startup and destroyed last, after all outstanding GPU work has drained.
type Device struct {
	physical vk.PhysicalDevice
	handle   vk.Device
	queue    vk.Queue
	family   uint32
}

// deviceExtensions is the list of required device extensions.
var deviceExtensions = []string{
	vk.KhrSwapchainExtensionName + "\x00",
}

// OpenDevice selects the first physical device exposing a queue family which
// both supports graphics and can present to surface, then opens a logical
// device with exactly one queue from that family at priority 1.0. Selection is
// deterministic first-match; there is no scoring and no retry.
func OpenDevice(instance vk.Instance, surface vk.Surface, validationLayers []string) (*Device, error) {
	var deviceCount uint32
	err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil))
	if err != nil {
		return nil, fmt.Errorf("counting physical devices: %w", err)
	}
	if deviceCount == 0 {
		return nil, ErrNoSuitableAdapter
	}

	pDevices := make([]vk.PhysicalDevice, deviceCount)
	err = vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, pDevices))
	if err != nil {
		return nil, fmt.Errorf("enumerating physical devices: %w", err)
	}

	var (
		selected vk.PhysicalDevice
		found    bool
	)
	for _, device := range pDevices {
		indices := queues.Find(device, surface)
		if indices.IsComplete() {
			selected = device
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNoSuitableAdapter
	}

	indices := queues.Find(selected, surface)
	if !indices.IsComplete() {
		return nil, ErrNoQueueFamily
	}
	family := indices.GraphicsPresent.Get()

	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: family,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	deviceFeatures := []vk.PhysicalDeviceFeatures{{}}

	createInfo := vk.DeviceCreateInfo{
		SType:            vk.StructureTypeDeviceCreateInfo,
		PEnabledFeatures: deviceFeatures,

		PQueueCreateInfos:    queueCreateInfos,
		QueueCreateInfoCount: uint32(len(queueCreateInfos)),

		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: deviceExtensions,
	}

	if len(validationLayers) > 0 {
		createInfo.PpEnabledLayerNames = validationLayers
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
	}

	var device vk.Device
	err = vk.Error(vk.CreateDevice(selected, &createInfo, nil, &device))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceOpenFailed, err)
	}

	var queue vk.Queue
	vk.GetDeviceQueue(device, family, 0, &queue)

	return &Device{
		physical: selected,
		handle:   device,
		queue:    queue,
		family:   family,
	}, nil
}

// Handle returns the logical device handle.
func (d *Device) Handle() vk.Device {
	return d.handle
}

// Queue returns the single graphics+present queue.
func (d *Device) Queue() vk.Queue {
	return d.queue
}

// WaitIdle blocks until all queues on the device drain.
func (d *Device) WaitIdle() {
	vk.DeviceWaitIdle(d.handle)
}

// WaitForFence blocks indefinitely until fence signals.
func (d *Device) WaitForFence(fence vk.Fence) error {
	fences := []vk.Fence{fence}
	res := vk.WaitForFences(d.handle, 1, fences, vk.True, math.MaxUint64)
	if res != vk.Success {
		return fmt.Errorf("%w: %s", ErrFenceWait, vk.Error(res))
	}
	return nil
}

// ResetFence returns fence to the unsignaled state for reuse.
func (d *Device) ResetFence(fence vk.Fence) error {
	fences := []vk.Fence{fence}
	res := vk.ResetFences(d.handle, 1, fences)
	if res != vk.Success {
		return fmt.Errorf("%w: %s", ErrFenceReset, vk.Error(res))
	}
	return nil
}

// Destroy waits for the device to go idle and destroys it. The caller must
// have destroyed every resource created from the device first.
func (d *Device) Destroy() {
	if d.handle == vk.Device(vk.NullHandle) {
		return
	}
	vk.DeviceWaitIdle(d.handle)
	vk.DestroyDevice(d.handle, nil)
	d.handle = vk.Device(vk.NullHandle)
}
