package queues

import (
	"log"

	vk "github.com/vulkan-go/vulkan"

	"nicegfx/optional"
)

// FamilyIndices holds the indexes of Vulkan queue families needed by the program.
type FamilyIndices struct {

	// GraphicsPresent is the index of a queue family which supports graphics
	// operations and can present to the target surface. Rendering and
	// presentation run on a single queue from this family.
	GraphicsPresent optional.Optional[uint32]
}

// IsComplete returns true if all families have been set.
func (f *FamilyIndices) IsComplete() bool {
	return f.GraphicsPresent.HasValue()
}

// Find scans the queue families of device and records the first one which both
// supports graphics and can present to surface. Selection is deterministic
// first-match.
func Find(device vk.PhysicalDevice, surface vk.Surface) FamilyIndices {
	indices := FamilyIndices{}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)

	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i, family := range queueFamilies {
		family.Deref()

		if family.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}

		var hasPresent vk.Bool32
		err := vk.Error(
			vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &hasPresent),
		)
		if err != nil {
			log.Printf("error querying surface support for queue family %d: %s", i, err)
			continue
		}

		if hasPresent.B() {
			indices.GraphicsPresent.Set(uint32(i))
			break
		}
	}

	return indices
}
