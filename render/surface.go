package render

import (
	"cmp"
	"fmt"
	"math"

	vk "github.com/vulkan-go/vulkan"
)

// surfaceSupport describes a present surface. The type is suitable for passing
// around many details of the surface between functions.
type surfaceSupport struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

// querySurfaceSupport asks the device for everything swapchain creation needs
// to know about the surface.
func querySurfaceSupport(device vk.PhysicalDevice, surface vk.Surface) (surfaceSupport, error) {
	details := surfaceSupport{}

	var capabilities vk.SurfaceCapabilities
	res := vk.GetPhysicalDeviceSurfaceCapabilities(device, surface, &capabilities)
	if err := vk.Error(res); err != nil {
		return details, fmt.Errorf("querying surface capabilities: %w", err)
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()

	details.capabilities = capabilities

	var formatCount uint32
	res = vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil)
	if err := vk.Error(res); err != nil {
		return details, fmt.Errorf("querying surface formats: %w", err)
	}

	if formatCount != 0 {
		formats := make([]vk.SurfaceFormat, formatCount)
		vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, formats)
		for _, format := range formats {
			format.Deref()
			details.formats = append(details.formats, format)
		}
	}

	var presentModeCount uint32
	res = vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &presentModeCount, nil)
	if err := vk.Error(res); err != nil {
		return details, fmt.Errorf("querying surface present modes: %w", err)
	}

	if presentModeCount != 0 {
		presentModes := make([]vk.PresentMode, presentModeCount)
		vk.GetPhysicalDeviceSurfacePresentModes(
			device, surface, &presentModeCount, presentModes,
		)
		details.presentModes = presentModes
	}

	return details, nil
}

// presentModePreference is the fixed preference order for present modes.
var presentModePreference = []vk.PresentMode{
	vk.PresentModeMailbox,
	vk.PresentModeFifo,
	vk.PresentModeFifoRelaxed,
	vk.PresentModeImmediate,
}

// choosePresentMode returns the most preferred supported present mode.
func choosePresentMode(available []vk.PresentMode) (vk.PresentMode, error) {
	for _, wanted := range presentModePreference {
		for _, mode := range available {
			if mode == wanted {
				return mode, nil
			}
		}
	}

	return 0, ErrNoPresentMode
}

// compositeAlphaPreference is the fixed preference order for composite alpha
// modes.
var compositeAlphaPreference = []vk.CompositeAlphaFlagBits{
	vk.CompositeAlphaOpaqueBit,
	vk.CompositeAlphaInheritBit,
	vk.CompositeAlphaPreMultipliedBit,
	vk.CompositeAlphaPostMultipliedBit,
}

// chooseCompositeAlpha returns the most preferred composite alpha mode among
// the ones the surface supports.
func chooseCompositeAlpha(supported vk.CompositeAlphaFlags) (vk.CompositeAlphaFlagBits, error) {
	for _, alpha := range compositeAlphaPreference {
		if supported&vk.CompositeAlphaFlags(alpha) != 0 {
			return alpha, nil
		}
	}

	return 0, ErrNoCompositeAlpha
}

// defaultSurfaceFormat is used when the surface declares no format preference.
var defaultSurfaceFormat = vk.SurfaceFormat{
	Format:     vk.FormatR8g8b8a8Srgb,
	ColorSpace: vk.ColorSpaceSrgbNonlinear,
}

// chooseSurfaceFormat picks the surface format: an sRGB-channel format when
// one is advertised, else the first advertised format. A single
// FormatUndefined entry is the surface saying it has no preference, in which
// case the fixed 8-bit sRGB RGBA default is used. An advertised list with no
// entries at all is an error.
func chooseSurfaceFormat(available []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	if len(available) == 0 {
		return vk.SurfaceFormat{}, ErrEmptyFormatList
	}

	if len(available) == 1 && available[0].Format == vk.FormatUndefined {
		return defaultSurfaceFormat, nil
	}

	for _, format := range available {
		if isSrgbFormat(format.Format) {
			return format, nil
		}
	}

	return available[0], nil
}

// isSrgbFormat reports whether format carries sRGB-encoded channels.
func isSrgbFormat(format vk.Format) bool {
	switch format {
	case vk.FormatR8Srgb,
		vk.FormatR8g8Srgb,
		vk.FormatR8g8b8Srgb,
		vk.FormatB8g8r8Srgb,
		vk.FormatR8g8b8a8Srgb,
		vk.FormatB8g8r8a8Srgb,
		vk.FormatA8b8g8r8SrgbPack32:
		return true
	}
	return false
}

// chooseImageCount decides how many images the swapchain holds: triple
// buffering under Mailbox, double buffering otherwise, capped one below the
// surface maximum (zero maximum means unbounded) and never below the surface
// minimum.
func chooseImageCount(caps vk.SurfaceCapabilities, mode vk.PresentMode) uint32 {
	count := uint32(2)
	if mode == vk.PresentModeMailbox {
		count = 3
	}

	if caps.MaxImageCount > 0 && count > caps.MaxImageCount-1 {
		count = caps.MaxImageCount - 1
	}
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	if count < 1 {
		count = 1
	}

	return count
}

// chooseExtent returns the extent the swapchain must use. The capability's
// current extent is authoritative; the window size is advisory and consulted
// only when the surface leaves the extent up to the application.
func chooseExtent(caps vk.SurfaceCapabilities, window vk.Extent2D) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}

	extent := window
	extent.Width = clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)

	return extent
}

func clamp[T cmp.Ordered](val, min, max T) T {
	if val < min {
		val = min
	}
	if val > max {
		val = max
	}
	return val
}
