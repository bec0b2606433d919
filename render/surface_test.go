package render

import (
	"math"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	vk "github.com/vulkan-go/vulkan"
)

var _ = Describe("present mode selection", func() {
	It("prefers mailbox over everything else", func() {
		mode, err := choosePresentMode([]vk.PresentMode{
			vk.PresentModeImmediate,
			vk.PresentModeFifo,
			vk.PresentModeMailbox,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(mode).To(Equal(vk.PresentModeMailbox))
	})

	It("falls back to fifo, then relaxed, then immediate", func() {
		mode, err := choosePresentMode([]vk.PresentMode{
			vk.PresentModeImmediate,
			vk.PresentModeFifoRelaxed,
			vk.PresentModeFifo,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(mode).To(Equal(vk.PresentModeFifo))

		mode, err = choosePresentMode([]vk.PresentMode{
			vk.PresentModeImmediate,
			vk.PresentModeFifoRelaxed,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(mode).To(Equal(vk.PresentModeFifoRelaxed))

		mode, err = choosePresentMode([]vk.PresentMode{
			vk.PresentModeImmediate,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(mode).To(Equal(vk.PresentModeImmediate))
	})

	It("fails when nothing usable is advertised", func() {
		_, err := choosePresentMode(nil)
		Expect(err).To(MatchError(ErrNoPresentMode))

		_, err = choosePresentMode([]vk.PresentMode{vk.PresentModeSharedContinuousRefresh})
		Expect(err).To(MatchError(ErrNoPresentMode))
	})
})

var _ = Describe("composite alpha selection", func() {
	It("prefers opaque, then inherit, then pre- and post-multiplied", func() {
		all := vk.CompositeAlphaFlags(
			vk.CompositeAlphaOpaqueBit |
				vk.CompositeAlphaInheritBit |
				vk.CompositeAlphaPreMultipliedBit |
				vk.CompositeAlphaPostMultipliedBit,
		)

		alpha, err := chooseCompositeAlpha(all)
		Expect(err).NotTo(HaveOccurred())
		Expect(alpha).To(Equal(vk.CompositeAlphaOpaqueBit))

		alpha, err = chooseCompositeAlpha(all &^ vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit))
		Expect(err).NotTo(HaveOccurred())
		Expect(alpha).To(Equal(vk.CompositeAlphaInheritBit))

		alpha, err = chooseCompositeAlpha(vk.CompositeAlphaFlags(
			vk.CompositeAlphaPreMultipliedBit | vk.CompositeAlphaPostMultipliedBit,
		))
		Expect(err).NotTo(HaveOccurred())
		Expect(alpha).To(Equal(vk.CompositeAlphaPreMultipliedBit))
	})

	It("fails when the surface supports none", func() {
		_, err := chooseCompositeAlpha(0)
		Expect(err).To(MatchError(ErrNoCompositeAlpha))
	})
})

var _ = Describe("surface format selection", func() {
	It("returns an sRGB format whenever one is advertised", func() {
		format, err := chooseSurfaceFormat([]vk.SurfaceFormat{
			{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(format.Format).To(Equal(vk.FormatB8g8r8a8Srgb))
	})

	It("returns the first advertised format when none is sRGB", func() {
		format, err := chooseSurfaceFormat([]vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(format.Format).To(Equal(vk.FormatB8g8r8a8Unorm))
	})

	It("uses the fixed default when the surface has no preference", func() {
		format, err := chooseSurfaceFormat([]vk.SurfaceFormat{
			{Format: vk.FormatUndefined},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal(defaultSurfaceFormat))
	})

	It("rejects an empty format list", func() {
		_, err := chooseSurfaceFormat(nil)
		Expect(err).To(MatchError(ErrEmptyFormatList))
	})
})

var _ = Describe("image count selection", func() {
	caps := func(min, max uint32) vk.SurfaceCapabilities {
		return vk.SurfaceCapabilities{
			MinImageCount: min,
			MaxImageCount: max,
		}
	}

	It("triple buffers under mailbox, double buffers otherwise", func() {
		Expect(chooseImageCount(caps(1, 8), vk.PresentModeMailbox)).To(Equal(uint32(3)))
		Expect(chooseImageCount(caps(1, 8), vk.PresentModeFifo)).To(Equal(uint32(2)))
	})

	It("caps one below the surface maximum", func() {
		Expect(chooseImageCount(caps(1, 3), vk.PresentModeMailbox)).To(Equal(uint32(2)))
		Expect(chooseImageCount(caps(1, 2), vk.PresentModeFifo)).To(Equal(uint32(1)))
	})

	It("treats a zero maximum as unbounded", func() {
		Expect(chooseImageCount(caps(1, 0), vk.PresentModeMailbox)).To(Equal(uint32(3)))
	})

	It("never goes below the surface minimum or one", func() {
		Expect(chooseImageCount(caps(2, 2), vk.PresentModeFifo)).To(Equal(uint32(2)))
		Expect(chooseImageCount(caps(0, 1), vk.PresentModeFifo)).To(Equal(uint32(1)))
	})

	It("lets the surface minimum override the one-below-maximum cap", func() {
		// min=3, max=3: the cap alone would give 2 but the swapchain cannot
		// be created with fewer images than the surface minimum.
		Expect(chooseImageCount(caps(3, 3), vk.PresentModeFifo)).To(Equal(uint32(3)))
		Expect(chooseImageCount(caps(3, 3), vk.PresentModeMailbox)).To(Equal(uint32(3)))
	})
})

var _ = Describe("extent selection", func() {
	It("takes the surface's current extent as authoritative", func() {
		caps := vk.SurfaceCapabilities{
			CurrentExtent: vk.Extent2D{Width: 800, Height: 600},
		}
		extent := chooseExtent(caps, vk.Extent2D{Width: 1024, Height: 768})
		Expect(extent).To(Equal(vk.Extent2D{Width: 800, Height: 600}))
	})

	It("clamps the window extent when the surface leaves it open", func() {
		caps := vk.SurfaceCapabilities{
			CurrentExtent:  vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
			MinImageExtent: vk.Extent2D{Width: 64, Height: 64},
			MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
		}

		extent := chooseExtent(caps, vk.Extent2D{Width: 1024, Height: 768})
		Expect(extent).To(Equal(vk.Extent2D{Width: 1024, Height: 768}))

		extent = chooseExtent(caps, vk.Extent2D{Width: 8, Height: 9999})
		Expect(extent).To(Equal(vk.Extent2D{Width: 64, Height: 4096}))
	})
})

var _ = Describe("selection end to end", func() {
	It("picks sRGB, mailbox and triple buffering from a typical surface", func() {
		formats := []vk.SurfaceFormat{
			{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		}
		modes := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}
		caps := vk.SurfaceCapabilities{MinImageCount: 1, MaxImageCount: 8}

		format, err := chooseSurfaceFormat(formats)
		Expect(err).NotTo(HaveOccurred())
		Expect(format.Format).To(Equal(vk.FormatR8g8b8a8Srgb))

		mode, err := choosePresentMode(modes)
		Expect(err).NotTo(HaveOccurred())
		Expect(mode).To(Equal(vk.PresentModeMailbox))

		Expect(chooseImageCount(caps, mode)).To(Equal(uint32(3)))
	})
})
