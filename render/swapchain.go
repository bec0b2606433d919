package render

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Swapchain owns the presentable image chain together with everything whose
// lifetime is welded to it: one image view and one framebuffer per image, and
// the render pass the framebuffers are bound to. The three collections always
// have the same length and are only ever torn down and rebuilt as a unit.
type Swapchain struct {
	dev     *Device
	surface vk.Surface

	handle       vk.Swapchain
	format       vk.SurfaceFormat
	extent       vk.Extent2D
	presentMode  vk.PresentMode
	renderPass   vk.RenderPass
	images       []vk.Image
	views        []vk.ImageView
	framebuffers []vk.Framebuffer
}

// NewSwapchain creates the swapchain for surface. The window extent is
// advisory; the surface capability extent wins whenever the surface reports
// one.
func NewSwapchain(dev *Device, surface vk.Surface, window vk.Extent2D) (*Swapchain, error) {
	s := &Swapchain{
		dev:     dev,
		surface: surface,
	}
	if err := s.create(window); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) create(window vk.Extent2D) error {
	support, err := querySurfaceSupport(s.dev.physical, s.surface)
	if err != nil {
		return err
	}
	caps := support.capabilities

	presentMode, err := choosePresentMode(support.presentModes)
	if err != nil {
		return err
	}
	compositeAlpha, err := chooseCompositeAlpha(caps.SupportedCompositeAlpha)
	if err != nil {
		return err
	}
	format, err := chooseSurfaceFormat(support.formats)
	if err != nil {
		return err
	}
	if caps.SupportedUsageFlags&vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) == 0 {
		return ErrSurfaceNotColorCapable
	}

	imageCount := chooseImageCount(caps, presentMode)
	extent := chooseExtent(caps, window)

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}

	var swapchain vk.Swapchain
	res := vk.CreateSwapchain(s.dev.handle, &createInfo, nil, &swapchain)
	if err := vk.Error(res); err != nil {
		return fmt.Errorf("failed to create swapchain: %w", err)
	}
	s.handle = swapchain
	s.format = format
	s.extent = extent
	s.presentMode = presentMode

	var imagesCount uint32
	vk.GetSwapchainImages(s.dev.handle, s.handle, &imagesCount, nil)

	images := make([]vk.Image, imagesCount)
	vk.GetSwapchainImages(s.dev.handle, s.handle, &imagesCount, images)
	s.images = images

	renderPass, err := buildRenderPass(s.dev.handle, format.Format)
	if err != nil {
		return err
	}
	s.renderPass = renderPass

	if err := s.createImageViews(); err != nil {
		return err
	}
	if err := s.createFramebuffers(); err != nil {
		return err
	}

	return nil
}

func (s *Swapchain) createImageViews() error {
	for i, image := range s.images {
		createInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   s.format.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}

		var imageView vk.ImageView
		res := vk.CreateImageView(s.dev.handle, &createInfo, nil, &imageView)
		if err := vk.Error(res); err != nil {
			return fmt.Errorf("failed to create image view %d: %w", i, err)
		}

		s.views = append(s.views, imageView)
	}

	return nil
}

func (s *Swapchain) createFramebuffers() error {
	s.framebuffers = make([]vk.Framebuffer, len(s.views))

	for i, view := range s.views {
		frameBufferInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      s.renderPass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{view},
			Width:           s.extent.Width,
			Height:          s.extent.Height,
			Layers:          1,
		}

		var frameBuffer vk.Framebuffer
		res := vk.CreateFramebuffer(s.dev.handle, &frameBufferInfo, nil, &frameBuffer)
		if err := vk.Error(res); err != nil {
			return fmt.Errorf("failed to create framebuffer %d: %w", i, err)
		}

		s.framebuffers[i] = frameBuffer
	}

	return nil
}

// Recreate tears the whole chain down and builds it again with the new window
// extent. Once teardown has happened there is no old swapchain to fall back
// to: an error from the rebuild leaves the manager empty and is fatal to the
// caller.
func (s *Swapchain) Recreate(window vk.Extent2D, rec *Recorder) error {
	s.Destroy(rec)
	return s.create(window)
}

// Destroy waits for the device to go idle, resets the recorder's command pool
// and destroys framebuffers, render pass, image views and the swapchain, in
// that order. Framebuffers depend on views and pass; views depend on the
// swapchain images. Calling Destroy on an already-destroyed swapchain is a
// no-op.
func (s *Swapchain) Destroy(rec *Recorder) {
	if s.handle == vk.NullSwapchain {
		return
	}

	s.dev.WaitIdle()

	if rec != nil {
		rec.ResetPool()
	}

	for _, framebuffer := range s.framebuffers {
		vk.DestroyFramebuffer(s.dev.handle, framebuffer, nil)
	}
	s.framebuffers = nil

	if s.renderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(s.dev.handle, s.renderPass, nil)
		s.renderPass = vk.NullRenderPass
	}

	for _, view := range s.views {
		vk.DestroyImageView(s.dev.handle, view, nil)
	}
	s.views = nil

	vk.DestroySwapchain(s.dev.handle, s.handle, nil)
	s.handle = vk.NullSwapchain
	s.images = nil
}

// Handle returns the swapchain handle.
func (s *Swapchain) Handle() vk.Swapchain {
	return s.handle
}

// ImageCount returns the number of presentable images in the chain.
func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

// RenderPass returns the render pass compatible with the chain's framebuffers.
func (s *Swapchain) RenderPass() vk.RenderPass {
	return s.renderPass
}

// Framebuffer returns the framebuffer bound to image imageIndex.
func (s *Swapchain) Framebuffer(imageIndex uint32) vk.Framebuffer {
	return s.framebuffers[imageIndex]
}

// Extent returns the pixel extent of the chain's images.
func (s *Swapchain) Extent() vk.Extent2D {
	return s.extent
}

// Format returns the chosen surface format.
func (s *Swapchain) Format() vk.SurfaceFormat {
	return s.format
}

// PresentMode returns the chosen present mode.
func (s *Swapchain) PresentMode() vk.PresentMode {
	return s.presentMode
}
