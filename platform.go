package main

import (
	"nicegfx/render"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// platform adapts a GLFW window to the render.Platform contract. Window
// callbacks latch state which the loop drains once per iteration through Poll.
type platform struct {
	window *glfw.Window

	// rebuild latches any event that invalidates the swapchain: framebuffer
	// resize, content scale change, refresh damage.
	rebuild bool

	pointerX float64
	pointerY float64
}

func newPlatform(window *glfw.Window) *platform {
	p := &platform{window: window}

	window.SetFramebufferSizeCallback(func(_ *glfw.Window, _, _ int) {
		p.rebuild = true
	})
	window.SetContentScaleCallback(func(_ *glfw.Window, _, _ float32) {
		p.rebuild = true
	})
	window.SetRefreshCallback(func(_ *glfw.Window) {
		p.rebuild = true
	})
	window.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		p.pointerX = x
		p.pointerY = y
	})
	window.SetKeyCallback(func(
		w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey,
	) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	return p
}

// Poll drains pending events and reports them collapsed into one Input. The
// rebuild latch is cleared; it will be set again if more resize events arrive.
func (p *platform) Poll() render.Input {
	glfw.PollEvents()

	in := render.Input{
		Quit:     p.window.ShouldClose(),
		Rebuild:  p.rebuild,
		PointerX: p.pointerX,
		PointerY: p.pointerY,
	}
	p.rebuild = false

	return in
}

// Extent returns the framebuffer extent in pixels.
func (p *platform) Extent() vk.Extent2D {
	width, height := p.window.GetFramebufferSize()
	return vk.Extent2D{
		Width:  uint32(width),
		Height: uint32(height),
	}
}

// AwaitExtent blocks while the window is minimized. GLFW reports a 0x0
// framebuffer for minimized windows and a swapchain cannot be created at that
// extent, so the rebuild path parks here until the window comes back.
func (p *platform) AwaitExtent() (vk.Extent2D, bool) {
	for {
		if p.window.ShouldClose() {
			return vk.Extent2D{}, true
		}

		extent := p.Extent()
		if extent.Width > 0 && extent.Height > 0 {
			p.rebuild = false
			return extent, false
		}

		glfw.WaitEvents()
	}
}
