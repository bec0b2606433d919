package render

import (
	"fmt"
	"math"

	vk "github.com/vulkan-go/vulkan"

	"github.com/xlab/linmath"
)

// Engine is the concrete Presenter: it binds the device, swapchain manager,
// frame synchronizer and command recorder into the per-frame contract the
// presentation loop drives.
type Engine struct {
	dev     *Device
	surface vk.Surface

	swapchain *Swapchain
	sync      *FrameSync
	rec       *Recorder

	pipeline vk.Pipeline
	layout   vk.PipelineLayout
	vertSPV  []byte
	fragSPV  []byte

	// slot taken by the most recent Acquire; Draw and Present run against it.
	slot Slot
}

// EngineConfig selects the record variant. Leaving both shader blobs empty
// produces the clear-only engine; otherwise the triangle pipeline is built at
// startup and after every rebuild.
type EngineConfig struct {
	VertexShader   []byte
	FragmentShader []byte
}

// NewEngine builds the swapchain, the synchronization slots and the command
// buffers for surface. The number of frames in flight is derived from the
// swapchain image count.
func NewEngine(dev *Device, surface vk.Surface, window vk.Extent2D, cfg EngineConfig) (*Engine, error) {
	e := &Engine{
		dev:     dev,
		surface: surface,
		vertSPV: cfg.VertexShader,
		fragSPV: cfg.FragmentShader,
	}

	swapchain, err := NewSwapchain(dev, surface, window)
	if err != nil {
		return nil, fmt.Errorf("creating swapchain: %w", err)
	}
	e.swapchain = swapchain

	sync, err := NewFrameSync(dev, swapchain.ImageCount())
	if err != nil {
		e.Destroy()
		return nil, fmt.Errorf("creating frame synchronization: %w", err)
	}
	e.sync = sync

	rec, err := NewRecorder(dev, swapchain.ImageCount())
	if err != nil {
		e.Destroy()
		return nil, fmt.Errorf("creating command recorder: %w", err)
	}
	e.rec = rec

	if err := e.buildPipeline(); err != nil {
		e.Destroy()
		return nil, err
	}

	return e, nil
}

func (e *Engine) drawsTriangle() bool {
	return len(e.vertSPV) > 0 && len(e.fragSPV) > 0
}

func (e *Engine) buildPipeline() error {
	if !e.drawsTriangle() {
		return nil
	}

	pipeline, layout, err := buildPipeline(
		e.dev.handle, e.swapchain.RenderPass(), e.vertSPV, e.fragSPV,
	)
	if err != nil {
		return fmt.Errorf("creating graphics pipeline: %w", err)
	}
	e.pipeline = pipeline
	e.layout = layout

	return nil
}

func (e *Engine) destroyPipeline() {
	if e.pipeline != vk.Pipeline(vk.NullHandle) {
		vk.DestroyPipeline(e.dev.handle, e.pipeline, nil)
		e.pipeline = vk.Pipeline(vk.NullHandle)
	}
	if e.layout != vk.PipelineLayout(vk.NullHandle) {
		vk.DestroyPipelineLayout(e.dev.handle, e.layout, nil)
		e.layout = vk.PipelineLayout(vk.NullHandle)
	}
}

// Acquire rotates to the next synchronization slot, waits on its fence and
// asks the presentation engine for an image. The slot rotation happens before
// anything fallible so an abandoned frame never re-waits the same fence.
func (e *Engine) Acquire() (uint32, bool, error) {
	slot, imageIndex, outdated, err := e.sync.Acquire(e.dev, e.acquireImage)
	e.slot = slot
	return imageIndex, outdated, err
}

// acquireImage is the AcquireFunc bound to the live swapchain. A stale
// swapchain is reported as outdated, not as an error; Suboptimal still
// delivers a usable image and the frame proceeds.
func (e *Engine) acquireImage(imageAvailable vk.Semaphore) (uint32, bool, error) {
	var imageIndex uint32
	res := vk.AcquireNextImage(
		e.dev.handle,
		e.swapchain.Handle(),
		math.MaxUint64,
		imageAvailable,
		vk.NullFence,
		&imageIndex,
	)
	if res == vk.ErrorOutOfDate {
		return 0, true, nil
	}
	if res != vk.Success && res != vk.Suboptimal {
		return 0, false, fmt.Errorf("failed to acquire swapchain image: %w", vk.Error(res))
	}

	return imageIndex, false, nil
}

// Draw records and submits the frame for the acquired image index, bound to
// the current slot's primitives.
func (e *Engine) Draw(imageIndex uint32, clear linmath.Vec4) error {
	return e.rec.RecordAndSubmit(RecordParams{
		ImageIndex:  imageIndex,
		Framebuffer: e.swapchain.Framebuffer(imageIndex),
		RenderPass:  e.swapchain.RenderPass(),
		Extent:      e.swapchain.Extent(),
		Clear:       clear,
		Pipeline:    e.pipeline,
		WaitSem:     e.slot.ImageAvailable,
		SignalSem:   e.slot.RenderFinished,
		Fence:       e.slot.InFlight,
	})
}

// Present asks the presentation engine to display the image once the current
// slot's render-finished semaphore signals.
func (e *Engine) Present(imageIndex uint32) (bool, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{e.slot.RenderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{e.swapchain.Handle()},
		PImageIndices:      []uint32{imageIndex},
	}

	res := vk.QueuePresent(e.dev.queue, &presentInfo)
	if res == vk.ErrorOutOfDate || res == vk.Suboptimal {
		return true, nil
	}
	if res != vk.Success {
		return false, fmt.Errorf("failed to present swapchain image: %w", vk.Error(res))
	}

	return false, nil
}

// Rebuild tears the swapchain down and builds everything that depends on the
// image count again: command buffers, synchronization slots sized to the new
// count with the frame counter clamped into range, and the pipeline (the
// attachment format may have changed with the surface). Failure here is fatal
// to the caller; the old swapchain is already gone.
func (e *Engine) Rebuild(window vk.Extent2D) error {
	e.dev.WaitIdle()

	e.destroyPipeline()

	if err := e.swapchain.Recreate(window, e.rec); err != nil {
		return fmt.Errorf("recreating swapchain: %w", err)
	}

	if err := e.rec.Realloc(e.swapchain.ImageCount()); err != nil {
		return fmt.Errorf("reallocating command buffers: %w", err)
	}

	if err := e.sync.Recreate(e.dev, e.swapchain.ImageCount()); err != nil {
		return fmt.Errorf("recreating frame synchronization: %w", err)
	}

	if err := e.buildPipeline(); err != nil {
		return err
	}

	return nil
}

// FramesInFlight returns the current synchronization slot count.
func (e *Engine) FramesInFlight() int {
	return e.sync.FramesInFlight()
}

// Extent returns the swapchain's pixel extent.
func (e *Engine) Extent() vk.Extent2D {
	return e.swapchain.Extent()
}

// Destroy waits for the device to drain and releases everything the engine
// owns, dependents first. Idempotent.
func (e *Engine) Destroy() {
	e.dev.WaitIdle()

	if e.sync != nil {
		e.sync.Destroy(e.dev)
		e.sync = nil
	}

	e.destroyPipeline()

	if e.swapchain != nil {
		e.swapchain.Destroy(e.rec)
		e.swapchain = nil
	}

	if e.rec != nil {
		e.rec.Destroy()
		e.rec = nil
	}
}
