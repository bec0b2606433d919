package render

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/xlab/linmath"
)

// Recorder owns the command pool and one primary command buffer per swapchain
// image. A buffer is re-recorded fresh every time its image is acquired and is
// never submitted twice without a reset in between.
type Recorder struct {
	dev     *Device
	pool    vk.CommandPool
	buffers []vk.CommandBuffer
}

// RecordParams carries everything one frame's recording and submission needs.
type RecordParams struct {
	// ImageIndex selects the command buffer and must match Framebuffer.
	ImageIndex  uint32
	Framebuffer vk.Framebuffer
	RenderPass  vk.RenderPass
	Extent      vk.Extent2D

	// Clear is the color the attachment is cleared to.
	Clear linmath.Vec4

	// Pipeline, when not null, is bound and a 3-vertex, 1-instance draw is
	// recorded. A null pipeline records the clear-only variant.
	Pipeline vk.Pipeline

	// WaitSem gates the render pass on image availability; SignalSem and
	// Fence are signaled when the submission completes.
	WaitSem   vk.Semaphore
	SignalSem vk.Semaphore
	Fence     vk.Fence
}

// NewRecorder creates the command pool on the device's queue family and
// allocates one buffer per swapchain image.
func NewRecorder(dev *Device, imageCount int) (*Recorder, error) {
	poolInfo := vk.CommandPoolCreateInfo{
		SType: vk.StructureTypeCommandPoolCreateInfo,
		Flags: vk.CommandPoolCreateFlags(
			vk.CommandPoolCreateResetCommandBufferBit,
		),
		QueueFamilyIndex: dev.family,
	}

	var commandPool vk.CommandPool
	res := vk.CreateCommandPool(dev.handle, &poolInfo, nil, &commandPool)
	if err := vk.Error(res); err != nil {
		return nil, fmt.Errorf("failed to create command pool: %w", err)
	}

	r := &Recorder{
		dev:  dev,
		pool: commandPool,
	}

	if err := r.allocBuffers(imageCount); err != nil {
		r.Destroy()
		return nil, err
	}

	return r, nil
}

func (r *Recorder) allocBuffers(imageCount int) error {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        r.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(imageCount),
	}

	buffers := make([]vk.CommandBuffer, imageCount)
	res := vk.AllocateCommandBuffers(r.dev.handle, &allocInfo, buffers)
	if err := vk.Error(res); err != nil {
		return fmt.Errorf("failed to allocate command buffers: %w", err)
	}
	r.buffers = buffers

	return nil
}

// Realloc frees the current buffers and allocates imageCount fresh ones.
// Called after a swapchain rebuild, which may change the image count.
func (r *Recorder) Realloc(imageCount int) error {
	if len(r.buffers) > 0 {
		vk.FreeCommandBuffers(r.dev.handle, r.pool, uint32(len(r.buffers)), r.buffers)
		r.buffers = nil
	}
	return r.allocBuffers(imageCount)
}

// ResetPool returns every buffer in the pool to the initial state. Only valid
// while none of them is pending execution.
func (r *Recorder) ResetPool() {
	vk.ResetCommandPool(r.dev.handle, r.pool, 0)
}

// RecordAndSubmit re-records the buffer for the acquired image and submits it:
// begin one-time buffer, begin the render pass with the single clear value,
// optionally draw the triangle, end, then submit waiting on WaitSem at the
// color-attachment-output stage and signaling SignalSem and Fence on
// completion. Completion is observed only through the fence on a later frame.
func (r *Recorder) RecordAndSubmit(p RecordParams) error {
	commandBuffer := r.buffers[p.ImageIndex]

	vk.ResetCommandBuffer(commandBuffer, 0)

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}

	res := vk.BeginCommandBuffer(commandBuffer, &beginInfo)
	if err := vk.Error(res); err != nil {
		return fmt.Errorf("cannot begin command buffer: %w", err)
	}

	clearColor := vk.NewClearValue([]float32{
		p.Clear[0], p.Clear[1], p.Clear[2], p.Clear[3],
	})

	renderPassInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  p.RenderPass,
		Framebuffer: p.Framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: p.Extent,
		},
		ClearValueCount: 1,
		PClearValues:    []vk.ClearValue{clearColor},
	}

	vk.CmdBeginRenderPass(commandBuffer, &renderPassInfo, vk.SubpassContentsInline)

	if p.Pipeline != vk.Pipeline(vk.NullHandle) {
		vk.CmdBindPipeline(commandBuffer, vk.PipelineBindPointGraphics, p.Pipeline)

		viewport := vk.Viewport{
			X: 0, Y: 0,
			Width:    float32(p.Extent.Width),
			Height:   float32(p.Extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		}
		vk.CmdSetViewport(commandBuffer, 0, 1, []vk.Viewport{viewport})

		scissor := vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: p.Extent,
		}
		vk.CmdSetScissor(commandBuffer, 0, 1, []vk.Rect2D{scissor})

		vk.CmdDraw(commandBuffer, 3, 1, 0, 0)
	}

	vk.CmdEndRenderPass(commandBuffer)

	if err := vk.Error(vk.EndCommandBuffer(commandBuffer)); err != nil {
		return fmt.Errorf("recording commands to buffer failed: %w", err)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{p.WaitSem},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{p.SignalSem},
	}

	res = vk.QueueSubmit(r.dev.queue, 1, []vk.SubmitInfo{submitInfo}, p.Fence)
	if err := vk.Error(res); err != nil {
		return fmt.Errorf("queue submit error: %w", err)
	}

	return nil
}

// Destroy releases the pool and with it every buffer. Idempotent.
func (r *Recorder) Destroy() {
	if r.pool == vk.CommandPool(vk.NullHandle) {
		return
	}
	vk.DestroyCommandPool(r.dev.handle, r.pool, nil)
	r.pool = vk.CommandPool(vk.NullHandle)
	r.buffers = nil
}
