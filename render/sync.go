package render

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Slot is one in-flight frame's worth of synchronization primitives.
type Slot struct {
	// Index is the slot's position in the rotation.
	Index int

	// InFlight signals on the CPU when the GPU finishes the work last
	// submitted against this slot. Created signaled so the first wait on a
	// fresh slot returns immediately.
	InFlight vk.Fence

	// ImageAvailable signals when the presentation engine hands over the
	// acquired image; rendering waits on it at color-attachment output.
	ImageAvailable vk.Semaphore

	// RenderFinished signals when rendering completes; presentation waits
	// on it.
	RenderFinished vk.Semaphore
}

// FrameSync owns the per-in-flight-frame synchronization slots and the frame
// rotation policy. Command buffers and framebuffers are indexed by the
// acquired image index, never by the slot index; the two counters are
// unrelated.
type FrameSync struct {
	slots   []Slot
	current int
}

// FenceBackend is the slice of the device the synchronizer drives its fences
// through. *Device implements it.
type FenceBackend interface {
	WaitForFence(fence vk.Fence) error
	ResetFence(fence vk.Fence) error
}

// AcquireFunc asks the presentation engine for an image, gated on the slot's
// image-available semaphore.
type AcquireFunc func(imageAvailable vk.Semaphore) (imageIndex uint32, outdated bool, err error)

// NewFrameSync creates frames slots of synchronization primitives.
func NewFrameSync(dev *Device, frames int) (*FrameSync, error) {
	s := &FrameSync{}
	if err := s.createSlots(dev, frames); err != nil {
		s.Destroy(dev)
		return nil, err
	}
	return s, nil
}

func (s *FrameSync) createSlots(dev *Device, frames int) error {
	semaphoreInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	fenceInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}

	s.slots = make([]Slot, 0, frames)
	for i := 0; i < frames; i++ {
		slot := Slot{Index: i}

		if err := vk.Error(
			vk.CreateFence(dev.handle, &fenceInfo, nil, &slot.InFlight),
		); err != nil {
			return fmt.Errorf("failed to create in-flight fence %d: %w", i, err)
		}

		if err := vk.Error(
			vk.CreateSemaphore(dev.handle, &semaphoreInfo, nil, &slot.ImageAvailable),
		); err != nil {
			s.slots = append(s.slots, slot)
			return fmt.Errorf("failed to create image-available semaphore %d: %w", i, err)
		}

		if err := vk.Error(
			vk.CreateSemaphore(dev.handle, &semaphoreInfo, nil, &slot.RenderFinished),
		); err != nil {
			s.slots = append(s.slots, slot)
			return fmt.Errorf("failed to create render-finished semaphore %d: %w", i, err)
		}

		s.slots = append(s.slots, slot)
	}

	return nil
}

// Next returns the current slot and advances the rotation. The counter moves
// on entry, before anything fallible happens to the frame, so an abandoned
// frame does not re-wait on the same fence.
func (s *FrameSync) Next() Slot {
	slot := s.slots[s.current]
	s.current = (s.current + 1) % len(s.slots)
	return slot
}

// Acquire rotates to the next slot, waits on its in-flight fence and invokes
// acquire with the slot's image-available semaphore. The fence is reset only
// once acquisition succeeds: a stale result or an error leaves it signaled, so
// the slot's next wait returns immediately instead of blocking forever.
func (s *FrameSync) Acquire(fences FenceBackend, acquire AcquireFunc) (Slot, uint32, bool, error) {
	slot := s.Next()

	if err := fences.WaitForFence(slot.InFlight); err != nil {
		return slot, 0, false, err
	}

	imageIndex, outdated, err := acquire(slot.ImageAvailable)
	if err != nil || outdated {
		return slot, 0, outdated, err
	}

	if err := fences.ResetFence(slot.InFlight); err != nil {
		return slot, 0, false, err
	}

	return slot, imageIndex, false, nil
}

// Current returns the index the next call to Next will hand out.
func (s *FrameSync) Current() int {
	return s.current
}

// FramesInFlight returns the number of slots in the rotation.
func (s *FrameSync) FramesInFlight() int {
	return len(s.slots)
}

// Recreate replaces every slot with freshly created primitives sized to the
// new frame count and clamps the rotation counter into range. Replacing the
// whole set means no fence can survive a rebuild in the unsignaled state with
// no submission left to signal it. Must only be called after the device has
// been waited idle.
func (s *FrameSync) Recreate(dev *Device, frames int) error {
	current := s.current
	s.Destroy(dev)
	if err := s.createSlots(dev, frames); err != nil {
		s.Destroy(dev)
		return err
	}
	s.current = clampCounter(current, frames)
	return nil
}

// clampCounter carries the rotation counter across a slot-count change,
// keeping it inside [0, frames).
func clampCounter(current, frames int) int {
	return current % frames
}

// Destroy releases every slot. Idempotent.
func (s *FrameSync) Destroy(dev *Device) {
	for _, slot := range s.slots {
		if slot.InFlight != vk.NullFence {
			vk.DestroyFence(dev.handle, slot.InFlight, nil)
		}
		if slot.ImageAvailable != vk.NullSemaphore {
			vk.DestroySemaphore(dev.handle, slot.ImageAvailable, nil)
		}
		if slot.RenderFinished != vk.NullSemaphore {
			vk.DestroySemaphore(dev.handle, slot.RenderFinished, nil)
		}
	}
	s.slots = nil
	s.current = 0
}
