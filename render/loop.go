package render

import (
	"fmt"
	"log"
	"sync"

	vk "github.com/vulkan-go/vulkan"

	"github.com/xlab/linmath"
)

// Input is everything the windowing collaborator reports for one loop
// iteration. Resize, DPI change and refresh damage are collapsed into a single
// Rebuild signal rather than handled per cause.
type Input struct {
	// Quit is set when the window was asked to close or Escape was pressed.
	Quit bool

	// Rebuild is set when anything happened that invalidates the swapchain
	// extent or surface.
	Rebuild bool

	// PointerX and PointerY are the last known pointer position in screen
	// coordinates.
	PointerX float64
	PointerY float64
}

// Platform is the windowing collaborator the loop polls once per iteration.
type Platform interface {
	// Poll drains pending window events without blocking and reports them
	// collapsed into an Input.
	Poll() Input

	// Extent returns the current framebuffer extent in pixels.
	Extent() vk.Extent2D

	// AwaitExtent blocks while the framebuffer is zero-sized (the window is
	// minimized) and returns the first non-zero extent. The second return is
	// true when the window was asked to close while waiting.
	AwaitExtent() (vk.Extent2D, bool)
}

// Presenter is the per-frame contract the loop drives. Engine is the real
// implementation.
type Presenter interface {
	// Acquire waits for the next frame slot and obtains a swapchain image
	// index. outdated reports that the swapchain is stale and the frame must
	// be abandoned in favor of a rebuild.
	Acquire() (imageIndex uint32, outdated bool, err error)

	// Draw records and submits the frame for the acquired image.
	Draw(imageIndex uint32, clear linmath.Vec4) error

	// Present hands the image to the presentation engine. outdated reports
	// that the swapchain must be rebuilt before the next frame.
	Present(imageIndex uint32) (outdated bool, err error)

	// Rebuild recreates the swapchain and everything sized to it. An error
	// is fatal: the old swapchain is already gone.
	Rebuild(window vk.Extent2D) error

	// FramesInFlight returns the current frame slot count.
	FramesInFlight() int
}

// Loop ties acquisition, recording, submission and presentation together, one
// iteration per displayed frame, and routes resize events and stale-swapchain
// results into the rebuild path.
type Loop struct {
	presenter Presenter
	platform  Platform

	// clear maps the iteration's input to the frame's clear color.
	clear func(Input) linmath.Vec4

	extentOnce sync.Once
}

// NewLoop creates a loop over presenter and platform. clear may be nil, in
// which case every frame clears to opaque black.
func NewLoop(presenter Presenter, platform Platform, clear func(Input) linmath.Vec4) *Loop {
	if clear == nil {
		clear = func(Input) linmath.Vec4 {
			return linmath.Vec4{0, 0, 0, 1}
		}
	}
	return &Loop{
		presenter: presenter,
		platform:  platform,
		clear:     clear,
	}
}

// Run drives frames until the platform reports quit. It returns nil on quit
// and an error only for fatal conditions, which currently means a failed
// swapchain rebuild. Recoverable per-frame failures are logged, the frame is
// abandoned whole (nothing is presented partially) and the loop moves on.
func (l *Loop) Run() error {
	for {
		input := l.platform.Poll()
		if input.Quit {
			return nil
		}
		if input.Rebuild {
			quit, err := l.rebuild()
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
			continue
		}

		l.extentOnce.Do(func() {
			extent := l.platform.Extent()
			log.Printf("presenting at %dx%d", extent.Width, extent.Height)
		})

		imageIndex, outdated, err := l.presenter.Acquire()
		if err != nil {
			if isFrameSyncError(err) {
				log.Printf("frame abandoned: %v", err)
				continue
			}
			log.Printf("frame abandoned, swapchain suspect: %v", err)
			outdated = true
		}
		if outdated {
			quit, err := l.rebuild()
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
			continue
		}

		if err := l.presenter.Draw(imageIndex, l.clear(input)); err != nil {
			// The slot's fence was reset before submission; a failed submit
			// leaves it unsignaled with nothing left to signal it. The
			// rebuild replaces every fence signaled.
			log.Printf("frame abandoned: %v", err)
			quit, err := l.rebuild()
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
			continue
		}

		outdated, err = l.presenter.Present(imageIndex)
		if err != nil {
			log.Printf("present failed: %v", err)
			outdated = true
		}
		if outdated {
			quit, err := l.rebuild()
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

// rebuild stalls while the window is minimized, then recreates the swapchain
// at the platform's current extent.
func (l *Loop) rebuild() (bool, error) {
	extent, quit := l.platform.AwaitExtent()
	if quit {
		return true, nil
	}

	if err := l.presenter.Rebuild(extent); err != nil {
		return false, fmt.Errorf("swapchain rebuild failed: %w", err)
	}

	log.Printf(
		"swapchain rebuilt at %dx%d, %d frames in flight",
		extent.Width, extent.Height, l.presenter.FramesInFlight(),
	)

	return false, nil
}
