package render

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	vk "github.com/vulkan-go/vulkan"

	"github.com/xlab/linmath"
)

type acquireResult struct {
	index    uint32
	outdated bool
	err      error
}

type presentResult struct {
	outdated bool
	err      error
}

// fakePresenter scripts per-frame results and records the calls the loop makes
// in order.
type fakePresenter struct {
	acquires []acquireResult
	presents []presentResult

	drawErr    error
	rebuildErr error
	frames     int

	acquireCalls int
	presentCalls int
	drawn        []uint32
	presented    []uint32
	rebuilds     []vk.Extent2D
	trace        []string
}

func (f *fakePresenter) Acquire() (uint32, bool, error) {
	f.trace = append(f.trace, "acquire")
	var r acquireResult
	if f.acquireCalls < len(f.acquires) {
		r = f.acquires[f.acquireCalls]
	}
	f.acquireCalls++
	return r.index, r.outdated, r.err
}

func (f *fakePresenter) Draw(imageIndex uint32, clear linmath.Vec4) error {
	f.trace = append(f.trace, "draw")
	f.drawn = append(f.drawn, imageIndex)
	return f.drawErr
}

func (f *fakePresenter) Present(imageIndex uint32) (bool, error) {
	f.trace = append(f.trace, "present")
	f.presented = append(f.presented, imageIndex)
	var r presentResult
	if f.presentCalls < len(f.presents) {
		r = f.presents[f.presentCalls]
	}
	f.presentCalls++
	return r.outdated, r.err
}

func (f *fakePresenter) Rebuild(window vk.Extent2D) error {
	f.trace = append(f.trace, "rebuild")
	f.rebuilds = append(f.rebuilds, window)
	return f.rebuildErr
}

func (f *fakePresenter) FramesInFlight() int {
	if f.frames == 0 {
		return 2
	}
	return f.frames
}

// fakePlatform replays a scripted input sequence and quits once it runs out.
type fakePlatform struct {
	inputs []Input
	extent vk.Extent2D

	polls int
}

func (f *fakePlatform) Poll() Input {
	if f.polls >= len(f.inputs) {
		return Input{Quit: true}
	}
	in := f.inputs[f.polls]
	f.polls++
	return in
}

func (f *fakePlatform) Extent() vk.Extent2D {
	return f.extent
}

func (f *fakePlatform) AwaitExtent() (vk.Extent2D, bool) {
	return f.extent, false
}

var _ = Describe("presentation loop", func() {
	extent := vk.Extent2D{Width: 640, Height: 480}

	It("drives acquire, draw and present once per frame", func() {
		presenter := &fakePresenter{
			acquires: []acquireResult{{index: 1}, {index: 0}},
		}
		platform := &fakePlatform{
			inputs: []Input{{}, {}},
			extent: extent,
		}

		Expect(NewLoop(presenter, platform, nil).Run()).To(Succeed())

		Expect(presenter.trace).To(Equal([]string{
			"acquire", "draw", "present",
			"acquire", "draw", "present",
		}))
		Expect(presenter.drawn).To(Equal([]uint32{1, 0}))
		Expect(presenter.presented).To(Equal([]uint32{1, 0}))
	})

	It("rebuilds on a stale acquire without recording that frame", func() {
		presenter := &fakePresenter{
			acquires: []acquireResult{{outdated: true}, {index: 1}},
		}
		platform := &fakePlatform{
			inputs: []Input{{}, {}},
			extent: extent,
		}

		Expect(NewLoop(presenter, platform, nil).Run()).To(Succeed())

		Expect(presenter.trace).To(Equal([]string{
			"acquire", "rebuild",
			"acquire", "draw", "present",
		}))
		Expect(presenter.rebuilds).To(Equal([]vk.Extent2D{extent}))
		Expect(presenter.drawn).To(Equal([]uint32{1}))
	})

	It("rebuilds exactly once on a resize event, with the new extent", func() {
		presenter := &fakePresenter{
			acquires: []acquireResult{{index: 0}, {index: 1}},
		}
		platform := &fakePlatform{
			inputs: []Input{{}, {Rebuild: true}, {}},
			extent: extent,
		}

		Expect(NewLoop(presenter, platform, nil).Run()).To(Succeed())

		Expect(presenter.trace).To(Equal([]string{
			"acquire", "draw", "present",
			"rebuild",
			"acquire", "draw", "present",
		}))
		Expect(presenter.rebuilds).To(Equal([]vk.Extent2D{extent}))
	})

	It("rebuilds after a stale present", func() {
		presenter := &fakePresenter{
			acquires: []acquireResult{{index: 0}},
			presents: []presentResult{{outdated: true}},
		}
		platform := &fakePlatform{
			inputs: []Input{{}},
			extent: extent,
		}

		Expect(NewLoop(presenter, platform, nil).Run()).To(Succeed())

		Expect(presenter.trace).To(Equal([]string{
			"acquire", "draw", "present", "rebuild",
		}))
	})

	It("abandons the frame on a fence failure without rebuilding", func() {
		presenter := &fakePresenter{
			acquires: []acquireResult{
				{err: fmt.Errorf("slot 0: %w", ErrFenceWait)},
				{index: 1},
			},
		}
		platform := &fakePlatform{
			inputs: []Input{{}, {}},
			extent: extent,
		}

		Expect(NewLoop(presenter, platform, nil).Run()).To(Succeed())

		Expect(presenter.rebuilds).To(BeEmpty())
		Expect(presenter.drawn).To(Equal([]uint32{1}))
	})

	It("treats any other acquire failure as a stale swapchain", func() {
		presenter := &fakePresenter{
			acquires: []acquireResult{
				{err: errors.New("device lost its marbles")},
				{index: 0},
			},
		}
		platform := &fakePlatform{
			inputs: []Input{{}, {}},
			extent: extent,
		}

		Expect(NewLoop(presenter, platform, nil).Run()).To(Succeed())

		Expect(presenter.rebuilds).To(HaveLen(1))
		Expect(presenter.drawn).To(Equal([]uint32{0}))
	})

	It("rebuilds after a failed submit so no fence stays unsignaled", func() {
		presenter := &fakePresenter{
			acquires: []acquireResult{{index: 0}},
			drawErr:  errors.New("submit refused"),
		}
		platform := &fakePlatform{
			inputs: []Input{{}},
			extent: extent,
		}

		Expect(NewLoop(presenter, platform, nil).Run()).To(Succeed())

		Expect(presenter.presented).To(BeEmpty())
		Expect(presenter.trace).To(Equal([]string{"acquire", "draw", "rebuild"}))
	})

	It("returns a fatal error when the rebuild itself fails", func() {
		rebuildErr := errors.New("no surface to rebuild on")
		presenter := &fakePresenter{rebuildErr: rebuildErr}
		platform := &fakePlatform{
			inputs: []Input{{Rebuild: true}},
			extent: extent,
		}

		err := NewLoop(presenter, platform, nil).Run()
		Expect(err).To(MatchError(rebuildErr))
	})

	It("passes the iteration's input through the clear mapping", func() {
		presenter := &fakePresenter{
			acquires: []acquireResult{{index: 0}},
		}
		platform := &fakePlatform{
			inputs: []Input{{PointerX: 320, PointerY: 240}},
			extent: extent,
		}

		var seen []Input
		loop := NewLoop(presenter, platform, func(in Input) linmath.Vec4 {
			seen = append(seen, in)
			return linmath.Vec4{1, 0, 0, 1}
		})

		Expect(loop.Run()).To(Succeed())
		Expect(seen).To(Equal([]Input{{PointerX: 320, PointerY: 240}}))
	})
})
