package render

import "errors"

// Startup errors. Any of these aborts initialization; the process exits
// non-zero.
var (
	// ErrNoSuitableAdapter means no physical device exposes a queue family
	// which both supports graphics and can present to the surface.
	ErrNoSuitableAdapter = errors.New("no suitable graphics adapter for the surface")

	// ErrNoQueueFamily means the selected adapter stopped exposing a
	// graphics+present queue family between selection and device creation.
	ErrNoQueueFamily = errors.New("adapter has no graphics queue family for the surface")

	// ErrDeviceOpenFailed means logical device creation failed.
	ErrDeviceOpenFailed = errors.New("could not open the logical device")

	// ErrNoPresentMode means the surface supports none of the present modes
	// this program can drive.
	ErrNoPresentMode = errors.New("surface advertises no usable present mode")

	// ErrNoCompositeAlpha means the surface supports none of the composite
	// alpha modes this program can drive.
	ErrNoCompositeAlpha = errors.New("surface advertises no usable composite alpha mode")

	// ErrEmptyFormatList means the surface advertised a preferred-format list
	// with no entries in it.
	ErrEmptyFormatList = errors.New("surface preferred-format list is empty")

	// ErrSurfaceNotColorCapable means the surface cannot be used as a color
	// attachment.
	ErrSurfaceNotColorCapable = errors.New("surface is not capable of color attachment usage")
)

// Per-frame errors. The presentation loop logs these, abandons the frame and
// carries on.
var (
	// ErrFenceWait means waiting on an in-flight fence failed.
	ErrFenceWait = errors.New("waiting on in-flight fence failed")

	// ErrFenceReset means resetting an in-flight fence failed.
	ErrFenceReset = errors.New("resetting in-flight fence failed")
)

// isFrameSyncError reports whether err belongs to the fence taxonomy, which is
// recoverable without a swapchain rebuild.
func isFrameSyncError(err error) bool {
	return errors.Is(err, ErrFenceWait) || errors.Is(err, ErrFenceReset)
}
