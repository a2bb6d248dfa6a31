package platform

type WindowType int

const (
	WindowTypeApplicationOverlay WindowType = iota + 1
	// WindowTypePhone is the pre-26 overlay type.
	WindowTypePhone
)

type WindowFlag uint32

const (
	WindowFlagNotFocusable WindowFlag = 1 << iota
	WindowFlagNotTouchable
	WindowFlagLayoutNoLimits
)

type PixelFormat int

const (
	PixelFormatOpaque PixelFormat = iota
	PixelFormatTranslucent
)

type Gravity uint32

const (
	GravityTop Gravity = 1 << iota
	GravityStart
)

// SurfaceSpec describes a window to attach.
type SurfaceSpec struct {
	Width, Height int
	Type          WindowType
	Flags         WindowFlag
	Format        PixelFormat
	Gravity       Gravity
	X, Y          int
}

// InvisibleSurface is the smallest surface that gives the process a visible
// window: 1x1, translucent, and it neither takes focus nor touches.
func InvisibleSurface(d Device) SurfaceSpec {
	typ := WindowTypeApplicationOverlay
	if !d.RequiresForegroundService() {
		typ = WindowTypePhone
	}
	return SurfaceSpec{
		Width:   1,
		Height:  1,
		Type:    typ,
		Flags:   WindowFlagNotFocusable | WindowFlagNotTouchable | WindowFlagLayoutNoLimits,
		Format:  PixelFormatTranslucent,
		Gravity: GravityTop | GravityStart,
	}
}

// Surface is an attached window handle.
type Surface interface {
	ID() string
}

// WindowManager attaches and detaches surfaces.
type WindowManager interface {
	AddView(spec SurfaceSpec) (Surface, error)
	RemoveView(s Surface) error
}
