package platform_test

import (
	"testing"

	"github.com/ErlanBelekov/app-launch-scheduler/internal/platform"
)

func TestInvisibleSurface(t *testing.T) {
	s := platform.InvisibleSurface(platform.Device{SDK: 34})
	if s.Width != 1 || s.Height != 1 {
		t.Fatalf("size = %dx%d, want 1x1", s.Width, s.Height)
	}
	want := platform.WindowFlagNotFocusable | platform.WindowFlagNotTouchable | platform.WindowFlagLayoutNoLimits
	if s.Flags != want {
		t.Fatalf("flags = %b, want %b", s.Flags, want)
	}
	if s.Format != platform.PixelFormatTranslucent {
		t.Fatal("surface not translucent")
	}
	if s.Type != platform.WindowTypeApplicationOverlay {
		t.Fatalf("type = %v, want application overlay", s.Type)
	}
	if old := platform.InvisibleSurface(platform.Device{SDK: 25}); old.Type != platform.WindowTypePhone {
		t.Fatalf("pre-26 type = %v, want phone", old.Type)
	}
}

func TestIntent_WithLaunchFlags(t *testing.T) {
	in := platform.Intent{PackageName: "p", Activity: "a"}
	out := in.WithLaunchFlags()
	if in.Flags != 0 {
		t.Fatal("WithLaunchFlags mutated the receiver")
	}
	if out.Flags&platform.FlagActivityNewTask == 0 || out.Flags&platform.FlagActivityClearTop == 0 {
		t.Fatalf("flags = %b", out.Flags)
	}
}

func TestDevice(t *testing.T) {
	if (platform.Device{SDK: 28}).RestrictsBackgroundStarts() {
		t.Error("SDK 28 restricted")
	}
	if !(platform.Device{SDK: 29}).RestrictsBackgroundStarts() {
		t.Error("SDK 29 unrestricted")
	}
}
