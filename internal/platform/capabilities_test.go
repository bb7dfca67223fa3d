package platform_test

import (
	"slices"
	"testing"

	"github.com/1broseidon/winwatch/internal/platform"
	"github.com/1broseidon/winwatch/internal/platform/platformtest"
)

func TestProbe_NilBackend(t *testing.T) {
	if caps := platform.Probe(nil); caps != nil {
		t.Fatalf("Probe(nil) = %+v, want nil", caps)
	}
}

func TestProbe_FullBackendResolvesEveryCapability(t *testing.T) {
	fake := platformtest.New()
	fake.SetPhysicalPixels(true)

	caps := platform.Probe(fake)
	if caps == nil {
		t.Fatal("Probe returned nil")
	}
	if caps.Bounds == nil || caps.MonitorOf == nil || caps.Monitors == nil ||
		caps.Show == nil || caps.Redraw == nil || caps.Visibility == nil ||
		caps.Transparency == nil || caps.Opacity == nil || caps.Owner == nil ||
		caps.Access == nil || caps.Process == nil || caps.Icons == nil {
		t.Fatalf("missing capability: %v", caps.Names())
	}
	if !caps.ScaleBounds {
		t.Fatal("expected ScaleBounds for physical-pixel backend")
	}
	if !slices.Contains(caps.Names(), "physical-pixels") {
		t.Fatalf("Names() = %v, missing physical-pixels", caps.Names())
	}
}

func TestProbe_PhysicalPixelsFalseDisablesScaling(t *testing.T) {
	caps := platform.Probe(platformtest.New())
	if caps.ScaleBounds {
		t.Fatal("ScaleBounds set for backend reporting logical pixels")
	}
}

func TestProbe_MinimalBackendHasNoOptionalCapabilities(t *testing.T) {
	caps := platform.Probe(platformtest.Minimal{F: platformtest.New()})
	if names := caps.Names(); len(names) != 0 {
		t.Fatalf("Names() = %v, want none", names)
	}
}

func TestRect_IsEmptyAndString(t *testing.T) {
	tests := []struct {
		rect  platform.Rect
		empty bool
		str   string
	}{
		{platform.Rect{}, true, "0x0+0+0"},
		{platform.Rect{X: 1}, false, "0x0+1+0"},
		{platform.Rect{X: 10, Y: 20, Width: 300, Height: 200}, false, "300x200+10+20"},
	}
	for _, tt := range tests {
		if got := tt.rect.IsEmpty(); got != tt.empty {
			t.Fatalf("%+v IsEmpty() = %v, want %v", tt.rect, got, tt.empty)
		}
		if got := tt.rect.String(); got != tt.str {
			t.Fatalf("%+v String() = %q, want %q", tt.rect, got, tt.str)
		}
	}
}
