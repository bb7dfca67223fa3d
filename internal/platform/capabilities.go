package platform

// Capabilities is the capability set of one backend, resolved once at
// startup. Nil fields mean the capability is absent and callers fall back
// to their documented default.
type Capabilities struct {
	Backend Backend

	Bounds       BoundsSetter
	MonitorOf    MonitorLocator
	Monitors     MonitorLister
	Show         ShowController
	Redraw       Redrawer
	Visibility   VisibilityReporter
	Transparency TransparencyController
	Opacity      OpacityController
	Owner        OwnerController
	Access       AccessibilityRequester
	Process      ProcessCreator
	Icons        IconSource

	// ScaleBounds is true when bounds come back in physical pixels.
	ScaleBounds bool
}

// Probe inspects b for optional capabilities. A nil backend yields nil so
// that callers surface ErrUnavailable.
func Probe(b Backend) *Capabilities {
	if b == nil {
		return nil
	}

	caps := &Capabilities{Backend: b}
	caps.Bounds, _ = b.(BoundsSetter)
	caps.MonitorOf, _ = b.(MonitorLocator)
	caps.Monitors, _ = b.(MonitorLister)
	caps.Show, _ = b.(ShowController)
	caps.Redraw, _ = b.(Redrawer)
	caps.Visibility, _ = b.(VisibilityReporter)
	caps.Transparency, _ = b.(TransparencyController)
	caps.Opacity, _ = b.(OpacityController)
	caps.Owner, _ = b.(OwnerController)
	caps.Access, _ = b.(AccessibilityRequester)
	caps.Process, _ = b.(ProcessCreator)
	caps.Icons, _ = b.(IconSource)
	if pp, ok := b.(PhysicalPixels); ok {
		caps.ScaleBounds = pp.ReportsPhysicalPixels()
	}
	return caps
}

// Names lists the optional capabilities that are present, for diagnostics.
func (c *Capabilities) Names() []string {
	if c == nil {
		return nil
	}
	var names []string
	add := func(present bool, name string) {
		if present {
			names = append(names, name)
		}
	}
	add(c.Bounds != nil, "set-bounds")
	add(c.MonitorOf != nil, "monitor-from-window")
	add(c.Monitors != nil, "monitors")
	add(c.Show != nil, "show")
	add(c.Redraw != nil, "redraw")
	add(c.Visibility != nil, "visibility")
	add(c.Transparency != nil, "transparency")
	add(c.Opacity != nil, "opacity")
	add(c.Owner != nil, "owner")
	add(c.Access != nil, "accessibility")
	add(c.Process != nil, "create-process")
	add(c.Icons != nil, "icons")
	add(c.ScaleBounds, "physical-pixels")
	return names
}
