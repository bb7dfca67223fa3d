package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/winwatch/internal/platform"
	"github.com/1broseidon/winwatch/internal/platform/platformtest"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// take returns and clears the recorded events.
func (r *recorder) take() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

type countingObserver struct {
	mu     sync.Mutex
	ticks  int
	events map[EventType]int
	errors map[platform.WindowID]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{events: map[EventType]int{}, errors: map[platform.WindowID]int{}}
}

func (o *countingObserver) TickCompleted(time.Duration, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks++
}

func (o *countingObserver) EventEmitted(t EventType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events[t]++
}

func (o *countingObserver) WindowError(id platform.WindowID, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors[id]++
}

func addWindow(f *platformtest.Fake, id platform.WindowID, bounds platform.Rect) {
	f.AddWindow(id, platformtest.Window{
		Info:    platform.WindowInfo{ProcessID: int(id) * 10, Path: "/usr/bin/app"},
		Title:   "app",
		Bounds:  bounds,
		Visible: true,
	})
}

// newTestEngine returns an engine whose ticker never fires, so tests drive
// ticks explicitly with tickNow.
func newTestEngine(t *testing.T, f *platformtest.Fake, opts ...Option) (*Engine, *recorder) {
	t.Helper()
	opts = append([]Option{WithInterval(time.Hour)}, opts...)
	e, err := New(platform.Probe(f), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := &recorder{}
	e.SubscribeAll(rec.handle)
	t.Cleanup(e.Stop)
	return e, rec
}

func tickNow(t *testing.T, e *Engine) {
	t.Helper()
	e.lifeMu.Lock()
	r := e.run
	e.lifeMu.Unlock()
	if r == nil {
		t.Fatal("engine is not running")
	}
	e.tick(r.ctx)
}

type wantEvent struct {
	typ EventType
	id  platform.WindowID
}

func assertEvents(t *testing.T, got []Event, want ...wantEvent) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d events %v, want %d %v", len(got), summarize(got), len(want), want)
	}
	for i := range want {
		if got[i].Type != want[i].typ || got[i].Window.ID != want[i].id {
			t.Fatalf("event %d = %s(%d), want %s(%d)", i, got[i].Type, got[i].Window.ID, want[i].typ, want[i].id)
		}
	}
}

func summarize(events []Event) []wantEvent {
	out := make([]wantEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, wantEvent{ev.Type, ev.Window.ID})
	}
	return out
}

func TestNew_RequiresPlatform(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, platform.ErrUnavailable) {
		t.Fatalf("New(nil) err = %v, want ErrUnavailable", err)
	}
}

func TestTick_Scenario(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	addWindow(f, 7, platform.Rect{X: 200, Width: 100, Height: 100})
	e, rec := newTestEngine(t, f)

	f.SetActive(5)
	tickNow(t, e)
	assertEvents(t, rec.take(), wantEvent{EventNewWindow, 5})

	tickNow(t, e)
	assertEvents(t, rec.take())

	f.SetActive(7)
	tickNow(t, e)
	assertEvents(t, rec.take(),
		wantEvent{EventNewWindow, 7},
		wantEvent{EventWindowActivated, 7},
	)
}

func TestTick_BaselineSuppressesFirstActivation(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	addWindow(f, 6, platform.Rect{Width: 100, Height: 100})
	f.SetActive(5)
	e, rec := newTestEngine(t, f)

	tickNow(t, e)
	assertEvents(t, rec.take(), wantEvent{EventNewWindow, 5})

	f.SetActive(6)
	tickNow(t, e)
	assertEvents(t, rec.take(), wantEvent{EventNewWindow, 6}, wantEvent{EventWindowActivated, 6})

	f.SetActive(5)
	tickNow(t, e)
	assertEvents(t, rec.take(), wantEvent{EventWindowActivated, 5})

	tickNow(t, e)
	assertEvents(t, rec.take())
}

func TestTick_BaselineFromDifferentWindowEmitsActivation(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 3, platform.Rect{Width: 10, Height: 10})
	addWindow(f, 5, platform.Rect{Width: 10, Height: 10})
	f.SetActive(3)
	e, rec := newTestEngine(t, f)

	f.SetActive(5)
	tickNow(t, e)
	assertEvents(t, rec.take(), wantEvent{EventNewWindow, 5}, wantEvent{EventWindowActivated, 5})
}

func TestTick_BoundsChange(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	f.SetActive(5)
	e, rec := newTestEngine(t, f)

	tickNow(t, e)
	rec.take()

	f.SetBounds(5, platform.Rect{Width: 100, Height: 200})
	tickNow(t, e)
	got := rec.take()
	assertEvents(t, got, wantEvent{EventBoundsChange, 5})
	if want := (platform.Rect{Width: 100, Height: 200}); got[0].Bounds != want {
		t.Fatalf("Bounds = %+v, want %+v", got[0].Bounds, want)
	}

	tickNow(t, e)
	assertEvents(t, rec.take())
}

func TestTick_EmptyBoundsNeverReported(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	f.SetActive(5)
	e, rec := newTestEngine(t, f)

	tickNow(t, e)
	rec.take()

	f.SetBounds(5, platform.Rect{})
	tickNow(t, e)
	assertEvents(t, rec.take())

	// The empty reading was stored, so the next real value is a change.
	f.SetBounds(5, platform.Rect{Width: 100, Height: 100})
	tickNow(t, e)
	assertEvents(t, rec.take(), wantEvent{EventBoundsChange, 5})
}

func TestTick_VisibilityToggle(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	f.SetActive(5)
	e, rec := newTestEngine(t, f)

	tickNow(t, e)
	rec.take()

	f.SetVisible(5, false)
	tickNow(t, e)
	got := rec.take()
	assertEvents(t, got, wantEvent{EventVisibilityChange, 5})
	if got[0].Visible {
		t.Fatal("expected Visible=false")
	}

	tickNow(t, e)
	tickNow(t, e)
	assertEvents(t, rec.take())

	f.SetVisible(5, true)
	tickNow(t, e)
	got = rec.take()
	assertEvents(t, got, wantEvent{EventVisibilityChange, 5})
	if !got[0].Visible {
		t.Fatal("expected Visible=true")
	}
}

func TestTick_DiffsBackgroundWindowsInFirstSeenOrder(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 9, platform.Rect{Width: 100, Height: 100})
	addWindow(f, 2, platform.Rect{Width: 100, Height: 100})
	e, rec := newTestEngine(t, f)

	f.SetActive(9)
	tickNow(t, e)
	f.SetActive(2)
	tickNow(t, e)
	rec.take()

	f.SetBounds(9, platform.Rect{X: 50, Width: 100, Height: 100})
	f.SetBounds(2, platform.Rect{X: 60, Width: 100, Height: 100})
	f.SetVisible(2, false)
	tickNow(t, e)
	assertEvents(t, rec.take(),
		wantEvent{EventBoundsChange, 9},
		wantEvent{EventBoundsChange, 2},
		wantEvent{EventVisibilityChange, 2},
	)

	tracked := e.Tracked()
	if len(tracked) != 2 || tracked[0].ID != 9 || tracked[1].ID != 2 {
		t.Fatalf("Tracked() = %v, want [9 2]", tracked)
	}
}

func TestTick_NoActiveWindowSkipsTick(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	f.SetActive(5)
	e, rec := newTestEngine(t, f)

	tickNow(t, e)
	rec.take()

	f.SetActive(0)
	f.SetBounds(5, platform.Rect{Width: 300, Height: 300})
	tickNow(t, e)
	assertEvents(t, rec.take())

	// State was not updated during the skipped tick.
	f.SetActive(5)
	tickNow(t, e)
	assertEvents(t, rec.take(), wantEvent{EventBoundsChange, 5})
}

func TestTick_PerWindowFailuresAreIsolated(t *testing.T) {
	tests := []struct {
		name   string
		break5 func(f *platformtest.Fake)
	}{
		{"error", func(f *platformtest.Fake) { f.FailBounds(5, errors.New("bad drawable")) }},
		{"panic", func(f *platformtest.Fake) { f.PanicBounds(5, true) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := platformtest.New()
			addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
			addWindow(f, 7, platform.Rect{Width: 100, Height: 100})
			obs := newCountingObserver()
			e, rec := newTestEngine(t, f, WithObserver(obs))

			f.SetActive(5)
			tickNow(t, e)
			f.SetActive(7)
			tickNow(t, e)
			rec.take()

			tt.break5(f)
			f.SetBounds(7, platform.Rect{Width: 500, Height: 100})
			tickNow(t, e)
			assertEvents(t, rec.take(), wantEvent{EventBoundsChange, 7})

			obs.mu.Lock()
			defer obs.mu.Unlock()
			if obs.errors[5] != 1 {
				t.Fatalf("observer errors[5] = %d, want 1", obs.errors[5])
			}
			if len(e.Tracked()) != 2 {
				t.Fatal("non-stale failure must not untrack the window")
			}
		})
	}
}

func TestTick_PruneStale(t *testing.T) {
	for _, prune := range []bool{true, false} {
		f := platformtest.New()
		addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
		addWindow(f, 7, platform.Rect{Width: 100, Height: 100})
		e, _ := newTestEngine(t, f, WithPruneStale(prune))

		f.SetActive(5)
		tickNow(t, e)
		f.SetActive(7)
		tickNow(t, e)

		f.RemoveWindow(5)
		tickNow(t, e)

		want := 2
		if prune {
			want = 1
		}
		if got := len(e.Tracked()); got != want {
			t.Fatalf("prune=%v: tracked %d windows, want %d", prune, got, want)
		}
	}
}

func TestSweep_EvictsWindowsThatFailIsWindow(t *testing.T) {
	for _, prune := range []bool{true, false} {
		f := platformtest.New()
		addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
		addWindow(f, 7, platform.Rect{Width: 100, Height: 100})
		e, _ := newTestEngine(t, f, WithPruneStale(prune))

		f.SetActive(5)
		tickNow(t, e)
		f.SetActive(7)
		tickNow(t, e)

		f.RemoveWindow(5)
		want := 0
		if prune {
			want = 1
		}
		if got := e.Sweep(); got != want {
			t.Fatalf("prune=%v: Sweep() = %d, want %d", prune, got, want)
		}
		if got := len(e.Tracked()); got != 2-want {
			t.Fatalf("prune=%v: tracked %d windows after sweep", prune, got)
		}
	}
}

func TestTick_EventOrderWithinTick(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 1, platform.Rect{Width: 100, Height: 100})
	addWindow(f, 2, platform.Rect{Width: 100, Height: 100})
	f.SetActive(1)
	e, rec := newTestEngine(t, f)

	tickNow(t, e)
	rec.take()

	f.SetActive(2)
	f.SetBounds(1, platform.Rect{Width: 120, Height: 100})
	f.SetVisible(1, false)
	tickNow(t, e)
	assertEvents(t, rec.take(),
		wantEvent{EventNewWindow, 2},
		wantEvent{EventWindowActivated, 2},
		wantEvent{EventBoundsChange, 1},
		wantEvent{EventVisibilityChange, 1},
	)
}

func TestSubscribe_StartsOnFirstInterestOnly(t *testing.T) {
	f := platformtest.New()
	e, err := New(platform.Probe(f), WithInterval(time.Hour))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Stop)

	if e.Running() {
		t.Fatal("engine running before any subscriber")
	}
	s1 := e.Subscribe(EventNewWindow, func(Event) {})
	if !e.Running() || e.Interest() != 1 {
		t.Fatalf("after first subscribe running=%v interest=%d", e.Running(), e.Interest())
	}
	s2 := e.Subscribe(EventWindowActivated, func(Event) {})
	s1.Unsubscribe()
	s1.Unsubscribe()
	s2.Unsubscribe()
	if e.Interest() != 0 {
		t.Fatalf("Interest() = %d, want 0", e.Interest())
	}
	if !e.Running() {
		t.Fatal("engine must keep polling until Stop")
	}
}

func TestSubscribe_TypedHandlersAndUnsubscribe(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	addWindow(f, 6, platform.Rect{Width: 100, Height: 100})
	e, _ := newTestEngine(t, f)

	var newWindows, activations []platform.WindowID
	subNew := e.Subscribe(EventNewWindow, func(ev Event) { newWindows = append(newWindows, ev.Window.ID) })
	e.Subscribe(EventWindowActivated, func(ev Event) { activations = append(activations, ev.Window.ID) })

	f.SetActive(5)
	tickNow(t, e)
	subNew.Unsubscribe()
	f.SetActive(6)
	tickNow(t, e)

	if len(newWindows) != 1 || newWindows[0] != 5 {
		t.Fatalf("new-window handler saw %v, want [5]", newWindows)
	}
	if len(activations) != 1 || activations[0] != 6 {
		t.Fatalf("activation handler saw %v, want [6]", activations)
	}
}

func TestDispatch_HandlerPanicDoesNotStopOthers(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	e, err := New(platform.Probe(f), WithInterval(time.Hour))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Stop)

	e.Subscribe(EventNewWindow, func(Event) { panic("boom") })
	rec := &recorder{}
	e.Subscribe(EventNewWindow, rec.handle)

	f.SetActive(5)
	tickNow(t, e)
	assertEvents(t, rec.take(), wantEvent{EventNewWindow, 5})
}

func TestStop_FromHandlerSuppressesRestOfTick(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	addWindow(f, 7, platform.Rect{Width: 100, Height: 100})
	f.SetActive(5)
	e, err := New(platform.Probe(f), WithInterval(time.Hour))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Stop)

	rec := &recorder{}
	e.SubscribeAll(func(ev Event) {
		rec.handle(ev)
		if ev.Type == EventNewWindow && ev.Window.ID == 7 {
			e.Stop()
		}
	})
	tickNow(t, e)
	rec.take()

	f.SetActive(7)
	tickNow(t, e)
	assertEvents(t, rec.take(), wantEvent{EventNewWindow, 7})
	if e.Running() {
		t.Fatal("engine still running after Stop")
	}
	if len(e.Tracked()) != 0 {
		t.Fatal("Stop must clear tracked state")
	}
}

func TestLifecycle_StopHaltsPolling(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	addWindow(f, 7, platform.Rect{Width: 100, Height: 100})
	e, err := New(platform.Probe(f), WithInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	events := make(chan Event, 16)
	e.SubscribeAll(func(ev Event) {
		select {
		case events <- ev:
		default:
		}
	})
	f.SetActive(5)

	select {
	case ev := <-events:
		if ev.Type != EventNewWindow || ev.Window.ID != 5 {
			t.Fatalf("first event = %s(%d)", ev.Type, ev.Window.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for new-window event")
	}

	e.Stop()
	if e.Running() {
		t.Fatal("Running() after Stop")
	}
	for len(events) > 0 {
		<-events
	}

	f.SetActive(7)
	time.Sleep(50 * time.Millisecond)
	if n := len(events); n != 0 {
		t.Fatalf("%d events delivered after Stop", n)
	}

	// Explicit restart resumes with fresh state.
	e.Start()
	defer e.Stop()
	select {
	case ev := <-events:
		if ev.Type != EventNewWindow || ev.Window.ID != 7 {
			t.Fatalf("first event after restart = %s(%d)", ev.Type, ev.Window.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event after restart")
	}
}

func TestTick_IgnoresCancelledContext(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	f.SetActive(5)
	e, rec := newTestEngine(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.tick(ctx)
	assertEvents(t, rec.take())
	if len(e.Tracked()) != 0 {
		t.Fatal("cancelled tick must not touch state")
	}
}

func TestSweep_KeepsLiveWindowWithoutPath(t *testing.T) {
	f := platformtest.New()
	f.AddWindow(5, platformtest.Window{
		Info:    platform.WindowInfo{ProcessID: 50},
		Title:   "shell",
		Bounds:  platform.Rect{Width: 100, Height: 100},
		Visible: true,
	})
	e, rec := newTestEngine(t, f)

	f.SetActive(5)
	tickNow(t, e)
	assertEvents(t, rec.take(), wantEvent{EventNewWindow, 5})

	if got := e.Sweep(); got != 0 {
		t.Fatalf("Sweep() = %d, want 0", got)
	}
	tickNow(t, e)
	assertEvents(t, rec.take())
}

func TestSweep_OnlyDefiniteAnswersEvict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"transient error keeps window", errors.New("connection reset"), 0},
		{"invalid window evicts", fmt.Errorf("%w: gone", platform.ErrInvalidWindow), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := platformtest.New()
			addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
			e, _ := newTestEngine(t, f)
			f.SetActive(5)
			tickNow(t, e)

			f.FailIsWindow(tt.err)
			if got := e.Sweep(); got != tt.want {
				t.Fatalf("Sweep() = %d, want %d", got, tt.want)
			}
			if got := len(e.Tracked()); got != 1-tt.want {
				t.Fatalf("tracked %d windows after sweep", got)
			}
		})
	}
}

func TestSweep_QueriesBackendWithoutHoldingState(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	addWindow(f, 7, platform.Rect{Width: 100, Height: 100})
	e, _ := newTestEngine(t, f)
	f.SetActive(5)
	tickNow(t, e)
	f.SetActive(7)
	tickNow(t, e)

	var blocked sync.Once
	f.OnIsWindow(func(platform.WindowID) {
		done := make(chan struct{})
		go func() {
			e.Tracked()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			blocked.Do(func() { t.Error("Tracked blocked while Sweep queried the platform") })
		}
	})
	f.RemoveWindow(5)
	if got := e.Sweep(); got != 1 {
		t.Fatalf("Sweep() = %d, want 1", got)
	}
}

func TestStop_WaitsForRunningHandler(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	addWindow(f, 7, platform.Rect{Width: 100, Height: 100})
	f.SetActive(5)
	e, err := New(platform.Probe(f), WithInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Stop)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	calls := 0
	e.SubscribeAll(func(Event) {
		mu.Lock()
		calls++
		mu.Unlock()
		once.Do(func() {
			close(entered)
			<-release
		})
	})

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler")
	}

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the handler finished")
	}

	mu.Lock()
	before := calls
	mu.Unlock()
	f.SetActive(7)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	after := calls
	mu.Unlock()
	if after != before {
		t.Fatalf("%d handler calls after Stop returned", after-before)
	}
}

func TestLifecycle_RestartKeepsFreshBaseline(t *testing.T) {
	f := platformtest.New()
	addWindow(f, 5, platform.Rect{Width: 100, Height: 100})
	addWindow(f, 7, platform.Rect{Width: 100, Height: 100})
	f.SetActive(5)
	e, rec := newTestEngine(t, f)

	tickNow(t, e)
	rec.take()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				e.Stop()
				e.Start()
			}
		}()
	}
	wg.Wait()

	e.Stop()
	if len(e.Tracked()) != 0 {
		t.Fatal("Stop must clear tracked state")
	}

	f.SetActive(7)
	e.Start()
	tickNow(t, e)
	assertEvents(t, rec.take(), wantEvent{EventNewWindow, 7})
	if got := len(e.Tracked()); got != 1 {
		t.Fatalf("tracked %d windows after restart, want 1", got)
	}
}
