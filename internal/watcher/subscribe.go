package watcher

import (
	"slices"
	"sync"
	"sync/atomic"
)

type subscription struct {
	handler Handler
	active  atomic.Bool
}

// Subscription is one registered interest in engine events.
type Subscription struct {
	engine  *Engine
	entries map[EventType]*subscription
	once    sync.Once
}

// Subscribe registers h for events of type t. The first subscription on an
// idle engine starts polling.
func (e *Engine) Subscribe(t EventType, h Handler) *Subscription {
	return e.subscribe([]EventType{t}, h)
}

// SubscribeAll registers h for every event type as a single interest.
func (e *Engine) SubscribeAll(h Handler) *Subscription {
	return e.subscribe(EventTypes, h)
}

func (e *Engine) subscribe(types []EventType, h Handler) *Subscription {
	s := &Subscription{engine: e, entries: make(map[EventType]*subscription, len(types))}

	e.subMu.Lock()
	for _, t := range types {
		sub := &subscription{handler: h}
		sub.active.Store(true)
		e.handlers[t] = append(e.handlers[t], sub)
		s.entries[t] = sub
	}
	e.interest++
	first := e.interest == 1
	e.subMu.Unlock()

	if first {
		e.Start()
	}
	return s
}

// Unsubscribe removes the handler. It is safe to call more than once. Polling
// continues until Stop even when no subscribers remain.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		e := s.engine
		e.subMu.Lock()
		defer e.subMu.Unlock()

		for t, sub := range s.entries {
			sub.active.Store(false)
			e.handlers[t] = slices.DeleteFunc(e.handlers[t], func(x *subscription) bool { return x == sub })
		}
		e.interest--
	})
}

// Interest returns the number of live subscriptions.
func (e *Engine) Interest() int {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	return e.interest
}

func (e *Engine) subscribers(t EventType) []*subscription {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	return slices.Clone(e.handlers[t])
}
