package upload

import "sync"

type EventKind string

const (
	// EventProgress is emitted by the native transfer while the body is sent.
	EventProgress EventKind = "progress"
	EventEnd      EventKind = "end"
	EventError    EventKind = "error"
)

type Event struct {
	Kind EventKind
	// Sent and Total are byte counts for progress events. Total is -1 when unknown.
	Sent    int64
	Total   int64
	Percent float64
	Result  *Result
	Err     error
}

// Listener receives session events. It runs on the goroutine that ends the session.
type Listener func(Event)

type emitter struct {
	mu        sync.RWMutex
	listeners map[EventKind][]Listener
}

func (e *emitter) on(kind EventKind, fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[EventKind][]Listener)
	}
	e.listeners[kind] = append(e.listeners[kind], fn)
}

func (e *emitter) emit(ev Event) {
	e.mu.RLock()
	ls := append([]Listener(nil), e.listeners[ev.Kind]...)
	e.mu.RUnlock()
	for _, fn := range ls {
		fn(ev)
	}
}
