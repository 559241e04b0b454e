package evnet

import (
	"log/slog"
	"reflect"
	"sync"
)

// DefaultMaxListeners mirrors Node's EventEmitter default; 0 means
// unlimited. Exceeding it only logs a diagnostic, it never errors.
const DefaultMaxListeners = 10

// Listener is a registered event handler. Args are the emit-time
// payload, positional, exactly as emitted.
type Listener func(args ...interface{})

type listenerEntry struct {
	fn     Listener
	once   bool
	target *Listener // for once-wrapped entries, points at the original fn for removeListener comparison
}

// EventEmitter is the listener-registration and dispatch fabric every
// Socket, HttpParser sink, and IncomingMessage embeds. It is grounded
// on badu-http's server_event_emitter.go (named-event channel
// dispatch), generalized from a fixed ServerEventType enum and
// channel-select delivery to arbitrary string event names with a
// snapshot-by-index emit loop.
type EventEmitter struct {
	mu           sync.Mutex
	listeners    map[string][]listenerEntry
	maxListeners int
	maxListenersSet bool
	log          *slog.Logger
}

// NewEventEmitter returns a ready-to-use emitter with the default
// maxListeners threshold.
func NewEventEmitter() *EventEmitter {
	return &EventEmitter{maxListeners: DefaultMaxListeners, maxListenersSet: true}
}

func (e *EventEmitter) ensure() {
	if e.listeners == nil {
		e.listeners = make(map[string][]listenerEntry)
	}
	if !e.maxListenersSet {
		e.maxListenersSet = true
		e.maxListeners = DefaultMaxListeners
	}
}

// SetMaxListeners configures the per-emitter listener-count warning
// threshold; 0 disables the warning.
func (e *EventEmitter) SetMaxListeners(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxListeners = n
	e.maxListenersSet = true
}

// SetLogger attaches a logger used only for the maxListeners
// diagnostic; nil (the default) suppresses it.
func (e *EventEmitter) SetLogger(l *slog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = l
}

// On registers listener for event, appending to the ordered list, then
// emits the synthetic "newListener" event.
func (e *EventEmitter) On(event string, listener Listener) {
	e.addListener(event, listener, false)
}

// AddListener is an alias for On.
func (e *EventEmitter) AddListener(event string, listener Listener) { e.On(event, listener) }

// Once registers a one-shot listener: it runs at most once, then
// removes itself, even under re-entrant emission.
func (e *EventEmitter) Once(event string, listener Listener) {
	e.addListener(event, listener, true)
}

func (e *EventEmitter) addListener(event string, listener Listener, once bool) {
	e.mu.Lock()
	e.ensure()
	entry := listenerEntry{fn: listener, once: once}
	if once {
		target := listener
		entry.target = &target
	}
	e.listeners[event] = append(e.listeners[event], entry)
	n := len(e.listeners[event])
	max := e.maxListeners
	log := e.log
	e.mu.Unlock()

	if event != "newListener" {
		e.Emit("newListener", event, listener)
	}
	if max != 0 && n > max && log != nil {
		log.Warn("possible EventEmitter memory leak detected",
			"event", event, "listenerCount", n, "maxListeners", max)
	}
}

// RemoveListener removes the first entry whose target equals listener
// (for Once-wrapped entries, the wrapped target is compared, not the
// adapter). A no-op if no match exists.
func (e *EventEmitter) RemoveListener(event string, listener Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.listeners[event]
	for i, entry := range list {
		if sameListener(entry, listener) {
			e.listeners[event] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func sameListener(entry listenerEntry, listener Listener) bool {
	target := entry.fn
	if entry.target != nil {
		target = *entry.target
	}
	return funcEqual(target, listener)
}

// RemoveAllListeners drops all listeners for event, or for every event
// when event is "".
func (e *EventEmitter) RemoveAllListeners(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if event == "" {
		e.listeners = make(map[string][]listenerEntry)
		return
	}
	delete(e.listeners, event)
}

// Listeners returns a snapshot of the current listener functions for
// event, creating an empty (non-nil) list if none exist.
func (e *EventEmitter) Listeners(event string) []Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.listeners[event]
	out := make([]Listener, len(list))
	for i, entry := range list {
		out[i] = entry.fn
	}
	return out
}

// Emit invokes every listener registered for event at the moment Emit
// was called, in order, exactly once each — even if a listener removes
// itself or others from the list during the call (snapshot-by-index
// semantics). Returns false if there were no listeners.
func (e *EventEmitter) Emit(event string, args ...interface{}) bool {
	e.mu.Lock()
	list := e.listeners[event]
	if len(list) == 0 {
		e.mu.Unlock()
		return false
	}
	snapshot := make([]listenerEntry, len(list))
	copy(snapshot, list)
	e.mu.Unlock()

	for _, entry := range snapshot {
		if entry.once {
			e.RemoveListener(event, *entry.target)
		}
		entry.fn(args...)
	}
	return true
}

// funcEqual compares two Listener values for identity. Go funcs are
// not comparable with ==, so this compares the code pointer via
// reflect; callers are expected to pass back the exact same Listener
// value they registered (the common case: holding on to it to call
// RemoveListener later). For once-wrapped entries we always compare
// against the stored original, never the adapter.
func funcEqual(a, b Listener) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
