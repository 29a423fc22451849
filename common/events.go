package common

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Event is what a bound handler receives.
type Event struct {
	Name      string
	Timestamp time.Time
	// Source is the association (or server) that raised the event.
	Source interface{}
	Data   map[string]interface{}
}

// Get returns Data[key] or nil.
func (e Event) Get(key string) interface{} {
	if e.Data == nil {
		return nil
	}
	return e.Data[key]
}

// Handler is a user callback. A returned error or a panic is logged and
// otherwise ignored.
type Handler func(Event) error

// Handle identifies one binding of a Handler. The same Handle may be
// attached to several registries and unbound from each of them.
type Handle struct {
	ID   uint64
	Name string
	fn   Handler
}

var handleSeq atomic.Uint64

// Events maps event names to ordered handler lists.
type Events struct {
	mutex    sync.RWMutex
	handlers map[string][]Handle
	logger   Logger
}

func NewEvents(logger Logger) *Events {
	return &Events{handlers: make(map[string][]Handle), logger: OrNop(logger)}
}

// Bind appends fn to the handlers of event.
func (e *Events) Bind(event string, fn Handler) Handle {
	h := Handle{ID: handleSeq.Inc(), Name: handlerName(fn), fn: fn}
	e.Attach(event, h)
	return h
}

// Attach adds an existing handle. Attaching twice is a no-op.
func (e *Events) Attach(event string, h Handle) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	for _, cur := range e.handlers[event] {
		if cur.ID == h.ID {
			return
		}
	}
	e.handlers[event] = append(e.handlers[event], h)
}

// Unbind removes h from event, reporting whether it was bound.
func (e *Events) Unbind(event string, h Handle) bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	list := e.handlers[event]
	for i, cur := range list {
		if cur.ID == h.ID {
			e.handlers[event] = append(list[:i:i], list[i+1:]...)
			if len(e.handlers[event]) == 0 {
				delete(e.handlers, event)
			}
			return true
		}
	}
	return false
}

// Handlers returns a copy of the handles bound to event, in bind order.
func (e *Events) Handlers(event string) []Handle {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return append([]Handle{}, e.handlers[event]...)
}

// Bindings returns every event name with at least one handler.
func (e *Events) Bindings() map[string][]Handle {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	out := make(map[string][]Handle, len(e.handlers))
	for name, list := range e.handlers {
		out[name] = append([]Handle{}, list...)
	}
	return out
}

// Len returns the number of handlers bound to event.
func (e *Events) Len(event string) int {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return len(e.handlers[event])
}

// Fire invokes the handlers bound to ev.Name synchronously and in order.
// Handlers may bind or unbind while being called.
func (e *Events) Fire(ev Event) {
	handlers := e.Handlers(ev.Name)
	if len(handlers) == 0 {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	for _, h := range handlers {
		e.invoke(h, ev)
	}
}

func (e *Events) invoke(h Handle, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(fmt.Sprintf("Exception raised in user's '%s' event handler '%s'", ev.Name, h.Name),
				"error", fmt.Sprint(r))
		}
	}()
	if err := h.fn(ev); err != nil {
		e.logger.Error(fmt.Sprintf("Exception raised in user's '%s' event handler '%s'", ev.Name, h.Name),
			"error", err.Error())
	}
}

// handlerName is the short function name, e.g. "main.handleEcho".
func handlerName(fn Handler) string {
	if fn == nil {
		return "<nil>"
	}
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "<unknown>"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
