package event

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher delivers host events to the handlers subscribed for their type.
// Dispatch is synchronous on the caller's goroutine and may be called from
// several goroutines at once; handlers run without the registration lock held
// so they can dispatch further events.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]any
	log      *zap.Logger
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[reflect.Type][]any),
		log:      log,
	}
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](d *Dispatcher, fn func(T)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	d.handlers[t] = append(d.handlers[t], fn)
}

// Dispatch calls every handler subscribed for T and returns how many ran.
// A panicking handler is logged and does not stop the remaining ones.
func Dispatch[T any](d *Dispatcher, ev T) int {
	t := reflect.TypeOf((*T)(nil)).Elem()
	d.mu.RLock()
	handlers := d.handlers[t]
	d.mu.RUnlock()

	for _, h := range handlers {
		d.safeCall(t, func() { h.(func(T))(ev) })
	}
	return len(handlers)
}

// Handlers reports how many handlers are subscribed for T.
func Handlers[T any](d *Dispatcher) int {
	t := reflect.TypeOf((*T)(nil)).Elem()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[t])
}

func (d *Dispatcher) safeCall(t reflect.Type, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("event handler panic recovered",
				zap.String("event", t.String()),
				zap.Any("panic", rec),
			)
		}
	}()
	fn()
}
