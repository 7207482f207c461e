package event

import (
	"log/slog"
	"sync"
)

type HandlerFunc func(raw any)

// Bus dispatches events synchronously on the publishing goroutine, so handlers observe
// events in tick order. A panicking handler is logged and skipped.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
}

// Any subscribes a handler to every event name.
const Any = "*"

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]HandlerFunc),
	}
}

func (b *Bus) Subscribe(eventName string, handler HandlerFunc) {
	if b == nil || handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

func (b *Bus) Publish(eventName string, evt any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]HandlerFunc, 0, len(b.handlers[eventName])+len(b.handlers[Any]))
	handlers = append(handlers, b.handlers[eventName]...)
	if eventName != Any {
		handlers = append(handlers, b.handlers[Any]...)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		dispatch(eventName, handler, evt)
	}
}

func dispatch(eventName string, h HandlerFunc, evt any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked", "event", eventName, "panic", r)
		}
	}()
	h(evt)
}
