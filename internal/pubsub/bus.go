package pubsub

import (
	"log/slog"
	"sync"

	"vidmentor/internal/logging"
)

// Handler receives a published payload.
type Handler[P any] func(P)

// Bus delivers payloads to handlers registered for a kind. Handlers run
// synchronously on the publishing goroutine, outside the bus lock, in
// subscription order.
type Bus[K comparable, P any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[K][]entry[P]
	logger *slog.Logger
}

type entry[P any] struct {
	id      uint64
	handler Handler[P]
}

// Subscription identifies a registered handler.
type Subscription[K comparable, P any] struct {
	bus  *Bus[K, P]
	kind K
	id   uint64
	once sync.Once
}

// New constructs an empty bus. A nil logger discards handler panics silently.
func New[K comparable, P any](logger *slog.Logger) *Bus[K, P] {
	return &Bus[K, P]{
		subs:   make(map[K][]entry[P]),
		logger: logging.NewComponentLogger(logger, "pubsub"),
	}
}

// Subscribe registers handler for kind.
func (b *Bus[K, P]) Subscribe(kind K, handler Handler[P]) *Subscription[K, P] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], entry[P]{id: id, handler: handler})
	return &Subscription[K, P]{bus: b, kind: kind, id: id}
}

// Publish delivers payload to every handler subscribed to kind and reports
// how many were invoked. A panicking handler is logged and skipped.
func (b *Bus[K, P]) Publish(kind K, payload P) int {
	b.mu.RLock()
	current := b.subs[kind]
	handlers := make([]Handler[P], 0, len(current))
	for _, e := range current {
		handlers = append(handlers, e.handler)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.deliver(kind, handler, payload)
	}
	return len(handlers)
}

func (b *Bus[K, P]) deliver(kind K, handler Handler[P], payload P) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(b.logger, "subscriber panicked", "pubsub_handler_panic",
				logging.Any("kind", kind),
				logging.Any("panic", r),
			)
		}
	}()
	handler(payload)
}

// Unsubscribe removes the subscription. Repeated calls are no-ops.
func (b *Bus[K, P]) Unsubscribe(sub *Subscription[K, P]) {
	if sub == nil || sub.bus != b {
		return
	}
	sub.Unsubscribe()
}

// Len reports how many handlers are registered for kind.
func (b *Bus[K, P]) Len(kind K) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// Unsubscribe removes the handler from its bus.
func (s *Subscription[K, P]) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.once.Do(func() {
		b := s.bus
		b.mu.Lock()
		defer b.mu.Unlock()
		current := b.subs[s.kind]
		for i, e := range current {
			if e.id != s.id {
				continue
			}
			next := make([]entry[P], 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, s.kind)
			} else {
				b.subs[s.kind] = next
			}
			return
		}
	})
}
