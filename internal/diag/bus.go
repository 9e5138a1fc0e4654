package diag

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Handler receives events for a topic. A returned error is logged; the
// publisher never sees it and nothing is retried.
type Handler func(ctx context.Context, event Event) error

// Bus is an in-memory pub/sub channel. It is created once at startup and
// injected into every component that reports or consumes diagnostics.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]map[uint64]Handler
	nextID   uint64
	logger   *zap.Logger
}

// NewBus creates an empty bus. A nil logger disables handler error logging.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string]map[uint64]Handler),
		logger:   logger,
	}
}

// Subscribe registers handler for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[uint64]Handler)
	}
	b.handlers[topic][id] = handler
	b.logger.Debug("diagnostics handler subscribed", zap.String("topic", topic), zap.Uint64("handler", id))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[topic], id)
		})
	}
}

// Publish delivers event to every handler of its topic, in subscription order,
// before returning. Handler panics are recovered and logged.
func (b *Bus) Publish(ctx context.Context, event Event) {
	for _, h := range b.snapshot(event.Topic()) {
		b.dispatch(ctx, event, h)
	}
}

// SubscriberCount returns the number of handlers registered for topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

func (b *Bus) snapshot(topic string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]uint64, 0, len(b.handlers[topic]))
	for id := range b.handlers[topic] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Handler, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.handlers[topic][id])
	}
	return out
}

func (b *Bus) dispatch(ctx context.Context, event Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("diagnostics handler panicked", zap.String("topic", event.Topic()), zap.Any("panic", r))
		}
	}()
	if err := h(ctx, event); err != nil {
		b.logger.Warn("diagnostics handler failed", zap.String("topic", event.Topic()), zap.Error(err))
	}
}
