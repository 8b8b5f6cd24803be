package outcome

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler receives a published outcome. Handlers run synchronously on the
// publishing goroutine.
type Handler func(ctx context.Context, o Outcome)

// Publisher is what workflows report through.
type Publisher interface {
	Publish(ctx context.Context, o Outcome)
}

// Bus is an in-memory outcome bus with per-kind and catch-all subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	all      []Handler
	logger   *zap.Logger
	now      func() time.Time
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[Kind][]Handler),
		logger:   logger,
		now:      time.Now,
	}
}

func (b *Bus) Subscribe(kind Kind, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// SubscribeAll registers a handler for every kind.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Publish stamps the outcome and delivers it to catch-all subscribers first,
// then to subscribers of its kind.
func (b *Bus) Publish(ctx context.Context, o Outcome) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.At.IsZero() {
		o.At = b.now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.all)+len(b.handlers[o.Kind]))
	handlers = append(handlers, b.all...)
	handlers = append(handlers, b.handlers[o.Kind]...)
	b.mu.RUnlock()

	if o.Status == StatusFailure {
		b.logger.Warn("workflow failed", zap.String("kind", string(o.Kind)), zap.String("key", o.Key), zap.String("error", o.Error))
	} else if o.Status != StatusProgress {
		b.logger.Debug("outcome", zap.String("kind", string(o.Kind)), zap.String("status", string(o.Status)), zap.String("key", o.Key))
	}

	for _, handler := range handlers {
		handler(ctx, o)
	}
}

func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind]) + len(b.all)
}
