package event

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Listener drains a publisher on its own goroutine
type Listener[T any] struct {
	publisher    *Publisher[T]
	handler      func(context.Context, *Event[T])
	pollInterval time.Duration
	logger       *zap.Logger
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewListener creates a listener; call Start to begin delivery
func NewListener[T any](publisher *Publisher[T], handler func(context.Context, *Event[T]), pollInterval time.Duration, logger *zap.Logger) *Listener[T] {
	return &Listener[T]{
		publisher:    publisher,
		handler:      handler,
		pollInterval: pollInterval,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Start launches the delivery goroutine
func (l *Listener[T]) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	go l.run(ctx)
}

// Stop cancels delivery and waits for the goroutine to exit
func (l *Listener[T]) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}

func (l *Listener[T]) run(ctx context.Context) {
	defer close(l.done)
	for {
		event, err := l.publisher.Consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.logger.Warn("failed to consume event", zap.Error(err))
		}
		if event == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.pollInterval):
			}
			continue
		}
		l.handler(ctx, event)
	}
}
