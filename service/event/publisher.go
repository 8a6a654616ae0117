package event

import (
	"context"
	"time"

	"github.com/viant/procslot/service/messaging"
)

// Publisher writes events to a queue and reads them back
type Publisher[T any] struct {
	queue messaging.Queue[Event[T]]
}

// NewPublisher creates a queue-backed publisher
func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{queue: queue}
}

// Publish enqueues event
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return p.queue.Publish(ctx, event)
}

// Consume dequeues and acknowledges the next event; it returns nil when the
// queue has nothing pending.
func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
