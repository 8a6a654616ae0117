package messaging

import (
	"context"
	"errors"
)

// Vendor represents the name of a messaging vendor
type Vendor string

const (
	// VendorMemory keeps messages in a bounded channel.
	VendorMemory Vendor = "memory"
	// VendorFS journals messages as JSON files through afs.
	VendorFS Vendor = "fs"
)

// ErrQueueFull is returned by a bounded queue that cannot accept a message
// without blocking the publisher.
var ErrQueueFull = errors.New("messaging: queue is full")

// Queue represents an abstract message queue for any payload type
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue; it never blocks
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue, nil when the queue is drained
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}
