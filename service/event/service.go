package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/procslot/service/messaging"
	"github.com/viant/procslot/service/messaging/fs"
	"github.com/viant/procslot/service/messaging/memory"
	"go.uber.org/zap"
)

const notificationQueue = "notifications"

// Service is a Sink that decouples observers from the emitting goroutine
// through a messaging queue.
type Service struct {
	publisher      *Publisher[Notification]
	listener       *Listener[Notification]
	queueVendor    messaging.Vendor
	fs             afs.Service
	fsQueueConfig  func(name string) fs.Config
	memQueueConfig func(name string) memory.Config
	pollInterval   time.Duration
	logger         *zap.Logger
	mux            sync.Mutex
}

// New creates a queue-backed event service
func New(queueVendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		queueVendor:  queueVendor,
		pollInterval: 10 * time.Millisecond,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	switch queueVendor {
	case messaging.VendorFS:
		if ret.fsQueueConfig == nil {
			return nil, fmt.Errorf("fs queue vendor requires fs queue config")
		}
		if ret.fs == nil {
			ret.fs = afs.New()
		}
	case messaging.VendorMemory:
		if ret.memQueueConfig == nil {
			ret.memQueueConfig = func(string) memory.Config { return memory.DefaultConfig() }
		}
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", queueVendor)
	}
	queue, err := QueueOf[Event[Notification]](ret, notificationQueue)
	if err != nil {
		return nil, err
	}
	ret.publisher = NewPublisher[Notification](queue)
	return ret, nil
}

// QueueOf creates a queue of the service vendor
func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.queueVendor {
	case messaging.VendorFS:
		return fs.NewQueue[T](s.fs, s.fsQueueConfig(name))
	case messaging.VendorMemory:
		return memory.NewQueue[T](s.memQueueConfig(name)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.queueVendor)
}

// Emit enqueues message; a failed publish is logged and the message dropped
func (s *Service) Emit(ctx context.Context, message *Message) {
	if err := s.publisher.Publish(ctx, message); err != nil {
		s.logger.Warn("dropped event",
			zap.String("type", string(message.Type())),
			zap.Error(err))
	}
}

// SetListener replaces the handler consuming queued messages
func (s *Service) SetListener(ctx context.Context, handler Handler) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		s.listener.Stop()
	}
	s.listener = NewListener[Notification](s.publisher, handler, s.pollInterval, s.logger)
	s.listener.Start(ctx)
}

// Close stops the listener
func (s *Service) Close() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		s.listener.Stop()
		s.listener = nil
	}
}
