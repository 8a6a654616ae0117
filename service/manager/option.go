package manager

import (
	"github.com/viant/procslot/policy"
	"github.com/viant/procslot/service/dao"
	"github.com/viant/procslot/service/event"
	"go.uber.org/zap"
)

// Option configures the manager
type Option func(s *Service)

// WithPolicy sets the unlock progression
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithSink sets the notification sink
func WithSink(sink event.Sink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithStore replaces the in-memory process table
func WithStore(store dao.Service[string, Entry]) Option {
	return func(s *Service) {
		s.processes = store
	}
}
