package grid

import (
	"github.com/viant/procslot/service/event"
	"go.uber.org/zap"
)

// Option configures the grid service
type Option func(s *Service)

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
