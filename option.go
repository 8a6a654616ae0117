package procslot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs"
	"github.com/viant/procslot/extension"
	"github.com/viant/procslot/service/dao"
	"github.com/viant/procslot/service/event"
	"github.com/viant/procslot/service/manager"
	"github.com/viant/procslot/tracing"
	"go.uber.org/zap"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures the Service
type Option func(s *Service)

// WithConfig replaces DefaultConfig
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithSink adds notification sinks next to the bus
func WithSink(sinks ...event.Sink) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithLogger sets the logger shared by all components
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFactory registers a process kind
func WithFactory(kind string, constructor extension.Constructor, options ...extension.Option) Option {
	return func(s *Service) {
		s.factories = append(s.factories, &extension.Factory{Kind: kind, New: constructor})
		for _, opt := range options {
			opt(s.factories[len(s.factories)-1])
		}
	}
}

// WithRegisterer exports grid metrics to registerer
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(s *Service) {
		s.registerer = registerer
	}
}

// WithProcessStore replaces the in-memory process table
func WithProcessStore(store dao.Service[string, manager.Entry]) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithFs sets the storage service used by the fs event vendor
func WithFs(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
