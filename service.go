package procslot

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs"
	"github.com/viant/procslot/extension"
	"github.com/viant/procslot/metrics"
	"github.com/viant/procslot/policy"
	"github.com/viant/procslot/process/cardgame"
	"github.com/viant/procslot/progress"
	"github.com/viant/procslot/service/dao"
	"github.com/viant/procslot/service/event"
	"github.com/viant/procslot/service/grid"
	"github.com/viant/procslot/service/manager"
	"github.com/viant/procslot/service/messaging"
	"github.com/viant/procslot/service/messaging/fs"
	"github.com/viant/procslot/service/messaging/memory"
	"github.com/viant/procslot/service/registry"
	"github.com/viant/procslot/tracing"
	"go.uber.org/zap"
)

// Service wires the grid, the registry and the manager with their
// notification sinks.
type Service struct {
	config     *Config
	logger     *zap.Logger
	factories  []*extension.Factory
	sinks      []event.Sink
	registerer prometheus.Registerer
	store      dao.Service[string, manager.Entry]
	fs         afs.Service

	kinds    *extension.Factories
	bus      *event.Bus
	events   *event.Service
	metrics  *metrics.Collector
	progress *progress.Progress
	grid     *grid.Service
	registry *registry.Service
	manager  *manager.Service
	runtime  *Runtime
}

// New creates a service; the CardGame kind is always registered
func New(options ...Option) (*Service, error) {
	ret := &Service{logger: zap.NewNop()}
	for _, opt := range options {
		opt(ret)
	}
	if ret.config == nil {
		ret.config = DefaultConfig()
	}
	if err := ret.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := ret.init(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) init() error {
	config := s.config
	if config.Tracing.Enabled {
		if err := tracing.Init(config.Tracing.ServiceName, config.Tracing.ServiceVersion, config.Tracing.OutputFile); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	s.kinds = extension.NewFactories(s.factories...)
	if _, ok := s.kinds.Lookup(cardgame.Kind); !ok {
		if err := cardgame.Register(s.kinds); err != nil {
			return err
		}
	}

	s.bus = event.NewBus()
	s.progress = progress.New(config.Tracing.ServiceName, nil)
	sinks := []event.Sink{s.bus, s.progress}
	if s.registerer != nil {
		collector, err := metrics.New(s.registerer)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		s.metrics = collector
		sinks = append(sinks, collector)
	}
	if config.Events.Vendor != "" {
		events, err := s.newEventService(config.Events)
		if err != nil {
			return err
		}
		s.events = events
		sinks = append(sinks, events)
	}
	sink := event.Multi(append(sinks, s.sinks...)...)

	var err error
	if s.grid, err = grid.New(config.Grid, grid.WithSink(sink), grid.WithLogger(s.logger.Named("grid"))); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.Bind(s.grid)
		s.metrics.Reset()
		s.metrics.Track(s.grid.Snapshot())
	}
	s.registry = registry.New(registry.WithSink(sink))
	managerOptions := []manager.Option{
		manager.WithSink(sink),
		manager.WithLogger(s.logger.Named("manager")),
		manager.WithPolicy(policy.FromConfig(&config.Unlock)),
	}
	if s.store != nil {
		managerOptions = append(managerOptions, manager.WithStore(s.store))
	}
	s.manager = manager.New(s.grid, s.registry, s.kinds, managerOptions...)
	s.runtime = newRuntime(s)
	return nil
}

func (s *Service) newEventService(config EventsConfig) (*event.Service, error) {
	options := []event.Option{event.WithLogger(s.logger.Named("events"))}
	switch config.Vendor {
	case messaging.VendorFS:
		if s.fs != nil {
			options = append(options, event.WithFs(s.fs))
		}
		options = append(options, event.WithFsQueueConfig(func(name string) fs.Config {
			ret := fs.DefaultConfig()
			ret.BasePath = config.BasePath + "/" + name
			return ret
		}))
	case messaging.VendorMemory:
		options = append(options, event.WithMemoryQueueConfig(func(string) memory.Config {
			ret := memory.DefaultConfig()
			if config.QueueBuffer > 0 {
				ret.QueueBuffer = config.QueueBuffer
			}
			return ret
		}))
	}
	ret, err := event.New(config.Vendor, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create event service: %w", err)
	}
	return ret, nil
}

// Subscribe registers a synchronous handler; handlers must not call
// mutating manager or grid methods.
func (s *Service) Subscribe(handler event.Handler, types ...event.Type) func() {
	return s.bus.Subscribe(handler, types...)
}

// Listen delivers queued notifications to handler on a separate goroutine.
// Handlers may call back into the manager.
func (s *Service) Listen(ctx context.Context, handler event.Handler) error {
	if s.events == nil {
		return fmt.Errorf("queued notifications are not configured")
	}
	s.events.SetListener(ctx, handler)
	return nil
}

// Config returns the effective configuration
func (s *Service) Config() *Config {
	return s.config
}

// Grid returns the slot grid
func (s *Service) Grid() *grid.Service {
	return s.grid
}

// Registry returns the process-to-slot registry
func (s *Service) Registry() *registry.Service {
	return s.registry
}

// Manager returns the process manager
func (s *Service) Manager() *manager.Service {
	return s.manager
}

// Factories returns the registered process kinds
func (s *Service) Factories() *extension.Factories {
	return s.kinds
}

// Progress returns the lifecycle counters
func (s *Service) Progress() progress.Progress {
	return s.progress.Snapshot()
}

// Metrics returns the collector, nil without a registerer
func (s *Service) Metrics() *metrics.Collector {
	return s.metrics
}

// Runtime returns the tick loop
func (s *Service) Runtime() *Runtime {
	return s.runtime
}
