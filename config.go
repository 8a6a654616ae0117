package procslot

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/procslot/policy"
	"github.com/viant/procslot/service/grid"
	"github.com/viant/procslot/service/messaging"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the subsystem configuration. It
// can be populated from YAML or JSON; fields left out keep DefaultConfig
// values when loaded with LoadConfig.
type Config struct {
	Grid          grid.Config   `json:"grid" yaml:"grid"`
	Unlock        policy.Config `json:"unlock" yaml:"unlock"`
	Events        EventsConfig  `json:"events" yaml:"events"`
	Tracing       TracingConfig `json:"tracing" yaml:"tracing"`
	TickInterval  time.Duration `json:"tickInterval" yaml:"tickInterval"`
	ReapCompleted bool          `json:"reapCompleted" yaml:"reapCompleted"`
}

// EventsConfig selects queued notification delivery. An empty vendor
// delivers synchronously only.
type EventsConfig struct {
	Vendor      messaging.Vendor `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	BasePath    string           `json:"basePath,omitempty" yaml:"basePath,omitempty"`
	QueueBuffer int              `json:"queueBuffer,omitempty" yaml:"queueBuffer,omitempty"`
}

// TracingConfig configures the OpenTelemetry stdout/file exporter
type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	ServiceName    string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	ServiceVersion string `json:"serviceVersion,omitempty" yaml:"serviceVersion,omitempty"`
	OutputFile     string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// DefaultConfig returns a 3x3 grid with one unlocked slot, the on-start
// unlock progression and a 100ms tick.
func DefaultConfig() *Config {
	return &Config{
		Grid:         grid.DefaultConfig(),
		Unlock:       policy.Config{Mode: policy.ModeOnStart},
		TickInterval: 100 * time.Millisecond,
		Tracing:      TracingConfig{ServiceName: "procslot"},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var err error
	if gridErr := c.Grid.Validate(); gridErr != nil {
		err = multierr.Append(err, fmt.Errorf("grid: %w", gridErr))
	}
	if unlockErr := c.Unlock.Validate(); unlockErr != nil {
		err = multierr.Append(err, fmt.Errorf("unlock: %w", unlockErr))
	}
	switch c.Events.Vendor {
	case "", messaging.VendorMemory:
	case messaging.VendorFS:
		if c.Events.BasePath == "" {
			err = multierr.Append(err, fmt.Errorf("events.basePath is required for the fs vendor"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unsupported events.vendor: %s", c.Events.Vendor))
	}
	if c.Events.QueueBuffer < 0 {
		err = multierr.Append(err, fmt.Errorf("events.queueBuffer must be >= 0"))
	}
	if c.TickInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("tickInterval must be > 0"))
	}
	return err
}

// LoadConfig reads a YAML document from URL over DefaultConfig; options are
// passed to the storage service, e.g. an embed.FS for embed:// URLs.
func LoadConfig(ctx context.Context, URL string, options ...storage.Option) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	return DecodeConfig(data)
}

// DecodeConfig decodes YAML data over DefaultConfig and validates the result.
func DecodeConfig(data []byte) (*Config, error) {
	ret := DefaultConfig()
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
