package grid

import (
	"fmt"

	"github.com/viant/procslot/model"
	"github.com/viant/procslot/runtime/slot"
)

// Config represents grid configuration
type Config struct {
	Width             int              `json:"width" yaml:"width"`
	Height            int              `json:"height" yaml:"height"`
	Memory            float64          `json:"memory" yaml:"memory"`
	CPU               float64          `json:"cpu" yaml:"cpu"`
	SuspendMultiplier *float64         `json:"suspendMultiplier,omitempty" yaml:"suspendMultiplier,omitempty"`
	Unlocked          []model.Position `json:"unlocked,omitempty" yaml:"unlocked,omitempty"`
}

// DefaultConfig returns a 3x3 grid with one unlocked slot
func DefaultConfig() Config {
	multiplier := slot.DefaultSuspendMultiplier
	return Config{
		Width:             3,
		Height:            3,
		Memory:            9.0,
		CPU:               9.0,
		SuspendMultiplier: &multiplier,
		Unlocked:          []model.Position{{X: 0, Y: 0}},
	}
}

// Validate checks dimensions, budgets and unlocked positions
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid grid size %dx%d", c.Width, c.Height)
	}
	if c.Memory < 0 || c.CPU < 0 {
		return fmt.Errorf("invalid grid budget memory=%v cpu=%v", c.Memory, c.CPU)
	}
	if m := c.Multiplier(); m < 0 || m > 1 {
		return fmt.Errorf("suspend multiplier %v out of range [0,1]", m)
	}
	for _, position := range c.Unlocked {
		if !c.Contains(position) {
			return fmt.Errorf("unlocked position (%d,%d) outside %dx%d grid", position.X, position.Y, c.Width, c.Height)
		}
	}
	return nil
}

// Multiplier returns the configured suspend multiplier; an unset one
// falls back to slot.DefaultSuspendMultiplier while an explicit 0 stays 0.
func (c *Config) Multiplier() float64 {
	if c.SuspendMultiplier == nil {
		return slot.DefaultSuspendMultiplier
	}
	return *c.SuspendMultiplier
}

// Contains reports whether position lies on the grid
func (c *Config) Contains(position model.Position) bool {
	return position.X >= 0 && position.Y >= 0 && position.X < c.Width && position.Y < c.Height
}

// Size returns the number of slots
func (c *Config) Size() int {
	return c.Width * c.Height
}
