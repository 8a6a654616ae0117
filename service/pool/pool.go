// Package pool implements grid-wide resource accounting. A Pool holds the
// fixed totals; usage is always derived from the slots by the caller, so
// availability is never cached.
package pool

import (
	"errors"
	"fmt"
	"math"

	"github.com/viant/procslot/model"
)

var (
	// ErrMissingRequirement is returned when MEM or CPU is not declared.
	ErrMissingRequirement = errors.New("pool: missing resource requirement")
	// ErrNegativeRequirement is returned for a negative or NaN quantity.
	ErrNegativeRequirement = errors.New("pool: invalid resource requirement")
)

// Pool represents the total memory and CPU budget of a grid.
type Pool struct {
	total model.Usage
}

// New creates a pool with the given totals.
func New(memory, cpu float64) *Pool {
	return &Pool{total: model.Usage{Memory: memory, CPU: cpu}}
}

// Total returns the budget.
func (p *Pool) Total() model.Usage { return p.total }

// Available returns total minus used, never negative.
func (p *Pool) Available(used model.Usage) model.Usage {
	return p.total.Subtract(used)
}

// Fits reports whether requirements can be added on top of used without
// exceeding the totals.
func (p *Pool) Fits(requirements model.Requirements, used model.Usage) bool {
	if ValidateRequirements(requirements) != nil {
		return false
	}
	return requirements.Usage(1).LessThanOrEqual(p.Available(used))
}

// PerSlot divides the totals evenly across n slots.
func (p *Pool) PerSlot(n int) model.Usage {
	if n <= 0 {
		return model.Usage{}
	}
	return model.Usage{Memory: p.total.Memory / float64(n), CPU: p.total.CPU / float64(n)}
}

// ValidateRequirements is the gate applied before any allocation attempt.
func ValidateRequirements(requirements model.Requirements) error {
	for _, kind := range []string{model.Memory, model.CPU} {
		v, ok := requirements[kind]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingRequirement, kind)
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrNegativeRequirement, kind, v)
		}
	}
	return nil
}
