package slot

import (
	"errors"
	"fmt"
	"time"

	"github.com/viant/procslot/model"
)

const (
	// LoadMultiplier scales declared requirements into usage of an active slot.
	LoadMultiplier = 1.0
	// DefaultSuspendMultiplier scales CPU usage of a suspended slot.
	DefaultSuspendMultiplier = 0.1
)

var (
	// ErrInvalidOperation is returned when an operation is attempted on a
	// slot that cannot accept it, e.g. loading into an occupied slot.
	ErrInvalidOperation = errors.New("slot: invalid operation")

	// ErrInvalidTransition is returned for a status change the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("slot: invalid transition")

	// ErrProcessFault wraps a failure raised by the process itself during
	// Initialize, Update or Cleanup. The slot is corrupted afterwards.
	ErrProcessFault = errors.New("slot: process fault")
)

// Slot holds at most one process within a fixed capacity.
type Slot struct {
	id                string
	position          model.Position
	status            model.Status
	capacity          model.Usage
	usage             model.Usage
	fullUsage         model.Usage
	unlocked          bool
	process           model.Process
	saved             *model.State
	suspendMultiplier float64
	listeners         []Listener
}

// New creates a slot at position with the given capacity.
func New(position model.Position, capacity model.Usage, options ...Option) *Slot {
	s := &Slot{
		id:                position.SlotID(),
		position:          position,
		capacity:          capacity,
		suspendMultiplier: DefaultSuspendMultiplier,
	}
	for _, opt := range options {
		opt(s)
	}
	s.status = model.StatusLocked
	if s.unlocked {
		s.status = model.StatusEmpty
	}
	return s
}

// ID returns the slot identifier.
func (s *Slot) ID() string { return s.id }

// Position returns the grid position.
func (s *Slot) Position() model.Position { return s.position }

// Status returns the current status.
func (s *Slot) Status() model.Status { return s.status }

// Usage returns the current consumption.
func (s *Slot) Usage() model.Usage { return s.usage }

// Capacity returns the fixed ceiling.
func (s *Slot) Capacity() model.Usage { return s.capacity }

// IsUnlocked reports whether the slot is available for allocation.
func (s *Slot) IsUnlocked() bool { return s.unlocked }

// Process returns the loaded process or nil.
func (s *Slot) Process() model.Process { return s.process }

// SavedState returns a copy of the remembered state, if any.
func (s *Slot) SavedState() *model.State { return s.saved.Clone() }

// CanLoad reports whether p fits this slot right now.
func (s *Slot) CanLoad(p model.Process) bool {
	if p == nil || !s.unlocked || !s.status.Loadable() {
		return false
	}
	requirements := p.Requirements()
	mem, ok := requirements.Memory()
	if !ok {
		return false
	}
	cpu, ok := requirements.CPU()
	if !ok {
		return false
	}
	return model.LessThanOrEqual(mem, s.capacity.Memory) && model.LessThanOrEqual(cpu, s.capacity.CPU)
}

// Load initialises p inside the slot. A saved state of the same process kind
// is restored into p and then forgotten. A failing Initialize corrupts the
// slot and p is not retained.
func (s *Slot) Load(p model.Process) error {
	if !s.CanLoad(p) {
		id := "<nil>"
		if p != nil {
			id = p.ID()
		}
		return fmt.Errorf("%w: cannot load %s into %s (%s)", ErrInvalidOperation, id, s.id, s.status)
	}
	if err := s.transitTo(model.StatusLoading); err != nil {
		return err
	}
	var restore *model.State
	if s.saved.Matches(p.Type()) {
		restore = s.saved.Clone()
	}
	if err := guard(func() error { return p.Initialize(restore) }); err != nil {
		s.corrupt()
		return fmt.Errorf("%w: failed to initialize %s in %s: %w", ErrProcessFault, p.ID(), s.id, err)
	}
	if restore != nil {
		s.saved = nil
	}
	s.process = p
	s.fullUsage = p.Requirements().Usage(LoadMultiplier)
	s.usage = s.fullUsage
	return s.transitTo(model.StatusActive)
}

// Unload captures the process state, cleans the process up and empties the
// slot. It is a no-op when nothing is loaded, except that a corrupted slot is
// reset to empty.
func (s *Slot) Unload() error {
	if s.process == nil {
		if s.status == model.StatusCorrupted {
			s.usage = model.Usage{}
			return s.transitTo(model.StatusEmpty)
		}
		return nil
	}
	p := s.process
	// a failed capture leaves nothing to restore
	s.saved, _ = s.capture(p)
	err := guard(p.Cleanup)
	s.process = nil
	s.usage = model.Usage{}
	s.fullUsage = model.Usage{}
	if err != nil {
		_ = s.transitTo(model.StatusCorrupted)
		return fmt.Errorf("%w: failed to clean up %s in %s: %w", ErrProcessFault, p.ID(), s.id, err)
	}
	return s.transitTo(model.StatusEmpty)
}

// Suspend captures the process state and scales CPU usage down while the
// memory reservation stays unchanged.
func (s *Slot) Suspend() error {
	if s.status != model.StatusActive || s.process == nil {
		return fmt.Errorf("%w: cannot suspend %s (%s)", ErrInvalidOperation, s.id, s.status)
	}
	state, err := s.capture(s.process)
	if err != nil {
		s.corrupt()
		return err
	}
	s.saved = state
	s.usage = model.Usage{Memory: s.fullUsage.Memory, CPU: s.fullUsage.CPU * s.suspendMultiplier}
	return s.transitTo(model.StatusSuspended)
}

// Resume re-initialises the process from the state captured on Suspend and
// restores the full usage.
func (s *Slot) Resume() error {
	if s.status != model.StatusSuspended || s.process == nil {
		return fmt.Errorf("%w: cannot resume %s (%s)", ErrInvalidOperation, s.id, s.status)
	}
	p := s.process
	restore := s.saved.Clone()
	if err := guard(func() error { return p.Initialize(restore) }); err != nil {
		s.corrupt()
		return fmt.Errorf("%w: failed to resume %s in %s: %w", ErrProcessFault, p.ID(), s.id, err)
	}
	s.saved = nil
	s.usage = s.fullUsage
	return s.transitTo(model.StatusActive)
}

// Update advances the loaded process; only active slots receive ticks.
func (s *Slot) Update(delta time.Duration) error {
	if s.status != model.StatusActive || s.process == nil {
		return nil
	}
	p := s.process
	if err := guard(func() error { p.Update(delta); return nil }); err != nil {
		s.corrupt()
		return fmt.Errorf("%w: failed to update %s in %s: %w", ErrProcessFault, p.ID(), s.id, err)
	}
	return nil
}

// Unlock makes the slot available; it returns false when already unlocked.
func (s *Slot) Unlock() bool {
	if s.unlocked {
		return false
	}
	s.unlocked = true
	_ = s.transitTo(model.StatusEmpty)
	return true
}

// Lock withdraws an empty slot from allocation. Locking a locked slot is a
// no-op; any other status is rejected.
func (s *Slot) Lock() (bool, error) {
	if !s.unlocked {
		return false, nil
	}
	if s.status != model.StatusEmpty {
		return false, fmt.Errorf("%w: cannot lock %s (%s)", ErrInvalidOperation, s.id, s.status)
	}
	if err := s.transitTo(model.StatusLocked); err != nil {
		return false, err
	}
	s.unlocked = false
	return true, nil
}

// Snapshot returns the serialisable view of the slot.
func (s *Slot) Snapshot() *model.SlotSnapshot {
	ret := &model.SlotSnapshot{
		ID:          s.id,
		Position:    s.position,
		Status:      s.status,
		MemoryUsage: s.usage.Memory,
		CPUUsage:    s.usage.CPU,
		IsUnlocked:  s.unlocked,
	}
	if s.process != nil {
		ret.ProcessID = s.process.ID()
		if state, err := s.capture(s.process); err == nil {
			ret.ProcessState = state
		}
		return ret
	}
	ret.SavedState = s.saved.Clone()
	return ret
}

func (s *Slot) capture(p model.Process) (*model.State, error) {
	var state *model.State
	err := guard(func() error {
		state = p.State().Clone()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to capture state of %s in %s: %w", ErrProcessFault, p.ID(), s.id, err)
	}
	if state == nil {
		state = model.NewState(p.Type(), p.ID())
	}
	if state.Kind == "" {
		state.Kind = p.Type()
	}
	if state.ProcessID == "" {
		state.ProcessID = p.ID()
	}
	return state, nil
}

func (s *Slot) corrupt() {
	s.process = nil
	s.usage = model.Usage{}
	s.fullUsage = model.Usage{}
	_ = s.transitTo(model.StatusCorrupted)
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
