package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/procslot/model"
	"github.com/viant/procslot/runtime/slot"
	"github.com/viant/procslot/service/event"
	"github.com/viant/procslot/service/pool"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrAlreadyLoaded is returned when a process is already held by a slot.
var ErrAlreadyLoaded = errors.New("grid: process already loaded")

// Service represents the slot grid
type Service struct {
	config  Config
	pool    *pool.Pool
	slots   []*slot.Slot
	byID    map[string]*slot.Slot
	sink    event.Sink
	logger  *zap.Logger
	mux     sync.Mutex
	pending []*event.Message
}

// New creates a grid; slots at config.Unlocked start empty, the rest locked
func New(config Config, options ...Option) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ret := &Service{
		config: config,
		pool:   pool.New(config.Memory, config.CPU),
		byID:   make(map[string]*slot.Slot, config.Size()),
		sink:   event.Nop,
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(ret)
	}
	unlocked := make(map[model.Position]bool, len(config.Unlocked))
	for _, position := range config.Unlocked {
		unlocked[position] = true
	}
	capacity := ret.pool.PerSlot(config.Size())
	slotOptions := []slot.Option{
		slot.WithListeners(ret.onTransition),
		slot.WithSuspendMultiplier(config.Multiplier()),
	}
	for y := 0; y < config.Height; y++ {
		for x := 0; x < config.Width; x++ {
			position := model.Position{X: x, Y: y}
			aSlot := slot.New(position, capacity, append(slotOptions, slot.WithUnlocked(unlocked[position]))...)
			ret.slots = append(ret.slots, aSlot)
			ret.byID[aSlot.ID()] = aSlot
		}
	}
	return ret, nil
}

// TryLoad validates requirements, checks pool-wide availability and loads p
// into the first slot in row-major order that accepts it. ok is false on
// admission failure, in which case nothing changed. err reports a process
// fault; the slot that raised it is corrupted.
func (s *Service) TryLoad(ctx context.Context, p model.Process) (slotID string, ok bool, err error) {
	s.mutate(ctx, func() {
		slotID, ok, err = s.tryLoad(p)
	})
	return slotID, ok, err
}

func (s *Service) tryLoad(p model.Process) (string, bool, error) {
	if p == nil {
		return "", false, nil
	}
	requirements := p.Requirements()
	if err := pool.ValidateRequirements(requirements); err != nil {
		s.logger.Info("rejected process", zap.String("process", p.ID()), zap.Error(err))
		return "", false, nil
	}
	if holder := s.holderOf(p.ID()); holder != nil {
		return holder.ID(), false, fmt.Errorf("%w: %s in %s", ErrAlreadyLoaded, p.ID(), holder.ID())
	}
	if !s.pool.Fits(requirements, s.used()) {
		s.logger.Info("rejected process: pool exhausted",
			zap.String("process", p.ID()),
			zap.Any("requirements", requirements))
		return "", false, nil
	}
	for _, candidate := range s.slots {
		if !candidate.CanLoad(p) {
			continue
		}
		if err := candidate.Load(p); err != nil {
			s.logger.Error("failed to load process",
				zap.String("process", p.ID()),
				zap.String("slot", candidate.ID()),
				zap.Error(err))
			return candidate.ID(), false, err
		}
		return candidate.ID(), true, nil
	}
	s.logger.Info("rejected process: no slot fits",
		zap.String("process", p.ID()),
		zap.Any("requirements", requirements))
	return "", false, nil
}

// Free unloads the slot's process. It returns false for an unknown slot or
// a slot with nothing to unload; a cleanup fault is returned with true.
func (s *Service) Free(ctx context.Context, slotID string) (freed bool, err error) {
	s.mutate(ctx, func() {
		aSlot, ok := s.byID[slotID]
		if !ok {
			return
		}
		if aSlot.Process() == nil && aSlot.Status() != model.StatusCorrupted {
			return
		}
		freed = true
		if err = aSlot.Unload(); err != nil {
			s.logger.Error("failed to free slot", zap.String("slot", slotID), zap.Error(err))
		}
	})
	return freed, err
}

// Unlock makes a locked slot available; it returns false for an unknown or
// already unlocked slot.
func (s *Service) Unlock(ctx context.Context, slotID string) (unlocked bool) {
	s.mutate(ctx, func() {
		if aSlot, ok := s.byID[slotID]; ok {
			unlocked = s.unlock(aSlot)
		}
	})
	return unlocked
}

// UnlockNext unlocks up to n locked slots in row-major order and returns
// their ids.
func (s *Service) UnlockNext(ctx context.Context, n int) (unlocked []string) {
	s.mutate(ctx, func() {
		for _, aSlot := range s.slots {
			if len(unlocked) >= n {
				return
			}
			if s.unlock(aSlot) {
				unlocked = append(unlocked, aSlot.ID())
			}
		}
	})
	return unlocked
}

func (s *Service) unlock(aSlot *slot.Slot) bool {
	if !aSlot.Unlock() {
		return false
	}
	s.pending = append(s.pending, event.NewSlotUnlocked(aSlot.ID()))
	return true
}

// Lock withdraws an empty slot from allocation. Locking a locked or unknown
// slot returns false without error; any non-empty slot is rejected with
// slot.ErrInvalidOperation.
func (s *Service) Lock(ctx context.Context, slotID string) (locked bool, err error) {
	s.mutate(ctx, func() {
		aSlot, ok := s.byID[slotID]
		if !ok {
			return
		}
		if locked, err = aSlot.Lock(); locked {
			s.pending = append(s.pending, event.NewSlotLocked(slotID))
		}
	})
	return locked, err
}

// Suspend suspends the active process of a slot
func (s *Service) Suspend(ctx context.Context, slotID string) (bool, error) {
	return s.apply(ctx, slotID, (*slot.Slot).Suspend)
}

// Resume resumes the suspended process of a slot
func (s *Service) Resume(ctx context.Context, slotID string) (bool, error) {
	return s.apply(ctx, slotID, (*slot.Slot).Resume)
}

func (s *Service) apply(ctx context.Context, slotID string, fn func(*slot.Slot) error) (ok bool, err error) {
	s.mutate(ctx, func() {
		aSlot, found := s.byID[slotID]
		if !found {
			return
		}
		if err = fn(aSlot); err != nil {
			if errors.Is(err, slot.ErrProcessFault) {
				s.logger.Error("process fault", zap.String("slot", slotID), zap.Error(err))
			}
			return
		}
		ok = true
	})
	return ok, err
}

// Advance calls Update on every active slot in row-major order. Faults are
// aggregated; the faulting slots are corrupted and the rest keep running.
func (s *Service) Advance(ctx context.Context, delta time.Duration) (err error) {
	s.mutate(ctx, func() {
		for _, aSlot := range s.slots {
			if updateErr := aSlot.Update(delta); updateErr != nil {
				s.logger.Error("process fault", zap.String("slot", aSlot.ID()), zap.Error(updateErr))
				err = multierr.Append(err, updateErr)
			}
		}
	})
	return err
}

// AvailableMemory returns the memory budget not used by any slot
func (s *Service) AvailableMemory() float64 {
	return s.Available().Memory
}

// AvailableCPU returns the CPU budget not used by any slot
func (s *Service) AvailableCPU() float64 {
	return s.Available().CPU
}

// Available returns total minus the sum of slot usages
func (s *Service) Available() model.Usage {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.pool.Available(s.used())
}

// Used returns the sum of slot usages
func (s *Service) Used() model.Usage {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.used()
}

// Total returns the grid budget
func (s *Service) Total() model.Usage {
	return s.pool.Total()
}

// Capacity returns the per-slot ceiling
func (s *Service) Capacity() model.Usage {
	return s.pool.PerSlot(s.config.Size())
}

// Config returns the grid configuration
func (s *Service) Config() Config {
	return s.config
}

// Slot returns a snapshot of a slot
func (s *Service) Slot(slotID string) (*model.SlotSnapshot, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	aSlot, ok := s.byID[slotID]
	if !ok {
		return nil, false
	}
	return aSlot.Snapshot(), true
}

// Inspect runs fn with the process of slotID under the grid lock, provided
// the slot holds processID. It reports whether fn ran; fn must not call back
// into the grid.
func (s *Service) Inspect(slotID, processID string, fn func(p model.Process)) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	aSlot, ok := s.byID[slotID]
	if !ok {
		return false
	}
	p := aSlot.Process()
	if p == nil || p.ID() != processID {
		return false
	}
	fn(p)
	return true
}

// Status returns the status of a slot
func (s *Service) Status(slotID string) (model.Status, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	aSlot, ok := s.byID[slotID]
	if !ok {
		return "", false
	}
	return aSlot.Status(), true
}

// SlotIDs returns slot ids in row-major order
func (s *Service) SlotIDs() []string {
	ret := make([]string, len(s.slots))
	for i, aSlot := range s.slots {
		ret[i] = aSlot.ID()
	}
	return ret
}

// Snapshot returns snapshots of all slots in row-major order
func (s *Service) Snapshot() []*model.SlotSnapshot {
	s.mux.Lock()
	defer s.mux.Unlock()
	ret := make([]*model.SlotSnapshot, len(s.slots))
	for i, aSlot := range s.slots {
		ret[i] = aSlot.Snapshot()
	}
	return ret
}

func (s *Service) used() model.Usage {
	var ret model.Usage
	for _, aSlot := range s.slots {
		ret = ret.Add(aSlot.Usage())
	}
	return ret
}

func (s *Service) holderOf(processID string) *slot.Slot {
	for _, aSlot := range s.slots {
		if p := aSlot.Process(); p != nil && p.ID() == processID {
			return aSlot
		}
	}
	return nil
}

func (s *Service) onTransition(_ *slot.Slot, transition *slot.Transition) {
	s.pending = append(s.pending, event.NewSlotStatusChanged(transition.SlotID, transition.To))
}

// mutate runs fn under the grid lock, appends a resources-changed
// notification when usage moved, and emits collected notifications after
// the lock is released.
func (s *Service) mutate(ctx context.Context, fn func()) {
	s.mux.Lock()
	before := s.used()
	fn()
	if after := s.used(); after != before {
		s.pending = append(s.pending, event.NewResourcesChanged(after))
	}
	messages := s.pending
	s.pending = nil
	s.mux.Unlock()
	for _, message := range messages {
		s.sink.Emit(ctx, message)
	}
}
