package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/procslot/extension"
	"github.com/viant/procslot/internal/clock"
	"github.com/viant/procslot/internal/idgen"
	"github.com/viant/procslot/model"
	"github.com/viant/procslot/policy"
	"github.com/viant/procslot/service/dao"
	"github.com/viant/procslot/service/dao/criteria"
	"github.com/viant/procslot/service/dao/store"
	"github.com/viant/procslot/service/event"
	"github.com/viant/procslot/service/grid"
	"github.com/viant/procslot/service/registry"
	"github.com/viant/procslot/tracing"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrUnknownProcessType is returned for a kind without a factory.
	ErrUnknownProcessType = errors.New("manager: unknown process type")
	// ErrProcessNotFound is returned for an id missing from the process table.
	ErrProcessNotFound = errors.New("manager: process not found")
	// ErrAlreadyStarted is returned when starting a process twice.
	ErrAlreadyStarted = errors.New("manager: process already started")
	// ErrRejected is returned when the grid cannot admit a process.
	ErrRejected = errors.New("manager: allocation rejected")
	// ErrNotStarted is returned when a slot operation targets a process without a slot.
	ErrNotStarted = errors.New("manager: process not started")
)

// Service represents the process manager
type Service struct {
	grid      *grid.Service
	registry  *registry.Service
	factories *extension.Factories
	processes dao.Service[string, Entry]
	policy    *policy.Policy
	sink      event.Sink
	logger    *zap.Logger
	mux       sync.Mutex
	relayMux  sync.Mutex
	relayed   []*event.Message
}

// New creates a manager over the given grid, registry and factory table
func New(grid *grid.Service, registry *registry.Service, factories *extension.Factories, options ...Option) *Service {
	ret := &Service{
		grid:      grid,
		registry:  registry,
		factories: factories,
		sink:      event.Nop,
		logger:    zap.NewNop(),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.processes == nil {
		ret.processes = store.NewMemoryStore[string, Entry](
			func(e *Entry) string { return e.ID },
			store.WithFilter[string, Entry](func(e *Entry, parameters []*dao.Parameter) bool {
				return criteria.Match("State", e.State, parameters) && criteria.Match("Kind", e.Kind, parameters)
			}))
	}
	return ret
}

// CreateProcess constructs a process of kind and returns its id without
// allocating a slot.
func (s *Service) CreateProcess(ctx context.Context, kind string, params map[string]interface{}) (processID string, err error) {
	ctx, span := tracing.StartSpan(ctx, "procslot.createProcess", "INTERNAL")
	defer func() {
		tracing.EndSpan(span.WithAttributes(map[string]string{"process.kind": kind, "process.id": processID}), err)
	}()

	factory, ok := s.factories.Lookup(kind)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProcessType, kind)
	}
	id := idgen.ProcessID(kind)
	p, err := factory.New(id, params, &relay{processID: id, manager: s})
	if err != nil {
		return "", fmt.Errorf("failed to create %s process: %w", kind, err)
	}
	if p == nil || p.ID() != id {
		return "", fmt.Errorf("constructor of %s did not return process %s", kind, id)
	}
	entry := &Entry{ID: id, Kind: kind, State: StateCreated, Process: p, CreatedAt: clock.Now()}
	if err = s.processes.Save(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to save process %s: %w", id, err)
	}
	s.flush(ctx, event.NewProcessCreated(id, kind))
	return id, nil
}

// StartProcess allocates a slot for the process, records the mapping and
// applies the unlock progression. A rejected allocation has no side effects.
func (s *Service) StartProcess(ctx context.Context, processID string) (slotID string, err error) {
	ctx, span := tracing.StartSpan(ctx, "procslot.startProcess", "INTERNAL")
	defer func() {
		tracing.EndSpan(span.WithAttributes(map[string]string{"process.id": processID, "slot.id": slotID}), err)
	}()

	var started *event.Message
	defer func() {
		if started != nil {
			s.flush(ctx, started)
			return
		}
		s.flush(ctx)
	}()
	s.mux.Lock()
	defer s.mux.Unlock()

	entry, err := s.entry(ctx, processID)
	if err != nil {
		return "", err
	}
	if entry.Started() {
		return "", fmt.Errorf("%w: %s", ErrAlreadyStarted, processID)
	}
	slotID, ok, err := s.grid.TryLoad(ctx, entry.Process)
	if err != nil {
		if errors.Is(err, grid.ErrAlreadyLoaded) {
			return "", fmt.Errorf("%w: %s", ErrAlreadyStarted, processID)
		}
		s.logger.Error("failed to start process", zap.String("process", processID), zap.String("slot", slotID), zap.Error(err))
		entry.State = StateFaulted
		_ = s.processes.Save(ctx, entry)
		return "", fmt.Errorf("failed to start %s: %w", processID, err)
	}
	if !ok {
		s.logger.Info("allocation rejected", zap.String("process", processID))
		return "", fmt.Errorf("%w: %s", ErrRejected, processID)
	}
	if err = s.registry.Register(ctx, processID, slotID); err != nil {
		return "", err
	}
	entry.State = StateRunning
	if err = s.processes.Save(ctx, entry); err != nil {
		return "", err
	}
	if n := s.policyFor(ctx).UnlockCount(entry.Kind); n > 0 {
		if unlocked := s.grid.UnlockNext(ctx, n); len(unlocked) > 0 {
			s.logger.Debug("unlocked slots", zap.Strings("slots", unlocked))
		}
	}
	started = event.NewProcessStarted(processID, slotID)
	return slotID, nil
}

// UnloadProcess frees the process slot, cleans the process up exactly once
// and removes it from the table. An unknown id fails and changes nothing.
func (s *Service) UnloadProcess(ctx context.Context, processID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "procslot.unloadProcess", "INTERNAL")
	defer func() {
		tracing.EndSpan(span.WithAttributes(map[string]string{"process.id": processID}), err)
	}()

	var ended *event.Message
	defer func() {
		if ended != nil {
			s.flush(ctx, ended)
		}
	}()
	s.mux.Lock()
	defer s.mux.Unlock()

	entry, err := s.entry(ctx, processID)
	if err != nil {
		return err
	}
	err = s.unload(ctx, entry)
	ended = event.NewProcessEnded(processID)
	return err
}

func (s *Service) unload(ctx context.Context, entry *Entry) error {
	var err error
	if slotID, ok := s.registry.SlotOf(entry.ID); ok && s.holds(slotID, entry.ID) {
		if _, err = s.grid.Free(ctx, slotID); err != nil {
			s.logger.Error("failed to free slot", zap.String("process", entry.ID), zap.String("slot", slotID), zap.Error(err))
		}
	} else if err = guard(entry.Process.Cleanup); err != nil {
		s.logger.Error("failed to clean up process", zap.String("process", entry.ID), zap.Error(err))
	}
	s.registry.Unregister(ctx, entry.ID)
	if deleteErr := s.processes.Delete(ctx, entry.ID); deleteErr != nil {
		err = multierr.Append(err, deleteErr)
	}
	return err
}

// SuspendProcess suspends the slot of a running process
func (s *Service) SuspendProcess(ctx context.Context, processID string) error {
	return s.transition(ctx, "procslot.suspendProcess", processID, StateRunning, StateSuspended, s.grid.Suspend)
}

// ResumeProcess resumes the slot of a suspended process
func (s *Service) ResumeProcess(ctx context.Context, processID string) error {
	return s.transition(ctx, "procslot.resumeProcess", processID, StateSuspended, StateRunning, s.grid.Resume)
}

func (s *Service) transition(ctx context.Context, name, processID, from, to string, fn func(context.Context, string) (bool, error)) (err error) {
	ctx, span := tracing.StartSpan(ctx, name, "INTERNAL")
	defer func() {
		tracing.EndSpan(span.WithAttributes(map[string]string{"process.id": processID}), err)
	}()
	defer s.flush(ctx)
	s.mux.Lock()
	defer s.mux.Unlock()

	entry, err := s.entry(ctx, processID)
	if err != nil {
		return err
	}
	slotID, ok := s.registry.SlotOf(processID)
	if !ok || entry.State != from {
		return fmt.Errorf("%w: %s is %s", ErrNotStarted, processID, entry.State)
	}
	done, err := fn(ctx, slotID)
	if err != nil {
		s.reconcile(ctx)
		return fmt.Errorf("failed to change %s to %s: %w", processID, to, err)
	}
	if !done {
		return fmt.Errorf("%w: slot %s", ErrNotStarted, slotID)
	}
	entry.State = to
	return s.processes.Save(ctx, entry)
}

// Advance ticks every active process; processes of faulting slots are
// marked faulted and unmapped.
func (s *Service) Advance(ctx context.Context, delta time.Duration) error {
	defer s.flush(ctx)
	err := s.grid.Advance(ctx, delta)
	if err != nil {
		s.mux.Lock()
		s.reconcile(ctx)
		s.mux.Unlock()
	}
	return err
}

// ReapCompleted unloads every started process that reports completion and
// returns their ids.
func (s *Service) ReapCompleted(ctx context.Context) ([]string, error) {
	entries, err := s.processes.List(ctx, dao.NewParameter("State", StateRunning, StateSuspended))
	if err != nil {
		return nil, err
	}
	var reaped []string
	for _, entry := range entries {
		if !s.completed(entry) {
			continue
		}
		if unloadErr := s.UnloadProcess(ctx, entry.ID); unloadErr != nil && errors.Is(unloadErr, ErrProcessNotFound) {
			continue
		} else if unloadErr != nil {
			err = multierr.Append(err, unloadErr)
		}
		reaped = append(reaped, entry.ID)
	}
	return reaped, err
}

// SetActive marks a known process as the active one
func (s *Service) SetActive(ctx context.Context, processID string) error {
	if _, err := s.entry(ctx, processID); err != nil {
		return err
	}
	s.registry.SetActive(ctx, processID)
	return nil
}

// Process returns a tracked process. While a slot holds it, the process is
// ticked concurrently by the runtime; read its state with State instead.
func (s *Service) Process(processID string) (model.Process, bool) {
	entry, err := s.entry(context.Background(), processID)
	if err != nil {
		return nil, false
	}
	return entry.Process, true
}

// Entry returns a copy of a process table record
func (s *Service) Entry(ctx context.Context, processID string) (*Entry, error) {
	entry, err := s.entry(ctx, processID)
	if err != nil {
		return nil, err
	}
	ret := *entry
	return &ret, nil
}

// List returns process table records, optionally filtered by State or Kind
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*Entry, error) {
	return s.processes.List(ctx, parameters...)
}

// ProcessIDs returns tracked process ids in creation order
func (s *Service) ProcessIDs() []string {
	entries, _ := s.processes.List(context.Background())
	ret := make([]string, len(entries))
	for i, entry := range entries {
		ret[i] = entry.ID
	}
	return ret
}

// SlotOf returns the slot of a started process
func (s *Service) SlotOf(processID string) (string, bool) {
	return s.registry.SlotOf(processID)
}

// State returns a copy of the current state of a process. The state of a
// process held by a slot is captured under the grid lock.
func (s *Service) State(processID string) (*model.State, error) {
	_, state, err := s.stateOf(processID)
	return state, err
}

// DecodeState decodes the current state of a process into its kind state type
func (s *Service) DecodeState(processID string) (interface{}, error) {
	kind, state, err := s.stateOf(processID)
	if err != nil {
		return nil, err
	}
	factory, ok := s.factories.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcessType, kind)
	}
	return factory.DecodeState(state)
}

func (s *Service) stateOf(processID string) (kind string, state *model.State, err error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	entry, err := s.entry(context.Background(), processID)
	if err != nil {
		return "", nil, err
	}
	s.inspect(entry, func(p model.Process) {
		err = guard(func() error {
			state = p.State().Clone()
			return nil
		})
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to capture state of %s: %w", processID, err)
	}
	return entry.Kind, state, nil
}

func (s *Service) completed(entry *Entry) (done bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.inspect(entry, func(p model.Process) {
		_ = guard(func() error {
			done = p.Completed()
			return nil
		})
	})
	return done
}

// inspect runs fn under the grid lock while a slot holds the process; a
// process no slot holds is not ticked and is passed to fn directly.
func (s *Service) inspect(entry *Entry, fn func(p model.Process)) {
	if slotID, ok := s.registry.SlotOf(entry.ID); ok && s.grid.Inspect(slotID, entry.ID, fn) {
		return
	}
	fn(entry.Process)
}

// Shutdown unloads every tracked process so that no slot stays occupied
func (s *Service) Shutdown(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "procslot.shutdown", "INTERNAL")
	defer func() {
		tracing.EndSpan(span, err)
	}()
	for _, processID := range s.ProcessIDs() {
		if unloadErr := s.UnloadProcess(ctx, processID); unloadErr != nil && !errors.Is(unloadErr, ErrProcessNotFound) {
			err = multierr.Append(err, unloadErr)
		}
	}
	return err
}

func (s *Service) entry(ctx context.Context, processID string) (*Entry, error) {
	entry, err := s.processes.Load(ctx, processID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) || errors.Is(err, dao.ErrInvalidID) {
			return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, processID)
		}
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, processID)
	}
	return entry, nil
}

func (s *Service) policyFor(ctx context.Context) *policy.Policy {
	if p, ok := policy.FromContext(ctx); ok {
		return p
	}
	return s.policy
}

// holds reports whether the grid slot still holds processID
func (s *Service) holds(slotID, processID string) bool {
	snapshot, ok := s.grid.Slot(slotID)
	return ok && snapshot.ProcessID == processID
}

// reconcile drops mappings of processes their slot discarded after a fault
func (s *Service) reconcile(ctx context.Context) {
	for _, processID := range s.registry.ProcessIDs() {
		slotID, ok := s.registry.SlotOf(processID)
		if !ok || s.holds(slotID, processID) {
			continue
		}
		s.registry.Unregister(ctx, processID)
		if entry, err := s.entry(ctx, processID); err == nil {
			entry.State = StateFaulted
			_ = s.processes.Save(ctx, entry)
		}
		s.logger.Warn("process discarded by slot", zap.String("process", processID), zap.String("slot", slotID))
	}
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
