// Package registry keeps the bidirectional process to slot mapping and the
// active process reference. It holds no resource logic.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/viant/procslot/service/event"
)

// ErrInvalidID is returned when a process or slot id is empty.
var ErrInvalidID = errors.New("registry: invalid id")

// Option configures the registry
type Option func(s *Service)

// WithSink sets the notification sink
func WithSink(sink event.Sink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// Service represents the process registry
type Service struct {
	mux           sync.RWMutex
	slotByProcess map[string]string
	processBySlot map[string]string
	active        string
	sink          event.Sink
}

// New creates an empty registry
func New(options ...Option) *Service {
	ret := &Service{
		slotByProcess: make(map[string]string),
		processBySlot: make(map[string]string),
		sink:          event.Nop,
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Register maps processID to slotID, replacing any prior mapping of either
// side. A process displaced from slotID is reported as unmapped.
func (s *Service) Register(ctx context.Context, processID, slotID string) error {
	if processID == "" || slotID == "" {
		return ErrInvalidID
	}
	var messages []*event.Message
	s.mux.Lock()
	if previous, ok := s.slotByProcess[processID]; ok && previous != slotID {
		delete(s.processBySlot, previous)
	}
	if displaced, ok := s.processBySlot[slotID]; ok && displaced != processID {
		delete(s.slotByProcess, displaced)
		messages = append(messages, event.NewMappingChanged(displaced, ""))
	}
	s.slotByProcess[processID] = slotID
	s.processBySlot[slotID] = processID
	messages = append(messages, event.NewMappingChanged(processID, slotID))
	s.mux.Unlock()
	s.emit(ctx, messages)
	return nil
}

// Unregister removes both directions of the process mapping and clears the
// active reference if it pointed at processID. It returns false when the
// process was not mapped.
func (s *Service) Unregister(ctx context.Context, processID string) bool {
	var messages []*event.Message
	s.mux.Lock()
	slotID, ok := s.slotByProcess[processID]
	if ok {
		delete(s.slotByProcess, processID)
		delete(s.processBySlot, slotID)
		messages = append(messages, event.NewMappingChanged(processID, ""))
	}
	if processID != "" && s.active == processID {
		s.active = ""
		messages = append(messages, event.NewActiveProcessChanged(""))
	}
	s.mux.Unlock()
	s.emit(ctx, messages)
	return ok
}

// SetActive marks processID as the active process; an empty id clears it.
// Setting the already active process is a no-op.
func (s *Service) SetActive(ctx context.Context, processID string) {
	s.mux.Lock()
	if s.active == processID {
		s.mux.Unlock()
		return
	}
	s.active = processID
	s.mux.Unlock()
	s.sink.Emit(ctx, event.NewActiveProcessChanged(processID))
}

// Active returns the active process id, empty when none
func (s *Service) Active() string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.active
}

// SlotOf returns the slot holding processID
func (s *Service) SlotOf(processID string) (string, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	slotID, ok := s.slotByProcess[processID]
	return slotID, ok
}

// ProcessOf returns the process held by slotID
func (s *Service) ProcessOf(slotID string) (string, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	processID, ok := s.processBySlot[slotID]
	return processID, ok
}

// Len returns the number of mappings
func (s *Service) Len() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.slotByProcess)
}

// ProcessIDs returns mapped process ids in sorted order
func (s *Service) ProcessIDs() []string {
	s.mux.RLock()
	ret := make([]string, 0, len(s.slotByProcess))
	for processID := range s.slotByProcess {
		ret = append(ret, processID)
	}
	s.mux.RUnlock()
	sort.Strings(ret)
	return ret
}

func (s *Service) emit(ctx context.Context, messages []*event.Message) {
	for _, message := range messages {
		s.sink.Emit(ctx, message)
	}
}
