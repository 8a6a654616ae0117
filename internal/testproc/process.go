// Package testproc provides process implementations for tests of the grid,
// the manager and the facade.
package testproc

import (
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/viant/procslot/model"
)

// Process is a deterministic counter process. Every Update increments the
// counter, which is captured in its state record.
type Process struct {
	id           string
	kind         string
	requirements model.Requirements
	emitter      model.Emitter

	InitErr       error
	CleanupErr    error
	PanicOnUpdate bool
	PanicOnState  bool

	Counter     int
	Initialized []*model.State
	Updates     int
	Cleanups    int
	Done        bool
}

// New creates a counter process.
func New(id, kind string, requirements model.Requirements) *Process {
	return &Process{id: id, kind: kind, requirements: requirements, emitter: model.NopEmitter{}}
}

// WithEmitter attaches an emitter.
func (p *Process) WithEmitter(emitter model.Emitter) *Process {
	p.emitter = emitter
	return p
}

func (p *Process) ID() string { return p.id }

func (p *Process) Type() string { return p.kind }

func (p *Process) Requirements() model.Requirements { return p.requirements }

func (p *Process) Initialize(state *model.State) error {
	p.Initialized = append(p.Initialized, state)
	if p.InitErr != nil {
		return p.InitErr
	}
	p.Counter = 0
	if state != nil {
		p.Counter = state.Int("counter")
	}
	return nil
}

func (p *Process) State() *model.State {
	if p.PanicOnState {
		panic("state unavailable")
	}
	state := model.NewState(p.kind, p.id)
	state.Set("counter", p.Counter)
	return state
}

func (p *Process) Update(time.Duration) {
	if p.PanicOnUpdate {
		panic("update failed")
	}
	p.Updates++
	p.Counter++
	p.emitter.StateChanged(p.State())
}

func (p *Process) Cleanup() error {
	p.Cleanups++
	return p.CleanupErr
}

func (p *Process) Completed() bool { return p.Done }

// Mock is a testify mock of model.Process for fault injection.
type Mock struct {
	mock.Mock
}

func (m *Mock) ID() string { return m.Called().String(0) }

func (m *Mock) Type() string { return m.Called().String(0) }

func (m *Mock) Requirements() model.Requirements {
	return m.Called().Get(0).(model.Requirements)
}

func (m *Mock) Initialize(state *model.State) error { return m.Called(state).Error(0) }

func (m *Mock) State() *model.State {
	ret, _ := m.Called().Get(0).(*model.State)
	return ret
}

func (m *Mock) Update(delta time.Duration) { m.Called(delta) }

func (m *Mock) Cleanup() error { return m.Called().Error(0) }

func (m *Mock) Completed() bool { return m.Called().Bool(0) }

// Req builds requirements from memory and CPU quantities.
func Req(memory, cpu float64) model.Requirements {
	return model.Requirements{model.Memory: memory, model.CPU: cpu}
}
