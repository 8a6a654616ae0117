package model

import "time"

// Process is the contract implemented by runnable game logic. A slot owns a
// process exclusively while it is loaded.
type Process interface {
	// ID returns the unique process identifier.
	ID() string
	// Type returns the process type tag, e.g. "CardGame".
	Type() string
	// Requirements returns the declared resource needs; MEM and CPU are mandatory.
	Requirements() Requirements
	// Initialize (re)initialises the process; state is nil for a fresh start.
	Initialize(state *State) error
	// State returns a copy of the current state for later restore.
	State() *State
	// Update advances the process by one tick.
	Update(delta time.Duration)
	// Cleanup releases resources; it is called exactly once before removal.
	Cleanup() error
	// Completed reports whether the process finished its work.
	Completed() bool
}

// Emitter carries the outbound notifications of a single process. The
// process manager hands an emitter to every process it constructs.
type Emitter interface {
	// StateChanged announces a new state of the process.
	StateChanged(state *State)
	// Event announces a free-form semantic event such as "trick_won_2".
	Event(tag string)
}

// NopEmitter discards all notifications.
type NopEmitter struct{}

func (NopEmitter) StateChanged(*State) {}

func (NopEmitter) Event(string) {}
