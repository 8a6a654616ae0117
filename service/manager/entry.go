package manager

import (
	"time"

	"github.com/viant/procslot/model"
)

// Entry states
const (
	StateCreated   = "created"
	StateRunning   = "running"
	StateSuspended = "suspended"
	// StateFaulted marks a process its slot discarded after a fault.
	StateFaulted = "faulted"
)

// Entry is a process table record
type Entry struct {
	ID        string
	Kind      string
	State     string
	Process   model.Process
	CreatedAt time.Time
}

// Started reports whether the process currently holds a slot
func (e *Entry) Started() bool {
	return e.State == StateRunning || e.State == StateSuspended
}
