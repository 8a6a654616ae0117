package model

import "fmt"

// Status represents the lifecycle state of a slot.
type Status string

const (
	StatusLocked    Status = "locked"
	StatusEmpty     Status = "empty"
	StatusLoading   Status = "loading"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCorrupted Status = "corrupted"
)

// Loadable reports whether a slot in this status accepts a load attempt.
func (s Status) Loadable() bool {
	return s == StatusEmpty || s == StatusCorrupted
}

// Occupied reports whether a slot in this status holds a process.
func (s Status) Occupied() bool {
	return s == StatusActive || s == StatusSuspended || s == StatusLoading
}

// Position locates a slot on the grid.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// SlotID returns the identifier of the slot at p.
func (p Position) SlotID() string {
	return fmt.Sprintf("slot_%d_%d", p.X, p.Y)
}

// SlotSnapshot is the serialisable view of a slot. ProcessState is present
// only while a process is loaded, SavedState only while the slot is empty
// but remembers the state of a previously unloaded process.
type SlotSnapshot struct {
	ID           string   `json:"id" yaml:"id"`
	Position     Position `json:"position" yaml:"position"`
	Status       Status   `json:"status" yaml:"status"`
	MemoryUsage  float64  `json:"memoryUsage" yaml:"memoryUsage"`
	CPUUsage     float64  `json:"cpuUsage" yaml:"cpuUsage"`
	IsUnlocked   bool     `json:"isUnlocked" yaml:"isUnlocked"`
	ProcessID    string   `json:"processId,omitempty" yaml:"processId,omitempty"`
	ProcessState *State   `json:"processState,omitempty" yaml:"processState,omitempty"`
	SavedState   *State   `json:"savedState,omitempty" yaml:"savedState,omitempty"`
}
