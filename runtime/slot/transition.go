package slot

import (
	"fmt"

	"github.com/viant/procslot/model"
)

// rules lists the allowed destination statuses per source status.
var rules = map[model.Status][]model.Status{
	model.StatusLocked:    {model.StatusEmpty},
	model.StatusEmpty:     {model.StatusLoading, model.StatusLocked},
	model.StatusCorrupted: {model.StatusLoading, model.StatusEmpty},
	model.StatusLoading:   {model.StatusActive, model.StatusCorrupted},
	model.StatusActive:    {model.StatusSuspended, model.StatusEmpty, model.StatusCorrupted},
	model.StatusSuspended: {model.StatusActive, model.StatusEmpty, model.StatusCorrupted},
}

// Transition describes a status change of a slot.
type Transition struct {
	SlotID string
	From   model.Status
	To     model.Status
}

// Listener is invoked after every successful status change.
type Listener func(slot *Slot, transition *Transition)

// CanTransit reports whether from -> to is an allowed transition.
func CanTransit(from, to model.Status) bool {
	for _, candidate := range rules[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func (s *Slot) transitTo(to model.Status) error {
	from := s.status
	if !CanTransit(from, to) {
		return fmt.Errorf("%w: %s -> %s on %s", ErrInvalidTransition, from, to, s.id)
	}
	s.status = to
	for _, listener := range s.listeners {
		listener(s, &Transition{SlotID: s.id, From: from, To: to})
	}
	return nil
}
