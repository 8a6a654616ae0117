package slot

// Option configures a Slot.
type Option func(s *Slot)

// WithSuspendMultiplier sets the CPU scale applied while suspended.
func WithSuspendMultiplier(multiplier float64) Option {
	return func(s *Slot) {
		s.suspendMultiplier = multiplier
	}
}

// WithUnlocked creates the slot in the empty status instead of locked.
func WithUnlocked(unlocked bool) Option {
	return func(s *Slot) {
		s.unlocked = unlocked
	}
}

// WithListeners registers status change listeners.
func WithListeners(listeners ...Listener) Option {
	return func(s *Slot) {
		s.listeners = append(s.listeners, listeners...)
	}
}
