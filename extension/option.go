package extension

// Option configures a Factory
type Option func(*Factory)

// WithState sets the Go type the kind state decodes into; it is added to
// the types registry when the factory is registered.
func WithState(sample interface{}) Option {
	return func(f *Factory) {
		f.state = TypeOf(sample)
	}
}

// WithDescription sets a human readable description
func WithDescription(description string) Option {
	return func(f *Factory) {
		f.Description = description
	}
}
