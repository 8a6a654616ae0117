package extension

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/viant/x"
)

// ErrInvalidFactory is returned when a kind or constructor is missing.
var ErrInvalidFactory = errors.New("extension: invalid factory")

// Factories maps process kinds to their factories and keeps a registry of
// their state types.
type Factories struct {
	factories map[string]*Factory
	types     *x.Registry
	mux       sync.RWMutex
}

// Lookup returns the factory of kind
func (f *Factories) Lookup(kind string) (*Factory, bool) {
	f.mux.RLock()
	defer f.mux.RUnlock()
	ret, ok := f.factories[kind]
	return ret, ok
}

// Register adds or replaces the factory of kind
func (f *Factories) Register(kind string, constructor Constructor, options ...Option) error {
	if kind == "" || constructor == nil {
		return fmt.Errorf("%w: kind=%q", ErrInvalidFactory, kind)
	}
	factory := &Factory{Kind: kind, New: constructor}
	for _, opt := range options {
		opt(factory)
	}
	factory.bind(f.types)
	f.mux.Lock()
	defer f.mux.Unlock()
	f.factories[kind] = factory
	return nil
}

// StateType returns a registered state type by its package qualified name
func (f *Factories) StateType(name string) (*x.Type, bool) {
	ret := f.types.Lookup(name)
	return ret, ret != nil
}

// NewState returns a pointer to a new value of a registered state type
func (f *Factories) NewState(name string) (interface{}, error) {
	aType, ok := f.StateType(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown state type %s", ErrInvalidFactory, name)
	}
	return reflect.New(aType.Type).Interface(), nil
}

// Kinds returns registered kinds in sorted order
func (f *Factories) Kinds() []string {
	f.mux.RLock()
	ret := make([]string, 0, len(f.factories))
	for kind := range f.factories {
		ret = append(ret, kind)
	}
	f.mux.RUnlock()
	sort.Strings(ret)
	return ret
}

// NewFactories creates a factory table
func NewFactories(factories ...*Factory) *Factories {
	ret := &Factories{factories: make(map[string]*Factory), types: x.NewRegistry()}
	for _, factory := range factories {
		if factory != nil && factory.Kind != "" && factory.New != nil {
			factory.bind(ret.types)
			ret.factories[factory.Kind] = factory
		}
	}
	return ret
}
