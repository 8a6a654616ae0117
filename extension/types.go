package extension

import (
	"fmt"
	"reflect"

	"github.com/viant/procslot/model"
	"github.com/viant/x"
)

// Constructor builds a process of one kind. The emitter relays the process
// notifications to the manager.
type Constructor func(id string, params map[string]interface{}, emitter model.Emitter) (model.Process, error)

// Factory describes a process kind. StateType names the kind state type in
// the types registry of the owning Factories.
type Factory struct {
	Kind        string
	New         Constructor
	StateType   string
	Description string

	state *x.Type
	types *x.Registry
}

// NewState returns a pointer to a new value of the kind state type, or nil
// when no type was registered.
func (f *Factory) NewState() interface{} {
	if f.StateType == "" || f.types == nil {
		return nil
	}
	aType := f.types.Lookup(f.StateType)
	if aType == nil || aType.Type == nil {
		return nil
	}
	return reflect.New(aType.Type).Interface()
}

// DecodeState converts a state record into a value of the kind state type;
// without a registered type it returns a copy of the raw values.
func (f *Factory) DecodeState(state *model.State) (interface{}, error) {
	if !state.Matches(f.Kind) {
		return nil, fmt.Errorf("state of kind %q does not match %s", kindOf(state), f.Kind)
	}
	ret := f.NewState()
	if ret == nil {
		return state.Clone().Values, nil
	}
	if err := state.Decode(ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// bind registers the pending state type with types
func (f *Factory) bind(types *x.Registry) {
	f.types = types
	if f.state != nil {
		types.Register(f.state)
		f.StateType = f.state.Key()
	}
}

// TypeOf returns the x.Type of sample, dereferencing pointers
func TypeOf(sample interface{}) *x.Type {
	rType := reflect.TypeOf(sample)
	for rType != nil && rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	if rType == nil {
		return nil
	}
	return x.NewType(rType)
}

func kindOf(state *model.State) string {
	if state == nil {
		return ""
	}
	return state.Kind
}
