package model

import (
	"fmt"

	"github.com/viant/toolbox"
)

// StateVersion is the current layout version of State.
const StateVersion = 1

// State is the versioned key-value record a process captures with State()
// and is re-initialised from with Initialize. Kind matches the process type
// tag so that a record is only ever restored into a process of the same kind.
type State struct {
	Kind      string                 `json:"kind" yaml:"kind"`
	Version   int                    `json:"version" yaml:"version"`
	ProcessID string                 `json:"processId,omitempty" yaml:"processId,omitempty"`
	Values    map[string]interface{} `json:"values,omitempty" yaml:"values,omitempty"`
}

// NewState creates an empty state record for the given process kind.
func NewState(kind, processID string) *State {
	return &State{
		Kind:      kind,
		Version:   StateVersion,
		ProcessID: processID,
		Values:    make(map[string]interface{}),
	}
}

// Get returns a value by key.
func (s *State) Get(key string) (interface{}, bool) {
	if s == nil || s.Values == nil {
		return nil, false
	}
	v, ok := s.Values[key]
	return v, ok
}

// Set adds or replaces a value.
func (s *State) Set(key string, value interface{}) {
	if s.Values == nil {
		s.Values = make(map[string]interface{})
	}
	s.Values[key] = value
}

// Int returns an integer value, converting numeric representations.
func (s *State) Int(key string) int {
	v, ok := s.Get(key)
	if !ok {
		return 0
	}
	return toolbox.AsInt(v)
}

// Matches reports whether the record can be restored into a process of kind.
func (s *State) Matches(kind string) bool {
	return s != nil && s.Kind == kind
}

// Clone returns a deep copy; nested maps and slices are copied so that a
// captured record is never aliased by the live process.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	ret := &State{Kind: s.Kind, Version: s.Version, ProcessID: s.ProcessID}
	if s.Values != nil {
		ret.Values = cloneMap(s.Values)
	}
	return ret
}

// Decode converts Values into target (a pointer to a struct or map).
func (s *State) Decode(target interface{}) error {
	if s == nil {
		return fmt.Errorf("state is nil")
	}
	if s.Version > StateVersion {
		return fmt.Errorf("unsupported state version %d for kind %s", s.Version, s.Kind)
	}
	if err := toolbox.DefaultConverter.AssignConverted(target, s.Values); err != nil {
		return fmt.Errorf("failed to decode %s state: %w", s.Kind, err)
	}
	return nil
}

func cloneMap(src map[string]interface{}) map[string]interface{} {
	ret := make(map[string]interface{}, len(src))
	for k, v := range src {
		ret[k] = cloneValue(v)
	}
	return ret
}

func cloneValue(v interface{}) interface{} {
	switch actual := v.(type) {
	case map[string]interface{}:
		return cloneMap(actual)
	case []interface{}:
		ret := make([]interface{}, len(actual))
		for i, item := range actual {
			ret[i] = cloneValue(item)
		}
		return ret
	case []string:
		return append([]string(nil), actual...)
	case []int:
		return append([]int(nil), actual...)
	default:
		return v
	}
}
