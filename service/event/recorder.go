package event

import (
	"context"
	"sync"
)

// Recorder keeps every emitted notification in memory
type Recorder struct {
	mux      sync.Mutex
	messages []*Message
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, message *Message) {
	r.mux.Lock()
	r.messages = append(r.messages, message)
	r.mux.Unlock()
}

// Messages returns recorded messages, optionally filtered by type
func (r *Recorder) Messages(types ...Type) []*Message {
	r.mux.Lock()
	defer r.mux.Unlock()
	var ret []*Message
	for _, message := range r.messages {
		if len(types) == 0 || containsType(types, message.Type()) {
			ret = append(ret, message)
		}
	}
	return ret
}

// Types returns the recorded event types in emission order
func (r *Recorder) Types() []Type {
	r.mux.Lock()
	defer r.mux.Unlock()
	ret := make([]Type, 0, len(r.messages))
	for _, message := range r.messages {
		ret = append(ret, message.Type())
	}
	return ret
}

// SlotIDs returns the slot ids of recorded messages of type t
func (r *Recorder) SlotIDs(t Type) []string {
	var ret []string
	for _, message := range r.Messages(t) {
		ret = append(ret, message.Context.SlotID)
	}
	return ret
}

// Reset forgets recorded messages
func (r *Recorder) Reset() {
	r.mux.Lock()
	r.messages = nil
	r.mux.Unlock()
}

func containsType(types []Type, t Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
