package event

import (
	"time"

	"github.com/viant/procslot/model"
)

// Type identifies a notification
type Type string

const (
	ProcessCreated       Type = "processCreated"
	ProcessStarted       Type = "processStarted"
	ProcessEnded         Type = "processEnded"
	ProcessStateChanged  Type = "processStateChanged"
	ProcessEvent         Type = "processEvent"
	SlotStatusChanged    Type = "slotStatusChanged"
	SlotUnlocked         Type = "slotUnlocked"
	SlotLocked           Type = "slotLocked"
	ResourcesChanged     Type = "resourcesChanged"
	MappingChanged       Type = "mappingChanged"
	ActiveProcessChanged Type = "activeProcessChanged"
)

// Context identifies what an event is about
type Context struct {
	Type      Type   `json:"type"`
	ProcessID string `json:"processId,omitempty"`
	SlotID    string `json:"slotId,omitempty"`
}

// Event wraps a payload with its context
type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

// NewEvent creates an event
func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}

// Notification is the payload of every subsystem event; only the fields
// relevant to the event type are set.
type Notification struct {
	Kind   string       `json:"kind,omitempty"`
	Status model.Status `json:"status,omitempty"`
	Used   *model.Usage `json:"used,omitempty"`
	State  *model.State `json:"state,omitempty"`
	Tag    string       `json:"tag,omitempty"`
}

// Message is a subsystem event
type Message = Event[Notification]

// Type returns the event type
func (e *Event[T]) Type() Type {
	if e == nil || e.Context == nil {
		return ""
	}
	return e.Context.Type
}

func newMessage(eventType Type, processID, slotID string, data Notification) *Message {
	return NewEvent(&Context{Type: eventType, ProcessID: processID, SlotID: slotID}, data)
}

// NewProcessCreated announces a constructed, not yet started process
func NewProcessCreated(processID, kind string) *Message {
	return newMessage(ProcessCreated, processID, "", Notification{Kind: kind})
}

// NewProcessStarted announces a process loaded into slotID
func NewProcessStarted(processID, slotID string) *Message {
	return newMessage(ProcessStarted, processID, slotID, Notification{})
}

// NewProcessEnded announces a torn down process
func NewProcessEnded(processID string) *Message {
	return newMessage(ProcessEnded, processID, "", Notification{})
}

// NewProcessStateChanged relays a process state change
func NewProcessStateChanged(processID string, state *model.State) *Message {
	return newMessage(ProcessStateChanged, processID, "", Notification{State: state})
}

// NewProcessEvent relays a free-form process event tag
func NewProcessEvent(processID, tag string) *Message {
	return newMessage(ProcessEvent, processID, "", Notification{Tag: tag})
}

// NewSlotStatusChanged announces a slot status transition
func NewSlotStatusChanged(slotID string, status model.Status) *Message {
	return newMessage(SlotStatusChanged, "", slotID, Notification{Status: status})
}

// NewSlotUnlocked announces a slot becoming available
func NewSlotUnlocked(slotID string) *Message {
	return newMessage(SlotUnlocked, "", slotID, Notification{})
}

// NewSlotLocked announces a slot withdrawn from allocation
func NewSlotLocked(slotID string) *Message {
	return newMessage(SlotLocked, "", slotID, Notification{})
}

// NewResourcesChanged announces new grid-wide usage totals
func NewResourcesChanged(used model.Usage) *Message {
	return newMessage(ResourcesChanged, "", "", Notification{Used: &used})
}

// NewMappingChanged announces a registry change; slotID is empty on unregister
func NewMappingChanged(processID, slotID string) *Message {
	return newMessage(MappingChanged, processID, slotID, Notification{})
}

// NewActiveProcessChanged announces a new active process; processID is empty when cleared
func NewActiveProcessChanged(processID string) *Message {
	return newMessage(ActiveProcessChanged, processID, "", Notification{})
}
