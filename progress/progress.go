package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/procslot/model"
	"github.com/viant/procslot/service/event"
)

// Delta represents an incremental counter change. The fields are signed, so
// a transition moves one unit out of a counter and into another.
type Delta struct {
	Created   int
	Running   int
	Suspended int
	Ended     int
	Events    int
}

// Progress keeps aggregated process lifecycle counters of one manager. It is
// safe for concurrent use.
type Progress struct {
	Name      string
	StartedAt time.Time

	CreatedProcesses   int
	RunningProcesses   int
	SuspendedProcesses int
	EndedProcesses     int
	ProcessEvents      int

	sync.Mutex
	onChange func(Progress)
	holders  map[string]*holder
}

// New creates a tracker
func New(name string, onChange func(Progress)) *Progress {
	return &Progress{Name: name, StartedAt: time.Now(), onChange: onChange}
}

// Update applies the delta and invokes the change callback outside the
// critical section.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.Lock()
	p.apply(d)
	snapshot := p.copy()
	cb := p.onChange
	p.Unlock()
	if cb != nil {
		cb(snapshot)
	}
}

func (p *Progress) apply(d Delta) {
	p.CreatedProcesses += d.Created
	p.RunningProcesses += d.Running
	p.SuspendedProcesses += d.Suspended
	p.EndedProcesses += d.Ended
	p.ProcessEvents += d.Events
}

// Snapshot returns a copy of the tracker suitable for read-only inspection.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.Lock()
	defer p.Unlock()
	return p.copy()
}

func (p *Progress) copy() Progress {
	return Progress{
		Name:               p.Name,
		StartedAt:          p.StartedAt,
		CreatedProcesses:   p.CreatedProcesses,
		RunningProcesses:   p.RunningProcesses,
		SuspendedProcesses: p.SuspendedProcesses,
		EndedProcesses:     p.EndedProcesses,
		ProcessEvents:      p.ProcessEvents,
	}
}

// OnChange registers a callback invoked after every Update; nil disables it.
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.Lock()
	p.onChange = cb
	p.Unlock()
}

type holder struct {
	processID string
	suspended bool
}

// Emit derives counter changes from subsystem notifications, so a tracker
// can be attached as an event sink. Suspension is observed through the
// status of the slot holding a process.
func (p *Progress) Emit(_ context.Context, message *event.Message) {
	if p == nil || message == nil || message.Context == nil {
		return
	}
	p.Lock()
	d, ok := p.derive(message)
	p.Unlock()
	if ok {
		p.Update(d)
	}
}

func (p *Progress) derive(message *event.Message) (Delta, bool) {
	var d Delta
	if p.holders == nil {
		p.holders = map[string]*holder{}
	}
	slotID := message.Context.SlotID
	switch message.Type() {
	case event.ProcessCreated:
		d.Created = 1
	case event.ProcessStarted:
		d.Running = 1
		p.holders[slotID] = &holder{processID: message.Context.ProcessID}
	case event.ProcessEnded:
		d.Ended = 1
		for id, h := range p.holders {
			if h.processID == message.Context.ProcessID {
				d = d.release(h)
				delete(p.holders, id)
			}
		}
	case event.ProcessEvent:
		d.Events = 1
	case event.SlotStatusChanged:
		h, ok := p.holders[slotID]
		if !ok {
			return d, false
		}
		switch message.Data.Status {
		case model.StatusSuspended:
			if !h.suspended {
				h.suspended = true
				d.Running, d.Suspended = -1, 1
			}
		case model.StatusActive:
			if h.suspended {
				h.suspended = false
				d.Running, d.Suspended = 1, -1
			}
		case model.StatusCorrupted, model.StatusEmpty:
			d = d.release(h)
			delete(p.holders, slotID)
		}
	default:
		return d, false
	}
	return d, true
}

func (d Delta) release(h *holder) Delta {
	if h.suspended {
		d.Suspended--
	} else {
		d.Running--
	}
	return d
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithTracker embeds the tracker in a derived context
func WithTracker(ctx context.Context, tracker *Progress) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, trackerKey, tracker)
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// GetSnapshot combines FromContext and Snapshot.
func GetSnapshot(ctx context.Context) (Progress, bool) {
	if tr, ok := FromContext(ctx); ok {
		return tr.Snapshot(), true
	}
	return Progress{}, false
}
