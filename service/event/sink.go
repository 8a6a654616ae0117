package event

import "context"

// Sink receives subsystem notifications. Grid, registry and manager hold an
// injected sink; Emit must not block the caller.
type Sink interface {
	Emit(ctx context.Context, message *Message)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, message *Message)

func (f SinkFunc) Emit(ctx context.Context, message *Message) {
	f(ctx, message)
}

type nop struct{}

func (nop) Emit(context.Context, *Message) {}

// Nop discards notifications
var Nop Sink = nop{}

type multi []Sink

func (m multi) Emit(ctx context.Context, message *Message) {
	for _, sink := range m {
		sink.Emit(ctx, message)
	}
}

// Multi fans a notification out to every non nil sink in order
func Multi(sinks ...Sink) Sink {
	var ret multi
	for _, sink := range sinks {
		if sink != nil {
			ret = append(ret, sink)
		}
	}
	switch len(ret) {
	case 0:
		return Nop
	case 1:
		return ret[0]
	}
	return ret
}
