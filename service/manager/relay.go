package manager

import (
	"context"

	"github.com/viant/procslot/model"
	"github.com/viant/procslot/service/event"
)

// relay is the emitter handed to a constructed process
type relay struct {
	processID string
	manager   *Service
}

func (r *relay) StateChanged(state *model.State) {
	r.manager.enqueue(event.NewProcessStateChanged(r.processID, state.Clone()))
}

func (r *relay) Event(tag string) {
	r.manager.enqueue(event.NewProcessEvent(r.processID, tag))
}

func (s *Service) enqueue(message *event.Message) {
	s.relayMux.Lock()
	s.relayed = append(s.relayed, message)
	s.relayMux.Unlock()
}

// flush emits buffered process notifications followed by extra
func (s *Service) flush(ctx context.Context, extra ...*event.Message) {
	s.relayMux.Lock()
	messages := s.relayed
	s.relayed = nil
	s.relayMux.Unlock()
	for _, message := range append(messages, extra...) {
		s.sink.Emit(ctx, message)
	}
}
