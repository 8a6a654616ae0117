package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/procslot/model"
	"github.com/viant/procslot/service/messaging"
	"github.com/viant/procslot/service/messaging/fs"
)

func TestNewMessages(t *testing.T) {
	testCases := []struct {
		name      string
		message   *Message
		eventType Type
		processID string
		slotID    string
	}{
		{name: "created", message: NewProcessCreated("CardGame/1", "CardGame"), eventType: ProcessCreated, processID: "CardGame/1"},
		{name: "started", message: NewProcessStarted("CardGame/1", "slot_0_0"), eventType: ProcessStarted, processID: "CardGame/1", slotID: "slot_0_0"},
		{name: "ended", message: NewProcessEnded("CardGame/1"), eventType: ProcessEnded, processID: "CardGame/1"},
		{name: "unlocked", message: NewSlotUnlocked("slot_1_0"), eventType: SlotUnlocked, slotID: "slot_1_0"},
		{name: "locked", message: NewSlotLocked("slot_1_0"), eventType: SlotLocked, slotID: "slot_1_0"},
		{name: "unmapped", message: NewMappingChanged("CardGame/1", ""), eventType: MappingChanged, processID: "CardGame/1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.eventType, tc.message.Type())
			assert.Equal(t, tc.processID, tc.message.Context.ProcessID)
			assert.Equal(t, tc.slotID, tc.message.Context.SlotID)
			assert.False(t, tc.message.CreatedAt.IsZero())
		})
	}

	used := NewResourcesChanged(model.Usage{Memory: 1, CPU: 0.5})
	require.NotNil(t, used.Data.Used)
	assert.Equal(t, 0.5, used.Data.Used.CPU)
	assert.Equal(t, "trick_won_2", NewProcessEvent("p", "trick_won_2").Data.Tag)
	assert.Equal(t, model.StatusActive, NewSlotStatusChanged("slot_0_0", model.StatusActive).Data.Status)
	var nilMessage *Message
	assert.Equal(t, Type(""), nilMessage.Type())
}

func TestBus(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()
	var all, slots []Type
	unsubscribeAll := bus.Subscribe(func(_ context.Context, m *Message) { all = append(all, m.Type()) })
	bus.Subscribe(func(_ context.Context, m *Message) { slots = append(slots, m.Type()) }, SlotUnlocked, SlotLocked)
	assert.Equal(t, 2, bus.Len())

	bus.Emit(ctx, NewSlotUnlocked("slot_0_1"))
	bus.Emit(ctx, NewProcessEnded("p"))
	unsubscribeAll()
	bus.Emit(ctx, NewSlotLocked("slot_0_1"))

	assert.Equal(t, []Type{SlotUnlocked, ProcessEnded}, all)
	assert.Equal(t, []Type{SlotUnlocked, SlotLocked}, slots)
	assert.Equal(t, 1, bus.Len())
}

func TestMulti(t *testing.T) {
	first, second := NewRecorder(), NewRecorder()
	sink := Multi(first, nil, second)
	sink.Emit(context.Background(), NewSlotUnlocked("slot_0_0"))
	assert.Equal(t, []Type{SlotUnlocked}, first.Types())
	assert.Equal(t, []Type{SlotUnlocked}, second.Types())

	assert.Equal(t, Nop, Multi())
	assert.Equal(t, Sink(first), Multi(nil, first))
}

func TestRecorder(t *testing.T) {
	recorder := NewRecorder()
	ctx := context.Background()
	recorder.Emit(ctx, NewSlotUnlocked("slot_1_0"))
	recorder.Emit(ctx, NewSlotUnlocked("slot_0_1"))
	recorder.Emit(ctx, NewProcessStarted("p", "slot_0_0"))

	assert.Equal(t, []string{"slot_1_0", "slot_0_1"}, recorder.SlotIDs(SlotUnlocked))
	assert.Len(t, recorder.Messages(), 3)
	assert.Len(t, recorder.Messages(ProcessStarted), 1)
	recorder.Reset()
	assert.Empty(t, recorder.Types())
}

func TestService(t *testing.T) {
	testCases := []struct {
		name      string
		vendor    messaging.Vendor
		options   func(t *testing.T) []Option
		expectErr bool
	}{
		{
			name:    "memory",
			vendor:  messaging.VendorMemory,
			options: func(t *testing.T) []Option { return nil },
		},
		{
			name:   "fs",
			vendor: messaging.VendorFS,
			options: func(t *testing.T) []Option {
				base := t.TempDir()
				return []Option{WithFsQueueConfig(func(name string) fs.Config {
					return fs.Config{BasePath: base + "/" + name, MaxRetries: 1}
				})}
			},
		},
		{
			name:      "fs without config",
			vendor:    messaging.VendorFS,
			options:   func(t *testing.T) []Option { return nil },
			expectErr: true,
		},
		{
			name:      "unsupported",
			vendor:    "kafka",
			options:   func(t *testing.T) []Option { return nil },
			expectErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			options := append(tc.options(t), WithPollInterval(time.Millisecond))
			service, err := New(tc.vendor, options...)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			ctx := context.Background()

			var mux sync.Mutex
			var received []string
			done := make(chan struct{})
			service.SetListener(ctx, func(_ context.Context, m *Message) {
				mux.Lock()
				defer mux.Unlock()
				received = append(received, m.Context.SlotID)
				if len(received) == 3 {
					close(done)
				}
			})
			for _, slotID := range []string{"slot_0_0", "slot_1_0", "slot_0_1"} {
				service.Emit(ctx, NewSlotUnlocked(slotID))
			}
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for events")
			}
			service.Close()
			mux.Lock()
			defer mux.Unlock()
			assert.Equal(t, []string{"slot_0_0", "slot_1_0", "slot_0_1"}, received)
		})
	}
}
