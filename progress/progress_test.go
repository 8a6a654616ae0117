package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/procslot/model"
	"github.com/viant/procslot/service/event"
)

func TestProgress_Update(t *testing.T) {
	var changes []Progress
	tracker := New("test", func(p Progress) { changes = append(changes, p) })
	tracker.Update(Delta{Created: 2})
	tracker.Update(Delta{Running: 1})

	snapshot := tracker.Snapshot()
	assert.Equal(t, 2, snapshot.CreatedProcesses)
	assert.Equal(t, 1, snapshot.RunningProcesses)
	require.Len(t, changes, 2)
	assert.Equal(t, 2, changes[0].CreatedProcesses)
	assert.Equal(t, 0, changes[0].RunningProcesses)

	tracker.OnChange(nil)
	tracker.Update(Delta{Ended: 1})
	assert.Len(t, changes, 2)

	var nilTracker *Progress
	nilTracker.Update(Delta{Created: 1})
	assert.Equal(t, 0, nilTracker.Snapshot().CreatedProcesses)
}

func TestProgress_Emit(t *testing.T) {
	testCases := []struct {
		name            string
		messages        []*event.Message
		expectRunning   int
		expectSuspended int
		expectEnded     int
		expectEvents    int
	}{
		{
			name: "started",
			messages: []*event.Message{
				event.NewProcessCreated("p1", "counter"),
				event.NewSlotStatusChanged("slot_0_0", model.StatusActive),
				event.NewProcessStarted("p1", "slot_0_0"),
			},
			expectRunning: 1,
		},
		{
			name: "suspended and resumed",
			messages: []*event.Message{
				event.NewProcessStarted("p1", "slot_0_0"),
				event.NewSlotStatusChanged("slot_0_0", model.StatusSuspended),
				event.NewSlotStatusChanged("slot_0_0", model.StatusActive),
				event.NewSlotStatusChanged("slot_0_0", model.StatusSuspended),
			},
			expectSuspended: 1,
		},
		{
			name: "unloaded",
			messages: []*event.Message{
				event.NewProcessStarted("p1", "slot_0_0"),
				event.NewProcessEvent("p1", "trick_won_1"),
				event.NewSlotStatusChanged("slot_0_0", model.StatusEmpty),
				event.NewProcessEnded("p1"),
			},
			expectEnded:  1,
			expectEvents: 1,
		},
		{
			name: "corrupted while suspended",
			messages: []*event.Message{
				event.NewProcessStarted("p1", "slot_0_0"),
				event.NewProcessStarted("p2", "slot_1_0"),
				event.NewSlotStatusChanged("slot_0_0", model.StatusSuspended),
				event.NewSlotStatusChanged("slot_0_0", model.StatusCorrupted),
			},
			expectRunning: 1,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tracker := New(tc.name, nil)
			for _, message := range tc.messages {
				tracker.Emit(context.Background(), message)
			}
			snapshot := tracker.Snapshot()
			assert.Equal(t, tc.expectRunning, snapshot.RunningProcesses)
			assert.Equal(t, tc.expectSuspended, snapshot.SuspendedProcesses)
			assert.Equal(t, tc.expectEnded, snapshot.EndedProcesses)
			assert.Equal(t, tc.expectEvents, snapshot.ProcessEvents)
		})
	}
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	tracker := New("ctx", nil)
	ctx := WithTracker(context.Background(), tracker)
	tracker.Update(Delta{Created: 1})
	snapshot, ok := GetSnapshot(ctx)
	assert.True(t, ok)
	assert.Equal(t, 1, snapshot.CreatedProcesses)
}
