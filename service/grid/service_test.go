package grid

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/procslot/internal/testproc"
	"github.com/viant/procslot/model"
	"github.com/viant/procslot/runtime/slot"
	"github.com/viant/procslot/service/event"
)

func allPositions(width, height int) []model.Position {
	var ret []model.Position
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			ret = append(ret, model.Position{X: x, Y: y})
		}
	}
	return ret
}

func multiplier(v float64) *float64 {
	return &v
}

func newGrid(t *testing.T, unlocked []model.Position) (*Service, *event.Recorder) {
	recorder := event.NewRecorder()
	srv, err := New(Config{Width: 2, Height: 2, Memory: 8.0, CPU: 10.0, Unlocked: unlocked}, WithSink(recorder))
	require.NoError(t, err)
	return srv, recorder
}

func TestNew(t *testing.T) {
	srv, _ := newGrid(t, []model.Position{{X: 0, Y: 0}})
	assert.Equal(t, []string{"slot_0_0", "slot_1_0", "slot_0_1", "slot_1_1"}, srv.SlotIDs())
	assert.Equal(t, model.Usage{Memory: 2.0, CPU: 2.5}, srv.Capacity())
	assert.Equal(t, 8.0, srv.AvailableMemory())
	assert.Equal(t, 10.0, srv.AvailableCPU())

	status, ok := srv.Status("slot_0_0")
	assert.True(t, ok)
	assert.Equal(t, model.StatusEmpty, status)
	status, _ = srv.Status("slot_1_1")
	assert.Equal(t, model.StatusLocked, status)
	_, ok = srv.Status("slot_9_9")
	assert.False(t, ok)
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name      string
		config    Config
		expectErr bool
	}{
		{name: "default", config: DefaultConfig()},
		{name: "zero width", config: Config{Width: 0, Height: 2, Memory: 1, CPU: 1}, expectErr: true},
		{name: "negative budget", config: Config{Width: 1, Height: 1, Memory: -1, CPU: 1}, expectErr: true},
		{name: "multiplier out of range", config: Config{Width: 1, Height: 1, Memory: 1, CPU: 1, SuspendMultiplier: multiplier(2)}, expectErr: true},
		{name: "multiplier negative", config: Config{Width: 1, Height: 1, Memory: 1, CPU: 1, SuspendMultiplier: multiplier(-0.1)}, expectErr: true},
		{name: "multiplier zero", config: Config{Width: 1, Height: 1, Memory: 1, CPU: 1, SuspendMultiplier: multiplier(0)}},
		{name: "unlocked outside", config: Config{Width: 1, Height: 1, Memory: 1, CPU: 1, Unlocked: []model.Position{{X: 1, Y: 0}}}, expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.expectErr {
				assert.Error(t, err)
				_, err = New(tc.config)
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestService_TryLoad(t *testing.T) {
	testCases := []struct {
		name         string
		unlocked     []model.Position
		requirements model.Requirements
		expectOK     bool
		expectSlot   string
	}{
		{
			name:         "first unlocked empty slot",
			unlocked:     []model.Position{{X: 0, Y: 0}},
			requirements: testproc.Req(1.0, 0.5),
			expectOK:     true,
			expectSlot:   "slot_0_0",
		},
		{
			name:         "row-major order skips locked",
			unlocked:     []model.Position{{X: 1, Y: 1}, {X: 0, Y: 1}},
			requirements: testproc.Req(1.0, 0.5),
			expectOK:     true,
			expectSlot:   "slot_0_1",
		},
		{
			name:         "exceeds every slot capacity",
			unlocked:     allPositions(2, 2),
			requirements: testproc.Req(3.0, 1.0),
		},
		{
			name:         "exceeds pool",
			unlocked:     allPositions(2, 2),
			requirements: testproc.Req(9.0, 1.0),
		},
		{
			name:         "missing cpu",
			unlocked:     allPositions(2, 2),
			requirements: model.Requirements{model.Memory: 0.1},
		},
		{
			name:         "no unlocked slot",
			requirements: testproc.Req(0.1, 0.1),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv, recorder := newGrid(t, tc.unlocked)
			before := srv.Snapshot()
			p := testproc.New("p1", "Counter", tc.requirements)

			slotID, ok, err := srv.TryLoad(context.Background(), p)
			require.NoError(t, err)
			assert.Equal(t, tc.expectOK, ok)
			if !tc.expectOK {
				assert.Empty(t, slotID)
				assert.Equal(t, before, srv.Snapshot())
				assert.Empty(t, recorder.Types())
				assert.Empty(t, p.Initialized)
				return
			}
			assert.Equal(t, tc.expectSlot, slotID)
			snapshot, found := srv.Slot(slotID)
			require.True(t, found)
			assert.Equal(t, model.StatusActive, snapshot.Status)
			assert.Equal(t, "p1", snapshot.ProcessID)
			assert.Equal(t, tc.requirements.Usage(1), srv.Used())
		})
	}
}

func TestService_TryLoad_PoolExhausted(t *testing.T) {
	srv, recorder := newGrid(t, allPositions(2, 2))
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, ok, err := srv.TryLoad(ctx, testproc.New(fmt.Sprintf("p%d", i), "Counter", testproc.Req(2.0, 1.0)))
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.InDelta(t, 0, srv.AvailableMemory(), model.Epsilon)
	recorder.Reset()
	before := srv.Snapshot()

	_, ok, err := srv.TryLoad(ctx, testproc.New("late", "Counter", testproc.Req(0.5, 0.5)))
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, srv.Snapshot())
	assert.Empty(t, recorder.Types())
}

func TestService_TryLoad_AlreadyLoaded(t *testing.T) {
	srv, _ := newGrid(t, allPositions(2, 2))
	ctx := context.Background()
	p := testproc.New("p1", "Counter", testproc.Req(0.5, 0.5))
	_, ok, err := srv.TryLoad(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)

	slotID, ok, err := srv.TryLoad(ctx, p)
	assert.ErrorIs(t, err, ErrAlreadyLoaded)
	assert.False(t, ok)
	assert.Equal(t, "slot_0_0", slotID)
}

func TestService_TryLoad_Fault(t *testing.T) {
	srv, recorder := newGrid(t, allPositions(2, 2))
	ctx := context.Background()
	faulty := testproc.New("bad", "Counter", testproc.Req(0.5, 0.5))
	faulty.InitErr = errors.New("boom")

	slotID, ok, err := srv.TryLoad(ctx, faulty)
	assert.ErrorIs(t, err, slot.ErrProcessFault)
	assert.False(t, ok)
	assert.Equal(t, "slot_0_0", slotID)
	status, _ := srv.Status(slotID)
	assert.Equal(t, model.StatusCorrupted, status)
	assert.Equal(t, []event.Type{event.SlotStatusChanged, event.SlotStatusChanged}, recorder.Types())
	assert.True(t, srv.Used().IsZero())

	slotID, ok, err = srv.TryLoad(ctx, testproc.New("good", "Counter", testproc.Req(0.5, 0.5)))
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "slot_0_0", slotID)
}

func TestService_Events(t *testing.T) {
	srv, recorder := newGrid(t, []model.Position{{X: 0, Y: 0}})
	ctx := context.Background()
	_, ok, err := srv.TryLoad(ctx, testproc.New("p1", "Counter", testproc.Req(1.0, 0.5)))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []event.Type{event.SlotStatusChanged, event.SlotStatusChanged, event.ResourcesChanged}, recorder.Types())
	statuses := recorder.Messages(event.SlotStatusChanged)
	assert.Equal(t, model.StatusLoading, statuses[0].Data.Status)
	assert.Equal(t, model.StatusActive, statuses[1].Data.Status)
	used := recorder.Messages(event.ResourcesChanged)[0].Data.Used
	assert.Equal(t, model.Usage{Memory: 1.0, CPU: 0.5}, *used)
}

func TestService_Free(t *testing.T) {
	srv, recorder := newGrid(t, allPositions(2, 2))
	ctx := context.Background()
	p := testproc.New("p1", "Counter", testproc.Req(1.0, 0.5))
	slotID, _, _ := srv.TryLoad(ctx, p)
	recorder.Reset()

	freed, err := srv.Free(ctx, slotID)
	assert.NoError(t, err)
	assert.True(t, freed)
	assert.Equal(t, 1, p.Cleanups)
	assert.True(t, srv.Used().IsZero())
	assert.Equal(t, []event.Type{event.SlotStatusChanged, event.ResourcesChanged}, recorder.Types())

	freed, err = srv.Free(ctx, slotID)
	assert.NoError(t, err)
	assert.False(t, freed)
	freed, err = srv.Free(ctx, "slot_7_7")
	assert.NoError(t, err)
	assert.False(t, freed)

	snapshot, _ := srv.Slot(slotID)
	require.NotNil(t, snapshot.SavedState)
	assert.Equal(t, "p1", snapshot.SavedState.ProcessID)
}

func TestService_Free_CleanupFault(t *testing.T) {
	srv, _ := newGrid(t, allPositions(2, 2))
	ctx := context.Background()
	p := testproc.New("p1", "Counter", testproc.Req(1.0, 0.5))
	p.CleanupErr = errors.New("leak")
	slotID, _, _ := srv.TryLoad(ctx, p)

	freed, err := srv.Free(ctx, slotID)
	assert.True(t, freed)
	assert.ErrorIs(t, err, slot.ErrProcessFault)
	status, _ := srv.Status(slotID)
	assert.Equal(t, model.StatusCorrupted, status)
	assert.True(t, srv.Used().IsZero())

	freed, err = srv.Free(ctx, slotID)
	assert.True(t, freed)
	assert.NoError(t, err)
	status, _ = srv.Status(slotID)
	assert.Equal(t, model.StatusEmpty, status)
}

func TestService_UnlockLock(t *testing.T) {
	srv, recorder := newGrid(t, []model.Position{{X: 0, Y: 0}})
	ctx := context.Background()

	assert.False(t, srv.Unlock(ctx, "slot_0_0"))
	assert.False(t, srv.Unlock(ctx, "slot_5_5"))
	assert.True(t, srv.Unlock(ctx, "slot_1_1"))
	assert.Equal(t, []event.Type{event.SlotStatusChanged, event.SlotUnlocked}, recorder.Types())
	recorder.Reset()

	locked, err := srv.Lock(ctx, "slot_1_1")
	assert.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, []event.Type{event.SlotStatusChanged, event.SlotLocked}, recorder.Types())

	locked, err = srv.Lock(ctx, "slot_1_1")
	assert.NoError(t, err)
	assert.False(t, locked)

	slotID, _, _ := srv.TryLoad(ctx, testproc.New("p1", "Counter", testproc.Req(1.0, 0.5)))
	locked, err = srv.Lock(ctx, slotID)
	assert.ErrorIs(t, err, slot.ErrInvalidOperation)
	assert.False(t, locked)
	status, _ := srv.Status(slotID)
	assert.Equal(t, model.StatusActive, status)

	locked, err = srv.Lock(ctx, "slot_8_8")
	assert.NoError(t, err)
	assert.False(t, locked)
}

func TestService_UnlockNext(t *testing.T) {
	srv, recorder := newGrid(t, []model.Position{{X: 0, Y: 0}})
	ctx := context.Background()

	assert.Equal(t, []string{"slot_1_0", "slot_0_1"}, srv.UnlockNext(ctx, 2))
	assert.Equal(t, []string{"slot_1_0", "slot_0_1"}, recorder.SlotIDs(event.SlotUnlocked))
	status, _ := srv.Status("slot_1_1")
	assert.Equal(t, model.StatusLocked, status)

	assert.Equal(t, []string{"slot_1_1"}, srv.UnlockNext(ctx, 2))
	assert.Empty(t, srv.UnlockNext(ctx, 2))
	assert.Empty(t, srv.UnlockNext(ctx, 0))
}

func TestService_SuspendResume(t *testing.T) {
	srv, _ := newGrid(t, allPositions(2, 2))
	ctx := context.Background()
	p := testproc.New("p1", "Counter", testproc.Req(0.3, 0.2))
	slotID, ok, err := srv.TryLoad(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)

	suspended, err := srv.Suspend(ctx, slotID)
	require.NoError(t, err)
	assert.True(t, suspended)
	used := srv.Used()
	assert.InDelta(t, 0.3, used.Memory, model.Epsilon)
	assert.InDelta(t, 0.02, used.CPU, model.Epsilon)

	require.NoError(t, srv.Advance(ctx, time.Millisecond))
	assert.Equal(t, 0, p.Updates)

	resumed, err := srv.Resume(ctx, slotID)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, model.Usage{Memory: 0.3, CPU: 0.2}, srv.Used())

	resumed, err = srv.Resume(ctx, slotID)
	assert.ErrorIs(t, err, slot.ErrInvalidOperation)
	assert.False(t, resumed)

	suspended, err = srv.Suspend(ctx, "slot_4_4")
	assert.NoError(t, err)
	assert.False(t, suspended)
}

func TestService_Suspend_Multiplier(t *testing.T) {
	testCases := []struct {
		name      string
		value     *float64
		expectCPU float64
	}{
		{name: "unset", expectCPU: 0.02},
		{name: "half", value: multiplier(0.5), expectCPU: 0.1},
		{name: "zero", value: multiplier(0), expectCPU: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv, err := New(Config{Width: 1, Height: 1, Memory: 1, CPU: 1, SuspendMultiplier: tc.value, Unlocked: allPositions(1, 1)})
			require.NoError(t, err)
			ctx := context.Background()
			slotID, ok, err := srv.TryLoad(ctx, testproc.New("p1", "Counter", testproc.Req(0.3, 0.2)))
			require.NoError(t, err)
			require.True(t, ok)
			_, err = srv.Suspend(ctx, slotID)
			require.NoError(t, err)
			assert.InDelta(t, 0.3, srv.Used().Memory, model.Epsilon)
			assert.InDelta(t, tc.expectCPU, srv.Used().CPU, model.Epsilon)
		})
	}
}

func TestService_Advance(t *testing.T) {
	srv, _ := newGrid(t, allPositions(2, 2))
	ctx := context.Background()
	healthy := testproc.New("p1", "Counter", testproc.Req(0.5, 0.5))
	faulty := testproc.New("p2", "Counter", testproc.Req(0.5, 0.5))
	_, _, _ = srv.TryLoad(ctx, healthy)
	faultySlot, _, _ := srv.TryLoad(ctx, faulty)
	faulty.PanicOnUpdate = true

	err := srv.Advance(ctx, time.Millisecond)
	assert.ErrorIs(t, err, slot.ErrProcessFault)
	assert.Equal(t, 1, healthy.Updates)
	status, _ := srv.Status(faultySlot)
	assert.Equal(t, model.StatusCorrupted, status)

	require.NoError(t, srv.Advance(ctx, time.Millisecond))
	assert.Equal(t, 2, healthy.Updates)
}

func TestService_SinkReentry(t *testing.T) {
	bus := event.NewBus()
	srv, err := New(Config{Width: 2, Height: 1, Memory: 2, CPU: 2, Unlocked: []model.Position{{X: 0, Y: 0}}}, WithSink(bus))
	require.NoError(t, err)
	var observed []float64
	bus.Subscribe(func(context.Context, *event.Message) {
		observed = append(observed, srv.AvailableMemory())
	}, event.ResourcesChanged)

	_, ok, err := srv.TryLoad(context.Background(), testproc.New("p1", "Counter", testproc.Req(0.5, 0.5)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{1.5}, observed)
}

func TestService_Invariants(t *testing.T) {
	srv, err := New(Config{Width: 3, Height: 3, Memory: 9, CPU: 9, Unlocked: allPositions(3, 3)})
	require.NoError(t, err)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(7))
	capacity := srv.Capacity()
	ids := srv.SlotIDs()

	for i := 0; i < 500; i++ {
		slotID := ids[rnd.Intn(len(ids))]
		switch rnd.Intn(5) {
		case 0, 1:
			p := testproc.New(fmt.Sprintf("p%d", i), "Counter", testproc.Req(rnd.Float64()*1.5, rnd.Float64()*1.5))
			_, _, err = srv.TryLoad(ctx, p)
		case 2:
			_, err = srv.Free(ctx, slotID)
		case 3:
			_, err = srv.Suspend(ctx, slotID)
		case 4:
			_, err = srv.Resume(ctx, slotID)
		}
		if err != nil {
			require.ErrorIs(t, err, slot.ErrInvalidOperation)
		}

		used := srv.Used()
		require.True(t, used.LessThanOrEqual(srv.Total()), "step %d: %+v", i, used)
		for _, snapshot := range srv.Snapshot() {
			usage := model.Usage{Memory: snapshot.MemoryUsage, CPU: snapshot.CPUUsage}
			require.True(t, usage.LessThanOrEqual(capacity), "step %d: %s %+v", i, snapshot.ID, usage)
		}
	}
}
