package cardgame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/viant/procslot/extension"
	"github.com/viant/procslot/model"
)

type emitter struct {
	mock.Mock
}

func (e *emitter) StateChanged(state *model.State) { e.Called(state) }

func (e *emitter) Event(tag string) { e.Called(tag) }

func TestNew(t *testing.T) {
	testCases := []struct {
		name         string
		params       map[string]interface{}
		expectReq    model.Requirements
		expectTarget int
		expectErr    bool
	}{
		{name: "defaults", expectReq: model.Requirements{model.Memory: 0.3, model.CPU: 0.2}, expectTarget: 5},
		{name: "custom", params: map[string]interface{}{"memory": 1.0, "cpu": "0.5", "target": 3, "interval": "10ms"}, expectReq: model.Requirements{model.Memory: 1.0, model.CPU: 0.5}, expectTarget: 3},
		{name: "zero target", params: map[string]interface{}{"target": 0}, expectErr: true},
		{name: "bad interval", params: map[string]interface{}{"interval": "soon"}, expectErr: true},
		{name: "negative interval", params: map[string]interface{}{"interval": -5}, expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New("CardGame/1", tc.params, nil)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Kind, p.Type())
			assert.Equal(t, tc.expectReq, p.Requirements())
			assert.Equal(t, tc.expectTarget, p.(*Game).state.Target)
		})
	}
}

func TestGame_Update(t *testing.T) {
	events := &emitter{}
	events.On("Event", "trick_won_1").Once()
	events.On("Event", "trick_won_2").Once()
	events.On("StateChanged", mock.Anything).Twice()

	p, err := New("CardGame/1", map[string]interface{}{"target": 2, "interval": "100ms"}, events)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(nil))

	p.Update(50 * time.Millisecond)
	assert.False(t, p.Completed())
	p.Update(60 * time.Millisecond)
	assert.Equal(t, 1, p.State().Int("Tricks"))
	p.Update(time.Second)
	assert.True(t, p.Completed())
	p.Update(time.Second)
	assert.Equal(t, 2, p.State().Int("Tricks"))
	events.AssertExpectations(t)
}

func TestGame_RoundTrip(t *testing.T) {
	p, err := New("CardGame/1", map[string]interface{}{"target": 4, "interval": 100}, nil)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(nil))
	p.Update(250 * time.Millisecond)
	saved := p.State()

	reloaded, err := New("CardGame/1", nil, nil)
	require.NoError(t, err)
	require.NoError(t, reloaded.Initialize(saved.Clone()))
	assert.Equal(t, saved, reloaded.State())
	reloaded.Update(200 * time.Millisecond)
	assert.Equal(t, 4, reloaded.State().Int("Tricks"))
	assert.True(t, reloaded.Completed())
}

func TestRegister(t *testing.T) {
	factories := extension.NewFactories()
	require.NoError(t, Register(factories))
	factory, ok := factories.Lookup(Kind)
	require.True(t, ok)

	p, err := factory.New("CardGame/1", map[string]interface{}{"target": 3}, nil)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(nil))
	p.Update(2 * time.Second)

	decoded, err := factory.DecodeState(p.State())
	require.NoError(t, err)
	assert.Equal(t, &State{Target: 3, Tricks: 2, ElapsedMs: 2000}, decoded)
}
