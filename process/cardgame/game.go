// Package cardgame provides the CardGame process kind: a trick-taking round
// that plays one trick per interval, announces each won trick and completes
// once the target number of tricks was played.
package cardgame

import (
	"fmt"
	"time"

	"github.com/viant/procslot/extension"
	"github.com/viant/procslot/model"
	"github.com/viant/toolbox"
)

// Kind is the process type tag
const Kind = "CardGame"

// Defaults
const (
	DefaultMemory   = 0.3
	DefaultCPU      = 0.2
	DefaultTarget   = 5
	DefaultInterval = time.Second
)

// State is the persisted game record
type State struct {
	Target    int
	Tricks    int
	ElapsedMs int
}

// Game represents a CardGame process
type Game struct {
	id           string
	requirements model.Requirements
	interval     time.Duration
	emitter      model.Emitter
	state        State
	elapsed      time.Duration
}

// New creates a game. Recognised params: memory, cpu, target and interval
// (a duration string or milliseconds).
func New(id string, params map[string]interface{}, emitter model.Emitter) (model.Process, error) {
	if emitter == nil {
		emitter = model.NopEmitter{}
	}
	ret := &Game{
		id:           id,
		requirements: model.Requirements{model.Memory: DefaultMemory, model.CPU: DefaultCPU},
		interval:     DefaultInterval,
		emitter:      emitter,
		state:        State{Target: DefaultTarget},
	}
	if v, ok := params["memory"]; ok {
		ret.requirements[model.Memory] = toolbox.AsFloat(v)
	}
	if v, ok := params["cpu"]; ok {
		ret.requirements[model.CPU] = toolbox.AsFloat(v)
	}
	if v, ok := params["target"]; ok {
		ret.state.Target = toolbox.AsInt(v)
	}
	if v, ok := params["interval"]; ok {
		interval, err := asDuration(v)
		if err != nil {
			return nil, err
		}
		ret.interval = interval
	}
	if ret.state.Target <= 0 {
		return nil, fmt.Errorf("invalid %s target: %d", Kind, ret.state.Target)
	}
	if ret.interval <= 0 {
		return nil, fmt.Errorf("invalid %s interval: %s", Kind, ret.interval)
	}
	return ret, nil
}

func asDuration(v interface{}) (time.Duration, error) {
	if text, ok := v.(string); ok {
		return time.ParseDuration(text)
	}
	return time.Duration(toolbox.AsInt(v)) * time.Millisecond, nil
}

// Register adds the CardGame kind to factories
func Register(factories *extension.Factories) error {
	return factories.Register(Kind, New,
		extension.WithState(&State{}),
		extension.WithDescription("trick-taking round completing after a target number of tricks"))
}

func (g *Game) ID() string { return g.id }

func (g *Game) Type() string { return Kind }

func (g *Game) Requirements() model.Requirements { return g.requirements }

// Initialize starts a fresh round or continues from a saved record
func (g *Game) Initialize(state *model.State) error {
	target := g.state.Target
	g.state = State{Target: target}
	g.elapsed = 0
	if state == nil {
		return nil
	}
	var saved State
	if err := state.Decode(&saved); err != nil {
		return err
	}
	if saved.Tricks < 0 || saved.ElapsedMs < 0 {
		return fmt.Errorf("corrupted %s state of %s", Kind, g.id)
	}
	if saved.Target > 0 {
		g.state.Target = saved.Target
	}
	g.state.Tricks = saved.Tricks
	g.state.ElapsedMs = saved.ElapsedMs
	g.elapsed = time.Duration(saved.ElapsedMs) * time.Millisecond
	return nil
}

func (g *Game) State() *model.State {
	state := model.NewState(Kind, g.id)
	state.Set("Target", g.state.Target)
	state.Set("Tricks", g.state.Tricks)
	state.Set("ElapsedMs", g.state.ElapsedMs)
	return state
}

// Update plays one trick per elapsed interval
func (g *Game) Update(delta time.Duration) {
	if g.Completed() || delta <= 0 {
		return
	}
	g.elapsed += delta
	g.state.ElapsedMs = int(g.elapsed / time.Millisecond)
	played := false
	for !g.Completed() && g.elapsed >= time.Duration(g.state.Tricks+1)*g.interval {
		g.state.Tricks++
		g.emitter.Event(fmt.Sprintf("trick_won_%d", g.state.Tricks))
		played = true
	}
	if played {
		g.emitter.StateChanged(g.State())
	}
}

func (g *Game) Cleanup() error { return nil }

func (g *Game) Completed() bool { return g.state.Tricks >= g.state.Target }
