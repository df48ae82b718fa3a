package workflow

import "fmt"

// State is a render job lifecycle state.
type State string

const (
	StateIdle                 State = "idle"
	StateProbing              State = "probing"
	StateBundling             State = "bundling"
	StateSelectingComposition State = "selecting_composition"
	StateRendering            State = "rendering"
	StateComplete             State = "complete"
	StateFailed               State = "failed"
)

type stateTransition struct {
	from State
	to   State
}

var renderTransitions = []stateTransition{
	{from: StateIdle, to: StateProbing},
	{from: StateProbing, to: StateBundling},
	{from: StateBundling, to: StateSelectingComposition},
	{from: StateSelectingComposition, to: StateRendering},
	{from: StateRendering, to: StateComplete},
	{from: StateProbing, to: StateFailed},
	{from: StateBundling, to: StateFailed},
	{from: StateSelectingComposition, to: StateFailed},
	{from: StateRendering, to: StateFailed},
}

var transitionSet = func() map[stateTransition]struct{} {
	set := make(map[stateTransition]struct{}, len(renderTransitions))
	for _, t := range renderTransitions {
		set[t] = struct{}{}
	}
	return set
}()

// Terminal reports whether no transitions leave s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// machine tracks one job's state and the path it took.
type machine struct {
	state   State
	history []State
}

func newMachine() *machine {
	return &machine{state: StateIdle, history: []State{StateIdle}}
}

func (m *machine) advance(to State) error {
	if _, ok := transitionSet[stateTransition{from: m.state, to: to}]; !ok {
		return fmt.Errorf("invalid render transition %s -> %s", m.state, to)
	}
	m.state = to
	m.history = append(m.history, to)
	return nil
}
