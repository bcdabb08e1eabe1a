package pipeline

import (
	"errors"
	"fmt"
)

// State is a step of the per-turn control flow.
type State int

const (
	StateDecide State = iota
	StateRetrieve
	StateGenerate
	StateDone
)

func (s State) String() string {
	switch s {
	case StateDecide:
		return "decide"
	case StateRetrieve:
		return "retrieve"
	case StateGenerate:
		return "generate"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrRetrievalBudget is returned when a turn tries to retrieve twice.
var ErrRetrievalBudget = errors.New("retrieval already performed this turn")

// ErrEmptyEvidence marks a generation step that had nothing to answer from.
var ErrEmptyEvidence = errors.New("no evidence survived filtering")

// transitions lists the legal successor states.
var transitions = map[State][]State{
	StateDecide:   {StateRetrieve, StateDone},
	StateRetrieve: {StateGenerate},
	StateGenerate: {StateDone},
}

// transition validates a move between states.
func transition(from, to State) (State, error) {
	for _, s := range transitions[from] {
		if s == to {
			return to, nil
		}
	}
	return from, fmt.Errorf("illegal transition %s -> %s", from, to)
}
