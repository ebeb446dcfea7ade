package statemachine

import "github.com/tiiuae/flightplanengine/internal/flightplan"

// endedState persists the outcome of a run and hands the plan back to
// the machine, which reopens it.
type endedState struct {
	base
	completed bool
}

func newEndedState(m *Machine) *endedState {
	return &endedState{base: base{m: m, k: kindEnded}}
}

func (s *endedState) setup(fp *flightplan.FlightPlan, completed bool) {
	s.fp = fp
	s.completed = completed
}

func (s *endedState) didEnter() {
	state := flightplan.StateStopped
	if s.completed {
		state = flightplan.StateCompleted
	}
	s.fp = s.m.manager.Update(s.fp, state)
	s.notify(flightPlanEnded{fp: s.fp, completed: s.completed})
}

func (s *endedState) isValidNextState(next stateKind) bool {
	return next == kindInitializing || next == kindIdle
}
