package statemachine

import "github.com/tiiuae/flightplanengine/internal/flightplan"

type stateKind int

const (
	kindIdle stateKind = iota
	kindInitializing
	kindEditable
	kindResumable
	kindStartedNotFlying
	kindStartedFlying
	kindEnded
)

func (k stateKind) String() string {
	switch k {
	case kindIdle:
		return "idle"
	case kindInitializing:
		return "initializing"
	case kindEditable:
		return "editable"
	case kindResumable:
		return "resumable"
	case kindStartedNotFlying:
		return "startedNotFlying"
	case kindStartedFlying:
		return "startedFlying"
	case kindEnded:
		return "ended"
	}
	return "unknown"
}

// state is one node of the machine. States never transition by
// themselves; they report events that the machine handles once the
// current event is done.
type state interface {
	kind() stateKind
	didEnter()
	willExit()
	isValidNextState(next stateKind) bool
	flightPlan() *flightplan.FlightPlan
	flightPlanWasUpdated(fp *flightplan.FlightPlan)
}

type base struct {
	m  *Machine
	k  stateKind
	fp *flightplan.FlightPlan
}

func (b *base) kind() stateKind {
	return b.k
}

func (b *base) flightPlan() *flightplan.FlightPlan {
	return b.fp
}

func (b *base) setFlightPlan(fp *flightplan.FlightPlan) {
	b.fp = fp
}

func (b *base) flightPlanWasUpdated(fp *flightplan.FlightPlan) {
	b.fp = fp
}

func (b *base) notify(ev event) {
	b.m.raise(b.k, ev)
}

func (b *base) didEnter() {}

func (b *base) willExit() {}
