package statemachine

import (
	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/pubsub"
)

// resumableState holds an interrupted execution. It is not editable;
// ForceEditable swaps it for the project's template.
type resumableState struct {
	base
	subs pubsub.Bag
}

func newResumableState(m *Machine) *resumableState {
	return &resumableState{base: base{m: m, k: kindResumable}}
}

func (s *resumableState) didEnter() {
	s.subs.Add(s.m.availability.SubscribeStartAvailability(func(flightplan.StartAvailability) {
		s.refresh()
	}))
	s.subs.Add(s.m.edition.SubscribeCurrentFlightPlan(func(*flightplan.FlightPlan) {
		s.refresh()
	}))
	s.refresh()
}

func (s *resumableState) refresh() {
	s.notify(isResumable{fp: s.fp, availability: s.m.availability.StartAvailability()})
}

func (s *resumableState) willExit() {
	s.subs.Cancel()
}

func (s *resumableState) isValidNextState(next stateKind) bool {
	return next == kindEditable || next == kindStartedNotFlying || next == kindIdle
}
