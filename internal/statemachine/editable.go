package statemachine

import (
	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/pubsub"
)

type editableState struct {
	base
	subs pubsub.Bag
}

func newEditableState(m *Machine) *editableState {
	return &editableState{base: base{m: m, k: kindEditable}}
}

func (s *editableState) didEnter() {
	if !s.fp.IsEditable() {
		s.fp = s.m.editableTemplate(s.fp)
	}

	s.subs.Add(s.m.availability.SubscribeStartAvailability(func(flightplan.StartAvailability) {
		s.refresh()
	}))
	s.subs.Add(s.m.edition.SubscribeCurrentFlightPlan(func(*flightplan.FlightPlan) {
		s.refresh()
	}))
	s.refresh()
}

func (s *editableState) refresh() {
	s.notify(isEditable{fp: s.fp, availability: s.m.availability.StartAvailability()})
}

func (s *editableState) willExit() {
	s.subs.Cancel()
}

func (s *editableState) isValidNextState(next stateKind) bool {
	return next == kindStartedNotFlying || next == kindIdle
}
