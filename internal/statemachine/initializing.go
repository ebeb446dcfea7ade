package statemachine

import "github.com/tiiuae/flightplanengine/internal/flightplan"

type initializingState struct {
	base
	allowResume bool
}

func newInitializingState(m *Machine) *initializingState {
	return &initializingState{base: base{m: m, k: kindInitializing}}
}

func (s *initializingState) didEnter() {
	fp := s.fp
	// the drone cannot confirm a run it cannot report on
	if fp.State == flightplan.StateFlying && !s.m.availability.DroneConnected() {
		s.m.lg.Infof("FlightPlan: %s was flying while disconnected, marking stopped", fp.UUID)
		fp = s.m.manager.Update(fp, flightplan.StateStopped)
		s.fp = fp
	}

	if s.allowResume && canResume(fp) {
		s.notify(initResumable{fp})
	} else {
		s.notify(initNotResumable{fp})
	}
}

func canResume(fp *flightplan.FlightPlan) bool {
	switch fp.State {
	case flightplan.StateStopped, flightplan.StateFlying:
		return fp.HasReachedFirstWaypoint && !fp.HasReachedLastWaypoint
	}
	return false
}

func (s *initializingState) isValidNextState(next stateKind) bool {
	return next == kindResumable || next == kindEditable || next == kindIdle
}
