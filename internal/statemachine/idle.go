package statemachine

// idleState is the resting state entered on reset.
type idleState struct {
	base
}

func newIdleState(m *Machine) *idleState {
	return &idleState{base{m: m, k: kindIdle}}
}

func (s *idleState) didEnter() {
	s.fp = nil
}

func (s *idleState) isValidNextState(next stateKind) bool {
	// catch-up enters flying directly
	return next == kindInitializing || next == kindStartedFlying
}
