package statemachine

import "github.com/tiiuae/flightplanengine/internal/flightplan"

// startedNotFlyingState generates the mission and uploads it. Every
// asynchronous completion carries the token of the entry that started
// it and is dropped once the state was stopped or re-entered.
type startedNotFlyingState struct {
	base
	token   int
	stopped bool
}

func newStartedNotFlyingState(m *Machine) *startedNotFlyingState {
	return &startedNotFlyingState{base: base{m: m, k: kindStartedNotFlying}}
}

func (s *startedNotFlyingState) didEnter() {
	s.token++
	s.stopped = false

	if s.fp.IsEditable() {
		// keep the template, fly a copy
		execution := s.m.manager.NewFlightPlan(s.fp, true)
		s.fp = s.m.manager.Update(execution, flightplan.StateFlying)
		s.m.lg.Infof("FlightPlan: execution %s created from %s", s.fp.UUID, execution.ProjectUUID)
	}

	s.notify(generationStarted{s.fp})

	token := s.token
	s.m.generator.Generate(s.fp, func(result flightplan.MavlinkResult, err error) {
		s.m.executor.Execute(func() {
			s.generationDone(token, result, err)
		})
	})
}

func (s *startedNotFlyingState) live(token int) bool {
	return !s.stopped && token == s.token
}

func (s *startedNotFlyingState) generationDone(token int, result flightplan.MavlinkResult, err error) {
	if !s.live(token) {
		s.m.lg.Debugf("FlightPlan: dropping stale generation result")
		return
	}
	if err != nil {
		s.notify(generationFailed{fp: s.fp, err: err})
		return
	}

	if result.FlightPlan != nil {
		s.fp = s.m.manager.Save(result.FlightPlan)
	}
	commands := result.Commands
	s.notify(sendingStarted{s.fp})

	s.m.sender.Send(result.Path, s.fp.UUID, func(err error) {
		s.m.executor.Execute(func() {
			s.sendingDone(token, commands, err)
		})
	})
}

func (s *startedNotFlyingState) sendingDone(token int, commands []flightplan.Command, err error) {
	if !s.live(token) {
		s.m.lg.Debugf("FlightPlan: dropping stale upload result")
		return
	}
	if err != nil {
		s.notify(sendingFailed{fp: s.fp, err: err})
		return
	}
	s.notify(sendingSucceeded{fp: s.fp, commands: commands})
}

// stop abandons generation and upload. It is idempotent.
func (s *startedNotFlyingState) stop() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.m.sender.Cleanup()
}

func (s *startedNotFlyingState) willExit() {
	s.stop()
}

func (s *startedNotFlyingState) isValidNextState(next stateKind) bool {
	return next == kindStartedFlying || next == kindEditable || next == kindIdle
}
