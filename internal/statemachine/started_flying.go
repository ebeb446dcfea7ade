package statemachine

import (
	"time"

	"github.com/tiiuae/flightplanengine/internal/clock"
	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/pubsub"
)

type flyingPhase int

const (
	phaseActivating flyingPhase = iota
	phaseRunning
	phaseError
	phaseFinished
)

func (p flyingPhase) String() string {
	switch p {
	case phaseActivating:
		return "activating"
	case phaseRunning:
		return "running"
	case phaseError:
		return "error"
	case phaseFinished:
		return "finished"
	}
	return "unknown"
}

type catchUpData struct {
	lastMissionItemExecuted int
	recoveryResourceID      string
	duration                time.Duration
}

// startedFlyingState follows a run on the drone, from the activation
// handshake to its end.
type startedFlyingState struct {
	base
	commands []flightplan.Command
	catchUp  *catchUpData

	phase           flyingPhase
	sub             *pubsub.Subscription
	ticker          clock.Ticker
	tickerToken     int
	activationStart time.Time
}

func newStartedFlyingState(m *Machine) *startedFlyingState {
	return &startedFlyingState{base: base{m: m, k: kindStartedFlying}}
}

func (s *startedFlyingState) setup(fp *flightplan.FlightPlan, commands []flightplan.Command, c *catchUpData) {
	s.fp = fp
	s.commands = commands
	s.catchUp = c
}

func (s *startedFlyingState) didEnter() {
	if s.catchUp != nil {
		s.phase = phaseRunning
	} else {
		s.phase = phaseActivating
	}

	if s.fp.State != flightplan.StateFlying {
		s.fp = s.m.manager.Update(s.fp, flightplan.StateFlying)
	}
	s.notify(runWillBegin{s.fp})

	rm := s.m.runManager
	rm.Setup(s.fp, s.commands)
	s.sub = rm.SubscribeState(s.handleRunUpdate)

	if c := s.catchUp; c != nil {
		s.catchUp = nil
		rm.CatchUp(c.lastMissionItemExecuted, c.recoveryResourceID, c.duration)
	} else {
		s.activate()
	}
}

// activate asks the drone to play and polls the run manager until the
// run is playing, the drone cannot take off or the timeout expires.
func (s *startedFlyingState) activate() {
	s.phase = phaseActivating
	s.activationStart = s.m.clock.Now()
	s.m.runManager.Play()

	s.tickerToken++
	token := s.tickerToken
	s.ticker = s.m.clock.Every(s.m.activationInterval, func() {
		s.m.executor.Execute(func() {
			if token == s.tickerToken {
				s.tick()
			}
		})
	})
	s.tick()
}

func (s *startedFlyingState) tick() {
	if s.phase != phaseActivating {
		return
	}

	switch rs := s.m.runManager.State().(type) {
	case flightplan.RunPlaying:
		s.invalidateTimer()
		if rs.FlightPlan != nil {
			s.fp = rs.FlightPlan
		}
		s.phase = phaseRunning
		s.notify(runDidBegin{s.fp})
		return
	case flightplan.RunActivationError:
		if rs.Reason == flightplan.ActivationCannotTakeOff {
			s.timeout()
			return
		}
		s.m.lg.Infof("FlightPlan: activation error %s, playing again", rs.Reason)
		s.m.runManager.Play()
	case flightplan.RunIdle:
		// the drone has not answered yet
	default:
		s.m.lg.Warnf("FlightPlan: inconsistent run state %s while activating", rs)
	}

	if s.m.clock.Now().Sub(s.activationStart) >= s.m.activationTimeout {
		s.timeout()
	}
}

func (s *startedFlyingState) timeout() {
	s.invalidateTimer()
	s.phase = phaseError
	s.m.metrics.ActivationTimeout()
	s.notify(runDidTimeout{s.fp})
}

func (s *startedFlyingState) handleRunUpdate(rs flightplan.RunningState) {
	if s.phase != phaseRunning {
		return
	}

	switch rs := rs.(type) {
	case flightplan.RunPlaying:
		// still running
	case flightplan.RunPaused:
		s.notify(runDidPause{s.runFlightPlan(rs.FlightPlan)})
	case flightplan.RunEnded:
		s.phase = phaseFinished
		s.notify(runDidFinish{fp: s.runFlightPlan(rs.FlightPlan), completed: rs.Completed})
	default:
		s.m.lg.Warnf("FlightPlan: inconsistent run state %s while running", rs)
	}
}

func (s *startedFlyingState) runFlightPlan(fp *flightplan.FlightPlan) *flightplan.FlightPlan {
	if flightplan.SameFlightPlan(fp, s.fp) {
		s.fp = fp
	}
	return s.fp
}

func (s *startedFlyingState) isPaused() bool {
	_, paused := s.m.runManager.State().(flightplan.RunPaused)
	return s.phase == phaseRunning && paused
}

func (s *startedFlyingState) stop() {
	switch s.phase {
	case phaseActivating:
		// nothing is flying yet, the run ends here
		s.invalidateTimer()
		s.phase = phaseFinished
		s.m.runManager.Stop()
		s.notify(runDidFinish{fp: s.fp, completed: false})
	case phaseRunning:
		s.m.runManager.Stop()
	}
}

func (s *startedFlyingState) pause() {
	s.m.runManager.Pause()
}

func (s *startedFlyingState) resumePausedRun() {
	s.m.runManager.Unpause()
}

func (s *startedFlyingState) updateRun(lastMissionItemExecuted int, recoveryResourceID string, duration time.Duration) {
	s.m.runManager.CatchUp(lastMissionItemExecuted, recoveryResourceID, duration)
}

func (s *startedFlyingState) invalidateTimer() {
	s.tickerToken++
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *startedFlyingState) willExit() {
	s.sub.Cancel()
	s.sub = nil
	s.invalidateTimer()
	s.catchUp = nil
	s.m.runManager.Reset()
}

func (s *startedFlyingState) isValidNextState(next stateKind) bool {
	return next == kindEnded || next == kindIdle
}
