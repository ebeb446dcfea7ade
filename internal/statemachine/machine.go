// Package statemachine drives a flight plan from edition through MAVLink
// generation and upload to the supervised run and its end.
//
// A Machine is not safe for concurrent use. It must be driven from a
// single goroutine, and its Executor must run completions on that same
// goroutine.
package statemachine

import (
	"time"

	"github.com/tiiuae/flightplanengine/internal/clock"
	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/metrics"
	"github.com/tiiuae/flightplanengine/internal/pubsub"
)

const (
	DefaultActivationTimeout  = 10 * time.Second
	DefaultActivationInterval = time.Second
)

type Config struct {
	Manager      Manager
	Generator    MavlinkGenerator
	Sender       MavlinkSender
	RunManager   RunManager
	Availability Availability
	Edition      Edition
	Executor     Executor
	Clock        clock.Clock
	Logger       *log.Logger
	Metrics      *metrics.Metrics

	ActivationTimeout  time.Duration
	ActivationInterval time.Duration
}

type pendingEvent struct {
	from stateKind
	ev   event
}

type Machine struct {
	manager      Manager
	generator    MavlinkGenerator
	sender       MavlinkSender
	runManager   RunManager
	availability Availability
	edition      Edition
	executor     Executor
	clock        clock.Clock
	lg           *log.Logger
	metrics      *metrics.Metrics

	activationTimeout  time.Duration
	activationInterval time.Duration

	idle             *idleState
	initializing     *initializingState
	editable         *editableState
	resumable        *resumableState
	startedNotFlying *startedNotFlyingState
	startedFlying    *startedFlyingState
	ended            *endedState
	states           map[stateKind]state
	current          state

	state         *pubsub.Subject[flightplan.MachineState]
	pending       []pendingEvent
	handling      bool
	stopRequested bool
}

func New(c Config) *Machine {
	m := &Machine{
		manager:            c.Manager,
		generator:          c.Generator,
		sender:             c.Sender,
		runManager:         c.RunManager,
		availability:       c.Availability,
		edition:            c.Edition,
		executor:           c.Executor,
		clock:              c.Clock,
		lg:                 c.Logger.Component("statemachine"),
		metrics:            c.Metrics,
		activationTimeout:  c.ActivationTimeout,
		activationInterval: c.ActivationInterval,
		state:              pubsub.New[flightplan.MachineState](flightplan.MachineStarted{}),
	}
	if m.clock == nil {
		m.clock = clock.Real{}
	}
	if m.activationTimeout <= 0 {
		m.activationTimeout = DefaultActivationTimeout
	}
	if m.activationInterval <= 0 {
		m.activationInterval = DefaultActivationInterval
	}

	m.idle = newIdleState(m)
	m.initializing = newInitializingState(m)
	m.editable = newEditableState(m)
	m.resumable = newResumableState(m)
	m.startedNotFlying = newStartedNotFlyingState(m)
	m.startedFlying = newStartedFlyingState(m)
	m.ended = newEndedState(m)
	m.states = map[stateKind]state{
		kindIdle:             m.idle,
		kindInitializing:     m.initializing,
		kindEditable:         m.editable,
		kindResumable:        m.resumable,
		kindStartedNotFlying: m.startedNotFlying,
		kindStartedFlying:    m.startedFlying,
		kindEnded:            m.ended,
	}
	m.current = m.idle
	return m
}

// State returns the last published state.
func (m *Machine) State() flightplan.MachineState {
	return m.state.Value()
}

// CurrentFlightPlan is the model carried by State, nil before a plan is
// open.
func (m *Machine) CurrentFlightPlan() *flightplan.FlightPlan {
	return m.State().CurrentFlightPlan()
}

// SubscribeState delivers every published state, starting with the next
// one. Each delivery is a new event even if it looks like the previous.
func (m *Machine) SubscribeState(fn func(flightplan.MachineState)) *pubsub.Subscription {
	return m.state.Subscribe(fn)
}

// Open loads fp into the machine. It is the re-entry point after every
// run.
func (m *Machine) Open(fp *flightplan.FlightPlan) {
	m.do(func() { m.open(fp, true) })
}

func (m *Machine) Start() {
	m.do(m.start)
}

func (m *Machine) Stop() {
	m.do(m.stop)
}

func (m *Machine) Pause() {
	m.do(m.pause)
}

func (m *Machine) Reset() {
	m.do(m.reset)
}

func (m *Machine) ForceEditable() {
	m.do(m.forceEditable)
}

func (m *Machine) FlightPlanWasEdited(fp *flightplan.FlightPlan) {
	m.do(func() { m.flightPlanWasEdited(fp) })
}

// CatchUp reconciles the machine with a run the drone is already
// flying.
func (m *Machine) CatchUp(fp *flightplan.FlightPlan, lastMissionItemExecuted int, recoveryResourceID string, runningTime time.Duration) {
	m.do(func() { m.catchUp(fp, lastMissionItemExecuted, recoveryResourceID, runningTime) })
}

func (m *Machine) HandleFinishedOfflineFlightPlan(fp *flightplan.FlightPlan) {
	m.do(func() { m.handleFinishedOfflineFlightPlan(fp) })
}

// UpdateSafely applies mutate to the freshest copy of fp, persists it and
// returns the persisted model. When fp is the plan the machine holds, the
// active state and the published state follow the update.
func (m *Machine) UpdateSafely(fp *flightplan.FlightPlan, mutate func(*flightplan.FlightPlan)) *flightplan.FlightPlan {
	if fp == nil {
		m.refuse("updateSafely", "no flight plan")
		return nil
	}
	current := m.current.flightPlan()
	if !flightplan.SameFlightPlan(current, fp) {
		target, ok := m.manager.FlightPlan(fp.UUID)
		if !ok {
			target = fp.Clone()
		}
		mutate(target)
		return m.manager.Save(target)
	}

	updated := current.Clone()
	mutate(updated)
	saved := m.manager.Save(updated)
	m.current.flightPlanWasUpdated(saved)
	if last := m.state.Value(); flightplan.SameFlightPlan(last.CurrentFlightPlan(), saved) {
		m.publish(last.WithFlightPlan(saved))
	}
	return saved
}

func (m *Machine) open(fp *flightplan.FlightPlan, allowResume bool) {
	if fp == nil {
		m.refuse("open", "no flight plan")
		return
	}
	m.reset()
	m.initializing.setFlightPlan(fp.Clone())
	m.initializing.allowResume = allowResume
	if m.enter(kindInitializing) {
		m.publish(flightplan.Initialized{})
	}
}

func (m *Machine) start() {
	switch s := m.current.(type) {
	case *editableState, *resumableState:
		if a := m.availability.StartAvailability(); !a.IsAvailable() {
			m.refuse("start", a.String())
			return
		}
		m.startedNotFlying.setFlightPlan(s.flightPlan())
		m.enter(kindStartedNotFlying)
	case *startedFlyingState:
		if !s.isPaused() {
			m.refuse("start", "run is not paused")
			return
		}
		s.resumePausedRun()
	default:
		m.refuse("start", "")
	}
}

func (m *Machine) stop() {
	switch s := m.current.(type) {
	case *startedNotFlyingState:
		s.stop()
		m.editable.setFlightPlan(s.flightPlan())
		m.enter(kindEditable)
	case *startedFlyingState:
		if m.stopRequested {
			m.refuse("stop", "already stopping")
			return
		}
		m.stopRequested = true
		s.stop()
	case *resumableState:
		m.editable.setFlightPlan(s.flightPlan())
		m.enter(kindEditable)
	default:
		m.refuse("stop", "")
	}
}

func (m *Machine) pause() {
	s, ok := m.current.(*startedFlyingState)
	if !ok || s.phase != phaseRunning || s.isPaused() {
		m.refuse("pause", "")
		return
	}
	s.pause()
}

// reset halts local activity and returns to idle. It never commands the
// drone.
func (m *Machine) reset() {
	m.stopRequested = false
	if s, ok := m.current.(*startedNotFlyingState); ok {
		s.stop()
	}
	if m.current.kind() != kindIdle {
		m.enter(kindIdle)
	}
	m.publish(flightplan.MachineStarted{})
}

func (m *Machine) forceEditable() {
	s, ok := m.current.(*resumableState)
	if !ok {
		m.refuse("forceEditable", "")
		return
	}
	m.editable.setFlightPlan(s.flightPlan())
	m.enter(kindEditable)
}

func (m *Machine) flightPlanWasEdited(fp *flightplan.FlightPlan) {
	s, ok := m.current.(*editableState)
	if !ok || !flightplan.SameFlightPlan(s.flightPlan(), fp) {
		m.refuse("flightPlanWasEdited", fp.String())
		return
	}
	s.setFlightPlan(fp)
	s.refresh()
}

func (m *Machine) catchUp(fp *flightplan.FlightPlan, last int, recoveryResourceID string, runningTime time.Duration) {
	if fp == nil {
		m.refuse("catchUp", "no flight plan")
		return
	}
	if s, ok := m.current.(*startedFlyingState); ok && flightplan.SameFlightPlan(s.flightPlan(), fp) {
		s.updateRun(last, recoveryResourceID, runningTime)
		return
	}

	m.lg.Infof("FlightPlan: catching up with %s at item %d", fp.UUID, last)
	m.reset()
	commands := fp.MavlinkCommands()
	if len(commands) == 0 {
		commands = m.manager.GenerateMavlinkCommands(fp)
	}
	m.startedFlying.setup(fp.Clone(), commands, &catchUpData{
		lastMissionItemExecuted: last,
		recoveryResourceID:      recoveryResourceID,
		duration:                runningTime,
	})
	m.enter(kindStartedFlying)
}

func (m *Machine) handleFinishedOfflineFlightPlan(fp *flightplan.FlightPlan) {
	if fp == nil {
		m.refuse("handleFinishedOfflineFlightPlan", "no flight plan")
		return
	}
	stored, ok := m.manager.FlightPlan(fp.UUID)
	if !ok {
		stored = fp
	}
	switch stored.State {
	case flightplan.StateEditable, flightplan.StateStopped, flightplan.StateFlying:
		m.lg.Infof("FlightPlan: %s finished offline", stored.UUID)
		stored = m.manager.Update(stored, flightplan.StateCompleted)
	}
	if flightplan.SameFlightPlan(m.current.flightPlan(), fp) {
		m.open(stored, true)
	}
}

// editableTemplate returns the editable record to show instead of fp. An
// execution that never reached its first waypoint is deleted, but only
// while the drone is connected to confirm it.
func (m *Machine) editableTemplate(fp *flightplan.FlightPlan) *flightplan.FlightPlan {
	var template *flightplan.FlightPlan
	for _, candidate := range m.manager.EditableFlightPlansFor(fp.ProjectUUID) {
		if candidate.UUID != fp.UUID {
			template = candidate
			break
		}
	}
	if template == nil {
		template = m.manager.NewFlightPlan(fp, true)
		m.lg.Infof("FlightPlan: recreated template %s from %s", template.UUID, fp.UUID)
	}

	dangling := fp.State == flightplan.StateFlying || fp.State == flightplan.StateStopped
	if dangling && !fp.HasReachedFirstWaypoint && m.availability.DroneConnected() {
		m.lg.Infof("FlightPlan: deleting unstarted execution %s", fp.UUID)
		m.manager.Delete(fp.UUID)
	}
	return template
}

func (m *Machine) handle(ev event) {
	m.lg.Debugf("FlightPlan: %s", ev.eventName())

	switch ev := ev.(type) {
	case initResumable:
		m.resumable.setFlightPlan(ev.fp)
		m.enter(kindResumable)
	case initNotResumable:
		m.editable.setFlightPlan(ev.fp)
		m.enter(kindEditable)
	case isEditable:
		m.publish(flightplan.Editable{FlightPlan: ev.fp, StartAvailability: ev.availability})
	case isResumable:
		m.publish(flightplan.Resumable{FlightPlan: ev.fp, StartAvailability: ev.availability})
	case generationStarted:
		m.publish(flightplan.StartedNotFlying{FlightPlan: ev.fp, MavlinkStatus: flightplan.MavlinkGenerating})
	case sendingStarted:
		m.publish(flightplan.StartedNotFlying{FlightPlan: ev.fp, MavlinkStatus: flightplan.MavlinkSending})
	case generationFailed:
		m.mavlinkFailed("generation", ev.fp, ev.err)
	case sendingFailed:
		m.mavlinkFailed("sending", ev.fp, ev.err)
	case sendingSucceeded:
		m.startedFlying.setup(ev.fp, ev.commands, nil)
		m.enter(kindStartedFlying)
	case runWillBegin:
		m.publish(flightplan.Flying{FlightPlan: m.startedFlying.flightPlan()})
	case runDidBegin:
		m.lg.Infof("FlightPlan: run of %s began", ev.fp.UUID)
		m.publish(flightplan.Flying{FlightPlan: ev.fp})
	case runDidPause:
		m.lg.Infof("FlightPlan: run of %s paused", ev.fp.UUID)
		m.publish(flightplan.Flying{FlightPlan: ev.fp})
	case runDidFinish:
		m.ended.setup(ev.fp, ev.completed)
		m.enter(kindEnded)
	case runDidTimeout:
		m.lg.Warnf("FlightPlan: activation of %s timed out", ev.fp.UUID)
		m.open(ev.fp, true)
	case flightPlanEnded:
		m.publish(flightplan.End{FlightPlan: ev.fp, Completed: ev.completed})
		m.open(ev.fp, !m.stopRequested)
	}
}

func (m *Machine) mavlinkFailed(phase string, fp *flightplan.FlightPlan, err error) {
	m.metrics.MavlinkFailure(phase)
	m.lg.Warnf("FlightPlan: mavlink %s failed for %s: %v", phase, fp.UUID, err)
	m.editable.setFlightPlan(fp)
	m.enter(kindEditable)
}

// do runs fn and then every event raised meanwhile, one at a time. Calls
// made while an event is being handled run inline.
func (m *Machine) do(fn func()) {
	if m.handling {
		fn()
		return
	}
	m.handling = true
	defer func() { m.handling = false }()

	fn()
	for len(m.pending) > 0 {
		p := m.pending[0]
		m.pending = m.pending[1:]
		if p.from != m.current.kind() {
			m.lg.Debugf("FlightPlan: dropping %s from %s while %s", p.ev.eventName(), p.from, m.current.kind())
			continue
		}
		m.handle(p.ev)
	}
}

func (m *Machine) raise(from stateKind, ev event) {
	m.pending = append(m.pending, pendingEvent{from: from, ev: ev})
	m.do(func() {})
}

func (m *Machine) enter(next stateKind) bool {
	prev := m.current
	if !prev.isValidNextState(next) {
		m.lg.Warnf("FlightPlan: invalid transition %s -> %s", prev.kind(), next)
		return false
	}

	prev.willExit()
	m.current = m.states[next]
	m.metrics.Transition(prev.kind().String(), next.String())
	m.lg.Debugf("FlightPlan: %s -> %s", prev.kind(), next)
	m.current.didEnter()
	return true
}

func (m *Machine) publish(s flightplan.MachineState) {
	m.lg.Infof("FlightPlan: state %s", s)
	m.metrics.SetState(s.Name())
	m.state.Send(s)
}

func (m *Machine) refuse(command, reason string) {
	m.metrics.CommandRefused(command)
	if reason != "" {
		m.lg.Warnf("FlightPlan: %s ignored in %s: %s", command, m.current.kind(), reason)
	} else {
		m.lg.Warnf("FlightPlan: %s ignored in %s", command, m.current.kind())
	}
}
