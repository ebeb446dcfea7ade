// Package runmanager supervises a flight plan once its mission has been
// accepted by the drone: it issues mission commands, follows the drone's
// mission state and progress, and publishes the resulting RunningState.
//
// All methods must be called from the engine loop.
package runmanager

import (
	"time"

	"github.com/tiiuae/flightplanengine/internal/clock"
	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/pubsub"
	"github.com/tiiuae/flightplanengine/internal/types"
)

// Link sends mission commands to the drone. It must not block: done
// reports the outcome later, from any goroutine.
type Link interface {
	SendMissionCommand(cmd types.MissionCommand, done func(error))
}

// Executor runs fn on the engine goroutine.
type Executor interface {
	Execute(fn func())
}

type Availability interface {
	StartAvailability() flightplan.StartAvailability
	DroneConnected() bool
}

// Updater persists a progress mutation and returns the stored plan.
type Updater func(fp *flightplan.FlightPlan, mutate func(*flightplan.FlightPlan)) *flightplan.FlightPlan

type runPhase int

const (
	runNone runPhase = iota
	runReady
	runActivating
	runPlaying
	runPaused
	runResuming
	runStopping
	runEnded
)

type RunManager struct {
	link         Link
	availability Availability
	executor     Executor
	clock        clock.Clock
	update       Updater
	lg           *log.Logger
	state        *pubsub.Subject[flightplan.RunningState]

	flightPlan   *flightplan.FlightPlan
	commands     []flightplan.Command
	phase        runPhase
	lastDrone    types.DroneState
	runningTime  time.Duration
	playingSince time.Time
}

func New(link Link, availability Availability, executor Executor, c clock.Clock, lg *log.Logger) *RunManager {
	return &RunManager{
		link:         link,
		availability: availability,
		executor:     executor,
		clock:        c,
		update:       saveInPlace,
		lg:           lg.Component("run"),
		state:        pubsub.New[flightplan.RunningState](flightplan.RunNoFlightPlan{}),
	}
}

func saveInPlace(fp *flightplan.FlightPlan, mutate func(*flightplan.FlightPlan)) *flightplan.FlightPlan {
	out := fp.Clone()
	mutate(out)
	return out
}

// SetUpdater installs the persistence path used for run progress.
func (rm *RunManager) SetUpdater(u Updater) {
	rm.update = u
}

func (rm *RunManager) State() flightplan.RunningState {
	return rm.state.Value()
}

func (rm *RunManager) SubscribeState(fn func(flightplan.RunningState)) *pubsub.Subscription {
	return rm.state.Subscribe(fn)
}

func (rm *RunManager) FlightPlan() *flightplan.FlightPlan {
	return rm.flightPlan
}

func (rm *RunManager) Setup(fp *flightplan.FlightPlan, commands []flightplan.Command) {
	rm.flightPlan = fp
	rm.commands = commands
	rm.phase = runReady
	rm.runningTime = 0
	rm.lg.Infof("Run: setup %s with %d mission items", fp.UUID, len(commands))
	rm.state.Send(flightplan.RunIdle{})
}

func (rm *RunManager) Play() {
	if rm.flightPlan == nil {
		rm.state.Send(flightplan.RunActivationError{Reason: flightplan.ActivationMissingMavlink})
		return
	}
	if !rm.availability.DroneConnected() {
		rm.state.Send(flightplan.RunActivationError{Reason: flightplan.ActivationDroneDisconnected})
		return
	}
	if rm.phase == runPlaying {
		return
	}

	rm.phase = runActivating
	rm.send(types.CommandPlay)
}

func (rm *RunManager) Pause() {
	if rm.phase != runPlaying {
		rm.lg.Warnf("Run: pause ignored while not playing")
		return
	}
	rm.send(types.CommandPause)
}

func (rm *RunManager) Unpause() {
	if rm.phase != runPaused {
		rm.lg.Warnf("Run: unpause ignored while not paused")
		return
	}
	rm.phase = runResuming
	rm.send(types.CommandUnpause)
}

func (rm *RunManager) Stop() {
	if rm.flightPlan == nil || rm.phase == runEnded {
		return
	}
	if rm.phase == runStopping {
		return
	}
	if !rm.availability.DroneConnected() || rm.phase == runReady {
		rm.finish(false)
		return
	}
	rm.phase = runStopping
	rm.send(types.CommandStop)
}

// Reset forgets the current run.
func (rm *RunManager) Reset() {
	if rm.flightPlan != nil {
		rm.lg.Debugf("Run: reset %s", rm.flightPlan.UUID)
	}
	rm.flightPlan = nil
	rm.commands = nil
	rm.phase = runNone
	rm.runningTime = 0
	rm.state.Send(flightplan.RunNoFlightPlan{})
}

// CatchUp adopts progress the drone made without us, e.g. after a
// restart in flight.
func (rm *RunManager) CatchUp(lastMissionItemExecuted int, recoveryResourceID string, duration time.Duration) {
	if rm.flightPlan == nil {
		rm.lg.Warnf("Run: catch up without flight plan")
		return
	}
	rm.applyProgress(lastMissionItemExecuted, recoveryResourceID, duration)
	if rm.phase != runPaused && rm.phase != runStopping {
		rm.setPlaying()
		return
	}
	rm.publishCurrent()
}

func (rm *RunManager) HandleDroneState(st types.DroneState) {
	prev := rm.lastDrone
	rm.lastDrone = st
	if rm.flightPlan == nil {
		return
	}
	if st.FlightPlanUUID != "" && st.FlightPlanUUID != rm.flightPlan.UUID {
		return
	}

	switch rm.phase {
	case runActivating, runResuming:
		if st.MissionState == types.MissionPlaying {
			rm.setPlaying()
		} else if st.ActivationError != "" {
			rm.lg.Warnf("Run: activation error %s", st.ActivationError)
			rm.state.Send(flightplan.RunActivationError{Reason: flightplan.ParseActivationErrorReason(st.ActivationError)})
		}
	case runPlaying:
		switch st.MissionState {
		case types.MissionPaused:
			rm.stopClock()
			rm.phase = runPaused
			rm.publishCurrent()
		case types.MissionStopped:
			rm.finish(false)
		default:
			if prev.Connected != st.Connected || prev.IsReturningHome() != st.IsReturningHome() {
				rm.publishCurrent()
			}
		}
	case runPaused:
		if st.MissionState == types.MissionPlaying {
			rm.setPlaying()
		}
	case runStopping:
		if st.MissionState == types.MissionStopped || st.MissionState == types.MissionIdle {
			rm.finish(false)
		}
	}
}

func (rm *RunManager) HandleMissionProgress(p types.MissionProgress) {
	if rm.flightPlan == nil || rm.phase == runEnded {
		return
	}
	if p.FlightPlanUUID != "" && p.FlightPlanUUID != rm.flightPlan.UUID {
		rm.lg.Debugf("Run: progress for %s ignored", p.FlightPlanUUID)
		return
	}

	duration := p.Duration()
	if duration == 0 {
		duration = rm.elapsed()
	}
	if p.SeqReached > rm.flightPlan.LastMissionItemExecuted || p.RecoveryResourceID != "" {
		rm.applyProgress(p.SeqReached, p.RecoveryResourceID, duration)
	}

	switch {
	case p.Finished:
		rm.finish(true)
	case p.Failure:
		rm.lg.Errorf("Run: mission failure reported for %s", rm.flightPlan.UUID)
		rm.finish(false)
	case rm.phase == runPlaying:
		rm.publishCurrent()
	}
}

func (rm *RunManager) applyProgress(last int, recoveryResourceID string, duration time.Duration) {
	commands := rm.commands
	rm.flightPlan = rm.update(rm.flightPlan, func(fp *flightplan.FlightPlan) {
		fp.ApplyProgress(last, commands)
		if recoveryResourceID != "" {
			fp.RecoveryResourceID = recoveryResourceID
		}
		fp.Duration = max(fp.Duration, duration)
	})
}

func (rm *RunManager) setPlaying() {
	if rm.phase != runPlaying {
		rm.playingSince = rm.clock.Now()
	}
	rm.phase = runPlaying
	rm.publishCurrent()
}

func (rm *RunManager) stopClock() {
	if rm.phase == runPlaying {
		rm.runningTime += rm.clock.Now().Sub(rm.playingSince)
	}
}

func (rm *RunManager) elapsed() time.Duration {
	if rm.phase != runPlaying {
		return rm.runningTime
	}
	return rm.runningTime + rm.clock.Now().Sub(rm.playingSince)
}

func (rm *RunManager) finish(completed bool) {
	rm.stopClock()
	rm.phase = runEnded
	rm.lg.Infof("Run: %s ended, completed=%t", rm.flightPlan.UUID, completed)
	rm.state.Send(flightplan.RunEnded{Completed: completed, FlightPlan: rm.flightPlan})
}

func (rm *RunManager) publishCurrent() {
	switch rm.phase {
	case runPlaying:
		rm.state.Send(flightplan.RunPlaying{
			DroneConnected:  rm.lastDrone.Connected,
			FlightPlan:      rm.flightPlan,
			IsReturningHome: rm.lastDrone.IsReturningHome(),
		})
	case runPaused:
		rm.state.Send(flightplan.RunPaused{FlightPlan: rm.flightPlan, StartAvailability: rm.availability.StartAvailability()})
	}
}

func (rm *RunManager) send(command string) {
	fp := rm.flightPlan
	cmd := types.MissionCommand{
		Command:        command,
		FlightPlanUUID: fp.UUID,
		FromItem:       max(fp.LastMissionItemExecuted+1, 0),
	}
	rm.link.SendMissionCommand(cmd, func(err error) {
		if err == nil {
			return
		}
		rm.executor.Execute(func() {
			rm.commandFailed(command, fp.UUID, err)
		})
	})
}

// commandFailed reports a lost play as an activation error while that
// activation is still pending. Other failures are only logged: the drone
// state tells whether the command took effect.
func (rm *RunManager) commandFailed(command, flightPlanUUID string, err error) {
	rm.lg.Errorf("Run: %s %s: %v", command, flightPlanUUID, err)
	if rm.flightPlan == nil || rm.flightPlan.UUID != flightPlanUUID {
		return
	}
	if command == types.CommandPlay && rm.phase == runActivating {
		rm.state.Send(flightplan.RunActivationError{Reason: flightplan.ActivationUnknown})
	}
}
