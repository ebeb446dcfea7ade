// Package engine hosts the flight plan state machine on the message bus.
// The engine goroutine is the machine's only goroutine: bus messages,
// generation and upload completions and ticker callbacks are all
// serialized through it.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/tiiuae/flightplanengine/internal/clock"
	"github.com/tiiuae/flightplanengine/internal/drone"
	"github.com/tiiuae/flightplanengine/internal/edition"
	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/manager"
	"github.com/tiiuae/flightplanengine/internal/metrics"
	"github.com/tiiuae/flightplanengine/internal/runmanager"
	"github.com/tiiuae/flightplanengine/internal/statemachine"
	"github.com/tiiuae/flightplanengine/internal/types"
)

type Config struct {
	DeviceID  string
	Manager   *manager.Manager
	Generator statemachine.MavlinkGenerator
	Sender    statemachine.MavlinkSender
	Link      runmanager.Link
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	Logger    *log.Logger

	ActivationTimeout  time.Duration
	ActivationInterval time.Duration
}

type Engine struct {
	deviceID string
	inbox    chan types.Message

	// tasks queued by Execute, run in order on the engine goroutine
	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}

	manager *manager.Manager
	drone   *drone.Service
	edition *edition.Service
	runs    *runmanager.RunManager
	machine *statemachine.Machine
	metrics *metrics.Metrics
	lg      *log.Logger

	post    types.PostFn
	closing bool
}

func New(c Config) *Engine {
	if c.Clock == nil {
		c.Clock = clock.Real{}
	}
	e := &Engine{
		deviceID: c.DeviceID,
		inbox:    make(chan types.Message, 100),
		wake:     make(chan struct{}, 1),
		manager:  c.Manager,
		drone:    drone.New(c.Logger),
		edition:  edition.New(),
		metrics:  c.Metrics,
		lg:       c.Logger.Component("engine"),
	}
	e.runs = runmanager.New(c.Link, e.drone, e, c.Clock, c.Logger)
	e.machine = statemachine.New(statemachine.Config{
		Manager:            c.Manager,
		Generator:          c.Generator,
		Sender:             c.Sender,
		RunManager:         e.runs,
		Availability:       e.drone,
		Edition:            e.edition,
		Executor:           e,
		Clock:              c.Clock,
		Logger:             c.Logger,
		Metrics:            c.Metrics,
		ActivationTimeout:  c.ActivationTimeout,
		ActivationInterval: c.ActivationInterval,
	})
	e.runs.SetUpdater(e.machine.UpdateSafely)

	e.machine.SubscribeState(e.publishMachineState)
	e.runs.SubscribeState(e.publishRunProgress)
	return e
}

// Execute queues fn for the engine goroutine. It may be called from any
// goroutine, including the engine's own.
func (e *Engine) Execute(fn func()) {
	e.mu.Lock()
	e.tasks = append(e.tasks, fn)
	e.mu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) runTasks() {
	e.mu.Lock()
	tasks := e.tasks
	e.tasks = nil
	e.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
}

func (e *Engine) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	defer wg.Done()

	e.post = post
	for {
		select {
		case <-ctx.Done():
			e.lg.Infof("Engine shutting down")
			e.closing = true
			e.machine.Reset()
			return
		case msg := <-e.inbox:
			e.handle(msg)
		case <-e.wake:
			e.runTasks()
		}
	}
}

func (e *Engine) Receive(message types.Message) {
	switch message.MessageType {
	case types.MsgOpenFlightPlan,
		types.MsgStartFlightPlan,
		types.MsgStopFlightPlan,
		types.MsgPauseFlightPlan,
		types.MsgResetFlightPlan,
		types.MsgForceEditable,
		types.MsgEditFlightPlan,
		types.MsgCreateFlightPlan,
		types.MsgCatchUpFlightPlan,
		types.MsgFinishedOfflineFlightPlan,
		types.MsgDroneState,
		types.MsgMissionProgress:
		e.inbox <- message
	}
}

func (e *Engine) handle(msg types.Message) {
	e.metrics.BusMessage(msg.MessageType)

	switch m := msg.Message.(type) {
	case types.DroneState:
		e.drone.HandleDroneState(m)
		e.runs.HandleDroneState(m)
	case types.MissionProgress:
		e.handleMissionProgress(m)
	case types.OpenFlightPlan:
		fp, ok := e.flightPlan(msg.MessageType, m.UUID)
		if ok {
			e.machine.Open(fp)
		}
	case types.StartFlightPlan:
		e.machine.Start()
	case types.StopFlightPlan:
		e.machine.Stop()
	case types.PauseFlightPlan:
		e.machine.Pause()
	case types.ResetFlightPlan:
		e.machine.Reset()
	case types.ForceEditable:
		e.machine.ForceEditable()
	case types.EditFlightPlan:
		e.edit(m)
	case types.CreateFlightPlan:
		fp := e.manager.Create(m.ProjectUUID, m.Title, m.DataSetting)
		e.lg.Infof("Engine: created %s", fp)
		if m.Open {
			e.machine.Open(fp)
		}
	case types.CatchUpFlightPlan:
		fp, ok := e.flightPlan(msg.MessageType, m.UUID)
		if ok {
			runningTime := time.Duration(m.RunningTime * float64(time.Second))
			e.machine.CatchUp(fp, m.LastMissionItemExecuted, m.RecoveryResourceID, runningTime)
		}
	case types.FinishedOfflineFlightPlan:
		fp, ok := e.flightPlan(msg.MessageType, m.UUID)
		if ok {
			e.machine.HandleFinishedOfflineFlightPlan(fp)
		}
	default:
		e.lg.Warnf("Engine: unexpected payload %T for %s", msg.Message, msg.MessageType)
	}
}

func (e *Engine) flightPlan(messageType, uuid string) (*flightplan.FlightPlan, bool) {
	fp, ok := e.manager.FlightPlan(uuid)
	if !ok {
		e.lg.Warnf("Engine: %s: unknown flight plan %s", messageType, uuid)
	}
	return fp, ok
}

// handleMissionProgress feeds the run manager while the machine follows
// the reported plan. Otherwise the drone is flying without us and the
// machine catches up with it.
func (e *Engine) handleMissionProgress(p types.MissionProgress) {
	if current := e.machine.CurrentFlightPlan(); current != nil && current.UUID == p.FlightPlanUUID {
		switch e.machine.State().(type) {
		case flightplan.StartedNotFlying, flightplan.Flying:
			e.runs.HandleMissionProgress(p)
			return
		}
	}
	e.reconcile(p)
}

func (e *Engine) reconcile(p types.MissionProgress) {
	if p.FlightPlanUUID == "" {
		return
	}
	switch e.machine.State().(type) {
	case flightplan.MachineStarted, flightplan.Editable, flightplan.Resumable:
	default:
		return
	}

	fp, ok := e.manager.FlightPlan(p.FlightPlanUUID)
	if !ok {
		e.lg.Debugf("Engine: progress for unknown flight plan %s", p.FlightPlanUUID)
		return
	}

	if p.Finished {
		if fp.State == flightplan.StateFlying || fp.State == flightplan.StateStopped {
			e.machine.HandleFinishedOfflineFlightPlan(fp)
		}
		return
	}

	st := e.drone.LastState()
	if st.FlightPlanUUID != fp.UUID {
		return
	}
	switch st.MissionState {
	case types.MissionPlaying, types.MissionPaused:
		e.lg.Infof("Engine: drone is running %s, catching up", fp.UUID)
		e.machine.CatchUp(fp, p.SeqReached, p.RecoveryResourceID, p.Duration())
	}
}

// edit persists new settings and refreshes the editable state when the
// plan is the one being shown.
func (e *Engine) edit(m types.EditFlightPlan) {
	fp, ok := e.flightPlan(types.MsgEditFlightPlan, m.UUID)
	if !ok {
		return
	}
	if !fp.IsEditable() {
		e.lg.Warnf("Engine: %s is not editable", fp)
		return
	}

	if m.Title != "" {
		fp.Title = m.Title
	}
	if m.DataSetting != nil {
		fp.DataSetting = m.DataSetting
		fp.DataSetting.MavlinkCommands = nil
	}
	saved := e.manager.Save(fp)

	if flightplan.SameFlightPlan(e.machine.CurrentFlightPlan(), saved) {
		e.machine.FlightPlanWasEdited(saved)
	}
	e.edition.Set(saved)
}

func (e *Engine) publishMachineState(s flightplan.MachineState) {
	if e.closing || e.post == nil {
		return
	}
	e.post(types.CreateMessage(types.MsgMachineStateChanged, e.deviceID, "cloud", types.NewMachineStateChanged(s)))
}

func (e *Engine) publishRunProgress(rs flightplan.RunningState) {
	if e.closing || e.post == nil {
		return
	}
	fp := e.runs.FlightPlan()
	if fp == nil {
		return
	}
	e.post(types.CreateMessage(types.MsgRunProgress, e.deviceID, "cloud", types.RunProgress{
		FlightPlanUUID:          fp.UUID,
		RunningState:            RunningStateName(rs),
		LastMissionItemExecuted: fp.LastMissionItemExecuted,
		RunningTime:             fp.Duration.Seconds(),
	}))
}

// RunningStateName drops the payload of a running state.
func RunningStateName(rs flightplan.RunningState) string {
	switch rs.(type) {
	case flightplan.RunNoFlightPlan:
		return "noFlightPlan"
	case flightplan.RunIdle:
		return "idle"
	case flightplan.RunPlaying:
		return "playing"
	case flightplan.RunPaused:
		return "paused"
	case flightplan.RunActivationError:
		return "activationError"
	case flightplan.RunEnded:
		return "ended"
	}
	return "unknown"
}
