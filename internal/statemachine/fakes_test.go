package statemachine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tiiuae/flightplanengine/internal/clock"
	"github.com/tiiuae/flightplanengine/internal/drone"
	"github.com/tiiuae/flightplanengine/internal/edition"
	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/manager"
	"github.com/tiiuae/flightplanengine/internal/pubsub"
	"github.com/tiiuae/flightplanengine/internal/storage"
	"github.com/tiiuae/flightplanengine/internal/types"
)

var missionCommands = []flightplan.Command{
	{Index: 0, Command: flightplan.MavCmdNavTakeoff},
	{Index: 1, Command: flightplan.MavCmdNavWaypoint},
	{Index: 2, Command: flightplan.MavCmdNavWaypoint},
	{Index: 3, Command: flightplan.MavCmdNavReturnToLaunch},
}

type queueExecutor struct {
	tasks []func()
}

func (e *queueExecutor) Execute(fn func()) {
	e.tasks = append(e.tasks, fn)
}

func (e *queueExecutor) drain() {
	for len(e.tasks) > 0 {
		fn := e.tasks[0]
		e.tasks = e.tasks[1:]
		fn()
	}
}

type fakeGenerator struct {
	plans       []*flightplan.FlightPlan
	completions []func(flightplan.MavlinkResult, error)
}

func (g *fakeGenerator) Generate(fp *flightplan.FlightPlan, completion func(flightplan.MavlinkResult, error)) {
	g.plans = append(g.plans, fp)
	g.completions = append(g.completions, completion)
}

func (g *fakeGenerator) succeed() {
	plan := g.plans[len(g.plans)-1].Clone()
	if plan.DataSetting == nil {
		plan.DataSetting = &flightplan.DataSetting{}
	}
	plan.DataSetting.MavlinkCommands = missionCommands
	g.completions[len(g.completions)-1](flightplan.MavlinkResult{
		FlightPlan: plan,
		Path:       "/tmp/" + plan.UUID + ".mavlink",
		Commands:   missionCommands,
	}, nil)
}

func (g *fakeGenerator) fail(err error) {
	g.completions[len(g.completions)-1](flightplan.MavlinkResult{}, err)
}

type fakeSender struct {
	ids         []string
	completions []func(error)
	cleanups    int
}

func (s *fakeSender) Send(path, customFlightPlanID string, completion func(error)) {
	s.ids = append(s.ids, customFlightPlanID)
	s.completions = append(s.completions, completion)
}

func (s *fakeSender) Cleanup() {
	s.cleanups++
}

func (s *fakeSender) complete(err error) {
	s.completions[len(s.completions)-1](err)
}

// fakeRunManager answers commands the way a cooperative drone would.
type fakeRunManager struct {
	state     *pubsub.Subject[flightplan.RunningState]
	fp        *flightplan.FlightPlan
	calls     []string
	catchUps  []int
	endOnStop bool
}

func newFakeRunManager() *fakeRunManager {
	return &fakeRunManager{state: pubsub.New[flightplan.RunningState](flightplan.RunNoFlightPlan{})}
}

func (r *fakeRunManager) Setup(fp *flightplan.FlightPlan, commands []flightplan.Command) {
	r.calls = append(r.calls, "setup")
	r.fp = fp
	r.state.Send(flightplan.RunIdle{})
}

func (r *fakeRunManager) Play() {
	r.calls = append(r.calls, "play")
}

func (r *fakeRunManager) Pause() {
	r.calls = append(r.calls, "pause")
	r.state.Send(flightplan.RunPaused{FlightPlan: r.fp})
}

func (r *fakeRunManager) Unpause() {
	r.calls = append(r.calls, "unpause")
	r.state.Send(flightplan.RunPlaying{DroneConnected: true, FlightPlan: r.fp})
}

func (r *fakeRunManager) Stop() {
	r.calls = append(r.calls, "stop")
	if r.endOnStop {
		r.state.Send(flightplan.RunEnded{FlightPlan: r.fp})
	}
}

func (r *fakeRunManager) Reset() {
	r.calls = append(r.calls, "reset")
	r.fp = nil
	r.state.Send(flightplan.RunNoFlightPlan{})
}

func (r *fakeRunManager) CatchUp(lastMissionItemExecuted int, recoveryResourceID string, duration time.Duration) {
	r.calls = append(r.calls, "catchUp")
	r.catchUps = append(r.catchUps, lastMissionItemExecuted)
	r.state.Send(flightplan.RunPlaying{DroneConnected: true, FlightPlan: r.fp})
}

func (r *fakeRunManager) State() flightplan.RunningState {
	return r.state.Value()
}

func (r *fakeRunManager) SubscribeState(fn func(flightplan.RunningState)) *pubsub.Subscription {
	return r.state.Subscribe(fn)
}

func (r *fakeRunManager) count(call string) int {
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

type harness struct {
	m         *Machine
	store     *storage.Memory
	manager   *manager.Manager
	drone     *drone.Service
	edition   *edition.Service
	generator *fakeGenerator
	sender    *fakeSender
	run       *fakeRunManager
	exec      *queueExecutor
	clock     *clock.Fake
	states    []flightplan.MachineState
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     storage.NewMemory(),
		drone:     drone.New(log.Discard()),
		edition:   edition.New(),
		generator: &fakeGenerator{},
		sender:    &fakeSender{},
		run:       newFakeRunManager(),
		exec:      &queueExecutor{},
		clock:     clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
	}
	h.manager = manager.New(h.store, h.clock, log.Discard())
	h.connect(true)

	h.m = New(Config{
		Manager:      h.manager,
		Generator:    h.generator,
		Sender:       h.sender,
		RunManager:   h.run,
		Availability: h.drone,
		Edition:      h.edition,
		Executor:     h.exec,
		Clock:        h.clock,
		Logger:       log.Discard(),
	})
	h.m.SubscribeState(func(s flightplan.MachineState) {
		h.states = append(h.states, s)
	})
	return h
}

func (h *harness) connect(connected bool) {
	h.drone.HandleDroneState(types.DroneState{
		Connected:         connected,
		PilotingInterface: types.PilotingIdle,
		MissionState:      types.MissionIdle,
	})
}

func (h *harness) names() []string {
	var names []string
	for _, s := range h.states {
		names = append(names, s.Name())
	}
	return names
}

func (h *harness) last() flightplan.MachineState {
	if len(h.states) == 0 {
		return nil
	}
	return h.states[len(h.states)-1]
}

func surveyDataSetting() *flightplan.DataSetting {
	return &flightplan.DataSetting{
		Waypoints: []flightplan.Waypoint{
			{Latitude: 60.1699, Longitude: 24.9384, Altitude: 30},
			{Latitude: 60.1710, Longitude: 24.9410, Altitude: 30},
		},
		LastPointRth: true,
	}
}

// openTemplate stores a fresh editable plan and opens it.
func (h *harness) openTemplate(t *testing.T) *flightplan.FlightPlan {
	t.Helper()
	plan := h.manager.Create("project", "Survey", surveyDataSetting())
	h.m.Open(plan)
	require.Equal(t, "editable", h.m.State().Name())
	h.states = nil
	return plan
}

// storeExecution stores an execution of template in state with the
// given progress.
func (h *harness) storeExecution(template *flightplan.FlightPlan, state flightplan.State, reachedFirst bool) *flightplan.FlightPlan {
	execution := h.manager.NewFlightPlan(template, true)
	execution.HasReachedFirstWaypoint = reachedFirst
	execution.LastMissionItemExecuted = 1
	execution.DataSetting.MavlinkCommands = missionCommands
	return h.manager.Update(execution, state)
}

// fly opens a template and drives it until the drone reports playing.
func (h *harness) fly(t *testing.T) *flightplan.FlightPlan {
	t.Helper()
	template := h.openTemplate(t)
	h.m.Start()
	h.generator.succeed()
	h.exec.drain()
	h.sender.complete(nil)
	h.exec.drain()
	require.Equal(t, "flying", h.m.State().Name())

	h.run.state.Send(flightplan.RunPlaying{DroneConnected: true, FlightPlan: h.run.fp})
	h.clock.Advance(time.Second)
	h.exec.drain()
	require.Equal(t, phaseRunning, h.m.startedFlying.phase)
	h.states = nil
	return template
}
