package statemachine

import (
	"time"

	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/pubsub"
)

// Manager is the persistence boundary. Save and Update are write-through:
// the returned value is what a following FlightPlan call will observe.
type Manager interface {
	FlightPlan(uuid string) (*flightplan.FlightPlan, bool)
	Update(fp *flightplan.FlightPlan, state flightplan.State) *flightplan.FlightPlan
	Save(fp *flightplan.FlightPlan) *flightplan.FlightPlan
	NewFlightPlan(basedOn *flightplan.FlightPlan, save bool) *flightplan.FlightPlan
	EditableFlightPlansFor(projectUUID string) []*flightplan.FlightPlan
	Delete(uuid string)
	GenerateMavlinkCommands(fp *flightplan.FlightPlan) []flightplan.Command
}

// MavlinkGenerator and MavlinkSender may call their completions from any
// goroutine.
type MavlinkGenerator interface {
	Generate(fp *flightplan.FlightPlan, completion func(flightplan.MavlinkResult, error))
}

type MavlinkSender interface {
	Send(path, customFlightPlanID string, completion func(error))
	Cleanup()
}

// RunManager must publish its states on the machine's goroutine.
type RunManager interface {
	Setup(fp *flightplan.FlightPlan, commands []flightplan.Command)
	Play()
	Pause()
	Unpause()
	Stop()
	Reset()
	CatchUp(lastMissionItemExecuted int, recoveryResourceID string, duration time.Duration)
	State() flightplan.RunningState
	SubscribeState(fn func(flightplan.RunningState)) *pubsub.Subscription
}

type Availability interface {
	StartAvailability() flightplan.StartAvailability
	SubscribeStartAvailability(fn func(flightplan.StartAvailability)) *pubsub.Subscription
	DroneConnected() bool
}

type Edition interface {
	CurrentFlightPlan() *flightplan.FlightPlan
	SubscribeCurrentFlightPlan(fn func(*flightplan.FlightPlan)) *pubsub.Subscription
}

// Executor runs fn on the machine's goroutine.
type Executor interface {
	Execute(fn func())
}
