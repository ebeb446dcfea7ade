package statemachine

import "github.com/tiiuae/flightplanengine/internal/flightplan"

// event is what a state reports back to the machine.
type event interface {
	eventName() string
}

type initResumable struct{ fp *flightplan.FlightPlan }

type initNotResumable struct{ fp *flightplan.FlightPlan }

type isEditable struct {
	fp           *flightplan.FlightPlan
	availability flightplan.StartAvailability
}

type isResumable struct {
	fp           *flightplan.FlightPlan
	availability flightplan.StartAvailability
}

type generationStarted struct{ fp *flightplan.FlightPlan }

type sendingStarted struct{ fp *flightplan.FlightPlan }

type generationFailed struct {
	fp  *flightplan.FlightPlan
	err error
}

type sendingFailed struct {
	fp  *flightplan.FlightPlan
	err error
}

type sendingSucceeded struct {
	fp       *flightplan.FlightPlan
	commands []flightplan.Command
}

type runWillBegin struct{ fp *flightplan.FlightPlan }

type runDidBegin struct{ fp *flightplan.FlightPlan }

type runDidPause struct{ fp *flightplan.FlightPlan }

type runDidFinish struct {
	fp        *flightplan.FlightPlan
	completed bool
}

type runDidTimeout struct{ fp *flightplan.FlightPlan }

type flightPlanEnded struct {
	fp        *flightplan.FlightPlan
	completed bool
}

func (initResumable) eventName() string     { return "initializingFlightPlanIsResumable" }
func (initNotResumable) eventName() string  { return "initializingFlightPlanIsNotResumable" }
func (isEditable) eventName() string        { return "flightPlanIsEditable" }
func (isResumable) eventName() string       { return "flightPlanIsResumable" }
func (generationStarted) eventName() string { return "mavlinkGenerationStarted" }
func (sendingStarted) eventName() string    { return "mavlinkSendingStarted" }
func (generationFailed) eventName() string  { return "mavlinkGenerationError" }
func (sendingFailed) eventName() string     { return "mavlinkSendingError" }
func (sendingSucceeded) eventName() string  { return "mavlinkSendingSuccess" }
func (runWillBegin) eventName() string      { return "flightPlanRunWillBegin" }
func (runDidBegin) eventName() string       { return "flightPlanRunDidBegin" }
func (runDidPause) eventName() string       { return "flightPlanRunDidPause" }
func (runDidFinish) eventName() string      { return "flightPlanRunDidFinish" }
func (runDidTimeout) eventName() string     { return "flightPlanRunDidTimeout" }
func (flightPlanEnded) eventName() string   { return "flightPlanEnded" }
