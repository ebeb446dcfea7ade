package flightplan

import "fmt"

// RunningState is published by the run manager while it supervises a run.
type RunningState interface {
	fmt.Stringer
	isRunningState()
}

type RunNoFlightPlan struct{}

type RunIdle struct{}

type RunPlaying struct {
	DroneConnected  bool
	FlightPlan      *FlightPlan
	IsReturningHome bool
}

type RunPaused struct {
	FlightPlan        *FlightPlan
	StartAvailability StartAvailability
}

type RunActivationError struct {
	Reason ActivationErrorReason
}

type RunEnded struct {
	Completed  bool
	FlightPlan *FlightPlan
}

func (RunNoFlightPlan) isRunningState()    {}
func (RunIdle) isRunningState()            {}
func (RunPlaying) isRunningState()         {}
func (RunPaused) isRunningState()          {}
func (RunActivationError) isRunningState() {}
func (RunEnded) isRunningState()           {}

func (RunNoFlightPlan) String() string {
	return "noFlightPlan"
}
func (RunIdle) String() string {
	return "idle"
}
func (s RunPlaying) String() string {
	return fmt.Sprintf("playing(connected: %t, rth: %t)", s.DroneConnected, s.IsReturningHome)
}
func (s RunPaused) String() string {
	return "paused"
}
func (s RunActivationError) String() string {
	return "activationError(" + string(s.Reason) + ")"
}
func (s RunEnded) String() string {
	return fmt.Sprintf("ended(completed: %t)", s.Completed)
}

type ActivationErrorReason string

const (
	ActivationCannotTakeOff     ActivationErrorReason = "cannotTakeOff"
	ActivationDroneDisconnected ActivationErrorReason = "droneDisconnected"
	ActivationMissingMavlink    ActivationErrorReason = "missingMavlink"
	ActivationRejected          ActivationErrorReason = "rejected"
	ActivationUnknown           ActivationErrorReason = "unknown"
)

// ParseActivationErrorReason maps drone-reported reasons; anything not
// listed is ActivationUnknown.
func ParseActivationErrorReason(s string) ActivationErrorReason {
	switch r := ActivationErrorReason(s); r {
	case ActivationCannotTakeOff, ActivationDroneDisconnected, ActivationMissingMavlink, ActivationRejected:
		return r
	}
	return ActivationUnknown
}

type MavlinkStatus int

const (
	MavlinkGenerating MavlinkStatus = iota
	MavlinkSending
)

func (s MavlinkStatus) String() string {
	if s == MavlinkSending {
		return "sending"
	}
	return "generating"
}
