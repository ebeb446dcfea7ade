package flightplan

import "fmt"

// MachineState is the externally observable state of the flight plan
// state machine. There is deliberately no equality: each published value
// is a distinct event, even when its payload looks unchanged.
type MachineState interface {
	fmt.Stringer
	// CurrentFlightPlan is nil for MachineStarted and Initialized.
	CurrentFlightPlan() *FlightPlan
	// WithFlightPlan returns the same case carrying fp.
	WithFlightPlan(fp *FlightPlan) MachineState
	Name() string
}

type MachineStarted struct{}

type Initialized struct{}

type Editable struct {
	FlightPlan        *FlightPlan
	StartAvailability StartAvailability
}

type Resumable struct {
	FlightPlan        *FlightPlan
	StartAvailability StartAvailability
}

type StartedNotFlying struct {
	FlightPlan    *FlightPlan
	MavlinkStatus MavlinkStatus
}

type Flying struct {
	FlightPlan *FlightPlan
}

type End struct {
	FlightPlan *FlightPlan
	Completed  bool
}

func (MachineStarted) CurrentFlightPlan() *FlightPlan {
	return nil
}
func (Initialized) CurrentFlightPlan() *FlightPlan {
	return nil
}
func (s Editable) CurrentFlightPlan() *FlightPlan {
	return s.FlightPlan
}
func (s Resumable) CurrentFlightPlan() *FlightPlan {
	return s.FlightPlan
}
func (s StartedNotFlying) CurrentFlightPlan() *FlightPlan {
	return s.FlightPlan
}
func (s Flying) CurrentFlightPlan() *FlightPlan {
	return s.FlightPlan
}
func (s End) CurrentFlightPlan() *FlightPlan {
	return s.FlightPlan
}

func (s MachineStarted) WithFlightPlan(*FlightPlan) MachineState {
	return s
}
func (s Initialized) WithFlightPlan(*FlightPlan) MachineState {
	return s
}
func (s Editable) WithFlightPlan(fp *FlightPlan) MachineState {
	s.FlightPlan = fp
	return s
}
func (s Resumable) WithFlightPlan(fp *FlightPlan) MachineState {
	s.FlightPlan = fp
	return s
}
func (s StartedNotFlying) WithFlightPlan(fp *FlightPlan) MachineState {
	s.FlightPlan = fp
	return s
}
func (s Flying) WithFlightPlan(fp *FlightPlan) MachineState {
	s.FlightPlan = fp
	return s
}
func (s End) WithFlightPlan(fp *FlightPlan) MachineState {
	s.FlightPlan = fp
	return s
}

func (MachineStarted) Name() string {
	return "machineStarted"
}
func (Initialized) Name() string {
	return "initialized"
}
func (Editable) Name() string {
	return "editable"
}
func (Resumable) Name() string {
	return "resumable"
}
func (StartedNotFlying) Name() string {
	return "startedNotFlying"
}
func (Flying) Name() string {
	return "flying"
}
func (End) Name() string {
	return "end"
}

func (s MachineStarted) String() string {
	return s.Name()
}
func (s Initialized) String() string {
	return s.Name()
}
func (s Editable) String() string {
	return fmt.Sprintf("editable(%s, %s)", s.FlightPlan, s.StartAvailability)
}
func (s Resumable) String() string {
	return fmt.Sprintf("resumable(%s, %s)", s.FlightPlan, s.StartAvailability)
}
func (s StartedNotFlying) String() string {
	return fmt.Sprintf("startedNotFlying(%s, %s)", s.FlightPlan, s.MavlinkStatus)
}
func (s Flying) String() string {
	return fmt.Sprintf("flying(%s)", s.FlightPlan)
}
func (s End) String() string {
	return fmt.Sprintf("end(%s, completed: %t)", s.FlightPlan, s.Completed)
}
