package types

import (
	"time"

	"github.com/tiiuae/flightplanengine/internal/flightplan"
)

// Message types carried on the bus and on the operator command topic.
const (
	MsgOpenFlightPlan            = "open-flightplan"
	MsgStartFlightPlan           = "start-flightplan"
	MsgStopFlightPlan            = "stop-flightplan"
	MsgPauseFlightPlan           = "pause-flightplan"
	MsgResetFlightPlan           = "reset-flightplan"
	MsgForceEditable             = "force-editable"
	MsgEditFlightPlan            = "edit-flightplan"
	MsgCreateFlightPlan          = "create-flightplan"
	MsgCatchUpFlightPlan         = "catchup-flightplan"
	MsgFinishedOfflineFlightPlan = "finished-offline-flightplan"

	MsgDroneState      = "drone-state"
	MsgMissionProgress = "mission-progress"
	MsgMissionCommand  = "mission-command"

	MsgMachineStateChanged = "machine-state-changed"
	MsgRunProgress         = "run-progress"
)

type OpenFlightPlan struct {
	UUID string `json:"uuid"`
}

type StartFlightPlan struct{}

type StopFlightPlan struct{}

type PauseFlightPlan struct{}

type ResetFlightPlan struct{}

type ForceEditable struct{}

// EditFlightPlan replaces the data settings of a stored flight plan.
type EditFlightPlan struct {
	UUID        string                  `json:"uuid"`
	Title       string                  `json:"title,omitempty"`
	DataSetting *flightplan.DataSetting `json:"data_setting"`
}

type CreateFlightPlan struct {
	ProjectUUID string                  `json:"project_uuid"`
	Title       string                  `json:"title"`
	DataSetting *flightplan.DataSetting `json:"data_setting"`
	Open        bool                    `json:"open"`
}

type CatchUpFlightPlan struct {
	UUID                    string  `json:"uuid"`
	LastMissionItemExecuted int     `json:"last_mission_item_executed"`
	RecoveryResourceID      string  `json:"recovery_resource_id,omitempty"`
	RunningTime             float64 `json:"running_time"` // seconds
}

type FinishedOfflineFlightPlan struct {
	UUID string `json:"uuid"`
}

type ArmingState uint8

const (
	ArmingStateInit0 ArmingState = iota
	ArmingStateStandBy1
	ArmingStateArmed2
	ArmingStateStandByError3
	ArmingStateShutdown4
	ArmingStateInAirRestore5
)

type NavigationState uint8

const (
	NavigationStateManualMode0             NavigationState = 0
	NavigationStateAutoMissionMode3        NavigationState = 3
	NavigationStateAutoLoiterMode4         NavigationState = 4
	NavigationStateAutoReturnToLaunchMode5 NavigationState = 5
	NavigationStateTakeoffMode17           NavigationState = 17
	NavigationStateLandMode18              NavigationState = 18
)

// Mission states reported by the drone.
const (
	MissionIdle    = "idle"
	MissionPlaying = "playing"
	MissionPaused  = "paused"
	MissionStopped = "stopped"
)

// Piloting interface states reported by the drone.
const (
	PilotingActive      = "active"
	PilotingIdle        = "idle"
	PilotingUnavailable = "unavailable"
)

// DroneState is the periodic status the drone publishes.
type DroneState struct {
	Connected             bool            `json:"connected"`
	ArmingState           ArmingState     `json:"arming_state"`
	NavigationState       NavigationState `json:"navigation_state"`
	PilotingInterface     string          `json:"piloting_interface"`
	UnavailabilityReasons []string        `json:"unavailability_reasons,omitempty"`
	MissionState          string          `json:"mission_state"`
	FlightPlanUUID        string          `json:"flightplan_uuid,omitempty"`
	ActivationError       string          `json:"activation_error,omitempty"`
}

func (s DroneState) IsReturningHome() bool {
	return s.NavigationState == NavigationStateAutoReturnToLaunchMode5
}

// MissionProgress follows the autopilot's mission result report.
type MissionProgress struct {
	Timestamp          uint64  `json:"timestamp"` // time since system start (microseconds)
	FlightPlanUUID     string  `json:"flightplan_uuid"`
	InstanceCount      int     `json:"instance_count"`
	SeqReached         int     `json:"seq_reached"` // last mission item reached, default -1
	SeqCurrent         int     `json:"seq_current"`
	SeqTotal           int     `json:"seq_total"`
	Valid              bool    `json:"valid"`
	Finished           bool    `json:"finished"`
	Failure            bool    `json:"failure"`
	RecoveryResourceID string  `json:"recovery_resource_id,omitempty"`
	RunningTime        float64 `json:"running_time"` // seconds
}

func (p MissionProgress) Duration() time.Duration {
	return time.Duration(p.RunningTime * float64(time.Second))
}

// Mission commands sent to the drone.
const (
	CommandPlay    = "play"
	CommandPause   = "pause"
	CommandUnpause = "unpause"
	CommandStop    = "stop"
)

type MissionCommand struct {
	Command        string `json:"command"`
	FlightPlanUUID string `json:"flightplan_uuid"`
	FromItem       int    `json:"from_item"`
}

// MachineStateChanged mirrors every state the flight plan machine publishes.
type MachineStateChanged struct {
	State             string                 `json:"state"`
	FlightPlan        *flightplan.FlightPlan `json:"flightplan,omitempty"`
	StartAvailability string                 `json:"start_availability,omitempty"`
	MavlinkStatus     string                 `json:"mavlink_status,omitempty"`
	Completed         bool                   `json:"completed,omitempty"`
}

func NewMachineStateChanged(s flightplan.MachineState) MachineStateChanged {
	out := MachineStateChanged{State: s.Name(), FlightPlan: s.CurrentFlightPlan()}
	switch st := s.(type) {
	case flightplan.Editable:
		out.StartAvailability = st.StartAvailability.String()
	case flightplan.Resumable:
		out.StartAvailability = st.StartAvailability.String()
	case flightplan.StartedNotFlying:
		out.MavlinkStatus = st.MavlinkStatus.String()
	case flightplan.End:
		out.Completed = st.Completed
	}
	return out
}

type RunProgress struct {
	FlightPlanUUID          string  `json:"flightplan_uuid"`
	RunningState            string  `json:"running_state"`
	LastMissionItemExecuted int     `json:"last_mission_item_executed"`
	RunningTime             float64 `json:"running_time"`
}
