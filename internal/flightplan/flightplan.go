package flightplan

import (
	"time"

	"github.com/brunoga/deep"
)

type State string

const (
	StateEditable   State = "editable"
	StateStopped    State = "stopped"
	StateFlying     State = "flying"
	StateCompleted  State = "completed"
	StateUploading  State = "uploading"
	StateProcessing State = "processing"
	StateProcessed  State = "processed"
	StateUnknown    State = "unknown"
)

// ParseState maps unrecognised values to StateUnknown.
func ParseState(s string) State {
	switch st := State(s); st {
	case StateEditable, StateStopped, StateFlying, StateCompleted,
		StateUploading, StateProcessing, StateProcessed:
		return st
	}
	return StateUnknown
}

const NoMissionItem = -1

// FlightPlan is one persisted record: either the editable template of a
// project or one execution of it.
type FlightPlan struct {
	UUID                    string        `json:"uuid" msgpack:"uuid"`
	ProjectUUID             string        `json:"project_uuid" msgpack:"project_uuid"`
	Title                   string        `json:"title" msgpack:"title"`
	State                   State         `json:"state" msgpack:"state"`
	DataSetting             *DataSetting  `json:"data_setting,omitempty" msgpack:"data_setting"`
	LastMissionItemExecuted int           `json:"last_mission_item_executed" msgpack:"last_mission_item_executed"`
	RecoveryResourceID      string        `json:"recovery_resource_id,omitempty" msgpack:"recovery_resource_id"`
	Duration                time.Duration `json:"duration" msgpack:"duration"`
	HasReachedFirstWaypoint bool          `json:"has_reached_first_waypoint" msgpack:"has_reached_first_waypoint"`
	HasReachedLastWaypoint  bool          `json:"has_reached_last_waypoint" msgpack:"has_reached_last_waypoint"`
	ExecutionRank           int           `json:"execution_rank" msgpack:"execution_rank"`
	LastUpdate              time.Time     `json:"last_update" msgpack:"last_update"`
}

type DataSetting struct {
	ReadOnly         bool              `json:"read_only" msgpack:"read_only"`
	Waypoints        []Waypoint        `json:"waypoints" msgpack:"waypoints"`
	Pois             []PointOfInterest `json:"pois,omitempty" msgpack:"pois"`
	Buckled          bool              `json:"buckled" msgpack:"buckled"`
	LastPointRth     bool              `json:"last_point_rth" msgpack:"last_point_rth"`
	DisconnectionRth bool              `json:"disconnection_rth" msgpack:"disconnection_rth"`
	TakeoffAltitude  float64           `json:"takeoff_altitude,omitempty" msgpack:"takeoff_altitude"`
	Settings         map[string]string `json:"settings,omitempty" msgpack:"settings"`
	MavlinkCommands  []Command         `json:"mavlink_commands,omitempty" msgpack:"mavlink_commands"`
}

type Waypoint struct {
	Latitude  float64  `json:"lat" msgpack:"lat"`
	Longitude float64  `json:"lon" msgpack:"lon"`
	Altitude  float64  `json:"alt" msgpack:"alt"`
	Speed     float64  `json:"speed,omitempty" msgpack:"speed"`
	Yaw       *float64 `json:"yaw,omitempty" msgpack:"yaw"`
	PoiIndex  *int     `json:"poi_index,omitempty" msgpack:"poi_index"`
	Actions   []Action `json:"actions,omitempty" msgpack:"actions"`
}

type PointOfInterest struct {
	Latitude  float64 `json:"lat" msgpack:"lat"`
	Longitude float64 `json:"lon" msgpack:"lon"`
	Altitude  float64 `json:"alt" msgpack:"alt"`
}

type ActionType string

const (
	ActionTilt              ActionType = "tilt"
	ActionDelay             ActionType = "delay"
	ActionImageStartCapture ActionType = "image_start_capture"
	ActionImageStopCapture  ActionType = "image_stop_capture"
	ActionVideoStartCapture ActionType = "video_start_capture"
	ActionVideoStopCapture  ActionType = "video_stop_capture"
)

// Action is executed when its waypoint is reached. Value is the tilt
// angle in degrees, the delay in seconds or the capture interval.
type Action struct {
	Type  ActionType `json:"type" msgpack:"type"`
	Value float64    `json:"value,omitempty" msgpack:"value"`
}

// Clone returns a deep copy. The machine and its states never share a
// *FlightPlan with the persistence layer.
func (fp *FlightPlan) Clone() *FlightPlan {
	if fp == nil {
		return nil
	}
	return deep.MustCopy(fp)
}

func (fp *FlightPlan) IsEditable() bool {
	return fp != nil && fp.State == StateEditable
}

// IsExecution reports whether the record was produced by running a template.
func (fp *FlightPlan) IsExecution() bool {
	if fp == nil {
		return false
	}
	switch fp.State {
	case StateStopped, StateFlying, StateCompleted:
		return true
	}
	return false
}

func (fp *FlightPlan) MavlinkCommands() []Command {
	if fp == nil || fp.DataSetting == nil {
		return nil
	}
	return fp.DataSetting.MavlinkCommands
}

// ResetProgress clears everything a run writes into the record.
func (fp *FlightPlan) ResetProgress() {
	fp.LastMissionItemExecuted = NoMissionItem
	fp.RecoveryResourceID = ""
	fp.Duration = 0
	fp.HasReachedFirstWaypoint = false
	fp.HasReachedLastWaypoint = false
}

// ApplyProgress records the last executed mission item and derives the
// first/last waypoint flags from the plan's mission items.
func (fp *FlightPlan) ApplyProgress(lastMissionItemExecuted int, commands []Command) {
	if lastMissionItemExecuted < fp.LastMissionItemExecuted {
		return
	}
	fp.LastMissionItemExecuted = lastMissionItemExecuted
	if len(commands) == 0 {
		commands = fp.MavlinkCommands()
	}
	first, last := WaypointBounds(commands)
	if first != NoMissionItem && lastMissionItemExecuted >= first {
		fp.HasReachedFirstWaypoint = true
	}
	if last != NoMissionItem && lastMissionItemExecuted >= last {
		fp.HasReachedLastWaypoint = true
	}
}

func (fp *FlightPlan) String() string {
	if fp == nil {
		return "<nil>"
	}
	return fp.UUID + " (" + string(fp.State) + ")"
}

// SameFlightPlan compares identities, not content.
func SameFlightPlan(a, b *FlightPlan) bool {
	return a != nil && b != nil && a.UUID == b.UUID
}
