package flightplan

// MAV_CMD identifiers used by generated missions.
const (
	MavCmdNavWaypoint         uint16 = 16
	MavCmdNavReturnToLaunch   uint16 = 20
	MavCmdNavLand             uint16 = 21
	MavCmdNavTakeoff          uint16 = 22
	MavCmdNavDelay            uint16 = 93
	MavCmdConditionYaw        uint16 = 115
	MavCmdDoChangeSpeed       uint16 = 178
	MavCmdDoSetRoi            uint16 = 201
	MavCmdDoMountControl      uint16 = 205
	MavCmdImageStartCapture   uint16 = 2000
	MavCmdImageStopCapture    uint16 = 2001
	MavCmdVideoStartCapture   uint16 = 2500
	MavCmdVideoStopCapture    uint16 = 2501
	MavFrameGlobalRelativeAlt uint8  = 3
	MavFrameMission           uint8  = 2
)

// Command is a single MAVLink mission item.
type Command struct {
	Index        int     `json:"index" msgpack:"index"`
	Frame        uint8   `json:"frame" msgpack:"frame"`
	Command      uint16  `json:"command" msgpack:"command"`
	Param1       float64 `json:"param1" msgpack:"param1"`
	Param2       float64 `json:"param2" msgpack:"param2"`
	Param3       float64 `json:"param3" msgpack:"param3"`
	Param4       float64 `json:"param4" msgpack:"param4"`
	Latitude     float64 `json:"lat" msgpack:"lat"`
	Longitude    float64 `json:"lon" msgpack:"lon"`
	Altitude     float64 `json:"alt" msgpack:"alt"`
	AutoContinue bool    `json:"autocontinue" msgpack:"autocontinue"`
}

func (c Command) IsWaypoint() bool {
	return c.Command == MavCmdNavWaypoint
}

// WaypointBounds returns the mission indexes of the first and last
// NAV_WAYPOINT items, or NoMissionItem when there are none.
func WaypointBounds(commands []Command) (first, last int) {
	first, last = NoMissionItem, NoMissionItem
	for _, c := range commands {
		if !c.IsWaypoint() {
			continue
		}
		if first == NoMissionItem {
			first = c.Index
		}
		last = c.Index
	}
	return first, last
}

// MavlinkResult is what a successful generation hands back.
type MavlinkResult struct {
	FlightPlan *FlightPlan
	Path       string
	Commands   []Command
}
