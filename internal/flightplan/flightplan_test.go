package flightplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missionItems() []Command {
	return []Command{
		{Index: 0, Command: MavCmdNavTakeoff},
		{Index: 1, Command: MavCmdDoChangeSpeed},
		{Index: 2, Command: MavCmdNavWaypoint},
		{Index: 3, Command: MavCmdImageStartCapture},
		{Index: 4, Command: MavCmdNavWaypoint},
		{Index: 5, Command: MavCmdNavWaypoint},
		{Index: 6, Command: MavCmdNavReturnToLaunch},
	}
}

func TestParseState(t *testing.T) {
	assert.Equal(t, StateFlying, ParseState("flying"))
	assert.Equal(t, StateUnknown, ParseState("bogus"))
	assert.Equal(t, StateUnknown, ParseState("unknown"))
}

func TestWaypointBounds(t *testing.T) {
	first, last := WaypointBounds(missionItems())
	assert.Equal(t, 2, first)
	assert.Equal(t, 5, last)

	first, last = WaypointBounds(nil)
	assert.Equal(t, NoMissionItem, first)
	assert.Equal(t, NoMissionItem, last)
}

func TestApplyProgress(t *testing.T) {
	fp := &FlightPlan{UUID: "fp", LastMissionItemExecuted: NoMissionItem}

	fp.ApplyProgress(1, missionItems())
	assert.False(t, fp.HasReachedFirstWaypoint)

	fp.ApplyProgress(3, missionItems())
	assert.True(t, fp.HasReachedFirstWaypoint)
	assert.False(t, fp.HasReachedLastWaypoint)

	// progress never goes backwards
	fp.ApplyProgress(2, missionItems())
	assert.Equal(t, 3, fp.LastMissionItemExecuted)

	fp.ApplyProgress(5, missionItems())
	assert.True(t, fp.HasReachedLastWaypoint)
}

func TestApplyProgressUsesStoredCommands(t *testing.T) {
	fp := &FlightPlan{
		LastMissionItemExecuted: NoMissionItem,
		DataSetting:             &DataSetting{MavlinkCommands: missionItems()},
	}
	fp.ApplyProgress(2, nil)
	assert.True(t, fp.HasReachedFirstWaypoint)
}

func TestCloneIsDeep(t *testing.T) {
	fp := &FlightPlan{
		UUID:  "fp",
		State: StateEditable,
		DataSetting: &DataSetting{
			Waypoints: []Waypoint{{Latitude: 1, Longitude: 2, Altitude: 30}},
			Settings:  map[string]string{"resolution": "12mp"},
		},
	}
	c := fp.Clone()
	require.NotSame(t, fp.DataSetting, c.DataSetting)

	c.DataSetting.Waypoints[0].Altitude = 99
	c.DataSetting.Settings["resolution"] = "48mp"
	assert.Equal(t, 30.0, fp.DataSetting.Waypoints[0].Altitude)
	assert.Equal(t, "12mp", fp.DataSetting.Settings["resolution"])

	var nilPlan *FlightPlan
	assert.Nil(t, nilPlan.Clone())
}

func TestResetProgress(t *testing.T) {
	fp := &FlightPlan{LastMissionItemExecuted: 4, HasReachedFirstWaypoint: true, RecoveryResourceID: "r"}
	fp.ResetProgress()
	assert.Equal(t, NoMissionItem, fp.LastMissionItemExecuted)
	assert.False(t, fp.HasReachedFirstWaypoint)
	assert.Empty(t, fp.RecoveryResourceID)
}

func TestPilotingInterfaceReasonsAreASortedSet(t *testing.T) {
	r := PilotingInterfaceUnavailable("missingGps", "insufficientBattery", "missingGps")
	assert.Equal(t, []string{"insufficientBattery", "missingGps"}, r.Reasons)
	assert.Equal(t, "pilotingItfUnavailable(insufficientBattery,missingGps)", r.String())

	a := NewUnavailable(r)
	assert.False(t, a.IsAvailable())
	assert.True(t, NewAvailable(false).IsAvailable())
	assert.Equal(t, "alreadyRunning", NewAlreadyRunning().String())
}

func TestMachineStateWithFlightPlan(t *testing.T) {
	fp := &FlightPlan{UUID: "a"}
	other := &FlightPlan{UUID: "b"}

	var s MachineState = Editable{FlightPlan: fp, StartAvailability: NewAvailable(false)}
	s = s.WithFlightPlan(other)
	assert.Same(t, other, s.CurrentFlightPlan())
	assert.Equal(t, "editable", s.Name())

	assert.Nil(t, Initialized{}.WithFlightPlan(other).CurrentFlightPlan())
	assert.Nil(t, MachineStarted{}.CurrentFlightPlan())
}
