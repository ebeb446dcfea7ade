package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/types"
)

func init() {
	color.NoColor = true
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, deviceID, mqttBrokerAddress, dbPath, logLevel = "", "", "", "", ""
	planProject, planTitle, planData = "", "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device_id: drone-1\nstorage:\n  path: /tmp/a.db\n"), 0o600))

	configPath = path
	deviceID = "drone-2"
	dbPath = "/tmp/b.db"
	mqttBrokerAddress = "tcp://localhost:1883"
	logLevel = "debug"
	t.Cleanup(func() {
		configPath, deviceID, mqttBrokerAddress, dbPath, logLevel = "", "", "", "", ""
	})

	c, err := loadConfig(true)
	require.NoError(t, err)
	assert.Equal(t, "drone-2", c.DeviceID)
	assert.Equal(t, "/tmp/b.db", c.Storage.Path)
	assert.Equal(t, "tcp://localhost:1883", c.MQTT.Broker)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoadConfigValidates(t *testing.T) {
	configPath, deviceID = "", ""
	_, err := loadConfig(true)
	assert.Error(t, err)

	_, err = loadConfig(false)
	assert.NoError(t, err)
}

func TestPlanCreateAndList(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "flightplans.db")
	data := filepath.Join(dir, "survey.json")
	require.NoError(t, os.WriteFile(data, []byte(`{
		"waypoints": [{"lat": 60.1699, "lon": 24.9384, "alt": 30}],
		"last_point_rth": true
	}`), 0o600))

	out, err := execute(t, "plan", "create", "--db", db, "--project", "p1", "--title", "Survey", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Created")
	assert.Contains(t, out, "(project p1)")

	out, err = execute(t, "plan", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Survey")
	assert.Contains(t, out, "editable")

	out, err = execute(t, "plan", "list", "--db", db, "--project", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "No flight plans")
}

func TestPlanCreateRejectsEmptyDataSetting(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(data, []byte(`{"waypoints": []}`), 0o600))

	_, err := execute(t, "plan", "create", "--db", filepath.Join(dir, "x.db"), "--title", "Empty", "--data", data)
	assert.ErrorContains(t, err, "no waypoint")
}

func TestFormatState(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	fp := &flightplan.FlightPlan{UUID: "fp-1", Title: "Survey"}

	assert.Equal(t, `12:30:00 editable "Survey" fp-1 available`,
		formatState(ts, types.MachineStateChanged{State: "editable", FlightPlan: fp, StartAvailability: "available"}))
	assert.Equal(t, `12:30:00 end "Survey" fp-1 completed=true`,
		formatState(ts, types.MachineStateChanged{State: "end", FlightPlan: fp, Completed: true}))
	assert.Equal(t, "12:30:00 machineStarted", formatState(ts, types.MachineStateChanged{State: "machineStarted"}))
}

func TestPrintEvent(t *testing.T) {
	var out bytes.Buffer
	payload := []byte(`{
		"timestamp": "2024-05-01T12:30:00Z",
		"message_type": "run-progress",
		"message": {"flightplan_uuid": "fp-1", "running_state": "playing", "last_mission_item_executed": 3, "running_time": 61.2}
	}`)
	require.NoError(t, printEvent(&out, payload))
	assert.Equal(t, "12:30:00 run playing item 3 after 1m1s\n", out.String())

	assert.Error(t, printEvent(&out, []byte("{")))
}

func TestFormatPlan(t *testing.T) {
	fp := &flightplan.FlightPlan{
		UUID:                    "fp-1",
		Title:                   "Survey (1)",
		State:                   flightplan.StateCompleted,
		LastMissionItemExecuted: 5,
		Duration:                90 * time.Second,
		LastUpdate:              time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
	}
	assert.Equal(t, "fp-1  completed  Survey (1)  item 5, 1m30s  2024-05-01 12:30:00", formatPlan(fp))
}
