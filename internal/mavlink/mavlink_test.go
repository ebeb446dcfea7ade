package mavlink

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fp "github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/log"
)

func survey() *fp.FlightPlan {
	yaw := 180.0
	poi := 0
	return &fp.FlightPlan{
		UUID: "fp-1",
		DataSetting: &fp.DataSetting{
			Waypoints: []fp.Waypoint{
				{Latitude: 60.1, Longitude: 24.9, Altitude: 20, Speed: 5, Yaw: &yaw},
				{Latitude: 60.2, Longitude: 24.8, Altitude: 25, Speed: 5, PoiIndex: &poi,
					Actions: []fp.Action{{Type: fp.ActionTilt, Value: -90}, {Type: fp.ActionImageStartCapture, Value: 2}}},
			},
			Pois:         []fp.PointOfInterest{{Latitude: 60.15, Longitude: 24.85}},
			LastPointRth: true,
		},
	}
}

func commandIDs(commands []fp.Command) []uint16 {
	ids := make([]uint16, len(commands))
	for i, c := range commands {
		ids[i] = c.Command
	}
	return ids
}

func TestBuildCommands(t *testing.T) {
	commands, err := BuildCommands(survey())
	require.NoError(t, err)

	assert.Equal(t, []uint16{
		fp.MavCmdNavTakeoff,
		fp.MavCmdDoChangeSpeed,
		fp.MavCmdConditionYaw,
		fp.MavCmdNavWaypoint,
		fp.MavCmdDoSetRoi,
		fp.MavCmdNavWaypoint,
		fp.MavCmdDoMountControl,
		fp.MavCmdImageStartCapture,
		fp.MavCmdNavReturnToLaunch,
	}, commandIDs(commands))

	for i, c := range commands {
		assert.Equal(t, i, c.Index)
		assert.True(t, c.AutoContinue)
	}
	first, last := fp.WaypointBounds(commands)
	assert.Equal(t, 3, first)
	assert.Equal(t, 5, last)
}

func TestBuildCommandsBuckledLanding(t *testing.T) {
	plan := survey()
	plan.DataSetting.Buckled = true
	plan.DataSetting.LastPointRth = false

	commands, err := BuildCommands(plan)
	require.NoError(t, err)

	n := len(commands)
	assert.Equal(t, fp.MavCmdNavWaypoint, commands[n-2].Command)
	assert.Equal(t, 60.1, commands[n-2].Latitude)
	assert.Equal(t, fp.MavCmdNavLand, commands[n-1].Command)
	assert.Equal(t, 24.9, commands[n-1].Longitude)
}

func TestBuildCommandsValidation(t *testing.T) {
	_, err := BuildCommands(&fp.FlightPlan{UUID: "empty", DataSetting: &fp.DataSetting{}})
	assert.True(t, errors.Is(err, ErrNoWaypoint))

	_, err = BuildCommands(nil)
	assert.True(t, errors.Is(err, ErrNoWaypoint))

	plan := survey()
	plan.DataSetting.Waypoints[1].Latitude = 91
	_, err = BuildCommands(plan)
	assert.True(t, errors.Is(err, ErrInvalidGeometry))

	plan = survey()
	plan.DataSetting.Waypoints[0].Altitude = math.NaN()
	_, err = BuildCommands(plan)
	assert.True(t, errors.Is(err, ErrInvalidGeometry))

	plan = survey()
	bad := 3
	plan.DataSetting.Waypoints[1].PoiIndex = &bad
	_, err = BuildCommands(plan)
	assert.True(t, errors.Is(err, ErrInvalidGeometry))
}

func TestWPLEncodeDecode(t *testing.T) {
	commands, err := BuildCommands(survey())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, commands))
	assert.True(t, strings.HasPrefix(buf.String(), "QGC WPL 120\n0\t1\t3\t22\t"))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, commands, decoded)
}

func TestWPLDecodeErrors(t *testing.T) {
	_, err := Decode(strings.NewReader(""))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader("QGC WPL 110\n"))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader("QGC WPL 120\n0\t1\t3\n"))
	assert.Error(t, err)
}

func TestGeneratorWritesMissionFile(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir, log.Discard())

	type outcome struct {
		result fp.MavlinkResult
		err    error
	}
	done := make(chan outcome, 1)
	g.Generate(survey(), func(r fp.MavlinkResult, err error) { done <- outcome{r, err} })

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, filepath.Join(dir, "fp-1.mavlink"), out.result.Path)
	assert.Equal(t, out.result.Commands, out.result.FlightPlan.DataSetting.MavlinkCommands)

	f, err := os.Open(out.result.Path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := Decode(f)
	require.NoError(t, err)
	assert.Len(t, decoded, len(out.result.Commands))
}

func TestGeneratorFailure(t *testing.T) {
	g := NewGenerator(t.TempDir(), log.Discard())
	done := make(chan error, 1)
	g.Generate(&fp.FlightPlan{UUID: "empty"}, func(_ fp.MavlinkResult, err error) { done <- err })

	err := <-done
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "empty", genErr.FlightPlanUUID)
	assert.True(t, errors.Is(err, ErrNoWaypoint))
}

type blockingUploader struct {
	got chan []byte
	err error
}

func (u *blockingUploader) Upload(ctx context.Context, id string, mission []byte) error {
	if u.got != nil {
		u.got <- mission
		return u.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func writeMission(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "m.mavlink")
	require.NoError(t, os.WriteFile(path, []byte("QGC WPL 120\n"), 0644))
	return path
}

func TestSenderUploads(t *testing.T) {
	u := &blockingUploader{got: make(chan []byte, 1)}
	s := NewSender(u, time.Second, log.Discard())

	done := make(chan error, 1)
	s.Send(writeMission(t), "fp-1", func(err error) { done <- err })
	assert.NoError(t, <-done)
	assert.Equal(t, "QGC WPL 120\n", string(<-u.got))
}

func TestSenderReportsRejection(t *testing.T) {
	u := &blockingUploader{got: make(chan []byte, 1), err: errors.New("rejected")}
	s := NewSender(u, time.Second, log.Discard())

	done := make(chan error, 1)
	s.Send(writeMission(t), "fp-1", func(err error) { done <- err })
	var sendErr *SenderError
	require.ErrorAs(t, <-done, &sendErr)
}

func TestSenderCleanupCancels(t *testing.T) {
	s := NewSender(&blockingUploader{}, time.Minute, log.Discard())
	path := writeMission(t)

	done := make(chan error, 1)
	s.Send(path, "fp-1", func(err error) { done <- err })
	s.Cleanup()
	s.Cleanup()

	assert.True(t, errors.Is(<-done, ErrUploadCancelled))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSenderTimeout(t *testing.T) {
	s := NewSender(&blockingUploader{}, 10*time.Millisecond, log.Discard())
	done := make(chan error, 1)
	s.Send(writeMission(t), "fp-1", func(err error) { done <- err })
	assert.True(t, errors.Is(<-done, context.DeadlineExceeded))
}
