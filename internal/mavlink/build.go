// Package mavlink turns flight plans into MAVLink mission items, stores
// them as QGC WPL files and uploads them to the drone.
package mavlink

import (
	"math"

	"github.com/pkg/errors"

	fp "github.com/tiiuae/flightplanengine/internal/flightplan"
)

var (
	ErrNoWaypoint      = errors.New("flight plan has no waypoint")
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// MAV_MOUNT_MODE_MAVLINK_TARGETING
const mountModeTargeting = 2

type builder struct {
	commands []fp.Command
	speed    float64
}

func (b *builder) add(c fp.Command) {
	c.Index = len(b.commands)
	c.AutoContinue = true
	b.commands = append(b.commands, c)
}

// BuildCommands lays out the mission: takeoff, each waypoint with its
// speed, heading and actions, the optional loop back to the first
// waypoint, then return-to-launch or landing.
func BuildCommands(plan *fp.FlightPlan) ([]fp.Command, error) {
	if plan == nil || plan.DataSetting == nil || len(plan.DataSetting.Waypoints) == 0 {
		return nil, ErrNoWaypoint
	}
	ds := plan.DataSetting
	if err := validate(ds); err != nil {
		return nil, err
	}

	b := &builder{}
	first := ds.Waypoints[0]
	takeoffAlt := ds.TakeoffAltitude
	if takeoffAlt <= 0 {
		takeoffAlt = first.Altitude
	}
	b.add(fp.Command{
		Frame:     fp.MavFrameGlobalRelativeAlt,
		Command:   fp.MavCmdNavTakeoff,
		Latitude:  first.Latitude,
		Longitude: first.Longitude,
		Altitude:  takeoffAlt,
	})

	for _, wp := range ds.Waypoints {
		b.addWaypoint(wp, ds.Pois)
	}

	if ds.Buckled && len(ds.Waypoints) > 1 {
		b.addWaypoint(fp.Waypoint{Latitude: first.Latitude, Longitude: first.Longitude, Altitude: first.Altitude}, ds.Pois)
	}

	if ds.LastPointRth {
		b.add(fp.Command{Frame: fp.MavFrameMission, Command: fp.MavCmdNavReturnToLaunch})
	} else {
		last := ds.Waypoints[len(ds.Waypoints)-1]
		if ds.Buckled {
			last = first
		}
		b.add(fp.Command{
			Frame:     fp.MavFrameGlobalRelativeAlt,
			Command:   fp.MavCmdNavLand,
			Latitude:  last.Latitude,
			Longitude: last.Longitude,
		})
	}
	return b.commands, nil
}

func (b *builder) addWaypoint(wp fp.Waypoint, pois []fp.PointOfInterest) {
	if wp.Speed > 0 && wp.Speed != b.speed {
		// ground speed, no throttle change
		b.add(fp.Command{Frame: fp.MavFrameMission, Command: fp.MavCmdDoChangeSpeed, Param1: 1, Param2: wp.Speed, Param3: -1})
		b.speed = wp.Speed
	}

	switch {
	case wp.PoiIndex != nil:
		poi := pois[*wp.PoiIndex]
		b.add(fp.Command{
			Frame:     fp.MavFrameGlobalRelativeAlt,
			Command:   fp.MavCmdDoSetRoi,
			Latitude:  poi.Latitude,
			Longitude: poi.Longitude,
			Altitude:  poi.Altitude,
		})
	case wp.Yaw != nil:
		b.add(fp.Command{Frame: fp.MavFrameMission, Command: fp.MavCmdConditionYaw, Param1: *wp.Yaw, Param3: 1})
	}

	b.add(fp.Command{
		Frame:     fp.MavFrameGlobalRelativeAlt,
		Command:   fp.MavCmdNavWaypoint,
		Latitude:  wp.Latitude,
		Longitude: wp.Longitude,
		Altitude:  wp.Altitude,
	})

	for _, a := range wp.Actions {
		switch a.Type {
		case fp.ActionTilt:
			b.add(fp.Command{Frame: fp.MavFrameMission, Command: fp.MavCmdDoMountControl, Param1: a.Value, Altitude: mountModeTargeting})
		case fp.ActionDelay:
			b.add(fp.Command{Frame: fp.MavFrameMission, Command: fp.MavCmdNavDelay, Param1: a.Value, Param2: -1, Param3: -1, Param4: -1})
		case fp.ActionImageStartCapture:
			b.add(fp.Command{Frame: fp.MavFrameMission, Command: fp.MavCmdImageStartCapture, Param2: a.Value})
		case fp.ActionImageStopCapture:
			b.add(fp.Command{Frame: fp.MavFrameMission, Command: fp.MavCmdImageStopCapture})
		case fp.ActionVideoStartCapture:
			b.add(fp.Command{Frame: fp.MavFrameMission, Command: fp.MavCmdVideoStartCapture, Param2: a.Value})
		case fp.ActionVideoStopCapture:
			b.add(fp.Command{Frame: fp.MavFrameMission, Command: fp.MavCmdVideoStopCapture})
		}
	}
}

func validate(ds *fp.DataSetting) error {
	for i, wp := range ds.Waypoints {
		if !validPosition(wp.Latitude, wp.Longitude, wp.Altitude) {
			return errors.Wrapf(ErrInvalidGeometry, "waypoint %d", i)
		}
		if wp.PoiIndex != nil && (*wp.PoiIndex < 0 || *wp.PoiIndex >= len(ds.Pois)) {
			return errors.Wrapf(ErrInvalidGeometry, "waypoint %d: no point of interest %d", i, *wp.PoiIndex)
		}
	}
	for i, poi := range ds.Pois {
		if !validPosition(poi.Latitude, poi.Longitude, poi.Altitude) {
			return errors.Wrapf(ErrInvalidGeometry, "point of interest %d", i)
		}
	}
	return nil
}

func validPosition(lat, lon, alt float64) bool {
	for _, v := range []float64{lat, lon, alt} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 && alt >= 0
}
