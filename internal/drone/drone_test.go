package drone

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/types"
)

func TestAvailability(t *testing.T) {
	tests := []struct {
		name  string
		state types.DroneState
		want  string
	}{
		{"disconnected", types.DroneState{}, "unavailable(droneDisconnected)"},
		{"idle", types.DroneState{Connected: true, PilotingInterface: types.PilotingIdle}, "available"},
		{"rth", types.DroneState{Connected: true, NavigationState: types.NavigationStateAutoReturnToLaunchMode5}, "available(rth)"},
		{"running", types.DroneState{Connected: true, MissionState: types.MissionPlaying}, "alreadyRunning"},
		{"piloting", types.DroneState{
			Connected:             true,
			PilotingInterface:     types.PilotingUnavailable,
			UnavailabilityReasons: []string{"missingGps", "cameraUnavailable"},
		}, "unavailable(pilotingItfUnavailable(cameraUnavailable,missingGps))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Availability(tt.state).String())
		})
	}
}

func TestServicePublishesChangesOnly(t *testing.T) {
	s := New(log.Discard())
	assert.False(t, s.DroneConnected())
	assert.False(t, s.StartAvailability().IsAvailable())

	var got []flightplan.StartAvailability
	sub := s.SubscribeStartAvailability(func(a flightplan.StartAvailability) { got = append(got, a) })
	defer sub.Cancel()

	s.HandleDroneState(types.DroneState{Connected: true})
	s.HandleDroneState(types.DroneState{Connected: true})
	s.HandleDroneState(types.DroneState{})

	assert.Len(t, got, 2)
	assert.True(t, got[0].IsAvailable())
	assert.False(t, s.DroneConnected())
}
