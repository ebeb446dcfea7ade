// Package drone derives whether a flight plan may be started from the
// status the drone reports.
package drone

import (
	"sync"

	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/pubsub"
	"github.com/tiiuae/flightplanengine/internal/types"
)

type Service struct {
	mu           sync.Mutex
	last         types.DroneState
	availability *pubsub.Subject[flightplan.StartAvailability]
	lg           *log.Logger
}

func New(lg *log.Logger) *Service {
	return &Service{
		availability: pubsub.New(flightplan.NewUnavailable(flightplan.DroneDisconnected())),
		lg:           lg.Component("drone"),
	}
}

func (s *Service) HandleDroneState(st types.DroneState) {
	s.mu.Lock()
	prev := s.last
	s.last = st
	s.mu.Unlock()

	if prev.Connected != st.Connected {
		s.lg.Infof("Drone: connected=%t", st.Connected)
	}

	a := Availability(st)
	if a.String() != s.availability.Value().String() {
		s.availability.Send(a)
	}
}

// Availability maps a drone status to a start availability.
func Availability(st types.DroneState) flightplan.StartAvailability {
	switch {
	case !st.Connected:
		return flightplan.NewUnavailable(flightplan.DroneDisconnected())
	case st.MissionState == types.MissionPlaying || st.MissionState == types.MissionPaused:
		return flightplan.NewAlreadyRunning()
	case st.PilotingInterface == types.PilotingUnavailable:
		return flightplan.NewUnavailable(flightplan.PilotingInterfaceUnavailable(st.UnavailabilityReasons...))
	}
	return flightplan.NewAvailable(st.IsReturningHome())
}

func (s *Service) DroneConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Connected
}

func (s *Service) LastState() types.DroneState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Service) StartAvailability() flightplan.StartAvailability {
	return s.availability.Value()
}

func (s *Service) SubscribeStartAvailability(fn func(flightplan.StartAvailability)) *pubsub.Subscription {
	return s.availability.Subscribe(fn)
}

// Subscribers counts the live availability subscriptions.
func (s *Service) Subscribers() int {
	return s.availability.Len()
}
