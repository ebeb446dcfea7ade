// Package edition tracks the flight plan currently open for editing.
package edition

import (
	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/pubsub"
)

type Service struct {
	current *pubsub.Subject[*flightplan.FlightPlan]
}

func New() *Service {
	return &Service{current: pubsub.New[*flightplan.FlightPlan](nil)}
}

// Set publishes fp as the edited plan; nil closes the edition.
func (s *Service) Set(fp *flightplan.FlightPlan) {
	s.current.Send(fp)
}

func (s *Service) CurrentFlightPlan() *flightplan.FlightPlan {
	return s.current.Value()
}

func (s *Service) SubscribeCurrentFlightPlan(fn func(*flightplan.FlightPlan)) *pubsub.Subscription {
	return s.current.Subscribe(fn)
}

func (s *Service) Subscribers() int {
	return s.current.Len()
}
