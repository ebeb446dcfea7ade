package edition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tiiuae/flightplanengine/internal/flightplan"
)

func TestServicePublishesEditedPlan(t *testing.T) {
	s := New()
	assert.Nil(t, s.CurrentFlightPlan())

	var got []string
	sub := s.SubscribeCurrentFlightPlan(func(fp *flightplan.FlightPlan) { got = append(got, fp.String()) })

	s.Set(&flightplan.FlightPlan{UUID: "a", State: flightplan.StateEditable})
	sub.Cancel()
	s.Set(nil)

	assert.Equal(t, []string{"a (editable)"}, got)
	assert.Nil(t, s.CurrentFlightPlan())
}
