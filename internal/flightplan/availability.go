package flightplan

import (
	"slices"
	"strings"
)

type AvailabilityKind int

const (
	Available AvailabilityKind = iota
	Unavailable
	AlreadyRunning
)

type ReasonKind int

const (
	ReasonDroneDisconnected ReasonKind = iota
	ReasonPilotingInterfaceUnavailable
)

// UnavailabilityReason tells the UI why a run cannot start. Sub-reasons
// are the drone's piloting interface reasons ("missingGps",
// "insufficientBattery", ...), kept sorted and unique.
type UnavailabilityReason struct {
	Kind    ReasonKind `json:"kind"`
	Reasons []string   `json:"reasons,omitempty"`
}

func (r UnavailabilityReason) String() string {
	switch r.Kind {
	case ReasonDroneDisconnected:
		return "droneDisconnected"
	case ReasonPilotingInterfaceUnavailable:
		return "pilotingItfUnavailable(" + strings.Join(r.Reasons, ",") + ")"
	}
	return "unknown"
}

// StartAvailability gates Start() from the editable and resumable states.
type StartAvailability struct {
	Kind        AvailabilityKind     `json:"kind"`
	IsRthActive bool                 `json:"is_rth_active,omitempty"`
	Reason      UnavailabilityReason `json:"reason,omitempty"`
}

func NewAvailable(isRthActive bool) StartAvailability {
	return StartAvailability{Kind: Available, IsRthActive: isRthActive}
}

func NewUnavailable(reason UnavailabilityReason) StartAvailability {
	return StartAvailability{Kind: Unavailable, Reason: reason}
}

func NewAlreadyRunning() StartAvailability {
	return StartAvailability{Kind: AlreadyRunning}
}

func DroneDisconnected() UnavailabilityReason {
	return UnavailabilityReason{Kind: ReasonDroneDisconnected}
}

func PilotingInterfaceUnavailable(reasons ...string) UnavailabilityReason {
	set := slices.Clone(reasons)
	slices.Sort(set)
	return UnavailabilityReason{Kind: ReasonPilotingInterfaceUnavailable, Reasons: slices.Compact(set)}
}

func (a StartAvailability) IsAvailable() bool {
	return a.Kind == Available
}

func (a StartAvailability) String() string {
	switch a.Kind {
	case Available:
		if a.IsRthActive {
			return "available(rth)"
		}
		return "available"
	case Unavailable:
		return "unavailable(" + a.Reason.String() + ")"
	case AlreadyRunning:
		return "alreadyRunning"
	}
	return "unknown"
}
