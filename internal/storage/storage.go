// Package storage persists flight plans. All implementations are
// write-through: once Put returns, Get observes the written record.
package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tiiuae/flightplanengine/internal/flightplan"
)

var ErrNotFound = errors.New("flight plan not found")

type Store interface {
	Get(ctx context.Context, uuid string) (*flightplan.FlightPlan, error)
	Put(ctx context.Context, fp *flightplan.FlightPlan) error
	Delete(ctx context.Context, uuid string) error
	// ListByProject returns the project's records, most recently updated first.
	ListByProject(ctx context.Context, projectUUID string) ([]*flightplan.FlightPlan, error)
	Close() error
}
