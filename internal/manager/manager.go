// Package manager owns persisted flight plans on behalf of the state
// machine. Storage failures are logged and the best available model is
// returned, so callers never deal with errors.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tiiuae/flightplanengine/internal/clock"
	"github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/log"
	"github.com/tiiuae/flightplanengine/internal/mavlink"
	"github.com/tiiuae/flightplanengine/internal/storage"
)

const storageTimeout = 5 * time.Second

type Manager struct {
	store storage.Store
	clock clock.Clock
	lg    *log.Logger
}

func New(store storage.Store, c clock.Clock, lg *log.Logger) *Manager {
	return &Manager{store: store, clock: c, lg: lg.Component("manager")}
}

func (m *Manager) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storageTimeout)
}

// FlightPlan returns a private copy of the stored record.
func (m *Manager) FlightPlan(id string) (*flightplan.FlightPlan, bool) {
	ctx, cancel := m.ctx()
	defer cancel()

	fp, err := m.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.lg.Errorf("FlightPlan: load %s: %v", id, err)
		}
		return nil, false
	}
	return fp, true
}

// Save persists fp and returns the persisted value. On failure fp itself
// is returned.
func (m *Manager) Save(fp *flightplan.FlightPlan) *flightplan.FlightPlan {
	out := fp.Clone()
	out.LastUpdate = m.clock.Now()

	ctx, cancel := m.ctx()
	defer cancel()
	if err := m.store.Put(ctx, out); err != nil {
		m.lg.Errorf("FlightPlan: save %s: %v", fp.UUID, err)
		return fp
	}
	return out
}

// Update moves fp to state and persists it. The first time an editable
// plan becomes an execution it gets the project's next execution rank
// and a matching title suffix.
func (m *Manager) Update(fp *flightplan.FlightPlan, state flightplan.State) *flightplan.FlightPlan {
	out := fp.Clone()
	if out.State == flightplan.StateEditable && state != flightplan.StateEditable && out.ExecutionRank == 0 {
		out.ExecutionRank = m.nextExecutionRank(out.ProjectUUID)
		out.Title = ExecutionTitle(out.Title, out.ExecutionRank)
	}
	out.State = state
	return m.Save(out)
}

// NewFlightPlan duplicates basedOn under a fresh identity with its run
// progress cleared. The copy is persisted only when save is set.
func (m *Manager) NewFlightPlan(basedOn *flightplan.FlightPlan, save bool) *flightplan.FlightPlan {
	out := basedOn.Clone()
	out.UUID = uuid.NewString()
	out.State = flightplan.StateEditable
	out.ExecutionRank = 0
	out.ResetProgress()
	if out.DataSetting != nil {
		out.DataSetting.ReadOnly = false
	}
	out.LastUpdate = m.clock.Now()
	if !save {
		return out
	}
	return m.Save(out)
}

// Create stores a brand new editable plan for a project.
func (m *Manager) Create(projectUUID, title string, ds *flightplan.DataSetting) *flightplan.FlightPlan {
	if projectUUID == "" {
		projectUUID = uuid.NewString()
	}
	return m.Save(&flightplan.FlightPlan{
		UUID:                    uuid.NewString(),
		ProjectUUID:             projectUUID,
		Title:                   title,
		State:                   flightplan.StateEditable,
		DataSetting:             ds,
		LastMissionItemExecuted: flightplan.NoMissionItem,
	})
}

// EditableFlightPlansFor lists the project's editable templates, most
// recently updated first.
func (m *Manager) EditableFlightPlansFor(projectUUID string) []*flightplan.FlightPlan {
	var result []*flightplan.FlightPlan
	for _, fp := range m.list(projectUUID) {
		if fp.IsEditable() {
			result = append(result, fp)
		}
	}
	return result
}

// Executions lists the project's past and running executions, most
// recent first.
func (m *Manager) Executions(projectUUID string) []*flightplan.FlightPlan {
	var result []*flightplan.FlightPlan
	for _, fp := range m.list(projectUUID) {
		if fp.IsExecution() {
			result = append(result, fp)
		}
	}
	return result
}

func (m *Manager) Delete(id string) {
	ctx, cancel := m.ctx()
	defer cancel()
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.lg.Errorf("FlightPlan: delete %s: %v", id, err)
	}
}

// GenerateMavlinkCommands returns the mission items for fp, or nil when
// the plan cannot be flown.
func (m *Manager) GenerateMavlinkCommands(fp *flightplan.FlightPlan) []flightplan.Command {
	commands, err := mavlink.BuildCommands(fp)
	if err != nil {
		m.lg.Warnf("FlightPlan: %s: %v", fp.UUID, err)
		return nil
	}
	return commands
}

func (m *Manager) list(projectUUID string) []*flightplan.FlightPlan {
	ctx, cancel := m.ctx()
	defer cancel()
	list, err := m.store.ListByProject(ctx, projectUUID)
	if err != nil {
		m.lg.Errorf("FlightPlan: list project %s: %v", projectUUID, err)
		return nil
	}
	return list
}

func (m *Manager) nextExecutionRank(projectUUID string) int {
	rank := 0
	for _, fp := range m.list(projectUUID) {
		rank = max(rank, fp.ExecutionRank)
	}
	return rank + 1
}

func ExecutionTitle(title string, rank int) string {
	return fmt.Sprintf("%s - Execution %d", title, rank)
}
