package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/tiiuae/flightplanengine/internal/flightplan"
)

// Memory is an in-process Store, used by tests and dry runs.
type Memory struct {
	mu    sync.Mutex
	plans map[string]*flightplan.FlightPlan
	puts  int
}

func NewMemory() *Memory {
	return &Memory{plans: make(map[string]*flightplan.FlightPlan)}
}

func (m *Memory) Get(ctx context.Context, uuid string) (*flightplan.FlightPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fp, ok := m.plans[uuid]
	if !ok {
		return nil, ErrNotFound
	}
	return fp.Clone(), nil
}

func (m *Memory) Put(ctx context.Context, fp *flightplan.FlightPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[fp.UUID] = fp.Clone()
	m.puts++
	return nil
}

func (m *Memory) Delete(ctx context.Context, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[uuid]; !ok {
		return ErrNotFound
	}
	delete(m.plans, uuid)
	return nil
}

func (m *Memory) ListByProject(ctx context.Context, projectUUID string) ([]*flightplan.FlightPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*flightplan.FlightPlan
	for _, fp := range m.plans {
		if fp.ProjectUUID == projectUUID {
			result = append(result, fp.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastUpdate.Equal(result[j].LastUpdate) {
			return result[i].LastUpdate.After(result[j].LastUpdate)
		}
		return result[i].UUID < result[j].UUID
	})
	return result, nil
}

// Puts counts successful writes.
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func (m *Memory) Close() error {
	return nil
}
