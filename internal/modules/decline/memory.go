package decline

import (
	"context"
	"sync"
)

// Memory is an in-process registry used by tests and single-node demos.
type Memory struct {
	mu   sync.RWMutex
	rows map[int64]map[int64]struct{}
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[int64]map[int64]struct{})}
}

func (m *Memory) Decline(_ context.Context, driverID, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.rows[driverID]
	if !ok {
		set = make(map[int64]struct{})
		m.rows[driverID] = set
	}
	set[orderID] = struct{}{}
	return nil
}

func (m *Memory) IsDeclined(_ context.Context, driverID, orderID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rows[driverID][orderID]
	return ok, nil
}

func (m *Memory) DeclinedOrderIDs(_ context.Context, driverID int64) (map[int64]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]struct{}, len(m.rows[driverID]))
	for id := range m.rows[driverID] {
		out[id] = struct{}{}
	}
	return out, nil
}
