package employee

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hrdesk/internal/domain/apperr"
)

// MemoryStore backs STORAGE_DRIVER=memory and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	employees map[string]Employee
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{employees: make(map[string]Employee)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return Employee{}, apperr.NotFound("employee %s not found", id)
	}
	return e, nil
}

func (m *MemoryStore) ListActive(_ context.Context) ([]Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Employee, 0, len(m.employees))
	for _, e := range m.employees {
		if e.Active() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName == out[j].FullName {
			return out[i].ID < out[j].ID
		}
		return out[i].FullName < out[j].FullName
	})
	return out, nil
}

func (m *MemoryStore) Create(_ context.Context, emp Employee) (Employee, error) {
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	if emp.Status == "" {
		emp.Status = StatusActive
	}
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
	return emp, nil
}
