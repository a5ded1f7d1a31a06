package policy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hrdesk/internal/domain/apperr"
)

type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{policies: make(map[string]Policy)}
}

func clonePolicy(p Policy) Policy {
	p.LeaveTypes = append([]LeaveTypeQuota(nil), p.LeaveTypes...)
	return p
}

func (m *MemoryStore) GetActive(_ context.Context, category string) (Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.policies {
		if p.IsActive && p.Category == category {
			return clonePolicy(p), nil
		}
	}
	return Policy{}, apperr.NotFound("no active policy for category %q", category)
}

func (m *MemoryStore) Get(_ context.Context, id string) (Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return Policy{}, apperr.NotFound("policy %s not found", id)
	}
	return clonePolicy(p), nil
}

func (m *MemoryStore) List(_ context.Context) ([]Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Policy, 0, len(m.policies))
	for _, p := range m.policies {
		out = append(out, clonePolicy(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Create(_ context.Context, p Policy) (Policy, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.IsActive = false
	p.CreatedAt = time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.ID] = clonePolicy(p)
	return p, nil
}

func (m *MemoryStore) Activate(_ context.Context, id string) (Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.policies[id]
	if !ok {
		return Policy{}, apperr.NotFound("policy %s not found", id)
	}
	for pid, p := range m.policies {
		if p.Category == target.Category && p.IsActive && pid != id {
			p.IsActive = false
			m.policies[pid] = p
		}
	}
	target.IsActive = true
	m.policies[id] = target
	return clonePolicy(target), nil
}
