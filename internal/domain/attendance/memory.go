package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"hrdesk/internal/domain/apperr"
)

type dayKey struct {
	employeeID string
	day        civil.Date
}

type MemoryStore struct {
	mu      sync.Mutex
	records map[dayKey]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[dayKey]Record)}
}

func (m *MemoryStore) Update(_ context.Context, employeeID string, day civil.Date, create bool, fn UpdateFunc) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dayKey{employeeID: employeeID, day: day}
	rec, ok := m.records[k]
	if !ok {
		if !create {
			return Record{}, apperr.NotFound("no attendance record for %s on %s", employeeID, day)
		}
		rec = Record{ID: uuid.NewString(), EmployeeID: employeeID, Date: day, Sessions: []Session{}, Status: StatusPresent}
	}
	next := rec.clone()
	if err := fn(&next); err != nil {
		return Record{}, err
	}
	next.UpdatedAt = time.Now().UTC()
	m.records[k] = next.clone()
	return next, nil
}

func (m *MemoryStore) Get(_ context.Context, employeeID string, day civil.Date) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[dayKey{employeeID: employeeID, day: day}]
	if !ok {
		return Record{}, apperr.NotFound("no attendance record for %s on %s", employeeID, day)
	}
	return rec.clone(), nil
}

func (m *MemoryStore) collect(match func(Record) bool) []Record {
	out := make([]Record, 0)
	for _, r := range m.records {
		if match(r) {
			out = append(out, r.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date == out[j].Date {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}

func inRange(d, from, to civil.Date) bool {
	return !d.Before(from) && !d.After(to)
}

func (m *MemoryStore) List(_ context.Context, employeeID string, from, to civil.Date) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(func(r Record) bool {
		return r.EmployeeID == employeeID && inRange(r.Date, from, to)
	}), nil
}

func (m *MemoryStore) ListRange(_ context.Context, from, to civil.Date) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(func(r Record) bool { return inRange(r.Date, from, to) }), nil
}
