package leave

import (
	"context"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"hrdesk/internal/domain/apperr"
)

type memState struct {
	balances map[string]map[string]Balance
	apps     map[string]Application
}

func cloneApplication(a Application) Application {
	a.Comments = append([]Comment{}, a.Comments...)
	if a.DecidedAt != nil {
		at := *a.DecidedAt
		a.DecidedAt = &at
	}
	return a
}

func (s *memState) clone() *memState {
	out := &memState{
		balances: make(map[string]map[string]Balance, len(s.balances)),
		apps:     make(map[string]Application, len(s.apps)),
	}
	for emp, rows := range s.balances {
		copied := make(map[string]Balance, len(rows))
		for k, v := range rows {
			copied[k] = v
		}
		out.balances[emp] = copied
	}
	for id, a := range s.apps {
		out.apps[id] = cloneApplication(a)
	}
	return out
}

// MemoryStore keeps all state behind one mutex. WithTx works on a snapshot
// that replaces the live state only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		balances: make(map[string]map[string]Balance),
		apps:     make(map[string]Application),
	}}
}

func (m *MemoryStore) WithTx(_ context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.state.clone()
	if err := fn(&memTx{st: snapshot}); err != nil {
		return err
	}
	m.state = snapshot
	return nil
}

func (m *MemoryStore) view() *memTx {
	return &memTx{st: m.state}
}

func (m *MemoryStore) ListBalances(ctx context.Context, employeeID string) ([]Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ListBalances(ctx, employeeID)
}

func (m *MemoryStore) GetBalance(ctx context.Context, employeeID, leaveType string) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().GetBalance(ctx, employeeID, leaveType)
}

func (m *MemoryStore) ReplaceBalances(ctx context.Context, employeeID string, balances []Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ReplaceBalances(ctx, employeeID, balances)
}

func (m *MemoryStore) AdjustUsed(ctx context.Context, employeeID, leaveType string, delta int) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().AdjustUsed(ctx, employeeID, leaveType, delta)
}

func (m *MemoryStore) SetBalance(ctx context.Context, b Balance) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().SetBalance(ctx, b)
}

func (m *MemoryStore) CreateApplication(ctx context.Context, app Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().CreateApplication(ctx, app)
}

func (m *MemoryStore) GetApplication(ctx context.Context, id string) (Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().GetApplication(ctx, id)
}

func (m *MemoryStore) LockEmployee(context.Context, string) error { return nil }

func (m *MemoryStore) HasOverlap(ctx context.Context, employeeID string, from, to civil.Date) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().HasOverlap(ctx, employeeID, from, to)
}

func (m *MemoryStore) TransitionApplication(ctx context.Context, id, from, to string, t Transition) (Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().TransitionApplication(ctx, id, from, to, t)
}

func (m *MemoryStore) DeleteApplication(ctx context.Context, id, from string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().DeleteApplication(ctx, id, from)
}

func (m *MemoryStore) AppendComment(ctx context.Context, id string, c Comment) (Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().AppendComment(ctx, id, c)
}

func (m *MemoryStore) ListApplications(ctx context.Context, filter ApplicationFilter) (ApplicationList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ListApplications(ctx, filter)
}

func (m *MemoryStore) ApprovedDaysByType(ctx context.Context, employeeID string, year int) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view().ApprovedDaysByType(ctx, employeeID, year)
}

// memTx operates on state the caller already holds the lock for.
type memTx struct {
	st *memState
}

func (t *memTx) ListBalances(_ context.Context, employeeID string) ([]Balance, error) {
	rows := t.st.balances[employeeID]
	out := make([]Balance, 0, len(rows))
	for _, b := range rows {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeaveType < out[j].LeaveType })
	return out, nil
}

// LockEmployee is a no-op: WithTx already holds the store mutex.
func (t *memTx) LockEmployee(context.Context, string) error { return nil }

func (t *memTx) GetBalance(_ context.Context, employeeID, leaveType string) (Balance, error) {
	b, ok := t.st.balances[employeeID][leaveType]
	if !ok {
		return Balance{}, unknownLeaveType(leaveType)
	}
	return b, nil
}

func (t *memTx) ReplaceBalances(_ context.Context, employeeID string, balances []Balance) error {
	now := time.Now().UTC()
	rows := make(map[string]Balance, len(balances))
	for _, b := range balances {
		b.EmployeeID = employeeID
		b.UpdatedAt = now
		rows[b.LeaveType] = b
	}
	t.st.balances[employeeID] = rows
	return nil
}

func (t *memTx) AdjustUsed(ctx context.Context, employeeID, leaveType string, delta int) (Balance, error) {
	b, err := t.GetBalance(ctx, employeeID, leaveType)
	if err != nil {
		return Balance{}, err
	}
	b.Used += delta
	if err := checkUsed(b, delta); err != nil {
		return Balance{}, err
	}
	b.UpdatedAt = time.Now().UTC()
	t.st.balances[employeeID][leaveType] = b
	return b, nil
}

func (t *memTx) SetBalance(ctx context.Context, b Balance) (Balance, error) {
	if _, err := t.GetBalance(ctx, b.EmployeeID, b.LeaveType); err != nil {
		return Balance{}, err
	}
	b.UpdatedAt = time.Now().UTC()
	t.st.balances[b.EmployeeID][b.LeaveType] = b
	return b, nil
}

func (t *memTx) CreateApplication(_ context.Context, app Application) error {
	if app.Comments == nil {
		app.Comments = []Comment{}
	}
	t.st.apps[app.ID] = cloneApplication(app)
	return nil
}

func (t *memTx) GetApplication(_ context.Context, id string) (Application, error) {
	a, ok := t.st.apps[id]
	if !ok {
		return Application{}, apperr.NotFound("leave application %s not found", id)
	}
	return cloneApplication(a), nil
}

func (t *memTx) HasOverlap(_ context.Context, employeeID string, from, to civil.Date) (bool, error) {
	for _, a := range t.st.apps {
		if a.EmployeeID != employeeID {
			continue
		}
		if a.Status != StatusPending && a.Status != StatusApproved {
			continue
		}
		if overlaps(a, from, to) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) TransitionApplication(_ context.Context, id, from, to string, tr Transition) (Application, error) {
	a, ok := t.st.apps[id]
	if !ok {
		return Application{}, apperr.NotFound("leave application %s not found", id)
	}
	if a.Status != from {
		return Application{}, apperr.Conflict("leave application is %s, expected %s", a.Status, from)
	}
	a.Status = to
	if tr.ActorID != "" {
		a.ApprovedBy = tr.ActorID
	}
	if !tr.At.IsZero() {
		at := tr.At
		a.DecidedAt = &at
	}
	if tr.RejectionReason != "" {
		a.RejectionReason = tr.RejectionReason
	}
	t.st.apps[id] = a
	return cloneApplication(a), nil
}

func (t *memTx) DeleteApplication(_ context.Context, id, from string) error {
	a, ok := t.st.apps[id]
	if !ok {
		return apperr.NotFound("leave application %s not found", id)
	}
	if a.Status != from {
		return apperr.Conflict("leave application is %s, expected %s", a.Status, from)
	}
	delete(t.st.apps, id)
	return nil
}

func (t *memTx) AppendComment(_ context.Context, id string, c Comment) (Application, error) {
	a, ok := t.st.apps[id]
	if !ok {
		return Application{}, apperr.NotFound("leave application %s not found", id)
	}
	a.Comments = append(a.Comments, c)
	t.st.apps[id] = a
	return cloneApplication(a), nil
}

func (t *memTx) ListApplications(_ context.Context, filter ApplicationFilter) (ApplicationList, error) {
	items := make([]Application, 0)
	for _, a := range t.st.apps {
		if filter.EmployeeID != "" && a.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Year > 0 && a.FromDate.Year != filter.Year {
			continue
		}
		items = append(items, cloneApplication(a))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].AppliedOn.Equal(items[j].AppliedOn) {
			return items[i].ID < items[j].ID
		}
		return items[i].AppliedOn.After(items[j].AppliedOn)
	})
	total := len(items)
	if filter.Limit > 0 {
		start := filter.Offset
		if start > total {
			start = total
		}
		end := start + filter.Limit
		if end > total {
			end = total
		}
		items = items[start:end]
	}
	return ApplicationList{Items: items, Total: total}, nil
}

func (t *memTx) ApprovedDaysByType(_ context.Context, employeeID string, year int) (map[string]int, error) {
	out := make(map[string]int)
	for _, a := range t.st.apps {
		if a.EmployeeID == employeeID && a.Status == StatusApproved && a.FromDate.Year == year {
			out[a.LeaveType] += a.NumberOfDays
		}
	}
	return out, nil
}
