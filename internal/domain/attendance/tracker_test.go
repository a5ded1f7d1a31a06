package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/policy"
	"hrdesk/internal/platform/clock"
)

var (
	worker = auth.Actor{EmployeeID: "emp-1", Role: auth.RoleEmployee}
	hr     = auth.Actor{EmployeeID: "hr-1", Role: auth.RoleHR}
)

type staticPolicy struct{ p policy.Policy }

func (s staticPolicy) Active(context.Context, string) (policy.Policy, error) { return s.p, nil }

type fakeTime struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func newTracker(t *testing.T, loc *time.Location) (*Tracker, *fakeTime, *audit.MemoryStore) {
	t.Helper()
	ft := &fakeTime{}
	pol := policy.Policy{WorkingHoursPerDay: 8, HalfDayThresholdHours: 4, GraceTimeMinutes: 10, WorkdayStart: "09:00"}
	auditStore := audit.NewMemoryStore()
	tr := NewTracker(NewMemoryStore(), staticPolicy{pol}, "", clock.Func(ft.Now, loc), audit.NewRecorder(auditStore, nil), nil, nil)
	return tr, ft, auditStore
}

func at(loc *time.Location, day string, hh, mm int) time.Time {
	d, err := civil.ParseDate(day)
	if err != nil {
		panic(err)
	}
	return time.Date(d.Year, d.Month, d.Day, hh, mm, 0, 0, loc)
}

func TestFullDayIsPresentWith510Minutes(t *testing.T) {
	ctx := context.Background()
	tr, ft, _ := newTracker(t, time.UTC)

	ft.Set(at(time.UTC, "2025-03-10", 9, 0))
	rec, err := tr.CheckIn(ctx, worker)
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, rec.Status)
	assert.False(t, rec.Late)
	require.Len(t, rec.Sessions, 1)
	assert.Zero(t, rec.TotalWorkMinutes, "open session not counted")

	ft.Set(at(time.UTC, "2025-03-10", 17, 30))
	res, err := tr.CheckOut(ctx, worker)
	require.NoError(t, err)
	assert.Equal(t, 510, res.Record.TotalWorkMinutes)
	assert.Equal(t, 8.5, res.TotalWorkHours)
	assert.Equal(t, StatusPresent, res.Record.Status)
	require.Len(t, res.Sessions, 1)
	require.NotNil(t, res.Sessions[0].CheckOut)
}

func TestSessionMisuse(t *testing.T) {
	ctx := context.Background()
	tr, ft, _ := newTracker(t, time.UTC)
	ft.Set(at(time.UTC, "2025-03-10", 8, 0))

	_, err := tr.CheckOut(ctx, worker)
	assert.ErrorIs(t, err, apperr.ErrNoOpenSession, "no record yet")

	_, err = tr.CheckIn(ctx, worker)
	require.NoError(t, err)
	_, err = tr.CheckIn(ctx, worker)
	assert.ErrorIs(t, err, apperr.ErrAlreadyCheckedIn)

	ft.Set(at(time.UTC, "2025-03-10", 9, 0))
	_, err = tr.CheckOut(ctx, worker)
	require.NoError(t, err)
	_, err = tr.CheckOut(ctx, worker)
	assert.ErrorIs(t, err, apperr.ErrNoOpenSession)
}

func TestMultipleSessionsSumAndHalfDay(t *testing.T) {
	ctx := context.Background()
	tr, ft, _ := newTracker(t, time.UTC)

	steps := []struct {
		hh, mm int
		in     bool
	}{
		{9, 30, true}, {11, 0, false},
		{13, 0, true}, {14, 15, false},
	}
	var last CheckOutResult
	for _, s := range steps {
		ft.Set(at(time.UTC, "2025-03-11", s.hh, s.mm))
		var err error
		if s.in {
			_, err = tr.CheckIn(ctx, worker)
		} else {
			last, err = tr.CheckOut(ctx, worker)
		}
		require.NoError(t, err)
	}
	assert.Equal(t, 165, last.Record.TotalWorkMinutes)
	assert.Equal(t, 2.75, last.TotalWorkHours)
	assert.Equal(t, StatusHalfDay, last.Record.Status)
	assert.True(t, last.Record.Late, "first check-in 09:30 is after 09:10")
	assert.Len(t, last.Sessions, 2)

	ft.Set(at(time.UTC, "2025-03-11", 15, 0))
	_, err := tr.CheckIn(ctx, worker)
	require.NoError(t, err)
	ft.Set(at(time.UTC, "2025-03-11", 16, 30))
	res, err := tr.CheckOut(ctx, worker)
	require.NoError(t, err)
	assert.Equal(t, 255, res.Record.TotalWorkMinutes)
	assert.Equal(t, StatusPresent, res.Record.Status)
	assert.True(t, res.Record.Late, "lateness fixed at first check-in")
}

func TestConcurrentCheckInsOpenOneSession(t *testing.T) {
	ctx := context.Background()
	tr, ft, _ := newTracker(t, time.UTC)
	ft.Set(at(time.UTC, "2025-03-12", 9, 0))

	const n = 12
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = tr.CheckIn(ctx, worker)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, apperr.ErrAlreadyCheckedIn)
	}
	assert.Equal(t, 1, ok)

	rec, err := tr.Today(ctx, worker)
	require.NoError(t, err)
	assert.Len(t, rec.Sessions, 1)
}

func TestBusinessDayFollowsTimezone(t *testing.T) {
	ctx := context.Background()
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	tr, ft, _ := newTracker(t, kolkata)

	// 20:00 UTC on the 12th is 01:30 on the 13th in Kolkata.
	ft.Set(time.Date(2025, 3, 12, 20, 0, 0, 0, time.UTC))
	rec, err := tr.CheckIn(ctx, worker)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-13", rec.Date.String())
}

func TestMonthlyRecordsAndStats(t *testing.T) {
	ctx := context.Background()
	tr, ft, _ := newTracker(t, time.UTC)

	work := func(day string, inH, outH int) {
		ft.Set(at(time.UTC, day, inH, 0))
		_, err := tr.CheckIn(ctx, worker)
		require.NoError(t, err)
		ft.Set(at(time.UTC, day, outH, 0))
		_, err = tr.CheckOut(ctx, worker)
		require.NoError(t, err)
	}
	work("2025-03-03", 9, 17) // Monday, 8h
	work("2025-03-04", 9, 12) // 3h half day
	work("2025-03-05", 10, 18)

	ft.Set(at(time.UTC, "2025-03-10", 12, 0))
	view, err := tr.MyRecords(ctx, worker, 3, 2025)
	require.NoError(t, err)
	require.Len(t, view.Records, 3)
	assert.Equal(t, "2025-03-05", view.Records[0].Date.String(), "newest first")

	st := view.Stats
	assert.Equal(t, 3, st.TotalDays)
	assert.Equal(t, 19.0, st.TotalHours)
	assert.Equal(t, 2, st.PresentDays)
	assert.Equal(t, 1, st.HalfDays)
	assert.Equal(t, 1, st.LateDays)
	assert.Equal(t, 6.33, st.AverageHours)
	// Working days before the 10th: 3-7 March; 6 and 7 have no record.
	assert.Equal(t, 2, st.AbsentDays)

	_, err = tr.MyRecords(ctx, worker, 13, 2025)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = tr.EmployeeRecords(ctx, auth.Actor{EmployeeID: "emp-2", Role: auth.RoleEmployee}, worker.EmployeeID, 3, 2025)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	hrView, err := tr.EmployeeRecords(ctx, hr, worker.EmployeeID, 3, 2025)
	require.NoError(t, err)
	assert.Len(t, hrView.Records, 3)
}

func TestSetNotes(t *testing.T) {
	ctx := context.Background()
	tr, ft, auditStore := newTracker(t, time.UTC)
	ft.Set(at(time.UTC, "2025-03-10", 9, 0))
	_, err := tr.CheckIn(ctx, worker)
	require.NoError(t, err)

	day, _ := civil.ParseDate("2025-03-10")
	_, err = tr.SetNotes(ctx, worker, worker.EmployeeID, day, "hi")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	rec, err := tr.SetNotes(ctx, hr, worker.EmployeeID, day, " client visit ")
	require.NoError(t, err)
	assert.Equal(t, "client visit", rec.Notes)
	assert.Len(t, rec.Sessions, 1)

	_, err = tr.SetNotes(ctx, hr, worker.EmployeeID, day.AddDays(1), "x")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	n, err := auditStore.Count(ctx, audit.Filter{Action: audit.ActionAttendanceNotes})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIsLateHonoursGrace(t *testing.T) {
	p := policy.Policy{WorkdayStart: "09:00", GraceTimeMinutes: 10}
	assert.False(t, IsLate(at(time.UTC, "2025-03-10", 9, 10), p))
	assert.True(t, IsLate(at(time.UTC, "2025-03-10", 9, 11), p))
	assert.False(t, IsLate(at(time.UTC, "2025-03-10", 23, 0), policy.Policy{}), "no workday start, no lateness")
}

func TestSubMinuteRemaindersCarryAcrossSessions(t *testing.T) {
	ctx := context.Background()
	tr, ft, _ := newTracker(t, time.UTC)

	start := at(time.UTC, "2025-03-12", 10, 0)
	var last CheckOutResult
	for i := 0; i < 4; i++ {
		in := start.Add(time.Duration(i) * 10 * time.Minute)
		ft.Set(in)
		_, err := tr.CheckIn(ctx, worker)
		require.NoError(t, err)
		ft.Set(in.Add(90 * time.Second))
		last, err = tr.CheckOut(ctx, worker)
		require.NoError(t, err)
	}
	assert.Equal(t, 6, last.Record.TotalWorkMinutes, "four 90s sessions are six minutes")
	assert.Equal(t, 90*time.Second, last.Sessions[0].Duration())
}
