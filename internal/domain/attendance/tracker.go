package attendance

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/policy"
	"hrdesk/internal/platform/clock"
	"hrdesk/internal/platform/metrics"
	"hrdesk/internal/requestctx"
)

type PolicySource interface {
	Active(ctx context.Context, category string) (policy.Policy, error)
}

// DefaultPolicy supplies attendance parameters when no policy is active.
var DefaultPolicy = policy.Policy{WorkingHoursPerDay: 8, HalfDayThresholdHours: 4}

// Tracker records check-in/check-out sessions per employee and business day.
type Tracker struct {
	Store    Store
	Policies PolicySource
	Category string
	Clock    clock.Clock
	Audit    *audit.Recorder
	Metrics  *metrics.Collector
	Logger   *zap.Logger
}

func NewTracker(store Store, policies PolicySource, category string, clk clock.Clock, rec *audit.Recorder, m *metrics.Collector, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if category == "" {
		category = policy.DefaultCategory
	}
	return &Tracker{Store: store, Policies: policies, Category: category, Clock: clk, Audit: rec, Metrics: m, Logger: logger}
}

func (t *Tracker) activePolicy(ctx context.Context) (policy.Policy, error) {
	if t.Policies == nil {
		return DefaultPolicy, nil
	}
	p, err := t.Policies.Active(ctx, t.Category)
	if errors.Is(err, apperr.ErrNotFound) {
		return DefaultPolicy, nil
	}
	return p, err
}

// CheckIn opens a session on today's record, creating the record on the
// first check-in of the day.
func (t *Tracker) CheckIn(ctx context.Context, actor auth.Actor) (rec Record, err error) {
	defer func() { t.Metrics.Attendance("check_in", err) }()

	if !actor.Can(auth.PermAttendanceWrite) {
		return Record{}, apperr.Forbidden("role %q cannot record attendance", actor.Role)
	}
	pol, err := t.activePolicy(ctx)
	if err != nil {
		return Record{}, err
	}
	now := t.Clock.Current()
	rec, err = t.Store.Update(ctx, actor.EmployeeID, civil.DateOf(now), true, func(r *Record) error {
		if _, open := r.OpenSession(); open {
			return apperr.New(apperr.KindAlreadyCheckedIn, "already checked in; check out first")
		}
		if len(r.Sessions) == 0 {
			r.Late = IsLate(now, pol)
			r.Status = StatusPresent
		}
		r.Sessions = append(r.Sessions, Session{ID: uuid.NewString(), CheckIn: now})
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	requestctx.Logger(ctx, t.Logger).Info("checked in", zap.String("employeeId", actor.EmployeeID), zap.String("date", rec.Date.String()),
		zap.Int("session", len(rec.Sessions)), zap.Bool("late", rec.Late))
	return rec, nil
}

// CheckOut closes the most recent open session of today's record and
// recomputes its totals and status.
func (t *Tracker) CheckOut(ctx context.Context, actor auth.Actor) (res CheckOutResult, err error) {
	defer func() { t.Metrics.Attendance("check_out", err) }()

	if !actor.Can(auth.PermAttendanceWrite) {
		return CheckOutResult{}, apperr.Forbidden("role %q cannot record attendance", actor.Role)
	}
	pol, err := t.activePolicy(ctx)
	if err != nil {
		return CheckOutResult{}, err
	}
	now := t.Clock.Current()
	rec, err := t.Store.Update(ctx, actor.EmployeeID, civil.DateOf(now), false, func(r *Record) error {
		i, open := r.OpenSession()
		if !open {
			return apperr.New(apperr.KindNoOpenSession, "no open session to check out of")
		}
		out := now
		r.Sessions[i].CheckOut = &out
		r.TotalWorkMinutes = r.closedMinutes()
		r.Status = Classify(r.TotalWorkMinutes, pol)
		return nil
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return CheckOutResult{}, apperr.New(apperr.KindNoOpenSession, "no check-in recorded today")
	}
	if err != nil {
		return CheckOutResult{}, err
	}
	requestctx.Logger(ctx, t.Logger).Info("checked out", zap.String("employeeId", actor.EmployeeID), zap.String("date", rec.Date.String()),
		zap.Int("totalWorkMinutes", rec.TotalWorkMinutes), zap.String("status", rec.Status))
	return CheckOutResult{Record: rec, TotalWorkHours: Hours(rec.TotalWorkMinutes), Sessions: rec.Sessions}, nil
}

// Today returns the actor's record for the current business day.
func (t *Tracker) Today(ctx context.Context, actor auth.Actor) (Record, error) {
	return t.Store.Get(ctx, actor.EmployeeID, t.Clock.Today())
}

// GetRecords returns records in [from, to] newest first with derived stats.
func (t *Tracker) GetRecords(ctx context.Context, employeeID string, from, to civil.Date) (RecordsView, error) {
	if to.Before(from) {
		return RecordsView{}, apperr.Validation("range end %s is before start %s", to, from)
	}
	records, err := t.Store.List(ctx, employeeID, from, to)
	if err != nil {
		return RecordsView{}, err
	}
	missing := MissingWorkingDays(records, from, to, t.Clock.Today())
	return RecordsView{Records: records, Stats: ComputeStats(records, missing)}, nil
}

func (t *Tracker) MyRecords(ctx context.Context, actor auth.Actor, month, year int) (RecordsView, error) {
	if !actor.Can(auth.PermAttendanceRead) {
		return RecordsView{}, apperr.Forbidden("role %q cannot read attendance", actor.Role)
	}
	from, to, err := MonthRange(month, year)
	if err != nil {
		return RecordsView{}, err
	}
	return t.GetRecords(ctx, actor.EmployeeID, from, to)
}

func (t *Tracker) EmployeeRecords(ctx context.Context, actor auth.Actor, employeeID string, month, year int) (RecordsView, error) {
	if actor.EmployeeID != employeeID && !actor.Can(auth.PermAttendanceManage) {
		return RecordsView{}, apperr.Forbidden("not allowed to read attendance of %s", employeeID)
	}
	from, to, err := MonthRange(month, year)
	if err != nil {
		return RecordsView{}, err
	}
	return t.GetRecords(ctx, employeeID, from, to)
}

// SetNotes annotates an existing record without touching sessions or totals.
func (t *Tracker) SetNotes(ctx context.Context, actor auth.Actor, employeeID string, day civil.Date, notes string) (Record, error) {
	if !actor.Can(auth.PermAttendanceManage) {
		return Record{}, apperr.Forbidden("role %q cannot annotate attendance", actor.Role)
	}
	notes = strings.TrimSpace(notes)
	if len(notes) > 1000 {
		return Record{}, apperr.Validation("notes must be at most 1000 characters")
	}
	var before string
	rec, err := t.Store.Update(ctx, employeeID, day, false, func(r *Record) error {
		before = r.Notes
		r.Notes = notes
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	t.Audit.Record(ctx, actor, audit.ActionAttendanceNotes, audit.EntityAttendance, rec.ID,
		map[string]string{"notes": before}, map[string]string{"notes": notes})
	return rec, nil
}
