package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/domain/attendance"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/employee"
	"hrdesk/internal/domain/leave"
	"hrdesk/internal/platform/cache"
	"hrdesk/internal/platform/clock"
)

type LeaveReader interface {
	ListApplications(ctx context.Context, filter leave.ApplicationFilter) (leave.ApplicationList, error)
}

// Service computes read-only rollups. Reports covering closed periods are
// cached; anything that includes today is always recomputed.
type Service struct {
	Employees  employee.StoreAPI
	Attendance attendance.Store
	Leave      LeaveReader
	Clock      clock.Clock
	Cache      *cache.JSON
	TTL        time.Duration
	Logger     *zap.Logger
}

func NewService(employees employee.StoreAPI, att attendance.Store, lv LeaveReader, clk clock.Clock, c *cache.JSON, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Employees: employees, Attendance: att, Leave: lv, Clock: clk, Cache: c, TTL: ttl, Logger: logger}
}

func requireReports(actor auth.Actor) error {
	if !actor.Can(auth.PermReportsRead) {
		return apperr.Forbidden("role %q cannot read reports", actor.Role)
	}
	return nil
}

func (s *Service) MonthlyAttendance(ctx context.Context, actor auth.Actor, month, year int) (MonthlyReport, error) {
	if err := requireReports(actor); err != nil {
		return MonthlyReport{}, err
	}
	from, to, err := attendance.MonthRange(month, year)
	if err != nil {
		return MonthlyReport{}, err
	}
	compute := func(ctx context.Context) (MonthlyReport, error) {
		return s.buildMonthly(ctx, month, year, from, to)
	}
	if !to.Before(s.Clock.Today()) {
		return compute(ctx)
	}
	return cache.Remember(ctx, s.Cache, fmt.Sprintf("report:attendance:monthly:%04d-%02d", year, month), s.TTL, compute)
}

func (s *Service) buildMonthly(ctx context.Context, month, year int, from, to civil.Date) (MonthlyReport, error) {
	employees, err := s.Employees.ListActive(ctx)
	if err != nil {
		return MonthlyReport{}, err
	}
	records, err := s.Attendance.ListRange(ctx, from, to)
	if err != nil {
		return MonthlyReport{}, err
	}
	byEmployee := make(map[string][]attendance.Record)
	for _, r := range records {
		byEmployee[r.EmployeeID] = append(byEmployee[r.EmployeeID], r)
	}

	today := s.Clock.Today()
	report := MonthlyReport{
		Month:       month,
		Year:        year,
		From:        from,
		To:          to,
		WorkingDays: attendance.MissingWorkingDays(nil, from, to, to.AddDays(1)),
		Rows:        make([]MonthlyRow, 0, len(employees)),
		GeneratedAt: s.Clock.Current().UTC(),
	}
	for _, emp := range employees {
		recs := byEmployee[emp.ID]
		st := attendance.ComputeStats(recs, attendance.MissingWorkingDays(recs, from, to, today))
		report.Rows = append(report.Rows, MonthlyRow{
			EmployeeID:   emp.ID,
			FullName:     emp.FullName,
			Department:   emp.Department,
			PresentDays:  st.PresentDays,
			HalfDays:     st.HalfDays,
			AbsentDays:   st.AbsentDays,
			LateDays:     st.LateDays,
			TotalHours:   st.TotalHours,
			AverageHours: st.AverageHours,
		})
	}
	return report, nil
}

// Today summarizes the current business day. It is never cached.
func (s *Service) Today(ctx context.Context, actor auth.Actor) (TodaySummary, error) {
	if err := requireReports(actor); err != nil {
		return TodaySummary{}, err
	}
	today := s.Clock.Today()
	employees, err := s.Employees.ListActive(ctx)
	if err != nil {
		return TodaySummary{}, err
	}
	records, err := s.Attendance.ListRange(ctx, today, today)
	if err != nil {
		return TodaySummary{}, err
	}
	byEmployee := make(map[string]attendance.Record, len(records))
	for _, r := range records {
		byEmployee[r.EmployeeID] = r
	}

	summary := TodaySummary{Date: today, ActiveEmployees: len(employees), Entries: make([]TodayEntry, 0, len(employees))}
	for _, emp := range employees {
		entry := TodayEntry{EmployeeID: emp.ID, FullName: emp.FullName}
		rec, ok := byEmployee[emp.ID]
		if !ok || len(rec.Sessions) == 0 {
			summary.NotCheckedIn++
			summary.Entries = append(summary.Entries, entry)
			continue
		}
		first := rec.Sessions[0].CheckIn
		_, open := rec.OpenSession()
		entry.FirstCheckIn = &first
		entry.CurrentlyWorking = open
		entry.Late = rec.Late
		entry.TotalWorkMinutes = rec.TotalWorkMinutes
		entry.Status = rec.Status
		summary.CheckedIn++
		if open {
			summary.CurrentlyWorking++
		}
		if rec.Late {
			summary.Late++
		}
		summary.Entries = append(summary.Entries, entry)
	}
	return summary, nil
}

// LeaveUsage aggregates applications starting in year by leave type.
func (s *Service) LeaveUsage(ctx context.Context, actor auth.Actor, year int) (LeaveUsage, error) {
	if err := requireReports(actor); err != nil {
		return LeaveUsage{}, err
	}
	if year < 1970 || year > 9999 {
		return LeaveUsage{}, apperr.Validation("year %d is out of range", year)
	}
	compute := func(ctx context.Context) (LeaveUsage, error) {
		return s.buildUsage(ctx, year)
	}
	if year >= s.Clock.Today().Year {
		return compute(ctx)
	}
	return cache.Remember(ctx, s.Cache, fmt.Sprintf("report:leave:usage:%04d", year), s.TTL, compute)
}

func (s *Service) buildUsage(ctx context.Context, year int) (LeaveUsage, error) {
	list, err := s.Leave.ListApplications(ctx, leave.ApplicationFilter{Year: year})
	if err != nil {
		return LeaveUsage{}, err
	}
	rows := make(map[string]*UsageRow)
	employees := make(map[string]map[string]struct{})
	for _, app := range list.Items {
		row, ok := rows[app.LeaveType]
		if !ok {
			row = &UsageRow{LeaveType: app.LeaveType}
			rows[app.LeaveType] = row
			employees[app.LeaveType] = make(map[string]struct{})
		}
		row.Applications++
		switch app.Status {
		case leave.StatusApproved:
			row.ApprovedDays += app.NumberOfDays
			employees[app.LeaveType][app.EmployeeID] = struct{}{}
		case leave.StatusPending:
			row.PendingDays += app.NumberOfDays
		case leave.StatusRejected:
			row.RejectedCount++
		case leave.StatusCancelled:
			row.CancelledCount++
		}
	}
	out := LeaveUsage{Year: year, Rows: make([]UsageRow, 0, len(rows))}
	for leaveType, row := range rows {
		row.EmployeesWithLeave = len(employees[leaveType])
		out.Rows = append(out.Rows, *row)
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].LeaveType < out.Rows[j].LeaveType })
	return out, nil
}
