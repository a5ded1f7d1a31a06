package notifications

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"hrdesk/internal/domain/employee"
	"hrdesk/internal/domain/leave"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Service emails applicants when a decision is taken on their leave.
// Delivery is best effort: failures are logged and never surface to the
// caller whose transition already committed.
type Service struct {
	Employees employee.StoreAPI
	Mailer    Mailer
	From      string
	Logger    *zap.Logger
}

func New(employees employee.StoreAPI, mailer Mailer, from string, logger *zap.Logger) *Service {
	if from == "" {
		from = defaultFrom
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Employees: employees, Mailer: mailer, From: from, Logger: logger}
}

// LeaveEvent implements leave.Notifier.
func (s *Service) LeaveEvent(ctx context.Context, event string, app leave.Application) {
	if s == nil || s.Mailer == nil {
		return
	}
	subject, body, ok := render(event, app)
	if !ok {
		return
	}
	emp, err := s.Employees.Get(ctx, app.EmployeeID)
	if err != nil {
		s.Logger.Warn("notification recipient lookup failed", zap.String("employeeId", app.EmployeeID), zap.Error(err))
		return
	}
	if strings.TrimSpace(emp.Email) == "" {
		return
	}
	if err := s.Mailer.Send(ctx, s.From, emp.Email, subject, body); err != nil {
		s.Logger.Warn("notification email send failed", zap.String("type", event),
			zap.String("applicationId", app.ID), zap.Error(err))
		return
	}
	s.Logger.Debug("notification sent", zap.String("type", event), zap.String("applicationId", app.ID))
}

func render(event string, app leave.Application) (subject, body string, ok bool) {
	span := fmt.Sprintf("%s leave from %s to %s (%d days)", app.LeaveType, app.FromDate, app.ToDate, app.NumberOfDays)
	switch event {
	case TypeLeaveApproved:
		return "Leave approved", "Your " + span + " was approved.", true
	case TypeLeaveRejected:
		msg := "Your " + span + " was rejected."
		if app.RejectionReason != "" {
			msg += "\n\nReason: " + app.RejectionReason
		}
		return "Leave rejected", msg, true
	case TypeLeaveCancelled:
		return "Leave cancelled", "Your approved " + span + " was cancelled and the days returned to your balance.", true
	default:
		return "", "", false
	}
}
