package leave

import (
	"context"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/platform/clock"
	"hrdesk/internal/platform/metrics"
	"hrdesk/internal/requestctx"
)

// Lifecycle drives leave applications through
// pending -> approved | rejected | cancelled, and approved -> cancelled.
// Each transition and its ledger effect commit in one storage transaction.
type Lifecycle struct {
	Store    Store
	Clock    clock.Clock
	Audit    *audit.Recorder
	Metrics  *metrics.Collector
	Notifier Notifier
	Logger   *zap.Logger
}

const (
	EventApproved  = "leave_approved"
	EventRejected  = "leave_rejected"
	EventCancelled = "leave_cancelled"
)

// Notifier is told about committed decisions on an application.
type Notifier interface {
	LeaveEvent(ctx context.Context, event string, app Application)
}

func (l *Lifecycle) notify(ctx context.Context, event string, app Application) {
	if l.Notifier != nil {
		l.Notifier.LeaveEvent(ctx, event, app)
	}
}

func NewLifecycle(store Store, clk clock.Clock, rec *audit.Recorder, m *metrics.Collector, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{Store: store, Clock: clk, Audit: rec, Metrics: m, Logger: logger}
}

type ApplyInput struct {
	LeaveType string
	FromDate  civil.Date
	ToDate    civil.Date
	Reason    string
}

// Apply creates a pending application for the actor. Creation is refused
// when the balance cannot cover the requested days.
func (l *Lifecycle) Apply(ctx context.Context, actor auth.Actor, in ApplyInput) (app Application, err error) {
	defer func() { l.Metrics.LeaveTransition("apply", err) }()

	if !actor.Can(auth.PermLeaveWrite) {
		return Application{}, apperr.Forbidden("role %q cannot apply for leave", actor.Role)
	}
	leaveType := strings.ToLower(strings.TrimSpace(in.LeaveType))
	reason := strings.TrimSpace(in.Reason)
	if leaveType == "" {
		return Application{}, apperr.Validation("leaveType is required")
	}
	if reason == "" {
		return Application{}, apperr.Validation("reason is required")
	}
	days, err := CalculateDays(in.FromDate, in.ToDate)
	if err != nil {
		return Application{}, err
	}

	app = Application{
		ID:           uuid.NewString(),
		EmployeeID:   actor.EmployeeID,
		LeaveType:    leaveType,
		FromDate:     in.FromDate,
		ToDate:       in.ToDate,
		NumberOfDays: days,
		Reason:       reason,
		Status:       StatusPending,
		AppliedOn:    l.Clock.Current().UTC(),
		Comments:     []Comment{},
	}
	err = l.Store.WithTx(ctx, func(tx Tx) error {
		if err := tx.LockEmployee(ctx, actor.EmployeeID); err != nil {
			return err
		}
		balance, err := tx.GetBalance(ctx, actor.EmployeeID, leaveType)
		if err != nil {
			return err
		}
		if balance.Available() < days {
			return &InsufficientBalanceError{
				EmployeeID: actor.EmployeeID,
				LeaveType:  leaveType,
				Available:  balance.Available(),
				Requested:  days,
			}
		}
		overlap, err := tx.HasOverlap(ctx, actor.EmployeeID, in.FromDate, in.ToDate)
		if err != nil {
			return err
		}
		if overlap {
			return apperr.Conflict("leave from %s to %s overlaps an existing pending or approved application", in.FromDate, in.ToDate)
		}
		return tx.CreateApplication(ctx, app)
	})
	if err != nil {
		return Application{}, err
	}
	l.Audit.Record(ctx, actor, audit.ActionLeaveApply, audit.EntityLeaveApplication, app.ID, nil, app)
	requestctx.Logger(ctx, l.Logger).Info("leave applied", zap.String("applicationId", app.ID), zap.String("employeeId", app.EmployeeID),
		zap.String("leaveType", leaveType), zap.Int("days", days))
	return app, nil
}

func (l *Lifecycle) requireApprover(actor auth.Actor, app Application) error {
	if !actor.Can(auth.PermLeaveApprove) {
		return apperr.Forbidden("role %q cannot decide leave applications", actor.Role)
	}
	if app.EmployeeID == actor.EmployeeID {
		return apperr.Forbidden("approvers cannot decide their own leave application")
	}
	return nil
}

// Approve moves a pending application to approved and deducts its days.
// Both writes roll back together if the deduction would overdraw the balance.
func (l *Lifecycle) Approve(ctx context.Context, actor auth.Actor, id string) (app Application, err error) {
	defer func() { l.Metrics.LeaveTransition("approve", err) }()

	if !actor.Can(auth.PermLeaveApprove) {
		return Application{}, apperr.Forbidden("role %q cannot decide leave applications", actor.Role)
	}
	var balance Balance
	err = l.Store.WithTx(ctx, func(tx Tx) error {
		current, err := tx.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		if err := l.requireApprover(actor, current); err != nil {
			return err
		}
		app, err = tx.TransitionApplication(ctx, id, StatusPending, StatusApproved, Transition{
			ActorID: actor.EmployeeID,
			At:      l.Clock.Current().UTC(),
		})
		if err != nil {
			return err
		}
		balance, err = tx.AdjustUsed(ctx, app.EmployeeID, app.LeaveType, app.NumberOfDays)
		return err
	})
	if err != nil {
		return Application{}, err
	}
	l.Audit.Record(ctx, actor, audit.ActionLeaveApprove, audit.EntityLeaveApplication, app.ID,
		map[string]string{"status": StatusPending}, app)
	requestctx.Logger(ctx, l.Logger).Info("leave approved", zap.String("applicationId", app.ID), zap.String("approverId", actor.EmployeeID),
		zap.Int("available", balance.Available()))
	l.notify(ctx, EventApproved, app)
	return app, nil
}

func (l *Lifecycle) Reject(ctx context.Context, actor auth.Actor, id, reason string) (app Application, err error) {
	defer func() { l.Metrics.LeaveTransition("reject", err) }()

	if !actor.Can(auth.PermLeaveApprove) {
		return Application{}, apperr.Forbidden("role %q cannot decide leave applications", actor.Role)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Application{}, apperr.Validation("a rejection reason is required")
	}
	err = l.Store.WithTx(ctx, func(tx Tx) error {
		current, err := tx.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		if err := l.requireApprover(actor, current); err != nil {
			return err
		}
		app, err = tx.TransitionApplication(ctx, id, StatusPending, StatusRejected, Transition{
			ActorID:         actor.EmployeeID,
			At:              l.Clock.Current().UTC(),
			RejectionReason: reason,
		})
		return err
	})
	if err != nil {
		return Application{}, err
	}
	l.Audit.Record(ctx, actor, audit.ActionLeaveReject, audit.EntityLeaveApplication, app.ID,
		map[string]string{"status": StatusPending}, app)
	requestctx.Logger(ctx, l.Logger).Info("leave rejected", zap.String("applicationId", app.ID), zap.String("approverId", actor.EmployeeID))
	l.notify(ctx, EventRejected, app)
	return app, nil
}

// Cancel deletes a pending application outright, or marks an approved one
// cancelled and restores its days to the balance.
func (l *Lifecycle) Cancel(ctx context.Context, actor auth.Actor, id string) (res CancelResult, err error) {
	defer func() { l.Metrics.LeaveTransition("cancel", err) }()

	var before Application
	err = l.Store.WithTx(ctx, func(tx Tx) error {
		current, err := tx.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanActFor(current.EmployeeID) {
			return apperr.Forbidden("only the applicant or HR can cancel this application")
		}
		before = current
		switch current.Status {
		case StatusPending:
			if err := tx.DeleteApplication(ctx, id, StatusPending); err != nil {
				return err
			}
			res = CancelResult{Deleted: true}
			return nil
		case StatusApproved:
			app, err := tx.TransitionApplication(ctx, id, StatusApproved, StatusCancelled, Transition{})
			if err != nil {
				return err
			}
			if _, err := tx.AdjustUsed(ctx, app.EmployeeID, app.LeaveType, -app.NumberOfDays); err != nil {
				return err
			}
			res = CancelResult{Application: &app}
			return nil
		default:
			return apperr.Conflict("a %s application cannot be cancelled", current.Status)
		}
	})
	if err != nil {
		return CancelResult{}, err
	}
	if res.Deleted {
		l.Audit.Record(ctx, actor, audit.ActionLeaveDelete, audit.EntityLeaveApplication, id, before, nil)
	} else {
		l.Audit.Record(ctx, actor, audit.ActionLeaveCancel, audit.EntityLeaveApplication, id, before, res.Application)
		l.notify(ctx, EventCancelled, *res.Application)
	}
	requestctx.Logger(ctx, l.Logger).Info("leave cancelled", zap.String("applicationId", id), zap.Bool("deleted", res.Deleted),
		zap.String("actorId", actor.EmployeeID))
	return res, nil
}

// AddComment appends to the application's comment thread in any status.
func (l *Lifecycle) AddComment(ctx context.Context, actor auth.Actor, id, text string) (Application, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Application{}, apperr.Validation("comment text is required")
	}
	var app Application
	err := l.Store.WithTx(ctx, func(tx Tx) error {
		current, err := tx.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanActFor(current.EmployeeID) {
			return apperr.Forbidden("only the applicant or HR can comment on this application")
		}
		app, err = tx.AppendComment(ctx, id, Comment{
			AuthorID:  actor.EmployeeID,
			Text:      text,
			CreatedAt: l.Clock.Current().UTC(),
		})
		return err
	})
	if err != nil {
		return Application{}, err
	}
	l.Audit.Record(ctx, actor, audit.ActionLeaveComment, audit.EntityLeaveApplication, id, nil, map[string]string{"text": text})
	return app, nil
}

func (l *Lifecycle) Get(ctx context.Context, actor auth.Actor, id string) (Application, error) {
	app, err := l.Store.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if app.EmployeeID != actor.EmployeeID && !actor.Can(auth.PermLeaveReadAll) {
		return Application{}, apperr.Forbidden("not allowed to view this application")
	}
	return app, nil
}

func (l *Lifecycle) MyApplications(ctx context.Context, actor auth.Actor, status string, year int) ([]Application, error) {
	if status != "" && !validStatus(status) {
		return nil, apperr.Validation("unknown status %q", status)
	}
	list, err := l.Store.ListApplications(ctx, ApplicationFilter{EmployeeID: actor.EmployeeID, Status: status, Year: year})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (l *Lifecycle) List(ctx context.Context, actor auth.Actor, filter ApplicationFilter) (ApplicationList, error) {
	if !actor.Can(auth.PermLeaveReadAll) {
		return ApplicationList{}, apperr.Forbidden("role %q cannot list all leave applications", actor.Role)
	}
	if filter.Status != "" && !validStatus(filter.Status) {
		return ApplicationList{}, apperr.Validation("unknown status %q", filter.Status)
	}
	return l.Store.ListApplications(ctx, filter)
}

func validStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}
