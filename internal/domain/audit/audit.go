package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hrdesk/internal/domain/auth"
	"hrdesk/internal/requestctx"
)

const (
	ActionLeaveApply          = "leave.apply"
	ActionLeaveApprove        = "leave.approve"
	ActionLeaveReject         = "leave.reject"
	ActionLeaveCancel         = "leave.cancel"
	ActionLeaveDelete         = "leave.delete"
	ActionLeaveComment        = "leave.comment"
	ActionBalanceOverride     = "balance.override"
	ActionBalanceInit         = "balance.initialize"
	ActionBalanceRollover     = "balance.rollover"
	ActionAttendanceNotes     = "attendance.notes"
	ActionPolicyCreate        = "policy.create"
	ActionPolicyActivate      = "policy.activate"
	ActionPolicyApplyBatch    = "policy.apply"
	ActionPolicyRolloverBatch = "policy.rollover"

	EntityLeaveApplication = "leave_application"
	EntityLeaveBalance     = "leave_balance"
	EntityAttendance       = "attendance_record"
	EntityPolicy           = "policy"
)

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	ActorRole  string          `json:"actorRole"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorID    string
}

type Store interface {
	Insert(ctx context.Context, evt Event) error
	Count(ctx context.Context, filter Filter) (int, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]Event, error)
}

// Recorder writes audit events. Failures are logged and never surface to the
// operation being audited, which has already committed.
type Recorder struct {
	Store  Store
	Logger *zap.Logger
}

func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{Store: store, Logger: logger}
}

func marshal(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return payload
}

func (r *Recorder) Record(ctx context.Context, actor auth.Actor, action, entityType, entityID string, before, after any) {
	if r == nil {
		return
	}
	evt := Event{
		ID:         uuid.NewString(),
		ActorID:    actor.EmployeeID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  requestctx.RequestID(ctx),
		CreatedAt:  time.Now().UTC(),
		Before:     marshal(before),
		After:      marshal(after),
	}
	if r.Store == nil {
		r.Logger.Info("audit", zap.String("action", action), zap.String("entityType", entityType),
			zap.String("entityId", entityID), zap.String("actorId", actor.EmployeeID), zap.String("requestId", evt.RequestID))
		return
	}
	if err := r.Store.Insert(ctx, evt); err != nil {
		r.Logger.Warn("audit insert failed", zap.String("action", action), zap.String("entityId", entityID), zap.Error(err))
	}
}

func (r *Recorder) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, int, error) {
	if r == nil || r.Store == nil {
		return []Event{}, 0, nil
	}
	total, err := r.Store.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	events, err := r.Store.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
