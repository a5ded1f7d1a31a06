package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesk/internal/domain/auth"
	"hrdesk/internal/requestctx"
)

func TestRecorderStoresEventsNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, nil)
	ctx := requestctx.WithRequestID(context.Background(), "req-1")
	hr := auth.Actor{EmployeeID: "hr-1", Role: auth.RoleHR}

	rec.Record(ctx, hr, ActionLeaveApprove, EntityLeaveApplication, "app-1", map[string]string{"status": "pending"}, map[string]string{"status": "approved"})
	rec.Record(ctx, hr, ActionLeaveReject, EntityLeaveApplication, "app-2", nil, nil)

	events, total, err := rec.List(context.Background(), Filter{EntityType: EntityLeaveApplication}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, events, 2)
	assert.Equal(t, "app-2", events[0].EntityID)
	assert.Equal(t, "req-1", events[1].RequestID)
	assert.JSONEq(t, `{"status":"approved"}`, string(events[1].After))

	events, total, err = rec.List(context.Background(), Filter{Action: ActionLeaveApprove}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "app-1", events[0].EntityID)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	rec.Record(context.Background(), auth.Actor{}, ActionLeaveApply, EntityLeaveApplication, "x", nil, nil)
	events, total, err := rec.List(context.Background(), Filter{}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, events)
}
