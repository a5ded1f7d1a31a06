package notifications

import "hrdesk/internal/domain/leave"

const (
	TypeLeaveApproved  = leave.EventApproved
	TypeLeaveRejected  = leave.EventRejected
	TypeLeaveCancelled = leave.EventCancelled
)

const defaultFrom = "no-reply@hrdesk.local"
