package leave

import (
	"fmt"

	"hrdesk/internal/domain/apperr"
)

// InsufficientBalanceError reports that a deduction would overdraw a balance.
// It matches apperr.ErrInsufficientBalance under errors.Is.
type InsufficientBalanceError struct {
	EmployeeID string
	LeaveType  string
	Available  int
	Requested  int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: %d day(s) available, %d requested", e.LeaveType, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) ErrorKind() apperr.Kind {
	return apperr.KindInsufficientBalance
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == apperr.ErrInsufficientBalance
}

func unknownLeaveType(leaveType string) error {
	return apperr.New(apperr.KindUnknownLeaveType, "leave type %q is not in the employee's balance table", leaveType)
}

// Details is rendered into the error body of HTTP responses.
func (e *InsufficientBalanceError) Details() map[string]any {
	return map[string]any{
		"leaveType": e.LeaveType,
		"available": e.Available,
		"requested": e.Requested,
	}
}
