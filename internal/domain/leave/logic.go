package leave

import (
	"cloud.google.com/go/civil"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/domain/policy"
)

// CalculateDays returns the inclusive calendar-day count between from and to.
// Weekends and holidays are counted.
func CalculateDays(from, to civil.Date) (int, error) {
	if !from.IsValid() || !to.IsValid() {
		return 0, apperr.Validation("fromDate and toDate must be valid dates")
	}
	if to.Before(from) {
		return 0, apperr.Validation("toDate %s is before fromDate %s", to, from)
	}
	return to.DaysSince(from) + 1, nil
}

// checkUsed validates a ledger row after used has changed by delta.
func checkUsed(b Balance, delta int) error {
	if b.Used < 0 || b.Available() < 0 {
		return &InsufficientBalanceError{
			EmployeeID: b.EmployeeID,
			LeaveType:  b.LeaveType,
			Available:  b.Available() + delta,
			Requested:  delta,
		}
	}
	return nil
}

// rollover computes the next period's row for quota q from the previous row.
func rollover(prev Balance, found bool, q policy.LeaveTypeQuota) Balance {
	next := Balance{EmployeeID: prev.EmployeeID, LeaveType: q.LeaveType, Total: q.AnnualQuota}
	if found && q.CarryForward {
		carry := prev.Available()
		if carry < 0 {
			carry = 0
		}
		if carry > q.MaxCarryForward {
			carry = q.MaxCarryForward
		}
		next.CarriedForward = carry
	}
	return next
}

func overlaps(a Application, from, to civil.Date) bool {
	return !a.ToDate.Before(from) && !to.Before(a.FromDate)
}
