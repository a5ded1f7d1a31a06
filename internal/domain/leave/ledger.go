package leave

import (
	"context"

	"go.uber.org/zap"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/policy"
)

// Ledger is the only writer of leave balances outside the lifecycle's
// approval and cancellation paths.
type Ledger struct {
	Store  Store
	Audit  *audit.Recorder
	Logger *zap.Logger
}

func NewLedger(store Store, rec *audit.Recorder, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{Store: store, Audit: rec, Logger: logger}
}

func (l *Ledger) GetBalance(ctx context.Context, employeeID, leaveType string) (Balance, error) {
	return l.Store.GetBalance(ctx, employeeID, leaveType)
}

func (l *Ledger) Balances(ctx context.Context, employeeID string) ([]Balance, error) {
	return l.Store.ListBalances(ctx, employeeID)
}

// Summary returns the balances plus approved days per leave type whose
// leave starts in year.
func (l *Ledger) Summary(ctx context.Context, employeeID string, year int) (Summary, error) {
	balances, err := l.Store.ListBalances(ctx, employeeID)
	if err != nil {
		return Summary{}, err
	}
	used, err := l.Store.ApprovedDaysByType(ctx, employeeID, year)
	if err != nil {
		return Summary{}, err
	}
	for _, b := range balances {
		if _, ok := used[b.LeaveType]; !ok {
			used[b.LeaveType] = 0
		}
	}
	return Summary{Balances: balances, UsedThisYear: used}, nil
}

func initialBalances(employeeID string, p policy.Policy) []Balance {
	out := make([]Balance, 0, len(p.LeaveTypes))
	for _, q := range p.LeaveTypes {
		out = append(out, Balance{EmployeeID: employeeID, LeaveType: q.LeaveType, Total: q.AnnualQuota})
	}
	return out
}

// Initialize replaces the employee's balance table with one fresh row per
// policy leave type. Prior used and carried-forward figures are discarded.
func (l *Ledger) Initialize(ctx context.Context, employeeID string, p policy.Policy) ([]Balance, error) {
	var out []Balance
	err := l.Store.WithTx(ctx, func(tx Tx) error {
		if err := tx.ReplaceBalances(ctx, employeeID, initialBalances(employeeID, p)); err != nil {
			return err
		}
		var err error
		out, err = tx.ListBalances(ctx, employeeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rollover starts a new period from p, carrying unused days forward where
// the policy allows it, capped at maxCarryForward.
func (l *Ledger) Rollover(ctx context.Context, employeeID string, p policy.Policy) ([]Balance, error) {
	var out []Balance
	err := l.Store.WithTx(ctx, func(tx Tx) error {
		prev, err := tx.ListBalances(ctx, employeeID)
		if err != nil {
			return err
		}
		byType := make(map[string]Balance, len(prev))
		for _, b := range prev {
			byType[b.LeaveType] = b
		}
		next := make([]Balance, 0, len(p.LeaveTypes))
		for _, q := range p.LeaveTypes {
			b, found := byType[q.LeaveType]
			b.EmployeeID = employeeID
			next = append(next, rollover(b, found, q))
		}
		if err := tx.ReplaceBalances(ctx, employeeID, next); err != nil {
			return err
		}
		out, err = tx.ListBalances(ctx, employeeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Adjust adds delta days to used, atomically validating the result.
func (l *Ledger) Adjust(ctx context.Context, employeeID, leaveType string, delta int) (Balance, error) {
	return l.Store.AdjustUsed(ctx, employeeID, leaveType, delta)
}

// SetManual overwrites one row for HR corrections. Only non-negative inputs
// are enforced; available may go negative.
func (l *Ledger) SetManual(ctx context.Context, actor auth.Actor, employeeID, leaveType string, in ManualBalance) ([]Balance, error) {
	if !actor.Can(auth.PermBalanceManage) {
		return nil, apperr.Forbidden("role %q cannot override leave balances", actor.Role)
	}
	if in.Total < 0 || in.Used < 0 || in.CarriedForward < 0 {
		return nil, apperr.Validation("total, used and carriedForward must not be negative")
	}
	var before, after Balance
	var out []Balance
	err := l.Store.WithTx(ctx, func(tx Tx) error {
		var err error
		if before, err = tx.GetBalance(ctx, employeeID, leaveType); err != nil {
			return err
		}
		after, err = tx.SetBalance(ctx, Balance{
			EmployeeID:     employeeID,
			LeaveType:      leaveType,
			Total:          in.Total,
			Used:           in.Used,
			CarriedForward: in.CarriedForward,
		})
		if err != nil {
			return err
		}
		out, err = tx.ListBalances(ctx, employeeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.Audit.Record(ctx, actor, audit.ActionBalanceOverride, audit.EntityLeaveBalance, employeeID+"/"+leaveType, before, after)
	l.Logger.Info("leave balance overridden",
		zap.String("employeeId", employeeID), zap.String("leaveType", leaveType), zap.String("actorId", actor.EmployeeID))
	return out, nil
}
