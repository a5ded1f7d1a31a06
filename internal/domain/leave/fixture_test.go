package leave

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/employee"
	"hrdesk/internal/domain/policy"
	"hrdesk/internal/platform/clock"
	"hrdesk/internal/platform/metrics"
)

var (
	hr    = auth.Actor{EmployeeID: "hr-1", Role: auth.RoleHR}
	alice = auth.Actor{EmployeeID: "emp-1", Role: auth.RoleEmployee}
	bob   = auth.Actor{EmployeeID: "emp-2", Role: auth.RoleEmployee}
)

func quota(leaveType string, annual int, carry bool, maxCarry int) policy.LeaveTypeQuota {
	return policy.LeaveTypeQuota{LeaveType: leaveType, AnnualQuota: annual, CarryForward: carry, MaxCarryForward: maxCarry}
}

type fixture struct {
	store       *MemoryStore
	employees   *employee.MemoryStore
	policies    *policy.Service
	policy      policy.Policy
	audit       *audit.MemoryStore
	ledger      *Ledger
	lifecycle   *Lifecycle
	provisioner *Provisioner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	policies := policy.NewService(policy.NewMemoryStore(), nil, 0, nil)
	pol, err := policies.Create(ctx, policy.Policy{
		Name: "Standard",
		LeaveTypes: []policy.LeaveTypeQuota{
			quota("casual", 12, false, 0),
			quota("sick", 8, true, 5),
		},
	})
	require.NoError(t, err)
	pol, err = policies.Activate(ctx, pol.ID)
	require.NoError(t, err)

	employees := employee.NewMemoryStore()
	for _, id := range []string{"hr-1", "emp-1", "emp-2"} {
		_, err := employees.Create(ctx, employee.Employee{ID: id, FullName: id})
		require.NoError(t, err)
	}

	store := NewMemoryStore()
	auditStore := audit.NewMemoryStore()
	rec := audit.NewRecorder(auditStore, nil)
	m := metrics.New()
	ledger := NewLedger(store, rec, nil)
	f := &fixture{
		store:       store,
		employees:   employees,
		policies:    policies,
		policy:      pol,
		audit:       auditStore,
		ledger:      ledger,
		lifecycle:   NewLifecycle(store, clock.Fixed(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)), rec, m, nil),
		provisioner: NewProvisioner(ledger, employees, policies, "", 4, rec, m, nil),
	}
	for _, id := range []string{"hr-1", "emp-1", "emp-2"} {
		_, err := f.provisioner.Reinitialize(ctx, hr, id)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) balance(t *testing.T, employeeID, leaveType string) Balance {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), employeeID, leaveType)
	require.NoError(t, err)
	return b
}

func (f *fixture) apply(t *testing.T, actor auth.Actor, leaveType, from, to string) Application {
	t.Helper()
	app, err := f.lifecycle.Apply(context.Background(), actor, ApplyInput{
		LeaveType: leaveType,
		FromDate:  date(from),
		ToDate:    date(to),
		Reason:    fmt.Sprintf("%s leave", leaveType),
	})
	require.NoError(t, err)
	return app
}
