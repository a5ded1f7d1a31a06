package leave

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/employee"
	"hrdesk/internal/domain/policy"
	"hrdesk/internal/platform/metrics"
)

type PolicySource interface {
	Active(ctx context.Context, category string) (policy.Policy, error)
	Get(ctx context.Context, id string) (policy.Policy, error)
}

const (
	OpInitialize = "initialize"
	OpRollover   = "rollover"
)

// Provisioner applies policy leave tables to employee ledgers, one employee
// or all active employees at a time.
type Provisioner struct {
	Ledger      *Ledger
	Employees   employee.StoreAPI
	Policies    PolicySource
	Category    string
	Concurrency int
	Audit       *audit.Recorder
	Metrics     *metrics.Collector
	Logger      *zap.Logger
}

func NewProvisioner(ledger *Ledger, employees employee.StoreAPI, policies PolicySource, category string, concurrency int, rec *audit.Recorder, m *metrics.Collector, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if category == "" {
		category = policy.DefaultCategory
	}
	return &Provisioner{
		Ledger:      ledger,
		Employees:   employees,
		Policies:    policies,
		Category:    category,
		Concurrency: concurrency,
		Audit:       rec,
		Metrics:     m,
		Logger:      logger,
	}
}

func requireBalanceManager(actor auth.Actor) error {
	if !actor.Can(auth.PermBalanceManage) {
		return apperr.Forbidden("role %q cannot provision leave balances", actor.Role)
	}
	return nil
}

func (p *Provisioner) run(ctx context.Context, op string, employeeID string, pol policy.Policy) ([]Balance, error) {
	if op == OpRollover {
		return p.Ledger.Rollover(ctx, employeeID, pol)
	}
	return p.Ledger.Initialize(ctx, employeeID, pol)
}

func (p *Provisioner) single(ctx context.Context, actor auth.Actor, op, employeeID string) ([]Balance, error) {
	if err := requireBalanceManager(actor); err != nil {
		return nil, err
	}
	if _, err := p.Employees.Get(ctx, employeeID); err != nil {
		return nil, err
	}
	pol, err := p.Policies.Active(ctx, p.Category)
	if err != nil {
		return nil, err
	}
	before, err := p.Ledger.Balances(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	out, err := p.run(ctx, op, employeeID, pol)
	if err != nil {
		return nil, err
	}
	action := audit.ActionBalanceInit
	if op == OpRollover {
		action = audit.ActionBalanceRollover
	}
	p.Audit.Record(ctx, actor, action, audit.EntityLeaveBalance, employeeID, before, out)
	p.Logger.Info("leave balances provisioned", zap.String("operation", op),
		zap.String("employeeId", employeeID), zap.String("policyId", pol.ID))
	return out, nil
}

// Reinitialize resets one employee's balances from the active policy,
// zeroing used and carried-forward days.
func (p *Provisioner) Reinitialize(ctx context.Context, actor auth.Actor, employeeID string) ([]Balance, error) {
	return p.single(ctx, actor, OpInitialize, employeeID)
}

func (p *Provisioner) RolloverEmployee(ctx context.Context, actor auth.Actor, employeeID string) ([]Balance, error) {
	return p.single(ctx, actor, OpRollover, employeeID)
}

// ApplyPolicyToAllEmployees initializes every active employee from policyID.
// Per-employee failures are tallied, never returned.
func (p *Provisioner) ApplyPolicyToAllEmployees(ctx context.Context, actor auth.Actor, policyID string) (BatchResult, error) {
	return p.batch(ctx, actor, OpInitialize, policyID)
}

func (p *Provisioner) RolloverAll(ctx context.Context, actor auth.Actor, policyID string) (BatchResult, error) {
	return p.batch(ctx, actor, OpRollover, policyID)
}

func (p *Provisioner) batch(ctx context.Context, actor auth.Actor, op, policyID string) (BatchResult, error) {
	if err := requireBalanceManager(actor); err != nil {
		return BatchResult{}, err
	}
	pol, err := p.Policies.Get(ctx, policyID)
	if err != nil {
		return BatchResult{}, err
	}
	employees, err := p.Employees.ListActive(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{PolicyID: pol.ID, Failures: []Failure{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Concurrency)
	for _, emp := range employees {
		emp := emp
		g.Go(func() error {
			_, err := p.run(gctx, op, emp.ID, pol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.ErrorCount++
				result.Failures = append(result.Failures, Failure{EmployeeID: emp.ID, Error: err.Error()})
				p.Logger.Warn("leave provisioning failed for employee", zap.String("operation", op),
					zap.String("employeeId", emp.ID), zap.String("policyId", pol.ID), zap.Error(err))
				return nil
			}
			result.SuccessCount++
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].EmployeeID < result.Failures[j].EmployeeID })

	p.Metrics.Provisioned(op, result.SuccessCount, result.ErrorCount)
	action := audit.ActionPolicyApplyBatch
	if op == OpRollover {
		action = audit.ActionPolicyRolloverBatch
	}
	p.Audit.Record(ctx, actor, action, audit.EntityPolicy, pol.ID, nil, result)
	p.Logger.Info("leave provisioning batch finished", zap.String("operation", op), zap.String("policyId", pol.ID),
		zap.Int("successCount", result.SuccessCount), zap.Int("errorCount", result.ErrorCount))
	return result, nil
}
