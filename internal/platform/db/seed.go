package db

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/domain/employee"
	"hrdesk/internal/domain/policy"
)

// SeedEmployees are created on first start so a fresh install has someone to
// issue tokens for.
var SeedEmployees = []employee.Employee{
	{ID: "emp-admin", Code: "E000", FullName: "System Admin", Email: "admin@hrdesk.local", Department: "IT"},
	{ID: "emp-hr", Code: "E001", FullName: "Hannah Reyes", Email: "hr@hrdesk.local", Department: "People"},
	{ID: "emp-mgr", Code: "E002", FullName: "Manuel Ortiz", Email: "manager@hrdesk.local", Department: "Engineering"},
	{ID: "emp-dev", Code: "E003", FullName: "Dana Kim", Email: "dana@hrdesk.local", Department: "Engineering"},
}

func DefaultPolicy(category string) policy.Policy {
	return policy.Policy{
		Name:     "Default leave and attendance policy",
		Category: category,
		LeaveTypes: []policy.LeaveTypeQuota{
			{LeaveType: "casual", AnnualQuota: 12},
			{LeaveType: "sick", AnnualQuota: 8, CarryForward: true, MaxCarryForward: 5},
			{LeaveType: "earned", AnnualQuota: 15, CarryForward: true, MaxCarryForward: 10},
		},
		WorkingHoursPerDay:    8,
		HalfDayThresholdHours: 4,
		GraceTimeMinutes:      15,
		WorkdayStart:          "09:30",
	}
}

// Seed is idempotent: existing employees are left alone and a policy is only
// created when the category has no active one.
func Seed(ctx context.Context, employees employee.StoreAPI, policies policy.StoreAPI, category string, logger *zap.Logger) error {
	for _, emp := range SeedEmployees {
		_, err := employees.Get(ctx, emp.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		if _, err := employees.Create(ctx, emp); err != nil {
			return err
		}
		logger.Info("seeded employee", zap.String("employee_id", emp.ID))
	}

	_, err := policies.GetActive(ctx, category)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	p := DefaultPolicy(category)
	p.Normalize()
	created, err := policies.Create(ctx, p)
	if err != nil {
		return err
	}
	if _, err := policies.Activate(ctx, created.ID); err != nil {
		return err
	}
	logger.Info("seeded default policy", zap.String("policy_id", created.ID), zap.String("category", category))
	return nil
}
