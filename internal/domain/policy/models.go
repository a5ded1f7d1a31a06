package policy

import (
	"fmt"
	"strings"
	"time"

	"hrdesk/internal/domain/apperr"
)

const DefaultCategory = "general"

// LeaveTypeQuota is one row of a policy's leave-type table.
type LeaveTypeQuota struct {
	LeaveType       string `json:"leaveType" validate:"required,max=64"`
	AnnualQuota     int    `json:"annualQuota" validate:"gte=0"`
	CarryForward    bool   `json:"carryForward"`
	MaxCarryForward int    `json:"maxCarryForward" validate:"gte=0"`
}

type Policy struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	Category              string           `json:"category"`
	IsActive              bool             `json:"isActive"`
	LeaveTypes            []LeaveTypeQuota `json:"leaveTypes"`
	WorkingHoursPerDay    float64          `json:"workingHoursPerDay"`
	HalfDayThresholdHours float64          `json:"halfDayThresholdHours"`
	GraceTimeMinutes      int              `json:"graceTimeMinutes"`
	WorkdayStart          string           `json:"workdayStart"`
	CreatedAt             time.Time        `json:"createdAt"`
}

func (p Policy) Quota(leaveType string) (LeaveTypeQuota, bool) {
	for _, q := range p.LeaveTypes {
		if q.LeaveType == leaveType {
			return q, true
		}
	}
	return LeaveTypeQuota{}, false
}

// WorkdayStartOffset is the time of day the workday begins, as an offset
// from midnight. An empty WorkdayStart means the policy does not track lateness.
func (p Policy) WorkdayStartOffset() (time.Duration, bool) {
	if p.WorkdayStart == "" {
		return 0, false
	}
	t, err := time.Parse("15:04", p.WorkdayStart)
	if err != nil {
		return 0, false
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
}

// Normalize fills defaults and trims names before validation.
func (p *Policy) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if p.WorkingHoursPerDay == 0 {
		p.WorkingHoursPerDay = 8
	}
	if p.HalfDayThresholdHours == 0 {
		p.HalfDayThresholdHours = p.WorkingHoursPerDay / 2
	}
	for i := range p.LeaveTypes {
		p.LeaveTypes[i].LeaveType = strings.ToLower(strings.TrimSpace(p.LeaveTypes[i].LeaveType))
		if !p.LeaveTypes[i].CarryForward {
			p.LeaveTypes[i].MaxCarryForward = 0
		}
	}
}

func (p Policy) Validate() error {
	if p.Name == "" {
		return apperr.Validation("policy name is required")
	}
	if len(p.LeaveTypes) == 0 {
		return apperr.Validation("policy must define at least one leave type")
	}
	seen := make(map[string]struct{}, len(p.LeaveTypes))
	for _, q := range p.LeaveTypes {
		if q.LeaveType == "" {
			return apperr.Validation("leave type name is required")
		}
		if _, dup := seen[q.LeaveType]; dup {
			return apperr.Validation("leave type %q defined twice", q.LeaveType)
		}
		seen[q.LeaveType] = struct{}{}
		if q.AnnualQuota < 0 || q.MaxCarryForward < 0 {
			return apperr.Validation("leave type %q: quotas must not be negative", q.LeaveType)
		}
	}
	if p.WorkingHoursPerDay <= 0 || p.WorkingHoursPerDay > 24 {
		return apperr.Validation("workingHoursPerDay must be within (0, 24]")
	}
	if p.HalfDayThresholdHours <= 0 || p.HalfDayThresholdHours > p.WorkingHoursPerDay {
		return apperr.Validation("halfDayThresholdHours must be within (0, workingHoursPerDay]")
	}
	if p.GraceTimeMinutes < 0 {
		return apperr.Validation("graceTimeMinutes must not be negative")
	}
	if p.WorkdayStart != "" {
		if _, ok := p.WorkdayStartOffset(); !ok {
			return apperr.Validation("workdayStart %q must be HH:MM", p.WorkdayStart)
		}
	}
	return nil
}

func (p Policy) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.ID)
}
