package leave

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
)

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// Balance is one employee's ledger row for a leave type. Available is always
// derived from the other three figures and never stored.
type Balance struct {
	EmployeeID     string    `json:"employeeId"`
	LeaveType      string    `json:"leaveType"`
	Total          int       `json:"total"`
	Used           int       `json:"used"`
	CarriedForward int       `json:"carriedForward"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (b Balance) Available() int {
	return b.Total + b.CarriedForward - b.Used
}

func (b Balance) MarshalJSON() ([]byte, error) {
	type plain Balance
	return json.Marshal(struct {
		plain
		Available int `json:"available"`
	}{plain: plain(b), Available: b.Available()})
}

type Comment struct {
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

type Application struct {
	ID              string     `json:"id"`
	EmployeeID      string     `json:"employeeId"`
	LeaveType       string     `json:"leaveType"`
	FromDate        civil.Date `json:"fromDate"`
	ToDate          civil.Date `json:"toDate"`
	NumberOfDays    int        `json:"numberOfDays"`
	Reason          string     `json:"reason"`
	Status          string     `json:"status"`
	AppliedOn       time.Time  `json:"appliedOn"`
	ApprovedBy      string     `json:"approvedBy,omitempty"`
	DecidedAt       *time.Time `json:"decidedAt,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	Comments        []Comment  `json:"comments"`
}

// Transition describes the fields written alongside a status change.
type Transition struct {
	ActorID         string
	At              time.Time
	RejectionReason string
}

type ApplicationFilter struct {
	EmployeeID string
	Status     string
	Year       int
	Limit      int
	Offset     int
}

type ApplicationList struct {
	Items []Application `json:"items"`
	Total int           `json:"total"`
}

// Summary is the balance view returned to an employee.
type Summary struct {
	Balances     []Balance      `json:"balances"`
	UsedThisYear map[string]int `json:"usedThisYear"`
}

// ManualBalance is an HR override of a ledger row.
type ManualBalance struct {
	Total          int
	Used           int
	CarriedForward int
}

type CancelResult struct {
	Deleted     bool         `json:"deleted"`
	Application *Application `json:"application,omitempty"`
}

type Failure struct {
	EmployeeID string `json:"employeeId"`
	Error      string `json:"error"`
}

// BatchResult tallies a per-employee batch operation.
type BatchResult struct {
	PolicyID     string    `json:"policyId"`
	SuccessCount int       `json:"successCount"`
	ErrorCount   int       `json:"errorCount"`
	Failures     []Failure `json:"failures"`
}
