package reports

import (
	"time"

	"cloud.google.com/go/civil"
)

type MonthlyRow struct {
	EmployeeID   string  `json:"employeeId"`
	FullName     string  `json:"fullName"`
	Department   string  `json:"department"`
	PresentDays  int     `json:"presentDays"`
	HalfDays     int     `json:"halfDays"`
	AbsentDays   int     `json:"absentDays"`
	LateDays     int     `json:"lateDays"`
	TotalHours   float64 `json:"totalHours"`
	AverageHours float64 `json:"averageHours"`
}

type MonthlyReport struct {
	Month       int          `json:"month"`
	Year        int          `json:"year"`
	From        civil.Date   `json:"from"`
	To          civil.Date   `json:"to"`
	WorkingDays int          `json:"workingDays"`
	Rows        []MonthlyRow `json:"rows"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

type TodayEntry struct {
	EmployeeID       string     `json:"employeeId"`
	FullName         string     `json:"fullName"`
	FirstCheckIn     *time.Time `json:"firstCheckIn,omitempty"`
	CurrentlyWorking bool       `json:"currentlyWorking"`
	Late             bool       `json:"late"`
	TotalWorkMinutes int        `json:"totalWorkMinutes"`
	Status           string     `json:"status"`
}

type TodaySummary struct {
	Date             civil.Date   `json:"date"`
	ActiveEmployees  int          `json:"activeEmployees"`
	CheckedIn        int          `json:"checkedIn"`
	CurrentlyWorking int          `json:"currentlyWorking"`
	Late             int          `json:"late"`
	NotCheckedIn     int          `json:"notCheckedIn"`
	Entries          []TodayEntry `json:"entries"`
}

type UsageRow struct {
	LeaveType          string `json:"leaveType"`
	Applications       int    `json:"applications"`
	ApprovedDays       int    `json:"approvedDays"`
	PendingDays        int    `json:"pendingDays"`
	RejectedCount      int    `json:"rejectedCount"`
	CancelledCount     int    `json:"cancelledCount"`
	EmployeesWithLeave int    `json:"employeesWithLeave"`
}

type LeaveUsage struct {
	Year int        `json:"year"`
	Rows []UsageRow `json:"rows"`
}
