package attendance

import (
	"time"

	"cloud.google.com/go/civil"
)

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusHalfDay = "half-day"
)

type Session struct {
	ID       string     `json:"id"`
	CheckIn  time.Time  `json:"checkIn"`
	CheckOut *time.Time `json:"checkOut,omitempty"`
}

func (s Session) Open() bool {
	return s.CheckOut == nil
}

// Duration is the closed length of the session; open sessions count zero.
func (s Session) Duration() time.Duration {
	if s.CheckOut == nil {
		return 0
	}
	if d := s.CheckOut.Sub(s.CheckIn); d > 0 {
		return d
	}
	return 0
}

// Record is one employee's attendance for one business day.
type Record struct {
	ID               string     `json:"id"`
	EmployeeID       string     `json:"employeeId"`
	Date             civil.Date `json:"date"`
	Sessions         []Session  `json:"sessions"`
	TotalWorkMinutes int        `json:"totalWorkMinutes"`
	Status           string     `json:"status"`
	Late             bool       `json:"late"`
	Notes            string     `json:"notes,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// OpenSession returns the index of the open session, if any.
func (r Record) OpenSession() (int, bool) {
	for i := len(r.Sessions) - 1; i >= 0; i-- {
		if r.Sessions[i].Open() {
			return i, true
		}
	}
	return -1, false
}

// closedMinutes sums exact session durations and truncates once, so
// sub-minute remainders carry across sessions.
func (r Record) closedMinutes() int {
	var total time.Duration
	for _, s := range r.Sessions {
		total += s.Duration()
	}
	return int(total / time.Minute)
}

func (r Record) clone() Record {
	r.Sessions = append([]Session{}, r.Sessions...)
	for i := range r.Sessions {
		if r.Sessions[i].CheckOut != nil {
			out := *r.Sessions[i].CheckOut
			r.Sessions[i].CheckOut = &out
		}
	}
	return r
}

type CheckOutResult struct {
	Record         Record    `json:"record"`
	TotalWorkHours float64   `json:"totalWorkHours"`
	Sessions       []Session `json:"sessions"`
}

// Stats are view-only aggregates over a set of records.
type Stats struct {
	TotalDays    int     `json:"totalDays"`
	TotalHours   float64 `json:"totalHours"`
	PresentDays  int     `json:"presentDays"`
	AbsentDays   int     `json:"absentDays"`
	HalfDays     int     `json:"halfDays"`
	LateDays     int     `json:"lateDays"`
	AverageHours float64 `json:"averageHours"`
}

type RecordsView struct {
	Records []Record `json:"records"`
	Stats   Stats    `json:"stats"`
}
