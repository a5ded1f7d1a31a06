package employee

import "time"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Employee is the slice of the employee record this service reads. Profile
// fields are owned by the employee directory.
type Employee struct {
	ID         string    `json:"id"`
	Code       string    `json:"employeeCode"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (e Employee) Active() bool {
	return e.Status == StatusActive
}
