package notifications

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesk/internal/domain/employee"
	"hrdesk/internal/domain/leave"
)

type sent struct {
	from, to, subject, body string
}

type fakeMailer struct {
	sent []sent
	err  error
}

func (m *fakeMailer) Send(_ context.Context, from, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sent{from, to, subject, body})
	return nil
}

func newService(t *testing.T, mailer Mailer) *Service {
	t.Helper()
	employees := employee.NewMemoryStore()
	_, err := employees.Create(context.Background(), employee.Employee{ID: "emp-1", FullName: "Dana", Email: "dana@example.com"})
	require.NoError(t, err)
	_, err = employees.Create(context.Background(), employee.Employee{ID: "emp-2", FullName: "No Mail"})
	require.NoError(t, err)
	return New(employees, mailer, "", nil)
}

func application(employeeID string) leave.Application {
	return leave.Application{
		ID:              "app-1",
		EmployeeID:      employeeID,
		LeaveType:       "casual",
		FromDate:        civil.Date{Year: 2025, Month: 3, Day: 17},
		ToDate:          civil.Date{Year: 2025, Month: 3, Day: 19},
		NumberOfDays:    3,
		RejectionReason: "peak season",
	}
}

func TestLeaveEventEmailsApplicant(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newService(t, mailer)

	svc.LeaveEvent(context.Background(), TypeLeaveRejected, application("emp-1"))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, defaultFrom, msg.from)
	assert.Equal(t, "dana@example.com", msg.to)
	assert.Equal(t, "Leave rejected", msg.subject)
	assert.Contains(t, msg.body, "casual leave from 2025-03-17 to 2025-03-19 (3 days)")
	assert.Contains(t, msg.body, "Reason: peak season")
}

func TestLeaveEventSkipsWhenUndeliverable(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newService(t, mailer)

	svc.LeaveEvent(context.Background(), TypeLeaveApproved, application("emp-2"))
	svc.LeaveEvent(context.Background(), TypeLeaveApproved, application("missing"))
	svc.LeaveEvent(context.Background(), "leave_submitted", application("emp-1"))

	assert.Empty(t, mailer.sent)
}

func TestLeaveEventSwallowsSendErrors(t *testing.T) {
	svc := newService(t, &fakeMailer{err: errors.New("smtp down")})

	assert.NotPanics(t, func() {
		svc.LeaveEvent(context.Background(), TypeLeaveCancelled, application("emp-1"))
	})
}
