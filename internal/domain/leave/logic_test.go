package leave

import (
	"testing"

	"cloud.google.com/go/civil"
)

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCalculateDays(t *testing.T) {
	days, err := CalculateDays(date("2025-01-10"), date("2025-01-10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if days != 1 {
		t.Fatalf("expected 1 day, got %v", days)
	}

	days, err = CalculateDays(date("2025-03-10"), date("2025-03-12"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if days != 3 {
		t.Fatalf("expected 3 days, got %v", days)
	}

	// Weekends count.
	days, err = CalculateDays(date("2025-02-27"), date("2025-03-03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if days != 5 {
		t.Fatalf("expected 5 days across month end, got %v", days)
	}
}

func TestCalculateDaysInvalid(t *testing.T) {
	if _, err := CalculateDays(date("2025-02-10"), date("2025-02-09")); err == nil {
		t.Fatal("expected error for invalid range")
	}
	if _, err := CalculateDays(civil.Date{}, date("2025-02-09")); err == nil {
		t.Fatal("expected error for zero date")
	}
}

func TestRolloverCapsCarryForward(t *testing.T) {
	prev := Balance{EmployeeID: "e", LeaveType: "sick", Total: 8, Used: 1}
	got := rollover(prev, true, quota("sick", 8, true, 5))
	if got.CarriedForward != 5 || got.Used != 0 || got.Total != 8 {
		t.Fatalf("unexpected rollover row: %+v", got)
	}

	got = rollover(prev, true, quota("sick", 8, false, 5))
	if got.CarriedForward != 0 {
		t.Fatalf("carry forward disabled, got %d", got.CarriedForward)
	}

	overdrawn := Balance{LeaveType: "sick", Total: 2, Used: 4}
	got = rollover(overdrawn, true, quota("sick", 8, true, 5))
	if got.CarriedForward != 0 {
		t.Fatalf("negative balance must not carry, got %d", got.CarriedForward)
	}

	got = rollover(Balance{}, false, quota("study", 3, true, 2))
	if got.Total != 3 || got.CarriedForward != 0 {
		t.Fatalf("new leave type row: %+v", got)
	}
}
