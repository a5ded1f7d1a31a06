package attendance

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/domain/policy"
)

var minutesPerHour = decimal.NewFromInt(60)

// Hours converts minutes to hours rounded to two places.
func Hours(minutes int) float64 {
	return decimal.NewFromInt(int64(minutes)).Div(minutesPerHour).Round(2).InexactFloat64()
}

// Classify derives the day status from closed work minutes.
func Classify(totalMinutes int, p policy.Policy) string {
	threshold := decimal.NewFromFloat(p.HalfDayThresholdHours).Mul(minutesPerHour)
	if decimal.NewFromInt(int64(totalMinutes)).LessThan(threshold) {
		return StatusHalfDay
	}
	return StatusPresent
}

// IsLate reports whether a first check-in at falls after workday start plus grace.
func IsLate(at time.Time, p policy.Policy) bool {
	offset, ok := p.WorkdayStartOffset()
	if !ok {
		return false
	}
	day := civil.DateOf(at).In(at.Location())
	cutoff := day.Add(offset + time.Duration(p.GraceTimeMinutes)*time.Minute)
	return at.After(cutoff)
}

// MonthRange returns the first and last day of month/year.
func MonthRange(month, year int) (civil.Date, civil.Date, error) {
	if month < 1 || month > 12 {
		return civil.Date{}, civil.Date{}, apperr.Validation("month must be between 1 and 12")
	}
	if year < 1970 || year > 9999 {
		return civil.Date{}, civil.Date{}, apperr.Validation("year %d is out of range", year)
	}
	from := civil.Date{Year: year, Month: time.Month(month), Day: 1}
	return from, from.AddMonths(1).AddDays(-1), nil
}

func IsWorkingDay(d civil.Date) bool {
	switch d.In(time.UTC).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// MissingWorkingDays counts Monday-Friday days in [from, to] that are
// before today and have no record.
func MissingWorkingDays(records []Record, from, to, today civil.Date) int {
	seen := make(map[civil.Date]struct{}, len(records))
	for _, r := range records {
		seen[r.Date] = struct{}{}
	}
	missing := 0
	for d := from; !d.After(to) && d.Before(today); d = d.AddDays(1) {
		if !IsWorkingDay(d) {
			continue
		}
		if _, ok := seen[d]; !ok {
			missing++
		}
	}
	return missing
}

// ComputeStats sums the records and adds days absent without any record.
func ComputeStats(records []Record, missing int) Stats {
	st := Stats{TotalDays: len(records), AbsentDays: missing}
	minutes := 0
	for _, r := range records {
		minutes += r.TotalWorkMinutes
		switch r.Status {
		case StatusPresent:
			st.PresentDays++
		case StatusHalfDay:
			st.HalfDays++
		case StatusAbsent:
			st.AbsentDays++
		}
		if r.Late {
			st.LateDays++
		}
	}
	st.TotalHours = Hours(minutes)
	if len(records) > 0 {
		st.AverageHours = decimal.NewFromInt(int64(minutes)).
			Div(minutesPerHour).
			Div(decimal.NewFromInt(int64(len(records)))).
			Round(2).InexactFloat64()
	}
	return st
}
