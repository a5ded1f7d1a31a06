package shared

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp, whose calendar date
// is taken as written.
func ParseDate(value string) (civil.Date, error) {
	value = strings.TrimSpace(value)
	if d, err := civil.ParseDate(value); err == nil {
		return d, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return civil.Date{}, err
	}
	return civil.DateOf(parsed), nil
}
