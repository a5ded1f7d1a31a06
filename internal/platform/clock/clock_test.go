package clock

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
)

func TestTodayFollowsBusinessLocation(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*60*60+30*60)

	instant := time.Date(2025, 3, 11, 20, 0, 0, 0, time.UTC)
	c := Func(func() time.Time { return instant }, kolkata)

	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 12}, c.Today())
	assert.Equal(t, kolkata, c.Current().Location())
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 11}, Func(c.Now, nil).Today())
}

func TestZeroClockFallsBackToWallTimeInUTC(t *testing.T) {
	var c Clock
	assert.Equal(t, time.UTC, c.Current().Location())
	assert.WithinDuration(t, time.Now(), c.Current(), time.Minute)
}
