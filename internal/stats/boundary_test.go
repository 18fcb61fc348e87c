package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUntilNextHour(t *testing.T) {
	now := time.Date(2026, 7, 31, 13, 45, 0, 0, time.UTC)
	assert.Equal(t, 15*time.Minute, untilNextHour(now))

	onBoundary := time.Date(2026, 7, 31, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Hour, untilNextHour(onBoundary))
}
