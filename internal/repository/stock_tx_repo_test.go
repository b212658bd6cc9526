package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartOfDayUsesLocalMidnight(t *testing.T) {
	zone := time.FixedZone("UTC+7", 7*3600)
	now := time.Date(2026, 9, 1, 3, 30, 0, 0, zone)

	midnight := startOfDay(now)

	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, zone), midnight)
	assert.Equal(t, zone, midnight.Location())
	// Epoch truncation would land on the previous day's 07:00 in this zone.
	assert.True(t, midnight.After(now.Truncate(24*time.Hour)))
}
