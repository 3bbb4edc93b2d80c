package engine

import (
	"testing"
	"time"

	"alertengine/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestIsThrottled_ManualAlwaysFalse(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Minute)
	trigger := models.Trigger{ThrottleDurationMinutes: 10, LastFiredTime: &last}

	assert.False(t, IsThrottled(trigger, now, true))
}

func TestIsThrottled_NoThrottleConfigured(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	trigger := models.Trigger{ThrottleDurationMinutes: 0}

	assert.False(t, IsThrottled(trigger, now, false))
}

func TestIsThrottled_NeverFired(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	trigger := models.Trigger{ThrottleDurationMinutes: 10}

	assert.False(t, IsThrottled(trigger, now, false))
}

func TestIsThrottled_WithinWindow(t *testing.T) {
	t0 := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	trigger := models.Trigger{ThrottleDurationMinutes: 10, LastFiredTime: &t0}

	halfway := t0.Add(5 * time.Minute)
	assert.True(t, IsThrottled(trigger, halfway, false))
}

func TestIsThrottled_AfterWindow(t *testing.T) {
	t0 := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	trigger := models.Trigger{ThrottleDurationMinutes: 10, LastFiredTime: &t0}

	later := t0.Add(11 * time.Minute)
	assert.False(t, IsThrottled(trigger, later, false))
}
