package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func rejectAll[T any](T) error { return fmt.Errorf("rejected") }

func TestValidatedString(t *testing.T) {
	t.Run("unset uses default without warning", func(t *testing.T) {
		got := ValidatedString("LOADER_TEST_UNSET", "0 * * * *", CronSchedule)
		assert.Equal(t, "0 * * * *", got.Value)
		assert.False(t, got.FellBack)
		assert.Empty(t, got.Warning)
	})

	t.Run("valid value wins over default", func(t *testing.T) {
		t.Setenv("LOADER_TEST_SCHEDULE", "30 5 * * *")
		got := ValidatedString("LOADER_TEST_SCHEDULE", "0 * * * *", CronSchedule)
		assert.Equal(t, "30 5 * * *", got.Value)
		assert.False(t, got.FellBack)
	})

	t.Run("invalid value falls back with warning", func(t *testing.T) {
		t.Setenv("LOADER_TEST_SCHEDULE", "every hour")
		got := ValidatedString("LOADER_TEST_SCHEDULE", "0 * * * *", CronSchedule)
		assert.Equal(t, "0 * * * *", got.Value)
		assert.True(t, got.FellBack)
		assert.Contains(t, got.Warning, "LOADER_TEST_SCHEDULE")
		assert.Contains(t, got.Warning, "every hour")
	})

	t.Run("nil validator accepts anything", func(t *testing.T) {
		t.Setenv("LOADER_TEST_FREEFORM", "???")
		got := ValidatedString("LOADER_TEST_FREEFORM", "x", nil)
		assert.Equal(t, "???", got.Value)
		assert.False(t, got.FellBack)
	})
}

func TestDuration(t *testing.T) {
	t.Run("parses go duration syntax", func(t *testing.T) {
		t.Setenv("LOADER_TEST_TIMEOUT", "1h30m")
		got := Duration("LOADER_TEST_TIMEOUT", time.Minute, Positive)
		assert.Equal(t, 90*time.Minute, got.Value)
		assert.False(t, got.FellBack)
	})

	t.Run("unparseable falls back", func(t *testing.T) {
		t.Setenv("LOADER_TEST_TIMEOUT", "ninety minutes")
		got := Duration("LOADER_TEST_TIMEOUT", time.Minute, nil)
		assert.Equal(t, time.Minute, got.Value)
		assert.True(t, got.FellBack)
		assert.Contains(t, got.Warning, "not a duration")
	})

	t.Run("validator rejection falls back", func(t *testing.T) {
		t.Setenv("LOADER_TEST_TIMEOUT", "45s")
		got := Duration("LOADER_TEST_TIMEOUT", 5*time.Minute, rejectAll[time.Duration])
		assert.Equal(t, 5*time.Minute, got.Value)
		assert.True(t, got.FellBack)
	})
}

func TestInt(t *testing.T) {
	t.Run("parses base-10", func(t *testing.T) {
		t.Setenv("LOADER_TEST_COUNT", "25")
		got := Int("LOADER_TEST_COUNT", 10, IntBetween(1, 100))
		assert.Equal(t, 25, got.Value)
		assert.False(t, got.FellBack)
	})

	t.Run("non-numeric falls back", func(t *testing.T) {
		t.Setenv("LOADER_TEST_COUNT", "ten")
		got := Int("LOADER_TEST_COUNT", 10, nil)
		assert.Equal(t, 10, got.Value)
		assert.True(t, got.FellBack)
		assert.Contains(t, got.Warning, "not an integer")
	})

	t.Run("out of range falls back", func(t *testing.T) {
		t.Setenv("LOADER_TEST_COUNT", "5000")
		got := Int("LOADER_TEST_COUNT", 10, IntBetween(1, 100))
		assert.Equal(t, 10, got.Value)
		assert.True(t, got.FellBack)
	})
}
