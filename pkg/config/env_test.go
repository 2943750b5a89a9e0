package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvBool(t *testing.T) {
	assert.True(t, GetEnvBool("ENV_TEST_UNSET", true))
	assert.False(t, GetEnvBool("ENV_TEST_UNSET", false))

	t.Setenv("ENV_TEST_BOOL", "true")
	assert.True(t, GetEnvBool("ENV_TEST_BOOL", false))

	t.Setenv("ENV_TEST_BOOL", "0")
	assert.False(t, GetEnvBool("ENV_TEST_BOOL", true))

	t.Setenv("ENV_TEST_BOOL", "yes")
	assert.True(t, GetEnvBool("ENV_TEST_BOOL", true), "unparseable keeps the default")
}

func TestGetEnvInt(t *testing.T) {
	assert.Equal(t, 8080, GetEnvInt("ENV_TEST_UNSET", 8080))

	t.Setenv("ENV_TEST_INT", "9090")
	assert.Equal(t, 9090, GetEnvInt("ENV_TEST_INT", 8080))

	t.Setenv("ENV_TEST_INT", "9090.5")
	assert.Equal(t, 8080, GetEnvInt("ENV_TEST_INT", 8080))
}

func TestGetEnvDuration(t *testing.T) {
	assert.Equal(t, time.Minute, GetEnvDuration("ENV_TEST_UNSET", time.Minute))

	t.Setenv("ENV_TEST_DUR", "1h30m")
	assert.Equal(t, 90*time.Minute, GetEnvDuration("ENV_TEST_DUR", time.Minute))

	t.Setenv("ENV_TEST_DUR", "soon")
	assert.Equal(t, time.Minute, GetEnvDuration("ENV_TEST_DUR", time.Minute))
}
