package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trippableConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          50 * time.Millisecond,
		FailureThreshold: 1.0,
		MinRequests:      3,
	}
}

func TestExecute_PassesThroughResult(t *testing.T) {
	cb := New(trippableConfig("pass"))

	got, err := cb.Execute(func() (interface{}, error) {
		return "sent", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "sent", got)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestExecute_OpensAfterFailureRun(t *testing.T) {
	cb := New(trippableConfig("open"))
	boom := errors.New("gateway unreachable")

	for range 3 {
		_, err := cb.Execute(func() (interface{}, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	called := false
	_, err := cb.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called)
}

func TestExecute_HalfOpenRecovery(t *testing.T) {
	cb := New(trippableConfig("recover"))
	boom := errors.New("gateway unreachable")

	for range 3 {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, boom })
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(60 * time.Millisecond)

	_, err := cb.Execute(func() (interface{}, error) { return "sent", nil })
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestExecute_StaysClosedBelowMinRequests(t *testing.T) {
	cb := New(trippableConfig("min"))

	_, _ = cb.Execute(func() (interface{}, error) { return nil, errors.New("x") })
	_, _ = cb.Execute(func() (interface{}, error) { return nil, errors.New("x") })

	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestProviderConfig_NamesCircuitAfterProvider(t *testing.T) {
	cb := New(ProviderConfig("mail-relay"))
	assert.Equal(t, "provider-mail-relay", cb.Name())
}

func TestProviderConfig_ToleratesMinorityFailures(t *testing.T) {
	cb := New(ProviderConfig("sms-gateway"))

	// 2 failures in 6 requests is a 33% ratio, under the 60% threshold.
	for i := range 6 {
		_, _ = cb.Execute(func() (interface{}, error) {
			if i < 2 {
				return nil, errors.New("timeout")
			}
			return "sent", nil
		})
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
