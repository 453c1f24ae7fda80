package script

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forbearing/stratadb/value"
)

func TestRunDelegatesToHost(t *testing.T) {
	host := HostFunc(func(ctx context.Context, name string, args []value.Value) (value.Value, error) {
		assert.Equal(t, "greet", name)
		return value.String("hi " + args[0].Str()), nil
	})
	r, err := New(host, DefaultSettings(), nil)
	require.NoError(t, err)

	out, err := r.Run(context.Background(), "greet", []value.Value{value.String("tobie")})
	require.NoError(t, err)
	assert.Equal(t, "hi tobie", out.Str())
}

func TestRunPropagatesHostError(t *testing.T) {
	boom := errors.New("boom")
	host := HostFunc(func(ctx context.Context, name string, args []value.Value) (value.Value, error) {
		return value.Value{}, boom
	})
	r, err := New(host, DefaultSettings(), nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "fail", nil)
	assert.ErrorIs(t, err, boom)
}

func TestNewRejectsZeroMaxRequests(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxRequests = 0
	_, err := New(HostFunc(func(context.Context, string, []value.Value) (value.Value, error) {
		return value.Value{}, nil
	}), settings, nil)
	assert.Error(t, err)
}

func TestNewRejectsZeroMinRequests(t *testing.T) {
	settings := DefaultSettings()
	settings.MinRequests = 0
	_, err := New(HostFunc(func(context.Context, string, []value.Value) (value.Value, error) {
		return value.Value{}, nil
	}), settings, nil)
	assert.Error(t, err)
}

func TestNewRejectsOutOfRangeFailureRate(t *testing.T) {
	settings := DefaultSettings()
	settings.FailureRate = 0
	_, err := New(HostFunc(func(context.Context, string, []value.Value) (value.Value, error) {
		return value.Value{}, nil
	}), settings, nil)
	assert.Error(t, err)

	settings.FailureRate = 1.5
	_, err = New(HostFunc(func(context.Context, string, []value.Value) (value.Value, error) {
		return value.Value{}, nil
	}), settings, nil)
	assert.Error(t, err)
}

func TestCircuitBreakerTripsAfterFailures(t *testing.T) {
	boom := errors.New("boom")
	host := HostFunc(func(ctx context.Context, name string, args []value.Value) (value.Value, error) {
		return value.Value{}, boom
	})
	settings := DefaultSettings()
	settings.MinRequests = 2
	settings.FailureRate = 0.5
	r, err := New(host, settings, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := r.Run(context.Background(), "fail", nil)
		assert.Error(t, err)
	}

	_, err = r.Run(context.Background(), "fail", nil)
	assert.Error(t, err, "the breaker should now be open and reject without calling the host")
}
