package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CarriesKindAndCode(t *testing.T) {
	err := New(KindState, CodeStillLocked, "lockup period has not passed")

	assert.Equal(t, KindState, err.Kind)
	assert.Equal(t, CodeStillLocked, err.Code)
	assert.Equal(t, "STILL_LOCKED: lockup period has not passed", err.Error())
}

func TestWith_AccumulatesDetails(t *testing.T) {
	err := New(KindValidation, CodeWrongDenom, "unsupported token").
		With("want", "ustars").
		With("got", "uatom")

	require.NotNil(t, err.Details)
	assert.Equal(t, "ustars", err.Details["want"])
	assert.Equal(t, "uatom", err.Details["got"])
}

func TestCodeOf_UnwrapsWrappedErrors(t *testing.T) {
	inner := New(KindAuthorization, CodeUnauthorized, "unauthorized")
	wrapped := fmt.Errorf("handling withdraw: %w", inner)

	assert.Equal(t, CodeUnauthorized, CodeOf(wrapped))
	assert.Equal(t, KindAuthorization, KindOf(wrapped))
	assert.True(t, IsCode(wrapped, CodeUnauthorized))
}

func TestCodeOf_ForeignError(t *testing.T) {
	err := errors.New("plain")

	assert.Equal(t, Code(""), CodeOf(err))
	assert.Equal(t, Kind(""), KindOf(err))
	assert.False(t, IsCode(err, CodeUnauthorized))
	assert.False(t, IsCode(nil, CodeUnauthorized))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(KindState, CodeStillLocked, "")))
	assert.True(t, Retryable(New(KindState, CodeNotStarted, "")))
	assert.True(t, Retryable(New(KindState, CodeIntervalNotReached, "")))
	assert.True(t, Retryable(New(KindState, CodeTooEarly, "")))

	assert.False(t, Retryable(New(KindState, CodeEnded, "")))
	assert.False(t, Retryable(New(KindAuthorization, CodeUnauthorized, "")))
	assert.False(t, Retryable(New(KindValidation, CodeNoFunds, "")))
}

func TestStorage_WrapsOperation(t *testing.T) {
	err := Storage("put position", errors.New("disk full"))

	assert.Equal(t, KindInternal, err.Kind)
	assert.Equal(t, CodeStorage, err.Code)
	assert.Contains(t, err.Error(), "put position")
	assert.Contains(t, err.Error(), "disk full")
}

func TestStorage_PreservesCause(t *testing.T) {
	sentinel := errors.New("no rows")
	err := Storage("read checkpoint", sentinel)

	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, sentinel, errors.Unwrap(err))

	// The cause stays reachable through further wrapping.
	outer := fmt.Errorf("claim: %w", err)
	assert.True(t, errors.Is(outer, sentinel))
	assert.Equal(t, CodeStorage, CodeOf(outer))
}
