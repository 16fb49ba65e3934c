package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_WithCause(t *testing.T) {
	cause := errors.New("chat not found")
	err := ErrDeliveryFailed.WithCause(cause).WithDetail("target", "-200#9")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.NotErrorIs(t, err, ErrFallbackFailed)
	assert.Equal(t, "DELIVERY_FAILED: delivery failed (caused by: chat not found)", err.Error())
	assert.Equal(t, "-200#9", err.Details["target"])
	assert.Empty(t, ErrDeliveryFailed.Details)
}

func TestError_RetryableAndFatal(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
		fatal     bool
	}{
		{name: "delivery default", err: ErrDeliveryFailed, retryable: true, fatal: false},
		{name: "validation", err: ErrValidation, retryable: false, fatal: true},
		{name: "session invalidated", err: ErrSessionInvalidated, retryable: false, fatal: true},
		{name: "forced fatal", err: ErrConnectFailed.AsFatal(), retryable: false, fatal: true},
		{name: "fatal cause", err: ErrDeliveryFailed.WithCause(ErrInternal.AsFatal()), retryable: false, fatal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
			assert.Equal(t, tt.fatal, tt.err.IsFatal())
		})
	}
}

func TestCodeAndIsFatal(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", ErrSessionInvalidated.WithCause(errors.New("409")))
	assert.Equal(t, "SESSION_INVALIDATED", Code(wrapped))
	assert.True(t, IsFatal(wrapped))

	assert.Equal(t, "", Code(errors.New("plain")))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestRecoverPanic(t *testing.T) {
	assert.NoError(t, RecoverPanic(nil))

	err := func() (err error) {
		defer func() {
			err = RecoverPanic(recover())
		}()
		panic("boom")
	}()

	assert.ErrorIs(t, err, ErrInternal)
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "panic: boom")
	assert.Contains(t, StackTrace(err), "goroutine")
}

func TestRecoverPanicWithCallback(t *testing.T) {
	var got error
	err := RecoverPanicWithCallback(errors.New("nil map"), func(e error) { got = e })
	assert.Equal(t, err, got)
}
