package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelError(t *testing.T) {
	err := ChannelError{Channel: "telegram", Err: ErrInvalidEmail}

	assert.Equal(t, "channel telegram failed: invalid email address", err.Error())
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestRetryableError(t *testing.T) {
	base := fmt.Errorf("dial tcp: connection refused")
	err := NewRetryableError(base, "portal login request")

	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "retryable error: portal login request")

	var retryable RetryableError
	assert.True(t, errors.As(err, &retryable))
	assert.Equal(t, "portal login request", retryable.Message)
}
