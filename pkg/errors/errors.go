package errors

import (
	"errors"
	"fmt"
)

var (
	ErrStudentNotFound   = errors.New("student not found")
	ErrNoSemesterData    = errors.New("no valid semester data found")
	ErrAllChannelsFailed = errors.New("all notification channels failed")
	ErrNoChannels        = errors.New("no notification channels configured")
	ErrSnapshotNotFound  = errors.New("result snapshot not found")
	ErrPortalLoginFailed = errors.New("portal login failed")
	ErrInvalidEmail      = errors.New("invalid email address")
)

type ChannelError struct {
	Channel string
	Err     error
}

func (e ChannelError) Error() string {
	return fmt.Sprintf("channel %s failed: %s", e.Channel, e.Err.Error())
}

func (e ChannelError) Unwrap() error {
	return e.Err
}

type RetryableError struct {
	Err     error
	Message string
}

func (e RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %s - %s", e.Message, e.Err.Error())
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error, message string) error {
	return RetryableError{
		Err:     err,
		Message: message,
	}
}
