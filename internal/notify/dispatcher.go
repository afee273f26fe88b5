// Package notify fans one message out to every configured channel and
// reports per-channel outcomes. A channel failure never interferes with the
// others; dispatch as a whole fails only when every channel does.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Naveenkumar-R96/excel-result-1/internal/logger"
	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
	"github.com/Naveenkumar-R96/excel-result-1/pkg/errors"
)

type Channel interface {
	Name() string
	Send(ctx context.Context, student *model.Student, msg Message) error
}

// Result maps channel name to delivery success.
type Result map[string]bool

func (r Result) AnySucceeded() bool {
	for _, ok := range r {
		if ok {
			return true
		}
	}
	return false
}

type Dispatcher struct {
	channels []Channel
	log      zerolog.Logger
}

func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		log:      logger.Get(),
	}
}

// Dispatch sends msg on every channel concurrently and waits for all of them
// to settle. The returned Result always has one entry per channel. The error
// is ErrNoChannels when none are configured, ErrAllChannelsFailed when every
// attempt failed, nil otherwise.
func (d *Dispatcher) Dispatch(ctx context.Context, student *model.Student, msg Message) (Result, error) {
	if len(d.channels) == 0 {
		return Result{}, errors.ErrNoChannels
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		result   = make(Result, len(d.channels))
		failures []error
	)

	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()

			err := ch.Send(ctx, student, msg)

			mu.Lock()
			result[ch.Name()] = err == nil
			if err != nil {
				failures = append(failures, errors.ChannelError{Channel: ch.Name(), Err: err})
			}
			mu.Unlock()

			if err != nil {
				d.log.Error().
					Err(err).
					Str("channel", ch.Name()).
					Str("reg_no", student.RegNo).
					Msg("Notification channel failed")
			} else {
				d.log.Info().
					Str("channel", ch.Name()).
					Str("reg_no", student.RegNo).
					Msg("Notification sent")
			}
		}(ch)
	}

	wg.Wait()

	if !result.AnySucceeded() {
		return result, fmt.Errorf("%w: %v", errors.ErrAllChannelsFailed, failures)
	}
	return result, nil
}
