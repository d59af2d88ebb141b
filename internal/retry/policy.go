// Package retry implements the bounded retry policy call sites apply to network
// failures. Only network errors and timeouts are retried; server rejections,
// validation errors and auth errors are returned at once.
package retry

import (
	"context"
	"time"

	retrygo "github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/xiaozhi/managerctl/internal/common/apperrors"
)

// Tracker counts consecutive network failures across all call sites.
type Tracker interface {
	RecordFailure() int
}

// Policy is an exponential backoff policy.
type Policy struct {
	Attempts               uint          // total attempts including the first one
	Delay                  time.Duration // delay before the first retry
	MaxDelay               time.Duration // upper bound of a single delay
	MaxConsecutiveFailures int           // stop early once the tracker reports more failures than this, zero disables
	Tracker                Tracker
}

// Default returns the policy used by the CLI.
func Default() Policy {
	return Policy{
		Attempts:               3,
		Delay:                  500 * time.Millisecond,
		MaxDelay:               5 * time.Second,
		MaxConsecutiveFailures: 10,
	}
}

// WithTracker returns a copy of p counting failures in t.
func (p Policy) WithTracker(t Tracker) Policy {
	p.Tracker = t
	return p
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	switch apperrors.KindOf(err) {
	case apperrors.KindNetwork, apperrors.KindTimeout:
		return true
	default:
		return false
	}
}

// Do runs op until it succeeds, fails with an error that is not retryable, the
// attempts are used up or ctx is done. It returns the last error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return retrygo.Do(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return retrygo.Unrecoverable(err)
		}
		if p.Tracker != nil {
			n := p.Tracker.RecordFailure()
			if p.MaxConsecutiveFailures > 0 && n > p.MaxConsecutiveFailures {
				log.Warn().Int("consecutive_failures", n).Msg("too many consecutive network failures, giving up")
				return retrygo.Unrecoverable(err)
			}
		}
		return err
	},
		retrygo.Context(ctx),
		retrygo.Attempts(attempts),
		retrygo.Delay(p.Delay),
		retrygo.MaxDelay(p.MaxDelay),
		retrygo.DelayType(retrygo.BackOffDelay),
		retrygo.LastErrorOnly(true),
		retrygo.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("request failed, retrying")
		}),
	)
}
