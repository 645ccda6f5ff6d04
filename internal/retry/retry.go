// Package retry runs an operation under a fixed or growing delay policy.
package retry

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how often an operation is re-attempted.
// MaxAttempts <= 0 means no limit. Multiplier > 1 grows the delay
// exponentially up to MaxDelay.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// Unbounded retries forever with a constant delay.
func Unbounded(delay time.Duration) Policy {
	return Policy{Delay: delay}
}

// Attempts allows n tries in total with a constant delay between them.
func Attempts(n int, delay time.Duration) Policy {
	return Policy{MaxAttempts: n, Delay: delay}
}

// Once runs the operation a single time.
func Once() Policy {
	return Policy{MaxAttempts: 1}
}

func (p Policy) Bounded() bool {
	return p.MaxAttempts > 0
}

// Permanent marks err as not worth retrying; Do returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a Permanent error, the policy is
// exhausted, or ctx is done. name is used for the retry log line.
func Do(ctx context.Context, p Policy, name string, op func() error) error {
	notify := func(err error, wait time.Duration) {
		log.Printf("%s failed, retrying in %s: %v", name, wait, err)
	}
	return backoff.RetryNotify(op, p.backOff(ctx), notify)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if p.Multiplier > 1 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = p.Delay
		if exp.InitialInterval <= 0 {
			exp.InitialInterval = backoff.DefaultInitialInterval
		}
		exp.Multiplier = p.Multiplier
		if p.MaxDelay > 0 {
			exp.MaxInterval = p.MaxDelay
		}
		exp.MaxElapsedTime = 0
		exp.Reset()
		b = exp
	} else {
		b = backoff.NewConstantBackOff(p.Delay)
	}
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}
