package acme

import (
	"context"
	"time"

	"github.com/cpu/acmecore/acme/acmeerr"
	"github.com/cpu/acmecore/acme/acmejson"
)

// defaultPollInterval is used between polls when the server gives no
// Retry-After hint.
const defaultPollInterval = 3 * time.Second

// clock abstracts time so waitForStatus is deterministically testable;
// production code always uses realClock.
type clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var defaultClock clock = realClock{}

// pollable is embedded by resources whose lifecycle is a status field
// that advances from pending toward a terminal state via repeated
// polling (Order, Authorization, Challenge).
type pollable struct {
	resource
}

// waitForStatus polls this resource, re-fetching on each iteration,
// until its status field is one of target, a terminal status not in
// target, or the deadline elapses. It returns the final observed
// status, or a RetryAfterError if the context is canceled or the
// deadline is exceeded first.
func (p *pollable) waitForStatus(ctx context.Context, target []acmejson.Status, terminal []acmejson.Status, timeout time.Duration) (acmejson.Status, error) {
	deadline := defaultClock.Now().Add(timeout)
	var lastStatus acmejson.Status
	var lastRetryAfter time.Time

	isIn := func(s acmejson.Status, set []acmejson.Status) bool {
		for _, t := range set {
			if s == t {
				return true
			}
		}
		return false
	}

	for {
		p.invalidate()
		data, err := p.getJSON(ctx)
		if err != nil {
			return lastStatus, err
		}
		status, err := data.Get("status").AsStatus()
		if err != nil {
			return lastStatus, err
		}
		lastStatus = status
		if ra, ok := p.RetryAfter(); ok {
			lastRetryAfter = ra
		}

		if isIn(status, target) || isIn(status, terminal) {
			return status, nil
		}

		wait := defaultPollInterval
		if !lastRetryAfter.IsZero() {
			if d := time.Until(lastRetryAfter); d > wait {
				wait = d
			}
		}
		if defaultClock.Now().Add(wait).After(deadline) {
			return lastStatus, &acmeerr.RetryAfterError{LastStatus: string(lastStatus), RetryAfter: lastRetryAfter}
		}
		if err := defaultClock.Sleep(ctx, wait); err != nil {
			return lastStatus, &acmeerr.RetryAfterError{LastStatus: string(lastStatus), RetryAfter: lastRetryAfter}
		}
	}
}
