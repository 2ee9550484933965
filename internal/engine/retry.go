package engine

import (
	"math"
	"time"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// retryCounters tracks attempts per retry policy for one entry into a task
// state. A fresh value is created on every entry, so a state revisited
// through a cycle starts again from zero.
type retryCounters struct {
	policies []domain.RetryPolicy
	counts   []int
}

func newRetryCounters(policies []domain.RetryPolicy) *retryCounters {
	return &retryCounters{policies: policies, counts: make([]int, len(policies))}
}

// next selects the first policy matching kind and counts the failure against
// it. It returns the wait before the next attempt, or false when no policy
// matches or the matched policy is exhausted.
func (r *retryCounters) next(kind string) (time.Duration, bool) {
	for i, p := range r.policies {
		if !p.Matches(kind) {
			continue
		}
		r.counts[i]++
		if r.counts[i] > p.MaxAttempts {
			return 0, false
		}
		return backoff(p, r.counts[i]), true
	}
	return 0, false
}

// backoff is intervalSeconds * backoffRate^(attempt-1), capped by
// maxDelaySeconds when set. attempt is 1 based.
func backoff(p domain.RetryPolicy, attempt int) time.Duration {
	secs := p.IntervalSeconds * math.Pow(p.BackoffRate, float64(attempt-1))
	if p.MaxDelaySeconds > 0 && secs > p.MaxDelaySeconds {
		secs = p.MaxDelaySeconds
	}
	return time.Duration(secs * float64(time.Second))
}
