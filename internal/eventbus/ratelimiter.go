package eventbus

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	// DefaultRate is the default max_events_per_sec for a non-core source.
	DefaultRate = 100
	// DefaultBurst is the default burst_size for a non-core source.
	DefaultBurst = 200
)

// SourceRateLimiter holds one token bucket per non-core source id. The
// core source is exempt and never gets a limiter entry.
type SourceRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rateVal  float64
	burst    int
}

// NewSourceRateLimiter builds a limiter using rateVal events/sec and
// burst as the bucket size; zero values fall back to the spec defaults.
func NewSourceRateLimiter(rateVal float64, burst int) *SourceRateLimiter {
	if rateVal <= 0 {
		rateVal = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &SourceRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rateVal:  rateVal,
		burst:    burst,
	}
}

// Allow reports whether sourceID may publish one more event right now,
// consuming a token if so. The core source always returns true.
func (r *SourceRateLimiter) Allow(sourceID string) bool {
	if sourceID == CoreSource {
		return true
	}
	return r.limiterFor(sourceID).Allow()
}

func (r *SourceRateLimiter) limiterFor(sourceID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[sourceID]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(r.rateVal), r.burst)
	r.limiters[sourceID] = l
	return l
}

// Forget removes a source's limiter state, e.g. once its source socket
// is torn down.
func (r *SourceRateLimiter) Forget(sourceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, sourceID)
}
