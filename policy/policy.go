// Package policy implements the engine-wide caps consulted before a tool
// call reaches the tool transport (spec §5): an allow/block list for tool
// names and an optional per-tenant rate limiter. The fork/parallel branch
// semaphore does not consult it.
package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Decision is the verdict returned for a single tool-call attempt.
type Decision struct {
	Allowed bool
	Reason  string
}

// Engine evaluates whether a tenant's tool call may proceed, before the
// call reaches the tool transport.
type Engine interface {
	Decide(ctx context.Context, tenant, tool string) (Decision, error)
}

// Options configures Engine. AllowTools/BlockTools filter by tool name;
// block takes precedence. RatePerSecond/Burst configure an optional
// per-tenant token-bucket limiter; zero RatePerSecond disables rate
// limiting entirely.
type Options struct {
	AllowTools []string
	BlockTools []string

	RatePerSecond float64
	Burst         int
}

// TokenBucketEngine implements Engine with allow/block lists and an
// optional per-tenant golang.org/x/time/rate.Limiter.
type TokenBucketEngine struct {
	allow map[string]struct{}
	block map[string]struct{}

	rateLimit float64
	burst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var _ Engine = (*TokenBucketEngine)(nil)

func New(opts Options) *TokenBucketEngine {
	e := &TokenBucketEngine{
		allow:    toSet(opts.AllowTools),
		block:    toSet(opts.BlockTools),
		limiters: make(map[string]*rate.Limiter),
	}
	if opts.RatePerSecond > 0 {
		e.rateLimit = opts.RatePerSecond
		e.burst = opts.Burst
		if e.burst <= 0 {
			e.burst = 1
		}
	}
	return e
}

func (e *TokenBucketEngine) Decide(_ context.Context, tenant, tool string) (Decision, error) {
	if len(e.block) > 0 {
		if _, blocked := e.block[tool]; blocked {
			return Decision{Allowed: false, Reason: fmt.Sprintf("tool %q is blocked by policy", tool)}, nil
		}
	}
	if len(e.allow) > 0 {
		if _, ok := e.allow[tool]; !ok {
			return Decision{Allowed: false, Reason: fmt.Sprintf("tool %q is not in the tenant allowlist", tool)}, nil
		}
	}
	if e.rateLimit > 0 {
		if !e.limiterFor(tenant).Allow() {
			return Decision{Allowed: false, Reason: fmt.Sprintf("tenant %q exceeded tool-call rate limit", tenant)}, nil
		}
	}
	return Decision{Allowed: true}, nil
}

func (e *TokenBucketEngine) limiterFor(tenant string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.limiters[tenant]
	if !ok {
		l = rate.NewLimiter(rate.Limit(e.rateLimit), e.burst)
		e.limiters[tenant] = l
	}
	return l
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.TrimSpace(v)] = struct{}{}
	}
	return set
}
