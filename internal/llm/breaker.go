package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	logging "github.com/Rorical/streamchat/internal/logger"
)

const (
	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

// BreakerConfig configures CircuitBreakerProvider. Zero values take the
// defaults.
type BreakerConfig struct {
	MaxFailures uint32        // consecutive open failures before tripping
	Timeout     time.Duration // open -> half-open
	Interval    time.Duration // closed-state count reset period
}

// CircuitBreakerProvider fails fast once the inner provider keeps refusing to
// open streams. Only opening counts; a stream that fails after its first
// token does not trip the breaker.
type CircuitBreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker[Stream]
}

func NewCircuitBreakerProvider(inner Provider, cfg BreakerConfig, logger *slog.Logger) *CircuitBreakerProvider {
	if logger == nil {
		logger = logging.Discard()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	return &CircuitBreakerProvider{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker[Stream](gobreaker.Settings{
			Name:        "provider:" + inner.Name(),
			MaxRequests: 1,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
			// A caller that went away says nothing about the provider's health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

func (p *CircuitBreakerProvider) Name() string { return p.inner.Name() }

func (p *CircuitBreakerProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	stream, err := p.breaker.Execute(func() (Stream, error) {
		return p.inner.Stream(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("provider %q circuit open: %w", p.inner.Name(), err)
	}
	return stream, err
}

// State returns the current breaker state for monitoring.
func (p *CircuitBreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}
