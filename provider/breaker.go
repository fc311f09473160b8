package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/sony/gobreaker/v2"

	"chatview/config"
	"chatview/model"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout time.Duration
	// Interval clears failure counts while closed. 0 never clears them.
	Interval time.Duration
}

// CircuitBreakerProvider wraps a provider so repeated backend failures fail
// fast instead of reaching the backend. A streamed call is counted when its
// stream ends, so failures reported on the channel trip the breaker too.
type CircuitBreakerProvider struct {
	model.Provider
	breaker *gobreaker.TwoStepCircuitBreaker[struct{}]
}

// NewCircuitBreakerProvider wraps inner with a circuit breaker. Zero fields of
// cfg take the defaults.
func NewCircuitBreakerProvider(inner model.Provider, cfg CircuitBreakerConfig) *CircuitBreakerProvider {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "llm:" + inner.GetModel(),
		MaxRequests:  1,
		Interval:     interval,
		Timeout:      timeout,
		IsSuccessful: healthy,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Breaker] %s: %s -> %s", name, from, to)
			}
		},
	})

	return &CircuitBreakerProvider{Provider: inner, breaker: cb}
}

// State reports the current breaker state.
func (p *CircuitBreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}

// healthy reports whether err says nothing about backend availability.
// Cancellation and content-level outcomes do not count as failures.
func healthy(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, model.ErrMaxTokensExceeded) ||
		errors.Is(err, model.ErrContentFiltered) ||
		errors.Is(err, model.ErrNoResponseContent)
}

func (p *CircuitBreakerProvider) allow() (func(error), error) {
	done, err := p.breaker.Allow()
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("provider %q circuit open: %w", p.GetModel(), err)
		}
		return nil, err
	}
	return done, nil
}

// Chat implements model.Provider. Calls are routed through the circuit breaker.
func (p *CircuitBreakerProvider) Chat(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.TurnResult, error) {
	done, err := p.allow()
	if err != nil {
		return nil, err
	}

	res, err := p.Provider.Chat(ctx, messages, tools)
	done(err)
	return res, err
}

// ChatStream implements model.Provider. The outcome is recorded when the
// wrapped stream closes.
func (p *CircuitBreakerProvider) ChatStream(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (<-chan model.StreamDelta, error) {
	done, err := p.allow()
	if err != nil {
		return nil, err
	}

	in, err := p.Provider.ChatStream(ctx, messages, tools)
	if err != nil {
		done(err)
		return nil, err
	}

	out := make(chan model.StreamDelta)
	go func() {
		defer close(out)

		var streamErr error
		for d := range in {
			if d.Err != nil {
				streamErr = d.Err
			}
			if !sendDelta(ctx, out, d) {
				streamErr = ctx.Err()
				break
			}
		}
		done(streamErr)

		// Let the inner goroutine finish if we stopped reading early.
		for range in {
		}
	}()

	return out, nil
}
