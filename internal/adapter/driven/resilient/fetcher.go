// Package resilient wraps a CommentFetcher with client-side throttling and
// retries so a single flaky poll does not surface as a watcher failure.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommentFetcher = (*Fetcher)(nil)

const (
	DefaultAttempts        = 3
	DefaultInitialInterval = time.Second
	DefaultMultiplier      = 2.0
	// DefaultRate is the steady-state fetch rate, in fetches per second.
	DefaultRate = 1.2
)

// Config tunes the retry and throttling policy. Zero fields select defaults.
type Config struct {
	Attempts        int
	InitialInterval time.Duration
	Multiplier      float64
	Rate            float64
	Burst           int
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = DefaultInitialInterval
	}
	if c.Multiplier < 1 {
		c.Multiplier = DefaultMultiplier
	}
	if c.Rate <= 0 {
		c.Rate = DefaultRate
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// Fetcher retries failed fetches with exponential backoff and throttles
// every attempt through a token bucket.
type Fetcher struct {
	next    driven.CommentFetcher
	cfg     Config
	limiter *rate.Limiter
}

// NewFetcher wraps next with the given policy.
func NewFetcher(next driven.CommentFetcher, cfg Config) *Fetcher {
	cfg = cfg.withDefaults()
	return &Fetcher{
		next:    next,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
	}
}

// FetchComments calls the wrapped fetcher until it succeeds, the attempts are
// used up, or ctx is done. Invalid tokens are not retried.
func (f *Fetcher) FetchComments(ctx context.Context, docToken string) ([]model.Comment, error) {
	var (
		comments []model.Comment
		attempt  int
	)

	op := func() error {
		attempt++
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		var err error
		comments, err = f.next.FetchComments(ctx, docToken)
		if err == nil {
			return nil
		}
		if errors.Is(err, model.ErrInvalidToken) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("fetch failed, retrying",
			"doc", docToken,
			"attempt", attempt,
			"retry_in", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, f.policy(ctx), notify); err != nil {
		return nil, fmt.Errorf("fetching %s after %d attempt(s): %w", docToken, attempt, err)
	}
	return comments, nil
}

func (f *Fetcher) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.cfg.InitialInterval
	b.Multiplier = f.cfg.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.cfg.Attempts-1)), ctx)
}
