package resilient

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

type fetchFunc func(ctx context.Context, docToken string) ([]model.Comment, error)

func (f fetchFunc) FetchComments(ctx context.Context, docToken string) ([]model.Comment, error) {
	return f(ctx, docToken)
}

func fastConfig() Config {
	return Config{
		InitialInterval: time.Millisecond,
		Rate:            1000,
		Burst:           10,
	}
}

func TestFetcher_SucceedsFirstTry(t *testing.T) {
	var calls atomic.Int32
	next := fetchFunc(func(_ context.Context, _ string) ([]model.Comment, error) {
		calls.Add(1)
		return []model.Comment{{ID: "c1"}}, nil
	})

	got, err := NewFetcher(next, fastConfig()).FetchComments(context.Background(), "o/r#1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcher_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	next := fetchFunc(func(_ context.Context, _ string) ([]model.Comment, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("502 bad gateway")
		}
		return []model.Comment{{ID: "c1"}}, nil
	})

	got, err := NewFetcher(next, fastConfig()).FetchComments(context.Background(), "o/r#1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_GivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	fetchErr := errors.New("connection reset")
	next := fetchFunc(func(_ context.Context, _ string) ([]model.Comment, error) {
		calls.Add(1)
		return nil, fetchErr
	})

	_, err := NewFetcher(next, fastConfig()).FetchComments(context.Background(), "o/r#1")
	require.ErrorIs(t, err, fetchErr)
	assert.Contains(t, err.Error(), "3 attempt(s)")
	assert.Equal(t, int32(DefaultAttempts), calls.Load())
}

func TestFetcher_InvalidTokenNotRetried(t *testing.T) {
	var calls atomic.Int32
	next := fetchFunc(func(_ context.Context, token string) ([]model.Comment, error) {
		calls.Add(1)
		return nil, fmt.Errorf("parse %q: %w", token, model.ErrInvalidToken)
	})

	_, err := NewFetcher(next, fastConfig()).FetchComments(context.Background(), "bogus")
	require.ErrorIs(t, err, model.ErrInvalidToken)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcher_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	next := fetchFunc(func(_ context.Context, _ string) ([]model.Comment, error) {
		calls.Add(1)
		cancel()
		return nil, errors.New("timeout")
	})

	_, err := NewFetcher(next, fastConfig()).FetchComments(ctx, "o/r#1")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultAttempts, cfg.Attempts)
	assert.Equal(t, DefaultInitialInterval, cfg.InitialInterval)
	assert.InDelta(t, DefaultMultiplier, cfg.Multiplier, 0)
	assert.InDelta(t, DefaultRate, cfg.Rate, 0)
	assert.Equal(t, 1, cfg.Burst)
}
