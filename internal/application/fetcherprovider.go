package application

import (
	"context"
	"errors"
	"sync"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommentFetcher = (*FetcherProvider)(nil)

// ErrNoFetcher is returned by FetcherProvider when no fetcher has been
// configured yet.
var ErrNoFetcher = errors.New("no comment fetcher configured")

// FetcherProvider enables runtime hot-swap of the comment fetcher, so rotated
// credentials take effect on the next tick without restarting watches.
// Watchers hold the provider; the provider holds the current fetcher.
type FetcherProvider struct {
	mu      sync.RWMutex
	fetcher driven.CommentFetcher
}

// NewFetcherProvider creates a provider with the given initial fetcher.
// fetcher may be nil if no credentials are available at startup.
func NewFetcherProvider(fetcher driven.CommentFetcher) *FetcherProvider {
	return &FetcherProvider{fetcher: fetcher}
}

// Get returns the current fetcher, or nil.
func (p *FetcherProvider) Get() driven.CommentFetcher {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fetcher
}

// Replace swaps the current fetcher. Ticks already fetching finish with the
// previous one.
func (p *FetcherProvider) Replace(fetcher driven.CommentFetcher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetcher = fetcher
}

// HasFetcher returns true if a non-nil fetcher is currently held.
func (p *FetcherProvider) HasFetcher() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fetcher != nil
}

// FetchComments delegates to the current fetcher. Without one every tick
// fails, which the watcher counts toward its idle limit.
func (p *FetcherProvider) FetchComments(ctx context.Context, docToken string) ([]model.Comment, error) {
	fetcher := p.Get()
	if fetcher == nil {
		return nil, ErrNoFetcher
	}
	return fetcher.FetchComments(ctx, docToken)
}
