package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// Defaults for WatchManagerConfig.
const (
	DefaultPollInterval = 6 * time.Second
	DefaultPollWorkers  = 5
	DefaultMaxActive    = 1
)

// WatchManagerConfig controls polling cadence and the active-watch policy.
type WatchManagerConfig struct {
	PollInterval time.Duration
	IdleLimit    int
	// MaxActive caps concurrent watches. Starting a watch beyond the cap
	// replaces the oldest one; the default of 1 gives single-document watching.
	MaxActive int
	// PollWorkers bounds how many watches are ticked concurrently.
	PollWorkers int
}

func (c WatchManagerConfig) withDefaults() WatchManagerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.IdleLimit <= 0 {
		c.IdleLimit = DefaultIdleLimit
	}
	if c.MaxActive <= 0 {
		c.MaxActive = DefaultMaxActive
	}
	if c.PollWorkers <= 0 {
		c.PollWorkers = DefaultPollWorkers
	}
	return c
}

// WatchManager owns the watch contexts and enforces the active-watch policy.
// Each watched document gets its own Watcher; nothing is shared between them
// except the fetcher and the publisher.
type WatchManager struct {
	fetcher   driven.CommentFetcher
	publisher driven.EventPublisher
	cfg       WatchManagerConfig

	mu      sync.RWMutex
	watches map[string]*Watcher
	order   []string // Tokens in start order, oldest first.
}

// NewWatchManager creates a WatchManager with no active watches.
func NewWatchManager(fetcher driven.CommentFetcher, publisher driven.EventPublisher, cfg WatchManagerConfig) *WatchManager {
	return &WatchManager{
		fetcher:   fetcher,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		watches:   make(map[string]*Watcher),
	}
}

// Start begins watching docToken. Under the default single-document policy any
// other watch is stopped first. Starting a token that is already watched
// restarts it from a fresh baseline.
func (m *WatchManager) Start(docToken string) error {
	docToken = strings.TrimSpace(docToken)
	if docToken == "" {
		return fmt.Errorf("start watch: %w", model.ErrInvalidToken)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.watches[docToken]; ok {
		return w.Start(docToken)
	}

	m.pruneInactiveLocked()
	for len(m.order) >= m.cfg.MaxActive {
		m.removeLocked(m.order[0])
	}

	w := NewWatcher(m.fetcher, m.publisher, m.cfg.IdleLimit)
	if err := w.Start(docToken); err != nil {
		return err
	}
	m.watches[docToken] = w
	m.order = append(m.order, docToken)

	slog.Info("watch manager started watching document", "doc", docToken, "active", len(m.order))
	return nil
}

// Stop ends the watch for docToken. It returns ErrWatchNotFound when the
// document is not being watched.
func (m *WatchManager) Stop(docToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watches[docToken]; !ok {
		slog.Warn("document is not being watched", "doc", docToken)
		return fmt.Errorf("stop watch %q: %w", docToken, model.ErrWatchNotFound)
	}

	m.removeLocked(docToken)
	slog.Info("watch manager stopped watching document", "doc", docToken)
	return nil
}

// StopAll ends every watch.
func (m *WatchManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.order) == 0 {
		return
	}

	for len(m.order) > 0 {
		m.removeLocked(m.order[0])
	}
	slog.Info("watch manager stopped watching all documents")
}

// IsWatching reports whether docToken has an active, polling watch. A watch
// that stopped itself after reaching the idle limit is not watching.
func (m *WatchManager) IsWatching(docToken string) bool {
	m.mu.RLock()
	w, ok := m.watches[docToken]
	m.mu.RUnlock()

	return ok && w.IsWatching() && w.Token() == docToken
}

// Watched returns the tokens of every watch context, oldest first, including
// watches that stopped themselves and have not been replaced yet.
func (m *WatchManager) Watched() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := make([]string, len(m.order))
	copy(tokens, m.order)
	return tokens
}

// Count returns the number of watch contexts.
func (m *WatchManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Watch returns the status of a single watch context.
func (m *WatchManager) Watch(docToken string) (model.WatchStatus, error) {
	m.mu.RLock()
	w, ok := m.watches[docToken]
	m.mu.RUnlock()

	if !ok {
		return model.WatchStatus{}, fmt.Errorf("watch %q: %w", docToken, model.ErrWatchNotFound)
	}
	return w.Status(), nil
}

// Status returns the status of every watch context. CurrentDocument is the
// most recently started document that is still polling.
func (m *WatchManager) Status() model.ManagerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := model.ManagerStatus{
		WatchedDocuments: make([]string, len(m.order)),
		Watches:          make([]model.WatchStatus, 0, len(m.order)),
	}
	copy(status.WatchedDocuments, m.order)

	for _, token := range m.order {
		ws := m.watches[token].Status()
		status.Watches = append(status.Watches, ws)
		if ws.Watching() {
			status.CurrentDocument = ws.DocToken
			status.Watching = true
		}
	}

	return status
}

// TickAll runs one tick for every watch, at most PollWorkers at a time, and
// waits for them to finish.
func (m *WatchManager) TickAll(ctx context.Context) {
	m.mu.RLock()
	watchers := make([]*Watcher, 0, len(m.order))
	for _, token := range m.order {
		watchers = append(watchers, m.watches[token])
	}
	m.mu.RUnlock()

	if len(watchers) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(m.cfg.PollWorkers)
	for _, w := range watchers {
		g.Go(func() error {
			outcome := w.Tick(ctx)
			slog.Debug("tick complete", "doc", w.Status().DocToken, "outcome", outcome.String())
			return nil
		})
	}
	_ = g.Wait()
}

// Run ticks all watches every PollInterval until ctx is cancelled, then stops
// every watch.
func (m *WatchManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	slog.Info("watch manager polling", "interval", m.cfg.PollInterval, "workers", m.cfg.PollWorkers)

	for {
		select {
		case <-ctx.Done():
			m.StopAll()
			slog.Info("watch manager stopped")
			return nil
		case <-ticker.C:
			m.TickAll(ctx)
		}
	}
}

// pruneInactiveLocked drops watch contexts that are no longer polling.
func (m *WatchManager) pruneInactiveLocked() {
	for _, token := range append([]string(nil), m.order...) {
		if !m.watches[token].IsWatching() {
			m.removeLocked(token)
		}
	}
}

// removeLocked stops and forgets a watch context.
func (m *WatchManager) removeLocked(docToken string) {
	if w, ok := m.watches[docToken]; ok {
		w.Stop()
		delete(m.watches, docToken)
	}
	for i, token := range m.order {
		if token == docToken {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
