package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

// --- Mock implementations ---

type mockFetcher struct {
	mu     sync.Mutex
	fetch  func(ctx context.Context, docToken string) ([]model.Comment, error)
	calls  int
	tokens []string
}

func (m *mockFetcher) FetchComments(ctx context.Context, docToken string) ([]model.Comment, error) {
	m.mu.Lock()
	m.calls++
	m.tokens = append(m.tokens, docToken)
	fetch := m.fetch
	m.mu.Unlock()

	if fetch == nil {
		return nil, nil
	}
	return fetch(ctx, docToken)
}

func (m *mockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// staticFetcher returns the comments currently held in its slice. Tests
// replace the slice between ticks to simulate remote edits.
type staticFetcher struct {
	mu       sync.Mutex
	comments []model.Comment
}

func (f *staticFetcher) FetchComments(_ context.Context, _ string) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Comment, len(f.comments))
	copy(out, f.comments)
	return out, nil
}

func (f *staticFetcher) Set(comments ...model.Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = comments
}

type publishCall struct {
	DocToken string
	Events   []model.ChangeEvent
}

type mockPublisher struct {
	mu    sync.Mutex
	calls []publishCall
}

func (m *mockPublisher) Publish(_ context.Context, docToken string, events []model.ChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, publishCall{DocToken: docToken, Events: events})
}

func (m *mockPublisher) Calls() []publishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishCall, len(m.calls))
	copy(out, m.calls)
	return out
}

type mockSink struct {
	mu       sync.Mutex
	execute  func(ctx context.Context, cmd model.Command) error
	executed []model.Command
}

func (m *mockSink) Execute(ctx context.Context, cmd model.Command) error {
	m.mu.Lock()
	m.executed = append(m.executed, cmd)
	execute := m.execute
	m.mu.Unlock()

	if execute == nil {
		return nil
	}
	return execute(ctx, cmd)
}

func (m *mockSink) Executed() []model.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Command, len(m.executed))
	copy(out, m.executed)
	return out
}

// --- Fixtures ---

var baseTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func comment(id, content string, updated time.Time) model.Comment {
	return model.Comment{
		ID:         id,
		Content:    content,
		AuthorID:   "u-1",
		AuthorName: "octocat",
		CreatedAt:  baseTime,
		UpdatedAt:  updated,
	}
}

func snapshot(comments ...model.Comment) *model.Snapshot {
	return model.NewSnapshot("owner/repo#1", comments, baseTime)
}

func eventTypes(events []model.ChangeEvent) []model.EventType {
	out := make([]model.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
