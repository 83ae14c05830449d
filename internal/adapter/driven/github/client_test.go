package github_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	ghAdapter "github.com/ericfisherdev/threadwatch/internal/adapter/driven/github"
	"github.com/ericfisherdev/threadwatch/internal/application"
	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	issueCommentsPath  = "/repos/owner/repo/issues/42/comments"
	reviewCommentsPath = "/repos/owner/repo/pulls/42/comments"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler, token string) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL+"/", token)
	require.NoError(t, err)

	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

var reviewCommentsFixture = []map[string]any{
	{
		"id":           int64(2001),
		"body":         "This looks wrong.",
		"path":         "main.go",
		"line":         42,
		"subject_type": "line",
		"created_at":   "2026-01-10T10:00:00Z",
		"updated_at":   "2026-01-10T10:05:00Z",
		"user":         map[string]any{"login": "alice", "id": int64(11)},
	},
	{
		"id":             int64(2002),
		"body":           "Good point, I agree.",
		"path":           "main.go",
		"line":           42,
		"subject_type":   "line",
		"in_reply_to_id": int64(2001),
		"created_at":     "2026-01-10T11:00:00Z",
		"updated_at":     "2026-01-10T11:00:00Z",
		"user":           map[string]any{"login": "bob", "id": int64(12)},
	},
	{
		"id":            int64(2003),
		"body":          "Whole file needs a header.",
		"path":          "doc.go",
		"subject_type":  "file",
		"original_line": 3,
		"created_at":    "2026-01-10T12:00:00Z",
		"updated_at":    "2026-01-10T12:00:00Z",
		"user":          map[string]any{"login": "carol", "id": int64(13)},
	},
}

var issueCommentsFixture = []map[string]any{
	{
		"id":         int64(3001),
		"body":       "Great work on this PR!",
		"created_at": "2026-01-10T09:00:00Z",
		"updated_at": "2026-01-10T09:00:00Z",
		"user":       map[string]any{"login": "charlie", "id": int64(14)},
	},
}

func threadsResponse(resolved map[int64]bool, hasNext bool, cursor string) map[string]any {
	nodes := make([]any, 0, len(resolved))
	for id, isResolved := range resolved {
		nodes = append(nodes, map[string]any{
			"isResolved": isResolved,
			"comments": map[string]any{
				"nodes": []any{map[string]any{"databaseId": id}},
			},
		})
	}
	return map[string]any{
		"data": map[string]any{
			"repository": map[string]any{
				"pullRequest": map[string]any{
					"reviewThreads": map[string]any{
						"pageInfo": map[string]any{"hasNextPage": hasNext, "endCursor": cursor},
						"nodes":    nodes,
					},
				},
			},
		},
	}
}

func TestFetchComments_PullRequest(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case reviewCommentsPath:
			assert.Equal(t, "created", r.URL.Query().Get("sort"))
			writeJSON(t, w, reviewCommentsFixture)
		case issueCommentsPath:
			writeJSON(t, w, issueCommentsFixture)
		case "/graphql":
			writeJSON(t, w, threadsResponse(map[int64]bool{2001: true, 2003: false}, false, ""))
		default:
			http.NotFound(w, r)
		}
	})

	client := newTestClient(t, handler, "test-token")
	comments, err := client.FetchComments(context.Background(), "owner/repo#42")

	require.NoError(t, err)
	require.Len(t, comments, 4)

	root := comments[0]
	assert.Equal(t, "rc-2001", root.ID)
	assert.Equal(t, "This looks wrong.", root.Content)
	assert.Equal(t, "11", root.AuthorID)
	assert.Equal(t, "alice", root.AuthorName)
	assert.Equal(t, "main.go:42", root.Position)
	assert.Empty(t, root.ParentID)
	assert.True(t, root.Resolved)
	assert.Equal(t, time.Date(2026, 1, 10, 10, 5, 0, 0, time.UTC), root.UpdatedAt.UTC())

	reply := comments[1]
	assert.Equal(t, "rc-2002", reply.ID)
	assert.Equal(t, "rc-2001", reply.ParentID)
	assert.True(t, reply.Resolved, "replies inherit the thread's resolution")
	assert.True(t, reply.IsReply())

	file := comments[2]
	assert.Equal(t, "doc.go", file.Position)
	assert.False(t, file.Resolved)

	issue := comments[3]
	assert.Equal(t, "ic-3001", issue.ID)
	assert.Equal(t, "charlie", issue.AuthorName)
	assert.Empty(t, issue.Position)
	assert.False(t, issue.Resolved)
}

func TestFetchComments_Issue(t *testing.T) {
	graphqlCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case issueCommentsPath:
			writeJSON(t, w, issueCommentsFixture)
		case "/graphql":
			graphqlCalled = true
			writeJSON(t, w, threadsResponse(nil, false, ""))
		default:
			http.NotFound(w, r)
		}
	})

	client := newTestClient(t, handler, "test-token")
	comments, err := client.FetchComments(context.Background(), "owner/repo#42")

	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "ic-3001", comments[0].ID)
	assert.False(t, graphqlCalled, "issues have no review threads")
}

func TestFetchComments_MissingDocument(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler(), "test-token")

	_, err := client.FetchComments(context.Background(), "owner/repo#42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing issue comments")
}

func TestFetchComments_InvalidToken(t *testing.T) {
	called := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), "test-token")

	_, err := client.FetchComments(context.Background(), "owner/repo")
	require.ErrorIs(t, err, model.ErrInvalidToken)
	assert.False(t, called)
}

func TestFetchComments_Pagination(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case reviewCommentsPath:
			writeJSON(t, w, []map[string]any{})
		case issueCommentsPath:
			if page := r.URL.Query().Get("page"); page == "" || page == "1" {
				w.Header().Set("Link", fmt.Sprintf(`<%s?page=2>; rel="next"`, "http://"+r.Host+r.URL.Path))
				writeJSON(t, w, []map[string]any{{"id": int64(1), "body": "one"}})
				return
			}
			writeJSON(t, w, []map[string]any{{"id": int64(2), "body": "two"}})
		default:
			http.NotFound(w, r)
		}
	})

	client := newTestClient(t, handler, "test-token")
	comments, err := client.FetchComments(context.Background(), "owner/repo#42")

	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "ic-1", comments[0].ID)
	assert.Equal(t, "ic-2", comments[1].ID)
}

func TestFetchComments_GraphQLFailureFailsFetch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case reviewCommentsPath:
			writeJSON(t, w, reviewCommentsFixture)
		case issueCommentsPath:
			writeJSON(t, w, issueCommentsFixture)
		case "/graphql":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	})

	client := newTestClient(t, handler, "test-token")
	_, err := client.FetchComments(context.Background(), "owner/repo#42")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

// resolutionToggleHandler serves fixed review comments while the GraphQL
// resolution of every root thread follows resolved.
func resolutionToggleHandler(t *testing.T, reviewComments []map[string]any, resolved *atomic.Bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case reviewCommentsPath:
			writeJSON(t, w, reviewComments)
		case issueCommentsPath:
			writeJSON(t, w, []map[string]any{})
		case "/graphql":
			states := map[int64]bool{}
			for _, c := range reviewComments {
				if _, reply := c["in_reply_to_id"]; !reply {
					states[c["id"].(int64)] = resolved.Load()
				}
			}
			writeJSON(t, w, threadsResponse(states, false, ""))
		default:
			http.NotFound(w, r)
		}
	})
}

func TestFetchComments_ResolutionFlipProducesResolveEvent(t *testing.T) {
	var resolved atomic.Bool
	client := newTestClient(t, resolutionToggleHandler(t, reviewCommentsFixture[:1], &resolved), "test-token")
	ctx := context.Background()

	poll := func() *model.Snapshot {
		comments, err := client.FetchComments(ctx, "owner/repo#42")
		require.NoError(t, err)
		return model.NewSnapshot("owner/repo#42", comments, time.Now())
	}

	baseline := poll()
	unchanged := poll()
	assert.Empty(t, application.Diff(baseline, unchanged))

	resolved.Store(true)
	afterResolve := poll()
	events := application.Diff(unchanged, afterResolve)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventResolve, events[0].Type)
	assert.Equal(t, "rc-2001", events[0].Comment.ID)
	assert.True(t, events[0].Comment.Resolved)

	steady := poll()
	assert.Empty(t, application.Diff(afterResolve, steady), "a settled thread reports nothing")

	resolved.Store(false)
	events = application.Diff(steady, poll())
	require.Len(t, events, 1)
	assert.Equal(t, model.EventUnresolve, events[0].Type)
}

func TestFetchComments_ResolutionFlipStampsWholeThread(t *testing.T) {
	var resolved atomic.Bool
	client := newTestClient(t, resolutionToggleHandler(t, reviewCommentsFixture, &resolved), "test-token")
	ctx := context.Background()

	first, err := client.FetchComments(ctx, "owner/repo#42")
	require.NoError(t, err)
	for _, c := range first {
		assert.False(t, c.Resolved)
	}

	resolved.Store(true)
	second, err := client.FetchComments(ctx, "owner/repo#42")
	require.NoError(t, err)
	require.Len(t, second, 3)

	for i := range second {
		assert.True(t, second[i].Resolved, second[i].ID)
		assert.True(t, second[i].UpdatedAt.After(first[i].UpdatedAt.Add(time.Second)),
			"%s should carry the fetch time", second[i].ID)
	}
}

func TestFetchComments_FirstFetchKeepsRemoteUpdateTime(t *testing.T) {
	var resolved atomic.Bool
	resolved.Store(true)
	client := newTestClient(t, resolutionToggleHandler(t, reviewCommentsFixture[:1], &resolved), "test-token")

	comments, err := client.FetchComments(context.Background(), "owner/repo#42")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.True(t, comments[0].Resolved)
	assert.Equal(t, time.Date(2026, 1, 10, 10, 5, 0, 0, time.UTC), comments[0].UpdatedAt.UTC())
}

func TestNewClient_EnterpriseURL(t *testing.T) {
	client, err := ghAdapter.NewClient("token", "https://github.example.com/api/v3/")
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = ghAdapter.NewClient("token", "github.example.com/api/v3")
	require.Error(t, err)
}
