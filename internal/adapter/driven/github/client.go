// Package github implements the CommentFetcher port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommentFetcher = (*Client)(nil)

// Comment ID prefixes keep review and issue comment IDs from colliding within
// one snapshot.
const (
	reviewCommentPrefix = "rc-"
	issueCommentPrefix  = "ic-"
)

const defaultGraphQLURL = "https://api.github.com/graphql"

// Client implements the driven.CommentFetcher port using the go-github library.
// A document's comment thread is its inline review comments followed by its
// general issue comments.
//
// Resolving a thread does not touch its comments' updated_at, so the client
// remembers each document's last seen thread states and stamps the comments
// of a thread that flipped with the fetch time.
type Client struct {
	gh         *gh.Client
	token      string // Stored for GraphQL Authorization header.
	graphqlURL string
	now        func() time.Time

	mu      sync.Mutex
	threads map[string]map[int64]bool // doc token -> root comment ID -> resolved
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// A non-empty apiURL selects a GitHub Enterprise Server instance.
func NewClient(token, apiURL string) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	graphqlURL := defaultGraphQLURL
	if apiURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise URL %q: %w", apiURL, err)
		}
		graphqlURL, err = enterpriseGraphQLURL(apiURL)
		if err != nil {
			return nil, err
		}
	}

	return newClient(client, token, graphqlURL), nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	// Derive graphqlURL from baseURL so httptest servers can intercept GraphQL requests.
	graphqlU := *u
	graphqlU.Path = "/graphql"

	return newClient(client, token, graphqlU.String()), nil
}

func newClient(client *gh.Client, token, graphqlURL string) *Client {
	return &Client{
		gh:         client,
		token:      token,
		graphqlURL: graphqlURL,
		now:        time.Now,
		threads:    make(map[string]map[int64]bool),
	}
}

// enterpriseGraphQLURL maps a GHES API URL to its GraphQL endpoint, which
// lives at /api/graphql on the same host.
func enterpriseGraphQLURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parsing enterprise URL %q: %w", apiURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("enterprise URL %q must be absolute", apiURL)
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/api/graphql"}).String(), nil
}

// FetchComments returns the complete current comment thread of the pull
// request or issue named by docToken. Issues have no review comments; the
// review comment endpoint answering 404 is taken to mean the document is an
// issue.
func (c *Client) FetchComments(ctx context.Context, docToken string) ([]model.Comment, error) {
	ref, err := model.ParseDocRef(docToken)
	if err != nil {
		return nil, err
	}

	issueComments, err := c.fetchIssueComments(ctx, ref)
	if err != nil {
		return nil, err
	}

	reviewComments, isPR, err := c.fetchReviewComments(ctx, ref)
	if err != nil {
		return nil, err
	}

	resolution := map[int64]bool{}
	if isPR && len(reviewComments) > 0 {
		resolution, err = c.FetchThreadResolution(ctx, ref)
		if err != nil {
			return nil, err
		}
	}

	flipped := c.trackResolution(ref, resolution)
	fetchedAt := c.now()

	comments := make([]model.Comment, 0, len(reviewComments)+len(issueComments))
	for _, rc := range reviewComments {
		comment := mapReviewComment(rc, resolution)
		if flipped[threadRoot(rc)] {
			comment.UpdatedAt = fetchedAt
		}
		comments = append(comments, comment)
	}
	for _, ic := range issueComments {
		comments = append(comments, mapIssueComment(ic))
	}

	return comments, nil
}

// trackResolution records the document's current thread states and returns
// the root IDs of threads whose state changed since the previous fetch. The
// first fetch of a document reports nothing.
func (c *Client) trackResolution(ref model.DocRef, resolution map[int64]bool) map[int64]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := ref.Token()
	previous, seen := c.threads[key]
	c.threads[key] = resolution
	if !seen {
		return nil
	}

	flipped := map[int64]bool{}
	for rootID, resolved := range resolution {
		if previous[rootID] != resolved {
			flipped[rootID] = true
		}
	}
	for rootID, resolved := range previous {
		if _, ok := resolution[rootID]; !ok && resolved {
			flipped[rootID] = true
		}
	}
	if len(flipped) > 0 {
		slog.Debug("review thread resolution changed", "repo", ref.RepoFullName(), "doc", key, "threads", len(flipped))
	}
	return flipped
}

// threadRoot returns the ID of the comment that opened c's review thread.
func threadRoot(c *gh.PullRequestComment) int64 {
	if c.InReplyTo != nil {
		return c.GetInReplyTo()
	}
	return c.GetID()
}

// fetchReviewComments retrieves all review comments (inline code comments) for
// a pull request. isPR is false when the number names an issue.
func (c *Client) fetchReviewComments(ctx context.Context, ref model.DocRef) ([]*gh.PullRequestComment, bool, error) {
	opts := &gh.PullRequestListCommentsOptions{
		Sort:        "created",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var all []*gh.PullRequestComment

	for {
		comments, resp, err := c.gh.PullRequests.ListComments(ctx, ref.Owner, ref.Repo, ref.Number, opts)
		if err != nil {
			if opts.Page == 0 && resp != nil && resp.StatusCode == http.StatusNotFound {
				slog.Debug("document is not a pull request, skipping review comments", "doc", ref.Token())
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("listing review comments for %s (page %d): %w", ref.Token(), opts.Page, err)
		}

		logRateLimit(resp, ref.Token()+"/review-comments", opts.Page, len(comments))
		all = append(all, comments...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, true, nil
}

// fetchIssueComments retrieves all general comments (from the Issues API) for
// a pull request or issue.
func (c *Client) fetchIssueComments(ctx context.Context, ref model.DocRef) ([]*gh.IssueComment, error) {
	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var all []*gh.IssueComment

	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, ref.Owner, ref.Repo, ref.Number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issue comments for %s (page %d): %w", ref.Token(), opts.Page, err)
		}

		logRateLimit(resp, ref.Token()+"/issue-comments", opts.Page, len(comments))
		all = append(all, comments...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// mapReviewComment converts a go-github PullRequestComment to a domain Comment.
// Replies take the resolution state of the thread's root comment.
func mapReviewComment(c *gh.PullRequestComment, resolution map[int64]bool) model.Comment {
	rootID := threadRoot(c)
	var parentID string
	if c.InReplyTo != nil {
		parentID = reviewCommentPrefix + strconv.FormatInt(rootID, 10)
	}

	return model.Comment{
		ID:         reviewCommentPrefix + strconv.FormatInt(c.GetID(), 10),
		Content:    c.GetBody(),
		AuthorID:   userID(c.GetUser()),
		AuthorName: c.GetUser().GetLogin(),
		CreatedAt:  c.GetCreatedAt().Time,
		UpdatedAt:  c.GetUpdatedAt().Time,
		Resolved:   resolution[rootID],
		ParentID:   parentID,
		Position:   reviewPosition(c),
	}
}

// mapIssueComment converts a go-github IssueComment to a domain Comment.
func mapIssueComment(c *gh.IssueComment) model.Comment {
	return model.Comment{
		ID:         issueCommentPrefix + strconv.FormatInt(c.GetID(), 10),
		Content:    c.GetBody(),
		AuthorID:   userID(c.GetUser()),
		AuthorName: c.GetUser().GetLogin(),
		CreatedAt:  c.GetCreatedAt().Time,
		UpdatedAt:  c.GetUpdatedAt().Time,
	}
}

// reviewPosition anchors a review comment as "path:line". File-level comments
// and outdated comments without a line fall back to the original line or the
// bare path.
func reviewPosition(c *gh.PullRequestComment) string {
	path := c.GetPath()
	if path == "" {
		return ""
	}
	if c.GetSubjectType() == "file" {
		return path
	}
	if line := c.GetLine(); line > 0 {
		return path + ":" + strconv.Itoa(line)
	}
	if line := c.GetOriginalLine(); line > 0 {
		return path + ":" + strconv.Itoa(line)
	}
	return path
}

func userID(u *gh.User) string {
	if id := u.GetID(); id != 0 {
		return strconv.FormatInt(id, 10)
	}
	return ""
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
