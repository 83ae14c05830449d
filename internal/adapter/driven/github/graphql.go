package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

// graphqlHTTPClient is the HTTP client used for GraphQL requests.
// It enforces a 30-second timeout as a safety net alongside context cancellation.
var graphqlHTTPClient = &http.Client{Timeout: 30 * time.Second}

// ErrTooManyThreads is returned when a pull request's review threads do not fit
// in the page limit.
var ErrTooManyThreads = errors.New("review thread page limit exceeded")

// maxThreadPages bounds review thread pagination at 1000 threads.
const maxThreadPages = 10

const threadResolutionQuery = `query($owner: String!, $repo: String!, $pr: Int!, $after: String) {
	repository(owner: $owner, name: $repo) {
		pullRequest(number: $pr) {
			reviewThreads(first: 100, after: $after) {
				pageInfo {
					hasNextPage
					endCursor
				}
				nodes {
					isResolved
					comments(first: 1) {
						nodes {
							databaseId
						}
					}
				}
			}
		}
	}
}`

// graphqlRequest is the JSON body sent to the GitHub GraphQL API.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphqlResponse represents the expected shape of a GitHub GraphQL response
// for thread resolution status.
type graphqlResponse struct {
	Data struct {
		Repository struct {
			PullRequest struct {
				ReviewThreads struct {
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
					Nodes []struct {
						IsResolved bool `json:"isResolved"`
						Comments   struct {
							Nodes []struct {
								DatabaseID int64 `json:"databaseId"`
							} `json:"nodes"`
						} `json:"comments"`
					} `json:"nodes"`
				} `json:"reviewThreads"`
			} `json:"pullRequest"`
		} `json:"repository"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchThreadResolution queries the GitHub GraphQL API for review thread
// resolution status. It returns a map of root review comment database ID to
// its resolved status (true = resolved).
//
// Without a token GraphQL is unavailable and every thread reads as unresolved.
// Any other failure is returned, including a pull request with more threads
// than the page limit: a partial map would report resolved threads as
// reopened.
func (c *Client) FetchThreadResolution(ctx context.Context, ref model.DocRef) (map[int64]bool, error) {
	result := map[int64]bool{}
	if c.token == "" {
		return result, nil
	}

	var after *string
	for page := 0; page < maxThreadPages; page++ {
		gqlResp, err := c.queryThreads(ctx, ref, after)
		if err != nil {
			return nil, err
		}

		threads := gqlResp.Data.Repository.PullRequest.ReviewThreads
		for _, thread := range threads.Nodes {
			if len(thread.Comments.Nodes) > 0 && thread.Comments.Nodes[0].DatabaseID != 0 {
				result[thread.Comments.Nodes[0].DatabaseID] = thread.IsResolved
			}
		}

		if !threads.PageInfo.HasNextPage || threads.PageInfo.EndCursor == "" {
			return result, nil
		}
		cursor := threads.PageInfo.EndCursor
		after = &cursor
	}

	return nil, fmt.Errorf("%w: %s has more than %d review threads", ErrTooManyThreads, ref.Token(), maxThreadPages*100)
}

// queryThreads fetches one page of review threads.
func (c *Client) queryThreads(ctx context.Context, ref model.DocRef, after *string) (*graphqlResponse, error) {
	reqBody := graphqlRequest{
		Query: threadResolutionQuery,
		Variables: map[string]any{
			"owner": ref.Owner,
			"repo":  ref.Repo,
			"pr":    ref.Number,
			"after": after,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling thread resolution query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating thread resolution request: %w", err)
	}
	httpReq.Header.Set("Authorization", fmt.Sprintf("bearer %s", c.token))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := graphqlHTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("thread resolution query for %s: %w", ref.Token(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("thread resolution query for %s: HTTP %d: %s", ref.Token(), resp.StatusCode, trimBody(body))
	}

	var gqlResp graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return nil, fmt.Errorf("decoding thread resolution response for %s: %w", ref.Token(), err)
	}

	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("thread resolution query for %s: %s", ref.Token(), gqlResp.Errors[0].Message)
	}

	return &gqlResp, nil
}

// trimBody shortens a response body for inclusion in an error message.
func trimBody(b []byte) string {
	return model.Truncate(strings.TrimSpace(string(b)), 200)
}
