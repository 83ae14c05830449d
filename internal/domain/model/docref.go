package model

import (
	"fmt"
	"strconv"
	"strings"
)

// DocRef identifies a GitHub pull request or issue whose comment thread is
// watched. Its token form is "owner/repo#number".
type DocRef struct {
	Owner  string
	Repo   string
	Number int
}

// ParseDocRef parses an "owner/repo#number" token. Surrounding whitespace is
// ignored. Every failure wraps ErrInvalidToken.
func ParseDocRef(token string) (DocRef, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return DocRef{}, ErrInvalidToken
	}

	repoPart, numPart, ok := strings.Cut(token, "#")
	if !ok {
		return DocRef{}, fmt.Errorf("%w: %q: expected owner/repo#number", ErrInvalidToken, token)
	}

	owner, repo, ok := strings.Cut(repoPart, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return DocRef{}, fmt.Errorf("%w: %q: expected owner/repo#number", ErrInvalidToken, token)
	}

	number, err := strconv.Atoi(numPart)
	if err != nil || number <= 0 {
		return DocRef{}, fmt.Errorf("%w: %q: number must be a positive integer", ErrInvalidToken, token)
	}

	return DocRef{Owner: owner, Repo: repo, Number: number}, nil
}

// RepoFullName returns "owner/repo".
func (r DocRef) RepoFullName() string {
	return r.Owner + "/" + r.Repo
}

// Token returns the canonical "owner/repo#number" form.
func (r DocRef) Token() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}
