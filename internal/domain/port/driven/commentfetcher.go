package driven

import (
	"context"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

// CommentFetcher defines the driven port for reading a document's comment
// thread from the remote system. Implementations must return the complete
// current list, not a delta. Any error is treated by callers as a transient
// failure for that poll.
type CommentFetcher interface {
	FetchComments(ctx context.Context, docToken string) ([]model.Comment, error)
}
