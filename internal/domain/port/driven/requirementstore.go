package driven

import (
	"context"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

// RequirementStore defines the driven port for the requirement tracker that
// commands are applied to.
type RequirementStore interface {
	// Apply records change and returns the resulting requirement.
	Apply(ctx context.Context, change model.RequirementChange) (*model.Requirement, error)
	// Get returns the requirement for a comment, or (nil, nil) if none exists.
	Get(ctx context.Context, docToken, commentID string) (*model.Requirement, error)
	ListByDocument(ctx context.Context, docToken string) ([]model.Requirement, error)
}
