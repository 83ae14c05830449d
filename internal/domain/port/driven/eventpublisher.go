package driven

import (
	"context"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

// EventPublisher receives the ordered change events found by one poll tick.
// Publish must not wait for the resulting commands to be consumed.
type EventPublisher interface {
	Publish(ctx context.Context, docToken string, events []model.ChangeEvent)
}
