package driven

import (
	"context"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

// CommandSink defines the driven port that performs the side effect of a
// command. Errors are logged by the executor per command and never stop it.
type CommandSink interface {
	Execute(ctx context.Context, cmd model.Command) error
}
