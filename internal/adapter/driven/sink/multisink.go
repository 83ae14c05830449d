package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommandSink = (Multi)(nil)

// Multi executes a command on every sink in order. A failing sink does not
// stop the ones after it; all errors are joined.
type Multi []driven.CommandSink

// Execute runs cmd on each sink.
func (m Multi) Execute(ctx context.Context, cmd model.Command) error {
	var errs []error
	for i, s := range m {
		if err := s.Execute(ctx, cmd); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
