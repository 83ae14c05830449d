package sink

import (
	"context"
	"log/slog"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommandSink = (*LogSink)(nil)

// logSummaryLimit caps the rendered comment text in log lines.
const logSummaryLimit = 120

// LogSink executes a command by writing one structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger selects slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Execute logs the command. It never fails.
func (s *LogSink) Execute(ctx context.Context, cmd model.Command) error {
	attrs := []any{
		"id", cmd.ID,
		"type", cmd.Type,
		"doc", cmd.DocToken,
		"comment", cmd.SourceID(),
		"created_at", cmd.CreatedAt,
		"summary", PlainText(cmd.Content, logSummaryLimit),
	}
	if cmd.Source != nil {
		attrs = append(attrs, "author", cmd.Source.AuthorName)
		if cmd.Source.Position != "" {
			attrs = append(attrs, "position", cmd.Source.Position)
		}
		if cmd.Source.IsReply() {
			attrs = append(attrs, "reply_to", cmd.Source.ParentID)
		}
	}

	s.logger.InfoContext(ctx, "executing command: "+cmd.Describe(), attrs...)
	return nil
}
