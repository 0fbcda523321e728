package notify

import (
	"context"
	"log/slog"

	"github.com/sha1n/invitewatch/internal/domain"
)

// Log reports codes through the process logger. It is used when email is
// disabled and always succeeds.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a Log notifier writing to logger, or the default logger
// when nil.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Send implements monitor.Notifier.
func (l *Log) Send(ctx context.Context, codes []domain.CodeCandidate) error {
	for _, c := range codes {
		l.logger.InfoContext(ctx, "Invite code",
			"code", c.Text,
			"kind", c.Kind,
			"source", c.Source,
			"source_id", c.SourceID,
			"context", c.Context)
	}
	return nil
}
