package notification

import (
	"context"

	"go.uber.org/zap"
)

// LogProvider records messages in the log instead of sending them. Used in
// development.
type LogProvider struct {
	logger *zap.Logger
}

// NewLogProvider creates a provider writing to logger
func NewLogProvider(logger *zap.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (l *LogProvider) Name() string {
	return "log"
}

func (l *LogProvider) Send(ctx context.Context, message *Message) error {
	l.logger.Info("Email not sent (log provider)",
		zap.String("to", message.To),
		zap.String("subject", message.Subject),
		zap.Int("html_bytes", len(message.HTML)),
		zap.Int("attachments", len(message.Attachments)),
	)
	return nil
}
