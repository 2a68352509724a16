package notification

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of one send
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Result records what happened to one recipient
type Result struct {
	Recipient string `json:"recipient"`
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

// Dispatcher handles sending notifications
type Dispatcher struct {
	provider Provider
	limit    int
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher running at most limit sends at once
func NewDispatcher(provider Provider, limit int, logger *zap.Logger) *Dispatcher {
	if limit <= 0 {
		limit = 1
	}
	return &Dispatcher{provider: provider, limit: limit, logger: logger}
}

// Dispatch sends one copy of the message to each recipient. Every send is
// attempted exactly once; failures are logged and reported in the results,
// which follow the order of recipients.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []string, subject, html string, attachments []Attachment) []Result {
	results := make([]Result, len(recipients))
	if len(recipients) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(d.limit)

	for i, to := range recipients {
		i, to := i, to
		g.Go(func() error {
			msg := &Message{To: to, Subject: subject, HTML: html, Attachments: attachments}
			results[i] = d.send(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) send(ctx context.Context, msg *Message) Result {
	if err := d.provider.Send(ctx, msg); err != nil {
		d.logger.Warn("Failed to send notification",
			zap.String("provider", d.provider.Name()),
			zap.String("to", msg.To),
			zap.Error(err),
		)
		return Result{Recipient: msg.To, Status: StatusFailed, Error: err.Error(), Err: err}
	}

	d.logger.Info("Notification sent",
		zap.String("provider", d.provider.Name()),
		zap.String("to", msg.To),
	)
	return Result{Recipient: msg.To, Status: StatusSent}
}

// Failed counts failed sends
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Status == StatusFailed {
			n++
		}
	}
	return n
}
