package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Alert is one channel status transition.
type Alert struct {
	ChannelID   string
	ChannelName string
	Up          bool
	Title       string
	Text        string
}

type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

// Multi fans an alert out to every notifier and reports all failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, a Alert) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, a))
	}
	return errs
}

// Log writes alerts to the structured log. It is always enabled so alerts
// are visible even without a webhook.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(_ context.Context, a Alert) error {
	if l.Logger != nil {
		l.Logger.Info("alert",
			zap.String("channel_id", a.ChannelID),
			zap.String("channel", a.ChannelName),
			zap.Bool("up", a.Up),
			zap.String("title", a.Title),
			zap.String("text", a.Text),
		)
	}
	return nil
}
