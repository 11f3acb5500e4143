package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/channelcheck/internal/notify"
	"github.com/hamed0406/channelcheck/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

// Alerter watches the latest channel outcomes and notifies on up/down
// transitions.
type Alerter struct {
	results  repo.VerdictStore
	alertDB  repo.AlertStore
	notifier notify.Notifier
	cfg      AlerterConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewAlerter(
	results repo.VerdictStore,
	alertDB repo.AlertStore,
	notifier notify.Notifier,
	cfg AlerterConfig,
	log *zap.Logger,
) *Alerter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Alerter{
		results:  results,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	// initial pass
	a.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			a.scan(ctx)
		}
	}
}

func (a *Alerter) scan(ctx context.Context) {
	if err := a.scanOnce(ctx); err != nil {
		a.log.Warn("alerter_scan_error", zap.Error(err))
	}
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	rows, err := a.results.Latest(ctx)
	if err != nil {
		return err
	}

	now := a.now()

	for _, r := range rows {
		rec, err := a.alertDB.Get(ctx, r.ChannelID)
		if err != nil {
			a.log.Warn("alert_state_error", zap.String("channel_id", r.ChannelID), zap.Error(err))
			continue
		}
		if rec != nil && rec.LastState == r.Up {
			continue
		}

		var lastSent time.Time
		if rec != nil && rec.LastSentAt != nil {
			lastSent = *rec.LastSentAt
		}

		if !r.Up && !lastSent.IsZero() && now.Sub(lastSent) < a.cfg.Cooldown {
			// Held back: the stored state stays up, so the alert fires on
			// the first scan after the cooldown if the channel is still down.
			a.log.Debug("alert_cooldown", zap.String("channel_id", r.ChannelID))
			continue
		}

		send := !r.Up || (rec != nil && a.cfg.AlertOnRecovery)
		if send {
			if err := a.notifier.Send(ctx, alertFor(r)); err != nil {
				a.log.Warn("alert_send_error", zap.String("channel_id", r.ChannelID), zap.Error(err))
			}
			lastSent = now
		}
		if err := a.alertDB.Set(ctx, r.ChannelID, r.Up, lastSent); err != nil {
			a.log.Warn("alert_state_error", zap.String("channel_id", r.ChannelID), zap.Error(err))
		}
	}

	return nil
}

func alertFor(r repo.LatestRow) notify.Alert {
	title := "🔴 Channel OFFLINE"
	if r.Up {
		title = "🟢 Channel RECOVERED"
	}
	reason := r.Reason
	if reason == "" {
		reason = "n/a"
	}
	return notify.Alert{
		ChannelID:   r.ChannelID,
		ChannelName: r.ChannelName,
		Up:          r.Up,
		Title:       title,
		Text: fmt.Sprintf(
			"Channel: %s (id %s)\nStreams online: %d/%d\nReason: %s\nChecked: %s",
			r.ChannelName, r.ChannelID, r.Online, r.Streams, reason, r.CheckedAt.Format(time.RFC3339),
		),
	}
}
