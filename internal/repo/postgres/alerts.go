package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/channelcheck/internal/repo"
)

func (s *Store) Get(ctx context.Context, channelID string) (*repo.AlertRecord, error) {
	const q = `SELECT last_state, last_sent_at FROM alerts WHERE channel_id=$1`
	var r repo.AlertRecord
	r.ChannelID = channelID
	var lastSent *time.Time
	err := s.pool.QueryRow(ctx, q, channelID).Scan(&r.LastState, &lastSent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r.LastSentAt = lastSent
	return &r, nil
}

func (s *Store) Set(ctx context.Context, channelID string, lastState bool, sentAt time.Time) error {
	const q = `
		INSERT INTO alerts (channel_id, last_state, last_sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (channel_id)
		DO UPDATE SET last_state=EXCLUDED.last_state, last_sent_at=EXCLUDED.last_sent_at
	`
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	_, err := s.pool.Exec(ctx, q, channelID, lastState, ts)
	return err
}
