package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/repo"
)

var _ repo.VerdictStore = (*Store)(nil)
var _ repo.AlertStore = (*Store)(nil)

// Schema is applied by Migrate; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS checks (
  id           BIGSERIAL PRIMARY KEY,
  run_id       TEXT NOT NULL,
  position     INTEGER NOT NULL,
  channel_id   TEXT NOT NULL,
  channel_name TEXT NOT NULL,
  stream_index INTEGER NOT NULL,
  status       TEXT NOT NULL,
  codec        TEXT NOT NULL DEFAULT '',
  resolution   TEXT NOT NULL DEFAULT '',
  frame_rate   DOUBLE PRECISION NOT NULL DEFAULT 0,
  errored      BOOLEAN NOT NULL DEFAULT false,
  reason       TEXT NOT NULL DEFAULT '',
  checked_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_channel_time ON checks (channel_id, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_checks_run          ON checks (run_id);

CREATE TABLE IF NOT EXISTS alerts (
  channel_id   TEXT PRIMARY KEY,
  last_state   BOOLEAN NOT NULL,
  last_sent_at TIMESTAMPTZ NULL
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- VerdictStore ----

const insertCheck = `INSERT INTO checks
   (run_id, position, channel_id, channel_name, stream_index, status, codec, resolution, frame_rate, errored, reason, checked_at)
 VALUES
   ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Append inserts all records in one batch. Every failed row is reported.
func (s *Store) Append(ctx context.Context, recs ...domain.CheckRecord) error {
	if len(recs) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, r := range recs {
		if r.CheckedAt.IsZero() {
			r.CheckedAt = time.Now().UTC()
		}
		v := r.Verdict
		b.Queue(insertCheck,
			r.RunID, r.Position, string(v.ChannelID), r.ChannelName, v.StreamIndex,
			string(v.Status), v.Codec, v.Resolution, v.FrameRate, v.Errored, v.Reason, r.CheckedAt,
		)
	}

	br := s.pool.SendBatch(ctx, b)
	var errs error
	for i := range recs {
		if _, err := br.Exec(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("insert check %s/%d: %w",
				recs[i].Verdict.ChannelID, recs[i].Verdict.StreamIndex, err))
		}
	}
	errs = multierr.Append(errs, br.Close())
	if errs != nil {
		s.log.Warn("checks_insert_error", zap.Int("rows", len(recs)), zap.Error(errs))
	}
	return errs
}

const selectColumns = `run_id, position, channel_id, channel_name, stream_index, status, codec, resolution, frame_rate, errored, reason, checked_at`

func scanRecords(rows pgx.Rows) ([]domain.CheckRecord, error) {
	defer rows.Close()
	var out []domain.CheckRecord
	for rows.Next() {
		var (
			r         domain.CheckRecord
			channelID string
			status    string
		)
		if err := rows.Scan(&r.RunID, &r.Position, &channelID, &r.ChannelName, &r.Verdict.StreamIndex,
			&status, &r.Verdict.Codec, &r.Verdict.Resolution, &r.Verdict.FrameRate,
			&r.Verdict.Errored, &r.Verdict.Reason, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		r.Verdict.ChannelID = domain.ChannelID(channelID)
		r.Verdict.Status = domain.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Latest(ctx context.Context) ([]repo.LatestRow, error) {
	rows, err := s.pool.Query(ctx, `
WITH newest AS (
  SELECT DISTINCT ON (channel_id) channel_id, run_id
    FROM checks
   ORDER BY channel_id, checked_at DESC, id DESC
)
SELECT `+selectColumns+`
  FROM checks c
  JOIN newest n USING (channel_id, run_id)
 ORDER BY c.channel_id, c.stream_index, c.id`)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	var out []repo.LatestRow
	for start := 0; start < len(recs); {
		end := start + 1
		for end < len(recs) && recs[end].Verdict.ChannelID == recs[start].Verdict.ChannelID {
			end++
		}
		out = append(out, repo.Aggregate(recs[start:end]))
		start = end
	}
	repo.SortLatest(out)
	return out, nil
}

func (s *Store) History(ctx context.Context, channelID domain.ChannelID, limit int) ([]domain.CheckRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+`
  FROM checks
 WHERE channel_id = $1
 ORDER BY checked_at DESC, id DESC
 LIMIT $2`, string(channelID), limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return scanRecords(rows)
}
