package repo

import (
	"context"
	"sort"
	"time"

	"github.com/hamed0406/channelcheck/internal/domain"
)

// VerdictStore keeps the history of check runs.
type VerdictStore interface {
	Append(ctx context.Context, recs ...domain.CheckRecord) error
	// Latest aggregates, per channel, the rows of the newest run that checked it.
	Latest(ctx context.Context) ([]LatestRow, error)
	// History returns a channel's records, newest first.
	History(ctx context.Context, channelID domain.ChannelID, limit int) ([]domain.CheckRecord, error)
}

// LatestRow is one channel's most recent outcome. Up means at least one
// stream was Online.
type LatestRow struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	RunID       string    `json:"run_id"`
	Position    int       `json:"position"`
	Up          bool      `json:"up"`
	Online      int       `json:"online_streams"`
	Streams     int       `json:"streams"`
	Reason      string    `json:"reason,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Aggregate folds the records of one channel's run into a LatestRow.
// recs must be non-empty.
func Aggregate(recs []domain.CheckRecord) LatestRow {
	first := recs[0]
	row := LatestRow{
		ChannelID:   string(first.Verdict.ChannelID),
		ChannelName: first.ChannelName,
		RunID:       first.RunID,
		Position:    first.Position,
		Streams:     len(recs),
	}
	for _, r := range recs {
		if r.CheckedAt.After(row.CheckedAt) {
			row.CheckedAt = r.CheckedAt
		}
		if r.Verdict.Status == domain.StatusOnline {
			row.Online++
			continue
		}
		if row.Reason == "" {
			row.Reason = r.Verdict.Reason
		}
	}
	row.Up = row.Online > 0
	if row.Up {
		row.Reason = ""
	}
	return row
}

// SortLatest orders rows by position then channel id.
func SortLatest(rows []LatestRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Position != rows[j].Position {
			return rows[i].Position < rows[j].Position
		}
		return rows[i].ChannelID < rows[j].ChannelID
	})
}
