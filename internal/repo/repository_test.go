package repo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/repo"
	"github.com/hamed0406/channelcheck/internal/repo/memory"
	pg "github.com/hamed0406/channelcheck/internal/repo/postgres"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.VerdictStore = memory.New()
	var _ repo.AlertStore = memory.New()

	var _ repo.VerdictStore = (*pg.Store)(nil)
	var _ repo.AlertStore = (*pg.Store)(nil)
}

func rec(status domain.Status, idx int, reason string, at time.Time) domain.CheckRecord {
	return domain.CheckRecord{
		RunID:       "r1",
		Position:    3,
		ChannelName: "News",
		Verdict:     domain.Verdict{ChannelID: "9", StreamIndex: idx, Status: status, Reason: reason},
		CheckedAt:   at,
	}
}

func TestAggregate(t *testing.T) {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	down := repo.Aggregate([]domain.CheckRecord{
		rec(domain.StatusOffline, 0, "probe_failed", t0),
		rec(domain.StatusOffline, 1, "incomplete", t0.Add(time.Second)),
	})
	assert.False(t, down.Up)
	assert.Equal(t, "probe_failed", down.Reason)
	assert.Equal(t, 2, down.Streams)
	assert.Equal(t, t0.Add(time.Second), down.CheckedAt)
	assert.Equal(t, "9", down.ChannelID)
	assert.Equal(t, 3, down.Position)

	up := repo.Aggregate([]domain.CheckRecord{
		rec(domain.StatusOffline, 0, "probe_failed", t0),
		rec(domain.StatusOnline, 1, "", t0),
	})
	assert.True(t, up.Up)
	assert.Equal(t, 1, up.Online)
	assert.Empty(t, up.Reason)
}

func TestSortLatest(t *testing.T) {
	rows := []repo.LatestRow{{ChannelID: "b", Position: 1}, {ChannelID: "c", Position: 0}, {ChannelID: "a", Position: 1}}
	repo.SortLatest(rows)
	assert.Equal(t, "c", rows[0].ChannelID)
	assert.Equal(t, "a", rows[1].ChannelID)
	assert.Equal(t, "b", rows[2].ChannelID)
}
