package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/repo"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestPostgresStore_Append_Latest_History(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	// unique ids so repeated runs against the same database don't collide
	chID := domain.ChannelID(fmt.Sprintf("test-%d", time.Now().UTC().UnixNano()))
	now := time.Now().UTC()

	old := domain.CheckRecord{
		RunID: "run-old", Position: 0, ChannelName: "Test",
		Verdict:   domain.Verdict{ChannelID: chID, Status: domain.StatusOnline, Codec: "h264", Resolution: "1920x1080", FrameRate: 25},
		CheckedAt: now.Add(-time.Minute),
	}
	newer := []domain.CheckRecord{
		{RunID: "run-new", Position: 0, ChannelName: "Test",
			Verdict:   domain.Verdict{ChannelID: chID, StreamIndex: 0, Status: domain.StatusOffline, Reason: "probe_failed"},
			CheckedAt: now},
		{RunID: "run-new", Position: 0, ChannelName: "Test",
			Verdict:   domain.Verdict{ChannelID: chID, StreamIndex: 1, Status: domain.StatusOffline, Reason: "no_source_url"},
			CheckedAt: now},
	}
	if err := store.Append(ctx, old); err != nil {
		t.Fatalf("Append old: %v", err)
	}
	if err := store.Append(ctx, newer...); err != nil {
		t.Fatalf("Append new: %v", err)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	var row *repo.LatestRow
	for i := range latest {
		if latest[i].ChannelID == string(chID) {
			row = &latest[i]
			break
		}
	}
	if row == nil {
		t.Fatalf("latest for channel %s not found", chID)
	}
	if row.RunID != "run-new" || row.Up || row.Streams != 2 {
		t.Fatalf("unexpected latest row: %+v", row)
	}
	if row.Reason != "probe_failed" {
		t.Fatalf("expected first offline reason, got %q", row.Reason)
	}

	hist, err := store.History(ctx, chID, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected 3 history rows, got %d", len(hist))
	}
	if hist[len(hist)-1].Verdict.Codec != "h264" || hist[len(hist)-1].Verdict.FrameRate != 25 {
		t.Fatalf("oldest record not round-tripped: %+v", hist[len(hist)-1])
	}
}

func TestPostgresStore_AppendNothing(t *testing.T) {
	var s Store
	// no rows means no round trip, so a zero Store is fine
	if err := s.Append(context.Background()); err != nil {
		t.Fatalf("empty append: %v", err)
	}
}
