package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/repo"
)

// Store keeps history and alert state in process memory.
type Store struct {
	mu      sync.RWMutex
	records []domain.CheckRecord
	alerts  map[string]repo.AlertRecord
}

func New() *Store {
	return &Store{
		records: make([]domain.CheckRecord, 0, 128),
		alerts:  make(map[string]repo.AlertRecord),
	}
}

func (m *Store) Append(ctx context.Context, recs ...domain.CheckRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		if r.CheckedAt.IsZero() {
			r.CheckedAt = time.Now().UTC()
		}
		m.records = append(m.records, r)
	}
	return nil
}

func (m *Store) Latest(ctx context.Context) ([]repo.LatestRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// newest run per channel; ties go to the later append
	newest := make(map[domain.ChannelID]domain.CheckRecord)
	for _, r := range m.records {
		cur, ok := newest[r.Verdict.ChannelID]
		if !ok || !r.CheckedAt.Before(cur.CheckedAt) {
			newest[r.Verdict.ChannelID] = r
		}
	}

	grouped := make(map[domain.ChannelID][]domain.CheckRecord, len(newest))
	for _, r := range m.records {
		if n := newest[r.Verdict.ChannelID]; n.RunID == r.RunID {
			grouped[r.Verdict.ChannelID] = append(grouped[r.Verdict.ChannelID], r)
		}
	}

	out := make([]repo.LatestRow, 0, len(grouped))
	for _, recs := range grouped {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Verdict.StreamIndex < recs[j].Verdict.StreamIndex })
		out = append(out, repo.Aggregate(recs))
	}
	repo.SortLatest(out)
	return out, nil
}

func (m *Store) History(ctx context.Context, channelID domain.ChannelID, limit int) ([]domain.CheckRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.CheckRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].Verdict.ChannelID != channelID {
			continue
		}
		out = append(out, m.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ---- AlertStore ----

func (m *Store) Get(ctx context.Context, channelID string) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.alerts[channelID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) Set(ctx context.Context, channelID string, lastState bool, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	m.alerts[channelID] = repo.AlertRecord{ChannelID: channelID, LastState: lastState, LastSentAt: ts}
	return nil
}
