package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/repo/memory"
	"github.com/hamed0406/channelcheck/internal/sink"
)

type fakeChannels struct {
	mu    sync.Mutex
	chs   []domain.Channel
	err   error
	calls int
}

func (f *fakeChannels) FetchChannels(context.Context) ([]domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.chs, f.err
}

func (f *fakeChannels) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestMonitor(t *testing.T, src ChannelSource, res ChannelResolver) (*Monitor, *memory.Store) {
	t.Helper()
	store := memory.New()
	m := NewMonitor(zap.NewNop(), src, newTestRunner(res), sink.NewTable(), store, 0, 2)
	t.Cleanup(m.Close)
	return m, store
}

func TestMonitor_RunSyncFillsTableAndHistory(t *testing.T) {
	src := &fakeChannels{chs: []domain.Channel{{ID: "1", Name: "One"}, {ID: "2", Name: "Two"}}}
	res := &stubResolver{streams: map[domain.ChannelID][]domain.StreamRecord{
		"1": {online("http://1")},
		"2": {bare("")},
	}}
	m, store := newTestMonitor(t, src, res)

	runID, err := m.RunSync(context.Background(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	rows := m.Table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "One", rows[0].ChannelName)

	p := m.Progress()
	assert.Equal(t, runID, p.RunID)
	assert.True(t, p.Done)
	assert.Equal(t, 2, p.Completed)

	latest, err := store.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.True(t, latest[0].Up)
	assert.False(t, latest[1].Up)
	assert.Equal(t, runID, latest[0].RunID)
}

func TestMonitor_SubsetKeepsFullListPositions(t *testing.T) {
	src := &fakeChannels{chs: []domain.Channel{{ID: "1", Name: "One"}, {ID: "2", Name: "Two"}, {ID: "3", Name: "Three"}}}
	res := &stubResolver{streams: map[domain.ChannelID][]domain.StreamRecord{
		"1": {online("http://1")}, "2": {online("http://2")}, "3": {online("http://3")},
	}}
	m, _ := newTestMonitor(t, src, res)
	_, err := m.RunSync(context.Background(), nil)
	require.NoError(t, err)

	res.streams["3"] = []domain.StreamRecord{bare("")}
	_, err = m.RunSync(context.Background(), []string{"Three"})
	require.NoError(t, err)

	rows := m.Table.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, domain.ChannelID("3"), rows[2].ChannelID)
	assert.Equal(t, 2, rows[2].Position)
	assert.Equal(t, domain.StatusOffline, rows[2].Verdict.Status)
	assert.Equal(t, domain.StatusOnline, rows[0].Verdict.Status)
}

func TestMonitor_SelectionWithoutMatches(t *testing.T) {
	src := &fakeChannels{chs: []domain.Channel{{ID: "1"}}}
	m, _ := newTestMonitor(t, src, &stubResolver{})
	_, err := m.Trigger(context.Background(), []string{"nope"})
	assert.ErrorIs(t, err, ErrNoChannels)
}

func TestMonitor_FetchFailureIsReported(t *testing.T) {
	src := &fakeChannels{err: errors.New("401")}
	m, _ := newTestMonitor(t, src, &stubResolver{})
	_, err := m.Trigger(context.Background(), nil)
	assert.ErrorContains(t, err, "fetch channels")
}

func TestMonitor_TriggerSupersedesRunningRun(t *testing.T) {
	src := &fakeChannels{chs: []domain.Channel{{ID: "1"}, {ID: "2"}}}
	res := &stubResolver{block: make(chan struct{})}
	m, store := newTestMonitor(t, src, res)

	first, err := m.Trigger(context.Background(), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return res.calls.Load() == 2 }, time.Second, time.Millisecond)

	// second run: unblock resolvers so it can finish
	res.streams = map[domain.ChannelID][]domain.StreamRecord{"1": {online("http://1")}, "2": {online("http://2")}}
	second, err := m.Trigger(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	close(res.block)

	require.Eventually(t, func() bool {
		p := m.Progress()
		return p.RunID == second && p.Done
	}, 2*time.Second, time.Millisecond)

	for _, r := range m.Table.Rows() {
		assert.Equal(t, domain.StatusOnline, r.Verdict.Status)
	}
	m.Close()
	latest, err := store.Latest(context.Background())
	require.NoError(t, err)
	for _, r := range latest {
		assert.Equal(t, second, r.RunID, "stale run results must not be persisted")
	}
}

func TestMonitor_PeriodicLoop(t *testing.T) {
	src := &fakeChannels{chs: []domain.Channel{{ID: "1"}}}
	res := &stubResolver{streams: map[domain.ChannelID][]domain.StreamRecord{"1": {online("http://1")}}}
	m, _ := newTestMonitor(t, src, res)
	m.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
	require.Eventually(t, func() bool { return src.count() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestMonitor_PeriodicDisabledWaitsForCancel(t *testing.T) {
	src := &fakeChannels{}
	m, _ := newTestMonitor(t, src, &stubResolver{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done
	assert.Zero(t, src.count())
}
