package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/channelcheck/internal/config"
	"github.com/hamed0406/channelcheck/internal/dispatcharr"
	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/repo"
	"github.com/hamed0406/channelcheck/internal/sink"
)

var ErrNoChannels = errors.New("no channels matched the selection")

const persistTimeout = 10 * time.Second

// ChannelSource lists the channels to check.
type ChannelSource interface {
	FetchChannels(ctx context.Context) ([]domain.Channel, error)
}

// Monitor owns the single current run. A new trigger cancels the previous
// run, and results still arriving from it are dropped by run id.
type Monitor struct {
	Logger     *zap.Logger
	Source     ChannelSource
	Runner     *Runner
	Table      *sink.Table
	Store      repo.VerdictStore // optional
	Interval   time.Duration     // 0 disables periodic checks
	MaxWorkers int

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu       sync.Mutex
	runID    string
	cancel   context.CancelFunc
	progress Progress
	now      func() time.Time
}

func NewMonitor(logger *zap.Logger, src ChannelSource, runner *Runner, table *sink.Table, store repo.VerdictStore, interval time.Duration, maxWorkers int) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == nil {
		table = sink.NewTable()
	}
	if interval < 0 {
		interval = 0
	}
	base, stop := context.WithCancel(context.Background())
	return &Monitor{
		Logger:     logger,
		Source:     src,
		Runner:     runner,
		Table:      table,
		Store:      store,
		Interval:   interval,
		MaxWorkers: maxWorkers,
		base:       base,
		stop:       stop,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if m.Interval == 0 {
		m.Logger.Info("monitor_periodic_disabled")
		<-ctx.Done()
		return
	}
	t := time.NewTicker(m.Interval)
	defer t.Stop()

	// immediate pass
	m.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			m.Logger.Info("monitor_stopped")
			return
		case <-t.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) {
	_, done, err := m.start(ctx, nil)
	if err != nil {
		m.Logger.Warn("channels_fetch_error", zap.Error(err))
		return
	}
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			m.Logger.Warn("run_error", zap.Error(err))
		}
	case <-ctx.Done():
	}
}

// Trigger starts a run in the background and returns its id. selectors
// narrow the run to matching ids or names; none means every channel.
func (m *Monitor) Trigger(ctx context.Context, selectors []string) (string, error) {
	id, _, err := m.start(ctx, selectors)
	return id, err
}

// RunSync is Trigger followed by waiting for the run to end.
func (m *Monitor) RunSync(ctx context.Context, selectors []string) (string, error) {
	id, done, err := m.start(ctx, selectors)
	if err != nil {
		return "", err
	}
	select {
	case err := <-done:
		return id, err
	case <-ctx.Done():
		m.Cancel()
		return id, ctx.Err()
	}
}

func (m *Monitor) start(ctx context.Context, selectors []string) (string, <-chan error, error) {
	all, err := m.Source.FetchChannels(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("fetch channels: %w", err)
	}
	all = Dedup(all)
	positions := make(map[domain.ChannelID]int, len(all))
	for i, ch := range all {
		positions[ch.ID] = i
	}

	selection := all
	if len(selectors) > 0 {
		selection = dispatcharr.SelectChannels(all, selectors)
		if len(selection) == 0 {
			return "", nil, ErrNoChannels
		}
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(m.base)

	m.mu.Lock()
	if m.cancel != nil {
		m.Logger.Info("run_superseded", zap.String("run_id", m.runID), zap.String("by", runID))
		m.cancel()
	}
	m.runID = runID
	m.cancel = cancel
	m.progress = Progress{RunID: runID, Total: len(selection), Max: config.ClampWorkers(m.MaxWorkers)}
	if len(selectors) == 0 {
		m.Table.Reset()
	}
	m.mu.Unlock()

	done := make(chan error, 1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		done <- m.execute(runCtx, runID, selection, positions)
	}()
	return runID, done, nil
}

func (m *Monitor) execute(ctx context.Context, runID string, selection []domain.Channel, positions map[domain.ChannelID]int) error {
	var (
		bmu   sync.Mutex
		batch []domain.CheckRecord
	)
	record := sink.RecorderFunc(func(_ int, id domain.ChannelID, name string, v domain.Verdict) {
		pos := positions[id]
		m.mu.Lock()
		current := m.runID == runID
		if current {
			m.Table.Record(pos, id, name, v)
		}
		m.mu.Unlock()
		if !current {
			return
		}
		bmu.Lock()
		batch = append(batch, domain.CheckRecord{RunID: runID, Position: pos, ChannelName: name, Verdict: v, CheckedAt: m.now()})
		bmu.Unlock()
	})
	progress := func(p Progress) { m.setProgress(runID, p) }

	runErr := m.Runner.RunWithID(ctx, runID, selection, m.MaxWorkers, progress, record)

	var persistErr error
	if m.Store != nil && len(batch) > 0 {
		pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		persistErr = m.Store.Append(pctx, batch...)
		if persistErr != nil {
			m.Logger.Warn("history_append_error", zap.String("run_id", runID), zap.Error(persistErr))
		}
	}
	return multierr.Combine(runErr, persistErr)
}

func (m *Monitor) setProgress(runID string, p Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runID == runID {
		m.progress = p
	}
}

// Progress returns the state of the current (or last) run.
func (m *Monitor) Progress() Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress
}

// Cancel stops the current run, if any.
func (m *Monitor) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// Close cancels every run and waits for their goroutines to exit.
func (m *Monitor) Close() {
	m.stop()
	m.wg.Wait()
}
