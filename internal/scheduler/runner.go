package scheduler

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/channelcheck/internal/config"
	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/evaluator"
	"github.com/hamed0406/channelcheck/internal/metrics"
	"github.com/hamed0406/channelcheck/internal/sink"
)

const (
	ReasonFetchError = "fetch_error"
	ReasonNoStreams  = "no_streams"
)

type ChannelResolver interface {
	Resolve(ctx context.Context, id domain.ChannelID) ([]domain.StreamRecord, error)
}

type StreamEvaluator interface {
	Evaluate(ctx context.Context, rec domain.StreamRecord) evaluator.Evaluation
}

// Snapshotter captures a still of a channel's stream; failures stay inside.
type Snapshotter interface {
	CaptureQuietly(ctx context.Context, streamURL, channelName string)
}

// Progress is a point-in-time view of a run.
type Progress struct {
	RunID     string `json:"run_id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Active    int    `json:"active"`
	Max       int    `json:"max"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Done      bool   `json:"done"`
}

// ProgressFunc is never called concurrently and sees Completed grow
// monotonically within one run. It must not block for long.
type ProgressFunc func(Progress)

// Runner checks a batch of channels on a bounded worker pool.
type Runner struct {
	Resolver  ChannelResolver
	Evaluator StreamEvaluator
	Snapshot  Snapshotter // nil disables captures
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

func NewRunner(res ChannelResolver, ev StreamEvaluator, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Resolver: res, Evaluator: ev, Logger: logger}
}

// Dedup drops repeated channel ids, keeping first-seen order. The index in
// the result is the channel's position.
func Dedup(channels []domain.Channel) []domain.Channel {
	seen := make(map[domain.ChannelID]struct{}, len(channels))
	out := make([]domain.Channel, 0, len(channels))
	for _, ch := range channels {
		if _, dup := seen[ch.ID]; dup {
			continue
		}
		seen[ch.ID] = struct{}{}
		out = append(out, ch)
	}
	return out
}

// Run checks channels under a fresh run id. See RunWithID.
func (r *Runner) Run(ctx context.Context, channels []domain.Channel, maxWorkers int, onProgress ProgressFunc, onResult sink.Recorder) error {
	return r.RunWithID(ctx, uuid.NewString(), channels, maxWorkers, onProgress, onResult)
}

// RunWithID blocks until every channel is reported or ctx is cancelled.
// Per-channel failures become Errored verdicts and never stop the batch.
// On cancellation unstarted channels are skipped, in-flight ones drain and
// ctx.Err() is returned.
func (r *Runner) RunWithID(ctx context.Context, runID string, channels []domain.Channel, maxWorkers int, onProgress ProgressFunc, onResult sink.Recorder) error {
	units := Dedup(channels)
	workers := config.ClampWorkers(maxWorkers)
	log := r.logger().With(zap.String("run_id", runID))

	st := &runState{
		p:          Progress{RunID: runID, Total: len(units), Max: workers},
		onProgress: onProgress,
		metrics:    r.Metrics,
	}
	log.Info("run_started", zap.Int("channels", len(units)), zap.Int("workers", workers))

	var g errgroup.Group
	g.SetLimit(workers)
	for pos, ch := range units {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			st.start()
			r.checkChannel(ctx, log, pos, ch, onResult)
			st.finish()
			return nil
		})
	}
	_ = g.Wait()

	cancelled := ctx.Err() != nil
	final := st.final(cancelled)
	r.Metrics.IncRuns(cancelled)
	if cancelled {
		log.Info("run_cancelled", zap.Int("completed", final.Completed), zap.Int("total", final.Total))
		return ctx.Err()
	}
	log.Info("run_finished", zap.Int("completed", final.Completed))
	return nil
}

func (r *Runner) checkChannel(ctx context.Context, log *zap.Logger, pos int, ch domain.Channel, out sink.Recorder) {
	name := ch.DisplayName()
	emit := func(v domain.Verdict) {
		if out != nil {
			out.Record(pos, ch.ID, name, v)
		}
	}

	recs, err := r.Resolver.Resolve(ctx, ch.ID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("channel_fetch_error", zap.String("channel_id", string(ch.ID)), zap.Error(err))
		r.Metrics.IncChannel("errored")
		emit(domain.Verdict{
			ChannelID: ch.ID,
			Status:    domain.StatusOffline,
			Errored:   true,
			Reason:    ReasonFetchError + ": " + err.Error(),
		})
		return
	}
	if len(recs) == 0 {
		r.Metrics.IncChannel("offline")
		emit(domain.Verdict{ChannelID: ch.ID, Status: domain.StatusOffline, Reason: ReasonNoStreams})
		return
	}

	up := false
	captured := false
	for i, rec := range recs {
		if i > 0 && ctx.Err() != nil {
			return
		}
		ev := r.Evaluator.Evaluate(ctx, rec)
		v := ev.Verdict(ch.ID, i)
		emit(v)
		r.Metrics.IncStream(statusLabel(v.Status))
		if v.Status == domain.StatusOnline {
			up = true
		}
		if r.Snapshot != nil && !captured && ev.SourceURL != "" {
			captured = true
			r.Snapshot.CaptureQuietly(ctx, ev.SourceURL, name)
		}
		log.Debug("stream_checked",
			zap.String("channel_id", string(ch.ID)),
			zap.Int("stream_index", i),
			zap.String("status", string(v.Status)),
			zap.Bool("probed", ev.Probed),
		)
	}
	if up {
		r.Metrics.IncChannel("online")
	} else {
		r.Metrics.IncChannel("offline")
	}
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func statusLabel(s domain.Status) string {
	if s == domain.StatusOnline {
		return "online"
	}
	return "offline"
}

// runState is shared by all workers of one run.
type runState struct {
	mu         sync.Mutex
	p          Progress
	onProgress ProgressFunc
	metrics    *metrics.Metrics
}

func (s *runState) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Active++
	s.emit()
}

func (s *runState) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Completed++
	s.p.Active--
	s.emit()
}

func (s *runState) final(cancelled bool) Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Active = 0
	s.p.Cancelled = cancelled
	s.p.Done = true
	s.emit()
	return s.p
}

// emit runs under s.mu so callbacks are serialized.
func (s *runState) emit() {
	s.metrics.SetActiveWorkers(s.p.Active)
	if s.onProgress != nil {
		s.onProgress(s.p)
	}
}
