package evaluator

import (
	"context"

	"go.uber.org/zap"

	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/probe"
)

const (
	ReasonNoSourceURL = "no_source_url"
	ReasonProbeFailed = "probe_failed"
	ReasonIncomplete  = "incomplete"
)

// Classifier labels why a stream host might be unreachable.
type Classifier interface {
	Classify(ctx context.Context, streamURL string) string
}

// Evaluation is the merged outcome for one stream record.
type Evaluation struct {
	Status     domain.Status
	Codec      string
	Resolution string
	FrameRate  float64
	SourceURL  string
	Probed     bool
	Reason     string
}

// Verdict stamps the evaluation with its channel and stream position.
func (ev Evaluation) Verdict(id domain.ChannelID, streamIndex int) domain.Verdict {
	return domain.Verdict{
		ChannelID:   id,
		StreamIndex: streamIndex,
		Status:      ev.Status,
		Codec:       ev.Codec,
		Resolution:  ev.Resolution,
		FrameRate:   ev.FrameRate,
		Reason:      ev.Reason,
	}
}

// Evaluator merges API metadata with probe output. Metadata always wins;
// the prober only fills fields that metadata left empty, and is only run
// when something is missing and a source URL exists.
type Evaluator struct {
	Prober probe.Prober
	DNS    Classifier
	Logger *zap.Logger
}

func New(p probe.Prober, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{Prober: p, Logger: logger}
}

func (e *Evaluator) Evaluate(ctx context.Context, rec domain.StreamRecord) Evaluation {
	ev := Evaluation{
		SourceURL:  pickString(rec, URLAliases...),
		Codec:      pickString(rec, CodecAliases...),
		Resolution: pickResolution(rec),
		FrameRate:  pickFrameRate(rec),
	}

	if !complete(ev) && ev.SourceURL != "" && e.Prober != nil {
		res := e.Prober.Probe(ctx, ev.SourceURL)
		ev.Probed = true
		if ev.Codec == "" {
			ev.Codec = res.Codec
		}
		if ev.Resolution == "" {
			ev.Resolution = res.Resolution
		}
		if ev.FrameRate <= 0 {
			ev.FrameRate = res.FrameRate
		}
		if res.Empty() {
			ev.Reason = ReasonProbeFailed
		}
	}

	ev.Status = domain.StatusOf(ev.Codec, ev.Resolution, ev.FrameRate)
	if ev.Status == domain.StatusOnline {
		ev.Reason = ""
		return ev
	}

	switch {
	case ev.SourceURL == "":
		ev.Reason = ReasonNoSourceURL
	case ev.Reason == ReasonProbeFailed && e.DNS != nil:
		ev.Reason += " dns=" + e.DNS.Classify(ctx, ev.SourceURL)
	case ev.Reason == "":
		ev.Reason = ReasonIncomplete
	}
	if e.Logger != nil {
		e.Logger.Debug("stream_offline",
			zap.String("url", ev.SourceURL),
			zap.String("reason", ev.Reason),
			zap.Bool("probed", ev.Probed),
		)
	}
	return ev
}

func complete(ev Evaluation) bool {
	return domain.StatusOf(ev.Codec, ev.Resolution, ev.FrameRate) == domain.StatusOnline
}
