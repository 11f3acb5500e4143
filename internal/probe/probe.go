package probe

import (
	"context"

	"github.com/hamed0406/channelcheck/internal/domain"
)

// Prober reads the media attributes of a stream URL.
//
// A prober never returns an error: any failure (launch, timeout, non-zero
// exit, unparseable output) yields an empty ProbeResult.
type Prober interface {
	Probe(ctx context.Context, streamURL string) domain.ProbeResult
}

// ProberFunc adapts a plain function to Prober.
type ProberFunc func(ctx context.Context, streamURL string) domain.ProbeResult

func (f ProberFunc) Probe(ctx context.Context, streamURL string) domain.ProbeResult {
	return f(ctx, streamURL)
}
