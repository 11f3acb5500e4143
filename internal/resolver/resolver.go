package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/envelope"
)

// StreamSource fetches the raw stream-list payload of one channel.
type StreamSource interface {
	FetchChannelStreams(ctx context.Context, channelID domain.ChannelID) ([]byte, error)
}

// Resolver turns a channel id into its ordered candidate stream records.
// The first record is the primary stream.
type Resolver struct {
	Source StreamSource
}

func New(src StreamSource) *Resolver {
	return &Resolver{Source: src}
}

// Resolve returns the channel's streams in API order. Transport errors are
// returned as-is so callers can tell an unauthorized key apart.
func (r *Resolver) Resolve(ctx context.Context, id domain.ChannelID) ([]domain.StreamRecord, error) {
	raw, err := r.Source.FetchChannelStreams(ctx, id)
	if err != nil {
		return nil, err
	}
	recs, err := Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("channel %s streams: %w", id, err)
	}
	return recs, nil
}

// Normalize unwraps any supported envelope into stream records. Elements
// that are not JSON objects carry no stream and are skipped.
func Normalize(payload []byte) ([]domain.StreamRecord, error) {
	items, err := envelope.Items(payload)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StreamRecord, 0, len(items))
	for _, it := range items {
		it = bytes.TrimSpace(it)
		if len(it) == 0 || it[0] != '{' {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(it))
		dec.UseNumber()
		var rec domain.StreamRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode stream record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
