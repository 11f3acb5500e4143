package domain

import "time"

type Status string

const (
	StatusOnline  Status = "Online"
	StatusOffline Status = "Offline"
)

// ProbeResult is what the media prober could read from a stream.
// The zero value means the probe failed entirely.
type ProbeResult struct {
	Codec      string  `json:"codec,omitempty"`
	Resolution string  `json:"resolution,omitempty"`
	FrameRate  float64 `json:"frame_rate,omitempty"`
}

func (p ProbeResult) Empty() bool {
	return p.Codec == "" && p.Resolution == "" && p.FrameRate <= 0
}

// StatusOf is the only rule deciding Online vs Offline: all three media
// attributes must be known.
func StatusOf(codec, resolution string, frameRate float64) Status {
	if codec != "" && resolution != "" && frameRate > 0 {
		return StatusOnline
	}
	return StatusOffline
}

type Verdict struct {
	ChannelID   ChannelID `json:"channel_id"`
	StreamIndex int       `json:"stream_index"`
	Status      Status    `json:"status"`
	Codec       string    `json:"codec,omitempty"`
	Resolution  string    `json:"resolution,omitempty"`
	FrameRate   float64   `json:"frame_rate,omitempty"`
	Errored     bool      `json:"errored,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// CheckRecord is a verdict as persisted in history.
type CheckRecord struct {
	RunID       string    `json:"run_id"`
	Position    int       `json:"position"`
	ChannelName string    `json:"channel_name"`
	Verdict     Verdict   `json:"verdict"`
	CheckedAt   time.Time `json:"checked_at"`
}
