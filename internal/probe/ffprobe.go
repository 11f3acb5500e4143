package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/channelcheck/internal/domain"
)

const (
	DefaultFFProbe = "ffprobe"
	DefaultTimeout = 10 * time.Second

	// PipeGrace bounds how long a killed ffprobe may keep its output pipe
	// open through a child process. A probe returns at most this much after
	// its timeout.
	PipeGrace = 100 * time.Millisecond
)

// RunFunc runs an external command and returns its stdout. A non-zero exit
// must be reported as an error.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Observer is notified once per probe attempt; metrics hook in here.
type Observer interface {
	ObserveProbe(ok bool, elapsed time.Duration)
}

// FFProbe probes the first video stream of a URL with ffprobe.
type FFProbe struct {
	Binary   string
	Timeout  time.Duration
	Logger   *zap.Logger
	Run      RunFunc
	Observer Observer
}

func NewFFProbe(binary string, timeout time.Duration, logger *zap.Logger) *FFProbe {
	if binary == "" {
		binary = DefaultFFProbe
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFProbe{Binary: binary, Timeout: timeout, Logger: logger, Run: runCommand}
}

// Args is the ffprobe command line for one stream URL.
func Args(streamURL string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,avg_frame_rate",
		"-of", "json",
		streamURL,
	}
}

func (f *FFProbe) Probe(ctx context.Context, streamURL string) domain.ProbeResult {
	if strings.TrimSpace(streamURL) == "" {
		return domain.ProbeResult{}
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	run := f.Run
	if run == nil {
		run = runCommand
	}
	log := f.Logger
	if log == nil {
		log = zap.NewNop()
	}

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := run(pctx, f.Binary, Args(streamURL)...)
	elapsed := time.Since(start)
	if err != nil {
		reason := "exec_error"
		if errors.Is(pctx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		log.Debug("probe_failed",
			zap.String("url", streamURL),
			zap.String("reason", reason),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		f.observe(false, elapsed)
		return domain.ProbeResult{}
	}

	res, err := ParseOutput(out)
	if err != nil {
		log.Debug("probe_failed",
			zap.String("url", streamURL),
			zap.String("reason", "bad_output"),
			zap.Error(err),
		)
		f.observe(false, elapsed)
		return domain.ProbeResult{}
	}
	f.observe(!res.Empty(), elapsed)
	return res
}

func (f *FFProbe) observe(ok bool, elapsed time.Duration) {
	if f.Observer != nil {
		f.Observer.ObserveProbe(ok, elapsed)
	}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// ParseOutput reads ffprobe's JSON. Only the first stream is consulted; any
// subset of codec, resolution and frame rate may come back.
func ParseOutput(out []byte) (domain.ProbeResult, error) {
	var data ffprobeOutput
	if err := json.Unmarshal(out, &data); err != nil {
		return domain.ProbeResult{}, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if len(data.Streams) == 0 {
		return domain.ProbeResult{}, errors.New("ffprobe reported no video stream")
	}
	s := data.Streams[0]
	res := domain.ProbeResult{Codec: strings.TrimSpace(s.CodecName)}
	if s.Width > 0 && s.Height > 0 {
		res.Resolution = strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
	}
	if fps, ok := ParseFrameRate(s.AvgFrameRate); ok {
		res.FrameRate = fps
	}
	return res, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 - binary comes from config, the URL is a single argument
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = PipeGrace
	return cmd.Output()
}
