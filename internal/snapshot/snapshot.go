// Package snapshot grabs a single still frame from a stream with ffmpeg.
// Capture is a side effect only; it never affects a verdict.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultFFmpeg  = "ffmpeg"
	DefaultDir     = "captured"
	DefaultTimeout = 10 * time.Second
)

// RunFunc runs an external command to completion.
type RunFunc func(ctx context.Context, name string, args ...string) error

type Capturer struct {
	Binary  string
	Dir     string
	Timeout time.Duration
	Logger  *zap.Logger
	Run     RunFunc
}

func New(binary, dir string, logger *zap.Logger) *Capturer {
	if binary == "" {
		binary = DefaultFFmpeg
	}
	if dir == "" {
		dir = DefaultDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{Binary: binary, Dir: dir, Timeout: DefaultTimeout, Logger: logger, Run: runCommand}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_\-. ]`)

// SanitizeFilename replaces anything outside letters, digits, space and
// "_-." with "_" and trims surrounding spaces.
func SanitizeFilename(name string) string {
	return strings.TrimSpace(unsafeChars.ReplaceAllString(name, "_"))
}

// Path is where the frame for channelName is written.
func (c *Capturer) Path(channelName string) string {
	name := SanitizeFilename(channelName)
	if name == "" || name == "." || name == ".." {
		name = "_"
	}
	return filepath.Join(c.Dir, name+".jpg")
}

// Args is the ffmpeg command line for one capture.
func Args(streamURL, out string) []string {
	return []string{"-y", "-i", streamURL, "-frames:v", "1", "-q:v", "2", out}
}

// Capture writes one frame of streamURL and returns the target path. The
// error is informational; callers are expected to log and move on.
func (c *Capturer) Capture(ctx context.Context, streamURL, channelName string) (string, error) {
	out := c.Path(channelName)
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return out, fmt.Errorf("create capture dir: %w", err)
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	run := c.Run
	if run == nil {
		run = runCommand
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := run(cctx, c.Binary, Args(streamURL, out)...); err != nil {
		return out, fmt.Errorf("capture %s: %w", channelName, err)
	}
	return out, nil
}

// CaptureQuietly is Capture with failures logged at debug and dropped.
func (c *Capturer) CaptureQuietly(ctx context.Context, streamURL, channelName string) {
	path, err := c.Capture(ctx, streamURL, channelName)
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err != nil {
		log.Debug("snapshot_failed", zap.String("channel", channelName), zap.Error(err))
		return
	}
	log.Debug("snapshot_saved", zap.String("channel", channelName), zap.String("path", path))
}

func runCommand(ctx context.Context, name string, args ...string) error {
	// #nosec G204 - binary comes from config, the URL is a single argument
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 100 * time.Millisecond
	return cmd.Run()
}
