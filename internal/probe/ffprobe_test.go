package probe

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/channelcheck/internal/domain"
)

type recordingObserver struct {
	mu  sync.Mutex
	oks []bool
}

func (r *recordingObserver) ObserveProbe(ok bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oks = append(r.oks, ok)
}

func fakeRun(out string, err error) RunFunc {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(out), err
	}
}

func TestFFProbe_ParsesFirstVideoStream(t *testing.T) {
	var gotName string
	var gotArgs []string
	p := NewFFProbe("", time.Second, zap.NewNop())
	p.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(`{"streams":[{"codec_name":"h264","width":1280,"height":720,"avg_frame_rate":"30000/1001"}]}`), nil
	}

	res := p.Probe(context.Background(), "rtsp://cam/1")
	if res.Codec != "h264" || res.Resolution != "1280x720" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.FrameRate < 29.96 || res.FrameRate > 29.98 {
		t.Fatalf("unexpected fps %v", res.FrameRate)
	}
	if gotName != "ffprobe" {
		t.Fatalf("want default binary, got %q", gotName)
	}
	if gotArgs[len(gotArgs)-1] != "rtsp://cam/1" || gotArgs[3] != "v:0" {
		t.Fatalf("unexpected args: %v", gotArgs)
	}
}

func TestFFProbe_PartialOutput(t *testing.T) {
	p := NewFFProbe("ffprobe", time.Second, nil)
	p.Run = fakeRun(`{"streams":[{"codec_name":"hevc","avg_frame_rate":"0/0"}]}`, nil)

	res := p.Probe(context.Background(), "http://x/live.ts")
	want := domain.ProbeResult{Codec: "hevc"}
	if res != want {
		t.Fatalf("want %+v got %+v", want, res)
	}
}

func TestFFProbe_FailuresYieldEmptyResult(t *testing.T) {
	cases := map[string]RunFunc{
		"exit_error":  fakeRun(`{"streams":[{"codec_name":"h264"}]}`, errors.New("exit status 1")),
		"bad_json":    fakeRun(`not json`, nil),
		"no_streams":  fakeRun(`{"streams":[]}`, nil),
		"empty_reply": fakeRun(``, nil),
	}
	for name, run := range cases {
		obs := &recordingObserver{}
		p := NewFFProbe("ffprobe", time.Second, zap.NewNop())
		p.Run = run
		p.Observer = obs
		if res := p.Probe(context.Background(), "http://x"); !res.Empty() {
			t.Fatalf("%s: want empty result, got %+v", name, res)
		}
		if len(obs.oks) != 1 || obs.oks[0] {
			t.Fatalf("%s: want one failed observation, got %v", name, obs.oks)
		}
	}
}

func TestFFProbe_TimeoutIsFinal(t *testing.T) {
	calls := 0
	p := NewFFProbe("ffprobe", 20*time.Millisecond, zap.NewNop())
	p.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls++
		<-ctx.Done()
		return nil, ctx.Err()
	}
	start := time.Now()
	res := p.Probe(context.Background(), "http://slow")
	if !res.Empty() {
		t.Fatalf("want empty result, got %+v", res)
	}
	if calls != 1 {
		t.Fatalf("probe must not retry, got %d calls", calls)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not applied")
	}
}

func TestFFProbe_EmptyURLDoesNotSpawn(t *testing.T) {
	p := NewFFProbe("ffprobe", time.Second, zap.NewNop())
	p.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Fatal("run must not be called")
		return nil, nil
	}
	if res := p.Probe(context.Background(), "  "); !res.Empty() {
		t.Fatalf("want empty result, got %+v", res)
	}
}

func TestRunCommand_ChildHoldingStdoutDoesNotStretchTimeout(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no sh on PATH")
	}
	const timeout = 200 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	_, err = runCommand(ctx, sh, "-c", "sleep 5 & sleep 5")
	elapsed := time.Since(start)
	if err == nil {
		t.Fatal("want an error from the killed command")
	}
	if elapsed > timeout+PipeGrace+500*time.Millisecond {
		t.Fatalf("returned after %v, want about %v", elapsed, timeout+PipeGrace)
	}
}
