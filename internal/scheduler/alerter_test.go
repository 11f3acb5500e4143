package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/notify"
	"github.com/hamed0406/channelcheck/internal/repo"
	"github.com/hamed0406/channelcheck/internal/repo/memory"
)

// ---- shared helpers ----

type fakeResults struct {
	mu   sync.Mutex
	rows []repo.LatestRow
}

func (f *fakeResults) Append(context.Context, ...domain.CheckRecord) error { return nil }

func (f *fakeResults) Latest(context.Context) ([]repo.LatestRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows, nil
}

func (f *fakeResults) History(context.Context, domain.ChannelID, int) ([]domain.CheckRecord, error) {
	return nil, nil
}

func (f *fakeResults) set(rows ...repo.LatestRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = rows
}

func row(id, name string, up bool) repo.LatestRow {
	r := repo.LatestRow{ChannelID: id, ChannelName: name, Up: up, Streams: 1, CheckedAt: time.Now()}
	if up {
		r.Online = 1
	} else {
		r.Reason = "probe_failed dns=NXDOMAIN"
	}
	return r
}

type memNotifier struct {
	mu     sync.Mutex
	titles []string
	texts  []string
}

func (m *memNotifier) Send(ctx context.Context, a notify.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles = append(m.titles, a.Title)
	m.texts = append(m.texts, a.Text)
	return nil
}

func (m *memNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.titles)
}

// ---- tests ----

func TestAlerter_SendsOnDown_RespectsCooldown(t *testing.T) {
	results := &fakeResults{}
	results.set(row("A", "Sports", false))
	nt := &memNotifier{}
	al := NewAlerter(results, memory.New(), nt, AlerterConfig{
		AlertOnRecovery: true,
		Cooldown:        1 * time.Minute,
		PollInterval:    10 * time.Millisecond,
	}, nil)

	// first scan -> should alert
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 1 {
		t.Fatalf("want 1 alert, got %d", nt.count())
	}
	if !strings.Contains(nt.titles[0], "OFFLINE") || !strings.Contains(nt.texts[0], "NXDOMAIN") {
		t.Fatalf("unexpected message: %q / %q", nt.titles[0], nt.texts[0])
	}

	// second scan same state within cooldown -> no new alert
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 1 {
		t.Fatalf("want cooldown to suppress, got %d", nt.count())
	}

	// flip to online -> recovery alert allowed
	results.set(row("A", "Sports", true))
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 2 || !strings.Contains(nt.titles[1], "RECOVERED") {
		t.Fatalf("want recovery alert, got %v", nt.titles)
	}
	if !strings.Contains(nt.texts[1], "Streams online: 1/1") {
		t.Fatalf("recovery text: %q", nt.texts[1])
	}
}

func TestAlerter_NoRecoveryIfDisabled(t *testing.T) {
	results := &fakeResults{}
	results.set(row("B", "News", true))
	nt := &memNotifier{}
	al := NewAlerter(results, memory.New(), nt, AlerterConfig{AlertOnRecovery: false}, nil)

	// first sighting online -> nothing to report
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 0 {
		t.Fatalf("unexpected alert: %d", nt.count())
	}

	// go offline -> should alert
	results.set(row("B", "News", false))
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 1 {
		t.Fatalf("want one down alert, got %d", nt.count())
	}

	// back online with recovery disabled -> silent
	results.set(row("B", "News", true))
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if nt.count() != 1 {
		t.Fatalf("recovery should be silent, got %d", nt.count())
	}
}

func TestAlerter_RunStopsOnCancel(t *testing.T) {
	results := &fakeResults{}
	results.set(row("C", "Movies", false))
	nt := &memNotifier{}
	al := NewAlerter(results, memory.New(), nt, AlerterConfig{PollInterval: 5 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- al.Run(ctx) }()

	deadline := time.After(time.Second)
	for nt.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial scan did not alert")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-errc; err != context.Canceled {
		t.Fatalf("Run returned %v", err)
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func scanAll(t *testing.T, al *Alerter, results *fakeResults, clock *fakeClock, steps ...bool) {
	t.Helper()
	for _, up := range steps {
		results.set(row("F", "Flappy", up))
		if err := al.scanOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
		clock.advance(time.Minute)
	}
}

func TestAlerter_FlappingStaysWithinCooldown(t *testing.T) {
	results := &fakeResults{}
	nt := &memNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	al := NewAlerter(results, memory.New(), nt, AlerterConfig{Cooldown: time.Hour}, nil)
	al.now = clock.now

	// the silent recovery must not reset the cooldown
	scanAll(t, al, results, clock, true, false, true, false, true, false)

	if nt.count() != 1 {
		t.Fatalf("want one offline alert within the cooldown window, got %v", nt.titles)
	}
}

func TestAlerter_HeldBackDownAlertFiresAfterCooldown(t *testing.T) {
	results := &fakeResults{}
	nt := &memNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	al := NewAlerter(results, memory.New(), nt, AlerterConfig{AlertOnRecovery: true, Cooldown: 5 * time.Minute}, nil)
	al.now = clock.now

	// down (sent), up (recovery sent), down again inside the cooldown (held)
	scanAll(t, al, results, clock, false, true, false)
	if nt.count() != 2 {
		t.Fatalf("want offline + recovery so far, got %v", nt.titles)
	}

	// still down after the cooldown has passed
	clock.advance(5 * time.Minute)
	scanAll(t, al, results, clock, false, false)

	if nt.count() != 3 {
		t.Fatalf("want the held-back offline alert once, got %v", nt.titles)
	}
	if !strings.Contains(nt.titles[2], "OFFLINE") {
		t.Fatalf("third alert should be offline, got %q", nt.titles[2])
	}
}

func TestAlerter_HeldBackDownCancelledByRecovery(t *testing.T) {
	results := &fakeResults{}
	nt := &memNotifier{}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	al := NewAlerter(results, memory.New(), nt, AlerterConfig{AlertOnRecovery: true, Cooldown: time.Hour}, nil)
	al.now = clock.now

	// down (sent), up (recovery), down (held), up again: nothing new to say
	scanAll(t, al, results, clock, false, true, false, true)
	clock.advance(2 * time.Hour)
	scanAll(t, al, results, clock, true)

	if nt.count() != 2 {
		t.Fatalf("want offline + recovery only, got %v", nt.titles)
	}
}
