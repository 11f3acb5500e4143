// Package sink holds the consumer side of a check run: an ordered table of
// verdict rows keyed by the channel's position in the input list.
package sink

import (
	"sort"
	"sync"

	"github.com/hamed0406/channelcheck/internal/domain"
)

// Recorder receives verdicts as they become available, from any worker.
type Recorder interface {
	Record(position int, channelID domain.ChannelID, channelName string, v domain.Verdict)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(position int, channelID domain.ChannelID, channelName string, v domain.Verdict)

func (f RecorderFunc) Record(position int, channelID domain.ChannelID, channelName string, v domain.Verdict) {
	f(position, channelID, channelName, v)
}

type Row struct {
	Position    int              `json:"position"`
	ChannelID   domain.ChannelID `json:"channel_id"`
	ChannelName string           `json:"channel_name"`
	Verdict     domain.Verdict   `json:"verdict"`
}

type slot struct {
	channelID domain.ChannelID
	name      string
	verdicts  []domain.Verdict
}

// Table keeps rows in position order no matter which worker finishes first.
// Recording stream 0 for a position replaces whatever that position held,
// so re-checking a subset leaves the other rows alone.
type Table struct {
	mu    sync.RWMutex
	slots map[int]*slot
}

func NewTable() *Table {
	return &Table{slots: make(map[int]*slot)}
}

func (t *Table) Record(position int, channelID domain.ChannelID, channelName string, v domain.Verdict) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.slots[position]
	if s == nil || v.StreamIndex == 0 || s.channelID != channelID {
		s = &slot{channelID: channelID, name: channelName}
		t.slots[position] = s
	}
	s.name = channelName
	if v.StreamIndex >= 0 && v.StreamIndex < len(s.verdicts) {
		s.verdicts[v.StreamIndex] = v
		return
	}
	s.verdicts = append(s.verdicts, v)
}

// Rows returns a copy of every row, ordered by position then stream index.
func (t *Table) Rows() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()

	positions := make([]int, 0, len(t.slots))
	for p := range t.slots {
		positions = append(positions, p)
	}
	sort.Ints(positions)

	out := make([]Row, 0, len(positions))
	for _, p := range positions {
		s := t.slots[p]
		for _, v := range s.verdicts {
			out = append(out, Row{Position: p, ChannelID: s.channelID, ChannelName: s.name, Verdict: v})
		}
	}
	return out
}

// Lookup returns the rows currently recorded for one channel.
func (t *Table) Lookup(channelID domain.ChannelID) []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for p, s := range t.slots {
		if s.channelID != channelID {
			continue
		}
		out := make([]Row, 0, len(s.verdicts))
		for _, v := range s.verdicts {
			out = append(out, Row{Position: p, ChannelID: s.channelID, ChannelName: s.name, Verdict: v})
		}
		return out
	}
	return nil
}

// Positions reports how many distinct positions hold rows.
func (t *Table) Positions() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots)
}

func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots = make(map[int]*slot)
}
