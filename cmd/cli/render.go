package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"text/tabwriter"

	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/scheduler"
	"github.com/hamed0406/channelcheck/internal/sink"
)

func formatFPS(fps float64) string {
	if fps <= 0 {
		return "-"
	}
	return strconv.FormatFloat(math.Round(fps*100)/100, 'f', -1, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func writeResults(w io.Writer, rows []sink.Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tCODEC\tRESOLUTION\tFPS\tREASON")
	for _, r := range rows {
		name := r.ChannelName
		if r.Verdict.StreamIndex > 0 {
			name = fmt.Sprintf("%s #%d", name, r.Verdict.StreamIndex+1)
		}
		status := string(r.Verdict.Status)
		if r.Verdict.Errored {
			status = "Errored"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ChannelID, name, status,
			orDash(r.Verdict.Codec), orDash(r.Verdict.Resolution), formatFPS(r.Verdict.FrameRate), orDash(r.Verdict.Reason))
	}
	return tw.Flush()
}

func writeChannels(w io.Writer, chs []domain.Channel) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, ch := range chs {
		fmt.Fprintf(tw, "%s\t%s\n", ch.ID, ch.DisplayName())
	}
	return tw.Flush()
}

func summarize(rows []sink.Row) (online, offline int) {
	for _, r := range rows {
		if r.Verdict.Status == domain.StatusOnline {
			online++
		} else {
			offline++
		}
	}
	return online, offline
}

// progressLine redraws one status line on a terminal. It is also the
// writer for console log output: a log line first ends the status line,
// then the status line is redrawn below it.
type progressLine struct {
	mu   sync.Mutex
	w    io.Writer
	last string
	open bool
}

func (p *progressLine) update(pr scheduler.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = fmt.Sprintf("checked %d/%d channels (%d/%d workers busy)", pr.Completed, pr.Total, pr.Active, pr.Max)
	fmt.Fprint(p.w, "\r"+p.last)
	p.open = !pr.Done
	if pr.Done {
		fmt.Fprintln(p.w)
	}
}

func (p *progressLine) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		fmt.Fprintln(p.w)
	}
	n, err := p.w.Write(b)
	if err != nil {
		return n, err
	}
	if p.open {
		fmt.Fprint(p.w, "\r"+p.last)
	}
	return n, nil
}
