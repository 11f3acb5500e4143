package dispatcharr

import (
	"sort"
	"strconv"
	"strings"

	"github.com/hamed0406/channelcheck/internal/domain"
)

// ParseSelectors splits comma-separated selector arguments.
func ParseSelectors(args ...string) []string {
	var out []string
	for _, a := range args {
		for _, p := range strings.Split(a, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// SelectChannels keeps channels whose id or exact name is among selectors,
// in the order of all. No selectors selects nothing.
func SelectChannels(all []domain.Channel, selectors []string) []domain.Channel {
	want := make(map[string]struct{}, len(selectors))
	for _, s := range selectors {
		want[s] = struct{}{}
	}
	var out []domain.Channel
	for _, ch := range all {
		_, byID := want[string(ch.ID)]
		_, byName := want[ch.Name]
		if byID || (ch.Name != "" && byName) {
			out = append(out, ch)
		}
	}
	return out
}

// SortByID orders channels by numeric id; non-numeric ids go last by text.
func SortByID(chs []domain.Channel) {
	sort.SliceStable(chs, func(i, j int) bool {
		a, aerr := strconv.ParseInt(string(chs[i].ID), 10, 64)
		b, berr := strconv.ParseInt(string(chs[j].ID), 10, 64)
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		default:
			return chs[i].ID < chs[j].ID
		}
	})
}
