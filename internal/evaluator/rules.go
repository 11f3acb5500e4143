package evaluator

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/probe"
)

// Alias lists in priority order; the first alias present wins.
var (
	URLAliases        = []string{"url", "stream_url", "src"}
	CodecAliases      = []string{"codec", "codec_name"}
	ResolutionAliases = []string{"resolution"}
	FrameRateAliases  = []string{"fps", "frame_rate"}
)

// Pick returns the value of the first alias present in rec. A JSON null
// counts as absent.
func Pick(rec domain.StreamRecord, aliases ...string) (any, bool) {
	for _, a := range aliases {
		if v, ok := rec[a]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func pickString(rec domain.StreamRecord, aliases ...string) string {
	v, ok := Pick(rec, aliases...)
	if !ok {
		return ""
	}
	return stringOf(v)
}

func pickResolution(rec domain.StreamRecord) string {
	if res := pickString(rec, ResolutionAliases...); res != "" {
		return res
	}
	w, wok := intOf(rec["width"])
	h, hok := intOf(rec["height"])
	if wok && hok {
		return strconv.Itoa(w) + "x" + strconv.Itoa(h)
	}
	return ""
}

func pickFrameRate(rec domain.StreamRecord) float64 {
	v, ok := Pick(rec, FrameRateAliases...)
	if !ok {
		return 0
	}
	fps, _ := FrameRateOf(v)
	return fps
}

// FrameRateOf accepts numbers and "num/den" or decimal strings.
func FrameRateOf(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		return probe.ParseFrameRate(t.String())
	case string:
		return probe.ParseFrameRate(t)
	case float64:
		return probe.ParseFrameRate(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		return probe.ParseFrameRate(strconv.Itoa(t))
	default:
		return 0, false
	}
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

func intOf(v any) (int, bool) {
	var n int64
	var err error
	switch t := v.(type) {
	case json.Number:
		n, err = t.Int64()
	case string:
		n, err = strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	case float64:
		n = int64(t)
		if float64(n) != t {
			return 0, false
		}
	case int:
		n = int64(t)
	default:
		return 0, false
	}
	if err != nil || n <= 0 {
		return 0, false
	}
	return int(n), true
}
