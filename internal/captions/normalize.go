package captions

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize returns a copy with NFC text, collapsed whitespace, times rounded
// to millisecond precision, and blank words removed.
func (t Timeline) Normalize() Timeline {
	if t == nil {
		return nil
	}
	out := make(Timeline, 0, len(t))
	for _, seg := range t {
		seg = seg.clone()
		seg.Text = cleanText(seg.Text)
		seg.StartTime = roundMillis(seg.StartTime)
		seg.EndTime = roundMillis(seg.EndTime)
		words := seg.Words[:0]
		for _, w := range seg.Words {
			w.Word = cleanText(w.Word)
			if w.Word == "" {
				continue
			}
			w.StartTime = roundMillis(w.StartTime)
			w.EndTime = roundMillis(w.EndTime)
			words = append(words, w)
		}
		if len(words) == 0 {
			words = nil
		}
		seg.Words = words
		out = append(out, seg)
	}
	return out
}

func cleanText(value string) string {
	return strings.Join(strings.Fields(norm.NFC.String(value)), " ")
}

func roundMillis(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*1000) / 1000
}
