package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"captioner/internal/captions"
)

// RenderSRT writes the timeline as a SubRip document.
func RenderSRT(w io.Writer, timeline captions.Timeline) error {
	bw := bufio.NewWriter(w)
	for i, seg := range timeline {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "%d\n", i+1)
		fmt.Fprintf(bw, "%s --> %s\n", formatSRTTimestamp(seg.StartTime), formatSRTTimestamp(seg.EndTime))
		fmt.Fprintln(bw, strings.TrimSpace(seg.Text))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

func formatSRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(math.Round(seconds * 1000))
	hours := ms / 3600000
	minutes := (ms / 60000) % 60
	secs := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms%1000)
}
