package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"captioner/internal/captions"
)

// Canvas describes the output frame the script is laid out for.
type Canvas struct {
	Width  int
	Height int
	Title  string
}

func (c Canvas) withDefaults() Canvas {
	if c.Width <= 0 {
		c.Width = 1920
	}
	if c.Height <= 0 {
		c.Height = 1080
	}
	if strings.TrimSpace(c.Title) == "" {
		c.Title = "captioner"
	}
	return c
}

const assStyleFormat = "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding"

const assEventFormat = "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text"

// Colours are &HAABBGGRR.
const (
	colourWhite       = "&H00FFFFFF"
	colourYellow      = "&H0000FFFF"
	colourBlack       = "&H00000000"
	colourShadedBlack = "&H80000000"
)

type assStyle struct {
	name         string
	font         string
	size         int
	primary      string
	secondary    string
	outline      string
	back         string
	bold         bool
	borderStyle  int
	outlineWidth int
	shadow       int
	alignment    int
	marginH      int
	marginV      int
}

func (s assStyle) line() string {
	bold := 0
	if s.bold {
		bold = -1
	}
	return fmt.Sprintf("Style: %s,%s,%d,%s,%s,%s,%s,%d,0,0,0,100,100,0,0,%d,%d,%d,%d,%d,%d,%d,1",
		s.name, s.font, s.size, s.primary, s.secondary, s.outline, s.back, bold,
		s.borderStyle, s.outlineWidth, s.shadow, s.alignment, s.marginH, s.marginH, s.marginV)
}

// styleFor returns the ASS style block for a presentation. Sizes scale with
// the canvas height so 720p and 1080p renders look alike.
func styleFor(style Style, canvas Canvas) assStyle {
	size := int(math.Round(float64(canvas.Height) * 0.055))
	base := assStyle{
		name:         "Caption",
		font:         "Arial",
		size:         size,
		primary:      colourWhite,
		secondary:    colourWhite,
		outline:      colourBlack,
		back:         colourShadedBlack,
		bold:         true,
		borderStyle:  1,
		outlineWidth: 3,
		shadow:       1,
		alignment:    2,
		marginH:      int(math.Round(float64(canvas.Width) * 0.05)),
		marginV:      int(math.Round(float64(canvas.Height) * 0.08)),
	}
	switch style {
	case StyleTopBar:
		base.borderStyle = 3
		base.outline = colourShadedBlack
		base.outlineWidth = int(math.Round(float64(size) * 0.35))
		base.shadow = 0
		base.alignment = 8
		base.marginV = int(math.Round(float64(canvas.Height) * 0.04))
	case StyleKaraoke:
		// \k sweeps from SecondaryColour to PrimaryColour as each word is spoken.
		base.primary = colourYellow
		base.secondary = colourWhite
		base.size = int(math.Round(float64(size) * 1.15))
	}
	return base
}

// RenderASS writes an ASS script presenting the timeline in the given style.
func RenderASS(w io.Writer, timeline captions.Timeline, style Style, canvas Canvas) error {
	style, err := ParseStyle(string(style))
	if err != nil {
		return err
	}
	canvas = canvas.withDefaults()

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "[Script Info]")
	fmt.Fprintf(bw, "Title: %s\n", canvas.Title)
	fmt.Fprintln(bw, "ScriptType: v4.00+")
	fmt.Fprintf(bw, "PlayResX: %d\n", canvas.Width)
	fmt.Fprintf(bw, "PlayResY: %d\n", canvas.Height)
	fmt.Fprintln(bw, "WrapStyle: 0")
	fmt.Fprintln(bw, "ScaledBorderAndShadow: yes")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "[V4+ Styles]")
	fmt.Fprintln(bw, assStyleFormat)
	fmt.Fprintln(bw, styleFor(style, canvas).line())
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "[Events]")
	fmt.Fprintln(bw, assEventFormat)

	for _, seg := range timeline {
		text := assText(seg.Text)
		if style == StyleKaraoke && seg.HasWords() {
			text = karaokeText(seg)
		}
		fmt.Fprintf(bw, "Dialogue: 0,%s,%s,Caption,,0,0,0,,%s\n",
			formatASSTimestamp(seg.StartTime),
			formatASSTimestamp(seg.EndTime),
			text)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write ass script: %w", err)
	}
	return nil
}

// karaokeText emits one \k tag per word. Gaps before a word become a silent
// \k so highlighting stays in sync with speech.
func karaokeText(seg captions.Segment) string {
	var b strings.Builder
	cursor := toCentis(seg.StartTime)
	for i, word := range seg.Words {
		start := toCentis(word.StartTime)
		if start < cursor {
			start = cursor
		}
		if gap := start - cursor; gap > 0 {
			fmt.Fprintf(&b, "{\\k%d}", gap)
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		duration := toCentis(word.EndTime) - start
		if duration < 1 {
			duration = 1
		}
		fmt.Fprintf(&b, "{\\k%d}%s", duration, assText(word.Word))
		cursor = start + duration
	}
	return b.String()
}

// Override blocks use braces and backslashes, so caption text must not carry them.
var assEscaper = strings.NewReplacer(
	"\\", "/",
	"{", "(",
	"}", ")",
	"\r\n", "\\N",
	"\n", "\\N",
)

func assText(value string) string {
	return assEscaper.Replace(strings.TrimSpace(value))
}

func toCentis(seconds float64) int {
	if seconds < 0 {
		return 0
	}
	return int(math.Round(seconds * 100))
}

// formatASSTimestamp converts seconds to the ASS h:mm:ss.cc form.
func formatASSTimestamp(seconds float64) string {
	cs := toCentis(seconds)
	hours := cs / 360000
	minutes := (cs / 6000) % 60
	secs := (cs / 100) % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, cs%100)
}
