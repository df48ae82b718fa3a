package captions

// Word is a single recognized word with its own time span in seconds.
type Word struct {
	Word      string  `json:"word" yaml:"word"`
	StartTime float64 `json:"startTime" yaml:"startTime"`
	EndTime   float64 `json:"endTime" yaml:"endTime"`
}

// Segment is a contiguous span of spoken text.
type Segment struct {
	Text      string  `json:"text" yaml:"text"`
	StartTime float64 `json:"startTime" yaml:"startTime"`
	EndTime   float64 `json:"endTime" yaml:"endTime"`
	Words     []Word  `json:"words,omitempty" yaml:"words,omitempty"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// HasWords reports whether the segment carries word-level timing.
func (s Segment) HasWords() bool {
	return len(s.Words) > 0
}

func (s Segment) clone() Segment {
	out := s
	if len(s.Words) > 0 {
		out.Words = append([]Word(nil), s.Words...)
	}
	return out
}

// Timeline is an ordered sequence of caption segments.
type Timeline []Segment

// Clone returns a deep copy so callers cannot mutate shared word slices.
func (t Timeline) Clone() Timeline {
	if t == nil {
		return nil
	}
	out := make(Timeline, len(t))
	for i, seg := range t {
		out[i] = seg.clone()
	}
	return out
}

// End returns the end time of the last segment, or zero for an empty timeline.
func (t Timeline) End() float64 {
	var end float64
	for _, seg := range t {
		if seg.EndTime > end {
			end = seg.EndTime
		}
	}
	return end
}

// WordCount returns the number of timed words across all segments.
func (t Timeline) WordCount() int {
	total := 0
	for _, seg := range t {
		total += len(seg.Words)
	}
	return total
}

// At returns the segment active at the given time, if any.
func (t Timeline) At(seconds float64) (Segment, bool) {
	for _, seg := range t {
		if seconds >= seg.StartTime && seconds < seg.EndTime {
			return seg.clone(), true
		}
	}
	return Segment{}, false
}
