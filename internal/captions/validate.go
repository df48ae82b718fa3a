package captions

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// epsilon absorbs float noise left over from recognizer offsets.
const epsilon = 1e-6

var (
	// ErrInvalid marks a timeline that violates the segment or word contract.
	ErrInvalid = errors.New("invalid caption timeline")
	// ErrOverlap marks overlapping segments under the reject policy.
	ErrOverlap = errors.New("overlapping caption segments")
)

// OverlapPolicy decides what happens when two segments overlap in time.
type OverlapPolicy string

const (
	// PolicyReject fails validation with ErrOverlap.
	PolicyReject OverlapPolicy = "reject"
	// PolicyMerge joins overlapping neighbours into a single segment.
	PolicyMerge OverlapPolicy = "merge"
)

// ParseOverlapPolicy converts a configuration value into a policy.
func ParseOverlapPolicy(value string) (OverlapPolicy, error) {
	switch OverlapPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyMerge:
		return PolicyMerge, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q", value)
	}
}

// ValidationError pinpoints the first offending segment (and word, when set).
type ValidationError struct {
	Segment int
	Word    int
	Reason  string
	kind    error
}

func (e *ValidationError) Error() string {
	if e.Word >= 0 {
		return fmt.Sprintf("segment %d word %d: %s", e.Segment, e.Word, e.Reason)
	}
	return fmt.Sprintf("segment %d: %s", e.Segment, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.kind
}

func invalid(segment, word int, format string, args ...any) error {
	return &ValidationError{Segment: segment, Word: word, Reason: fmt.Sprintf(format, args...), kind: ErrInvalid}
}

// Validate checks every segment and the ordering between segments. Under
// PolicyReject an overlap fails with ErrOverlap; under PolicyMerge segments
// are sorted and overlapping neighbours merged. The returned timeline is a
// copy; the receiver is never modified.
func (t Timeline) Validate(policy OverlapPolicy) (Timeline, error) {
	if policy == "" {
		policy = PolicyReject
	}
	if policy != PolicyReject && policy != PolicyMerge {
		return nil, fmt.Errorf("%w: unknown overlap policy %q", ErrInvalid, policy)
	}
	for i, seg := range t {
		if err := validateSegment(i, seg); err != nil {
			return nil, err
		}
	}

	out := t.Clone()
	if policy == PolicyMerge {
		sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
		return mergeOverlaps(out), nil
	}

	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		if cur.StartTime+epsilon < prev.StartTime {
			return nil, invalid(i, -1, "starts at %.3fs before previous segment at %.3fs", cur.StartTime, prev.StartTime)
		}
		if prev.EndTime > cur.StartTime+epsilon {
			return nil, &ValidationError{
				Segment: i,
				Word:    -1,
				Reason:  fmt.Sprintf("starts at %.3fs before previous segment ends at %.3fs", cur.StartTime, prev.EndTime),
				kind:    ErrOverlap,
			}
		}
	}
	return out, nil
}

func validateSegment(index int, seg Segment) error {
	if strings.TrimSpace(seg.Text) == "" {
		return invalid(index, -1, "text is empty")
	}
	if !finite(seg.StartTime) || !finite(seg.EndTime) {
		return invalid(index, -1, "times must be finite")
	}
	if seg.StartTime < 0 {
		return invalid(index, -1, "start %.3fs is negative", seg.StartTime)
	}
	if seg.EndTime <= seg.StartTime {
		return invalid(index, -1, "end %.3fs is not after start %.3fs", seg.EndTime, seg.StartTime)
	}
	for j, w := range seg.Words {
		if strings.TrimSpace(w.Word) == "" {
			return invalid(index, j, "word is empty")
		}
		if !finite(w.StartTime) || !finite(w.EndTime) {
			return invalid(index, j, "times must be finite")
		}
		if w.EndTime < w.StartTime {
			return invalid(index, j, "end %.3fs is before start %.3fs", w.EndTime, w.StartTime)
		}
		if w.StartTime+epsilon < seg.StartTime || w.EndTime > seg.EndTime+epsilon {
			return invalid(index, j, "span %.3f-%.3fs is outside segment %.3f-%.3fs", w.StartTime, w.EndTime, seg.StartTime, seg.EndTime)
		}
		if j > 0 {
			prev := seg.Words[j-1]
			if w.StartTime+epsilon < prev.StartTime {
				return invalid(index, j, "starts before previous word")
			}
			if prev.EndTime > w.StartTime+epsilon {
				return invalid(index, j, "overlaps previous word")
			}
		}
	}
	return nil
}

func mergeOverlaps(sorted Timeline) Timeline {
	if len(sorted) < 2 {
		return sorted
	}
	merged := make(Timeline, 0, len(sorted))
	merged = append(merged, sorted[0])
	for _, seg := range sorted[1:] {
		last := &merged[len(merged)-1]
		if last.EndTime <= seg.StartTime+epsilon {
			merged = append(merged, seg)
			continue
		}
		last.Text = strings.TrimSpace(last.Text) + " " + strings.TrimSpace(seg.Text)
		last.EndTime = math.Max(last.EndTime, seg.EndTime)
		last.Words = mergeWords(last.Words, seg.Words)
	}
	return merged
}

// mergeWords concatenates word lists, clipping starts so the result stays
// ordered and non-overlapping.
func mergeWords(a, b []Word) []Word {
	if len(b) == 0 {
		return a
	}
	out := append([]Word(nil), a...)
	for _, w := range b {
		if n := len(out); n > 0 && out[n-1].EndTime > w.StartTime {
			w.StartTime = out[n-1].EndTime
			if w.EndTime < w.StartTime {
				w.EndTime = w.StartTime
			}
		}
		out = append(out, w)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
