package captions_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"captioner/internal/captions"
)

func sampleTimeline() captions.Timeline {
	return captions.Timeline{
		{
			Text:      "Hello world",
			StartTime: 0.5,
			EndTime:   1.75,
			Words: []captions.Word{
				{Word: "Hello", StartTime: 0.5, EndTime: 1.0},
				{Word: "world", StartTime: 1.1, EndTime: 1.75},
			},
		},
		{Text: "Second line", StartTime: 2, EndTime: 3.25},
	}
}

func TestValidateAcceptsWellFormedTimeline(t *testing.T) {
	in := sampleTimeline()
	out, err := in.Validate(captions.PolicyReject)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("expected unchanged copy, got %+v", out)
	}
	out[0].Words[0].Word = "mutated"
	if in[0].Words[0].Word != "Hello" {
		t.Fatal("Validate must return a deep copy")
	}
}

func TestValidateRejectsMalformedSegments(t *testing.T) {
	cases := []struct {
		name string
		seg  captions.Segment
	}{
		{"empty text", captions.Segment{Text: "  ", StartTime: 0, EndTime: 1}},
		{"end before start", captions.Segment{Text: "a", StartTime: 2, EndTime: 1}},
		{"zero length", captions.Segment{Text: "a", StartTime: 1, EndTime: 1}},
		{"negative start", captions.Segment{Text: "a", StartTime: -1, EndTime: 1}},
		{"nan", captions.Segment{Text: "a", StartTime: math.NaN(), EndTime: 1}},
		{"word outside", captions.Segment{Text: "a b", StartTime: 0, EndTime: 1, Words: []captions.Word{{Word: "a", StartTime: 0, EndTime: 1.5}}}},
		{"words unordered", captions.Segment{Text: "a b", StartTime: 0, EndTime: 2, Words: []captions.Word{{Word: "b", StartTime: 1, EndTime: 1.5}, {Word: "a", StartTime: 0, EndTime: 0.5}}}},
		{"words overlap", captions.Segment{Text: "a b", StartTime: 0, EndTime: 2, Words: []captions.Word{{Word: "a", StartTime: 0, EndTime: 1.2}, {Word: "b", StartTime: 1, EndTime: 1.5}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := captions.Timeline{tc.seg}.Validate(captions.PolicyReject)
			if !errors.Is(err, captions.ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			var verr *captions.ValidationError
			if !errors.As(err, &verr) || verr.Segment != 0 {
				t.Fatalf("expected ValidationError for segment 0, got %v", err)
			}
		})
	}
}

func TestValidateRejectsUnorderedSegments(t *testing.T) {
	timeline := captions.Timeline{
		{Text: "later", StartTime: 5, EndTime: 6},
		{Text: "earlier", StartTime: 1, EndTime: 2},
	}
	_, err := timeline.Validate(captions.PolicyReject)
	if !errors.Is(err, captions.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidateOverlapPolicies(t *testing.T) {
	timeline := captions.Timeline{
		{Text: "one", StartTime: 0, EndTime: 2, Words: []captions.Word{{Word: "one", StartTime: 0, EndTime: 2}}},
		{Text: "two", StartTime: 1.5, EndTime: 3, Words: []captions.Word{{Word: "two", StartTime: 1.5, EndTime: 3}}},
		{Text: "three", StartTime: 4, EndTime: 5},
	}

	if _, err := timeline.Validate(captions.PolicyReject); !errors.Is(err, captions.ErrOverlap) {
		t.Fatalf("expected ErrOverlap under reject, got %v", err)
	}

	merged, err := timeline.Validate(captions.PolicyMerge)
	if err != nil {
		t.Fatalf("merge returned error: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 segments after merge, got %d", len(merged))
	}
	first := merged[0]
	if first.Text != "one two" || first.StartTime != 0 || first.EndTime != 3 {
		t.Fatalf("unexpected merged segment: %+v", first)
	}
	if len(first.Words) != 2 || first.Words[1].StartTime != 2 {
		t.Fatalf("expected clipped second word, got %+v", first.Words)
	}
	if _, err := merged.Validate(captions.PolicyReject); err != nil {
		t.Fatalf("merged timeline should pass strict validation: %v", err)
	}
}

func TestValidateTouchingSegmentsAreNotOverlaps(t *testing.T) {
	timeline := captions.Timeline{
		{Text: "a", StartTime: 0, EndTime: 1},
		{Text: "b", StartTime: 1, EndTime: 2},
	}
	if _, err := timeline.Validate(captions.PolicyReject); err != nil {
		t.Fatalf("touching segments should validate: %v", err)
	}
}

func TestParseOverlapPolicy(t *testing.T) {
	if p, err := captions.ParseOverlapPolicy(""); err != nil || p != captions.PolicyReject {
		t.Fatalf("expected reject default, got %q %v", p, err)
	}
	if p, err := captions.ParseOverlapPolicy(" Merge "); err != nil || p != captions.PolicyMerge {
		t.Fatalf("expected merge, got %q %v", p, err)
	}
	if _, err := captions.ParseOverlapPolicy("drop"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestNormalizeCleansTextAndRoundsTimes(t *testing.T) {
	in := captions.Timeline{{
		Text:      "  Café   au   lait ",
		StartTime: 0.12349,
		EndTime:   1.99951,
		Words: []captions.Word{
			{Word: " Café", StartTime: 0.12349, EndTime: 0.5},
			{Word: "  ", StartTime: 0.5, EndTime: 0.6},
		},
	}}
	out := in.Normalize()
	if out[0].Text != "Café au lait" {
		t.Fatalf("unexpected text %q", out[0].Text)
	}
	if out[0].StartTime != 0.123 || out[0].EndTime != 2.0 {
		t.Fatalf("unexpected times %v-%v", out[0].StartTime, out[0].EndTime)
	}
	if len(out[0].Words) != 1 || out[0].Words[0].Word != "Café" {
		t.Fatalf("unexpected words %+v", out[0].Words)
	}
	if in[0].Text != "  Café   au   lait " {
		t.Fatal("Normalize must not modify the receiver")
	}
}

func TestJSONRoundTripPreservesTimeline(t *testing.T) {
	in := sampleTimeline()
	var buf bytes.Buffer
	if err := captions.Encode(&buf, in); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := captions.Decode(&buf, captions.FormatJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(sampleTimeline()[:1])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"text"`, `"startTime"`, `"endTime"`, `"words"`, `"word"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("expected %s in %s", key, data)
		}
	}
	data, _ = json.Marshal(sampleTimeline()[1:])
	if strings.Contains(string(data), "words") {
		t.Fatalf("expected words omitted when empty, got %s", data)
	}
}

func TestDecodeEnvelopeAndYAML(t *testing.T) {
	obj := `{"success": true, "captions": [{"text": "hi", "startTime": 0, "endTime": 1}]}`
	timeline, err := captions.Decode(strings.NewReader(obj), captions.FormatJSON)
	if err != nil || len(timeline) != 1 || timeline[0].Text != "hi" {
		t.Fatalf("unexpected envelope decode: %+v %v", timeline, err)
	}

	yamlDoc := `
- text: hello there
  startTime: 0.5
  endTime: 1.5
  words:
    - word: hello
      startTime: 0.5
      endTime: 1.0
`
	timeline, err = captions.Decode(strings.NewReader(yamlDoc), captions.FormatYAML)
	if err != nil {
		t.Fatalf("yaml decode: %v", err)
	}
	if len(timeline) != 1 || len(timeline[0].Words) != 1 || timeline[0].Words[0].EndTime != 1.0 {
		t.Fatalf("unexpected yaml timeline: %+v", timeline)
	}

	if _, err := captions.Decode(strings.NewReader("  "), captions.FormatJSON); !errors.Is(err, captions.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for empty document, got %v", err)
	}
}

func TestDecodeFileUsesExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captions.yml")
	if err := os.WriteFile(path, []byte("captions:\n  - text: a\n    startTime: 0\n    endTime: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	timeline, err := captions.DecodeFile(path)
	if err != nil || len(timeline) != 1 {
		t.Fatalf("DecodeFile: %+v %v", timeline, err)
	}
}

func TestTimelineAccessors(t *testing.T) {
	timeline := sampleTimeline()
	if timeline.End() != 3.25 {
		t.Fatalf("unexpected end %v", timeline.End())
	}
	if timeline.WordCount() != 2 {
		t.Fatalf("unexpected word count %d", timeline.WordCount())
	}
	if seg, ok := timeline.At(2.5); !ok || seg.Text != "Second line" {
		t.Fatalf("unexpected At result %+v %v", seg, ok)
	}
	if _, ok := timeline.At(1.9); ok {
		t.Fatal("expected gap to have no active segment")
	}
}
