package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"captioner/internal/captions"
	"captioner/internal/logging"
	"captioner/internal/media/audio"
	"captioner/internal/notifications"
	"captioner/internal/services"
)

type fakeExtractor struct {
	err      error
	written  string
	videoArg string
}

func (f *fakeExtractor) Extract(_ context.Context, videoPath, audioPath string) error {
	f.videoArg = videoPath
	if err := os.WriteFile(audioPath, []byte("audio"), 0o644); err != nil {
		return err
	}
	f.written = audioPath
	return f.err
}

type fakeTranscriber struct {
	validateErr error
	err         error
	timeline    captions.Timeline
	gotPath     string
}

func (f *fakeTranscriber) Name() string              { return "fake" }
func (f *fakeTranscriber) AudioFormat() audio.Format { return audio.FormatFLAC }
func (f *fakeTranscriber) Validate() error           { return f.validateErr }

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) (captions.Timeline, error) {
	f.gotPath = audioPath
	if _, err := os.Stat(audioPath); err != nil {
		return nil, err
	}
	return f.timeline, f.err
}

func newCaptionFixture(t *testing.T) (string, *fakeExtractor, *fakeTranscriber, *recordingNotifier, *CaptionJob) {
	t.Helper()
	video := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(video, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	extractor := &fakeExtractor{}
	transcriber := &fakeTranscriber{timeline: sampleCaptions()}
	notifier := &recordingNotifier{}
	job := NewCaptionJob(extractor, transcriber, notifier, "ffmpeg", logging.NewNop())
	job.WithPrecheck(func() error { return nil })
	return video, extractor, transcriber, notifier, job
}

func TestCaptionJobSuccessRemovesAudio(t *testing.T) {
	video, extractor, transcriber, notifier, job := newCaptionFixture(t)
	timeline, err := job.Run(context.Background(), CaptionRequest{JobID: "c1", VideoPath: video, PublicPath: "/uploads/clip.mp4"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(timeline) != 2 || timeline[0].Text != "Hello world" {
		t.Fatalf("unexpected timeline %+v", timeline)
	}
	if extractor.written != video+".flac" || transcriber.gotPath != extractor.written {
		t.Fatalf("audio path mismatch: extracted %q transcribed %q", extractor.written, transcriber.gotPath)
	}
	if _, err := os.Stat(extractor.written); !os.IsNotExist(err) {
		t.Fatal("temporary audio must be removed")
	}
	if !slices.Equal(notifier.events, []notifications.Event{notifications.EventCaptionsReady}) {
		t.Fatalf("unexpected events %v", notifier.events)
	}
}

func TestCaptionJobEmptyTranscript(t *testing.T) {
	video, _, transcriber, _, job := newCaptionFixture(t)
	transcriber.timeline = captions.Timeline{}
	timeline, err := job.Run(context.Background(), CaptionRequest{VideoPath: video})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if timeline == nil || len(timeline) != 0 {
		t.Fatalf("expected empty non-nil timeline, got %#v", timeline)
	}
}

func TestCaptionJobFailureKinds(t *testing.T) {
	cases := []struct {
		name      string
		configure func(*fakeExtractor, *fakeTranscriber, *CaptionJob)
		kind      Kind
		extracted bool
	}{
		{
			name: "missing ffmpeg",
			configure: func(_ *fakeExtractor, _ *fakeTranscriber, job *CaptionJob) {
				job.WithPrecheck(func() error { return services.Wrap(services.ErrConfiguration, "captions", "deps", "ffmpeg missing", nil) })
			},
			kind: KindToolMissing,
		},
		{
			name: "not configured",
			configure: func(_ *fakeExtractor, tr *fakeTranscriber, _ *CaptionJob) {
				tr.validateErr = errors.New("GOOGLE_CLOUD_PROJECT_ID is not configured")
			},
			kind: KindNotConfigured,
		},
		{
			name: "extraction failed",
			configure: func(ex *fakeExtractor, _ *fakeTranscriber, _ *CaptionJob) {
				ex.err = audio.ErrExtractionFailed
			},
			kind:      KindExtractionFailed,
			extracted: true,
		},
		{
			name: "extractor binary missing",
			configure: func(ex *fakeExtractor, _ *fakeTranscriber, _ *CaptionJob) {
				ex.err = services.Wrap(services.ErrConfiguration, "extract", "lookup", "ffmpeg not found", nil)
			},
			kind:      KindToolMissing,
			extracted: true,
		},
		{
			name: "transcription failed",
			configure: func(_ *fakeExtractor, tr *fakeTranscriber, _ *CaptionJob) {
				tr.err = errors.New("recognizer returned 503")
			},
			kind:      KindTranscriptionFailed,
			extracted: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			video, extractor, transcriber, notifier, job := newCaptionFixture(t)
			tc.configure(extractor, transcriber, job)
			_, err := job.Run(context.Background(), CaptionRequest{JobID: "c", VideoPath: video})
			if KindOf(err) != tc.kind {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
			if tc.extracted != (extractor.written != "") {
				t.Fatalf("extraction ran = %v, want %v", extractor.written != "", tc.extracted)
			}
			if _, statErr := os.Stat(video + ".flac"); !os.IsNotExist(statErr) {
				t.Fatal("temporary audio must be removed on failure")
			}
			if !slices.Equal(notifier.events, []notifications.Event{notifications.EventCaptionsFailed}) {
				t.Fatalf("unexpected events %v", notifier.events)
			}
		})
	}
}

func TestCaptionJobMissingVideo(t *testing.T) {
	_, extractor, _, _, job := newCaptionFixture(t)
	_, err := job.Run(context.Background(), CaptionRequest{})
	if KindOf(err) != KindMissingParameters {
		t.Fatalf("expected MissingParameters, got %v", err)
	}
	if extractor.written != "" {
		t.Fatal("extraction must not run without a video")
	}
}

func TestCaptionJobCanceled(t *testing.T) {
	video, _, transcriber, _, job := newCaptionFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	transcriber.err = context.Canceled
	_, err := job.Run(ctx, CaptionRequest{VideoPath: video})
	if KindOf(err) != KindCanceled {
		t.Fatalf("expected Canceled, got %v", err)
	}
}

func TestCaptionJobPreflight(t *testing.T) {
	_, extractor, transcriber, _, job := newCaptionFixture(t)
	if err := job.Preflight(); err != nil {
		t.Fatalf("Preflight: %v", err)
	}
	transcriber.validateErr = errors.New("GOOGLE_CLOUD_BUCKET_NAME is not configured")
	if err := job.Preflight(); KindOf(err) != KindNotConfigured {
		t.Fatalf("expected NotConfigured, got %v", err)
	}
	if extractor.written != "" {
		t.Fatal("preflight must not extract")
	}
}
