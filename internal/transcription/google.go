package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
	"google.golang.org/api/speech/v1"
	"google.golang.org/api/storage/v1"

	"captioner/internal/captions"
	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/media/audio"
	"captioner/internal/services"
)

// GoogleConfig configures the Cloud Speech-to-Text backend.
type GoogleConfig struct {
	ProjectID       string
	Bucket          string
	CredentialsFile string
	ObjectPrefix    string
	Language        string
	PollInterval    time.Duration
	// Timeout bounds the long-running recognition; zero means no bound.
	Timeout       time.Duration
	OverlapPolicy captions.OverlapPolicy
}

const (
	defaultPollInterval = 2 * time.Second
	cleanupTimeout      = 30 * time.Second
)

// SpeechClient is the slice of the Google APIs the backend needs.
type SpeechClient interface {
	Upload(ctx context.Context, bucket, object string, media io.Reader) error
	Delete(ctx context.Context, bucket, object string) error
	Recognize(ctx context.Context, req *speech.LongRunningRecognizeRequest) (*speech.Operation, error)
	Operation(ctx context.Context, name string) (*speech.Operation, error)
}

// ClientFactory opens a speech client authenticated with the credentials file.
type ClientFactory func(ctx context.Context, credentialsFile string) (SpeechClient, error)

// Google transcribes audio with Cloud Speech-to-Text.
type Google struct {
	cfg       GoogleConfig
	logger    *slog.Logger
	newClient ClientFactory
	newObject func() string
}

// NewGoogle builds the Google backend. Configuration is checked by Validate
// and again at the start of every Transcribe call.
func NewGoogle(cfg GoogleConfig, logger *slog.Logger) *Google {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.OverlapPolicy == "" {
		cfg.OverlapPolicy = captions.PolicyReject
	}
	return &Google{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "transcription.google"),
		newClient: newGoogleClient,
		newObject: uuid.NewString,
	}
}

// WithClientFactory replaces the Google API client (for testing).
func (g *Google) WithClientFactory(factory ClientFactory) {
	if factory != nil {
		g.newClient = factory
	}
}

// Name implements Transcriber.
func (g *Google) Name() string { return "google" }

// AudioFormat implements Transcriber.
func (g *Google) AudioFormat() audio.Format { return audio.FormatFLAC }

// Validate reports every missing setting, each with its own message.
func (g *Google) Validate() error {
	var errs []error
	projectID := strings.TrimSpace(g.cfg.ProjectID)
	if projectID == "" || projectID == config.PlaceholderProjectID {
		errs = append(errs, services.Wrap(services.ErrConfiguration, stageName, "validate", "GOOGLE_CLOUD_PROJECT_ID is not configured", nil))
	}
	if strings.TrimSpace(g.cfg.Bucket) == "" {
		errs = append(errs, services.Wrap(services.ErrConfiguration, stageName, "validate", "GOOGLE_CLOUD_BUCKET_NAME is not configured", nil))
	}
	if credentials := strings.TrimSpace(g.cfg.CredentialsFile); credentials == "" {
		errs = append(errs, services.Wrap(services.ErrConfiguration, stageName, "validate", "credentials file is not configured", nil))
	} else if info, err := os.Stat(credentials); err != nil || info.IsDir() {
		errs = append(errs, services.Wrap(services.ErrConfiguration, stageName, "validate", fmt.Sprintf("credentials file %s not found", credentials), nil))
	}
	if _, err := language.Parse(g.cfg.Language); err != nil {
		errs = append(errs, services.Wrap(services.ErrConfiguration, stageName, "validate", fmt.Sprintf("language %q is not a BCP-47 tag", g.cfg.Language), nil))
	}
	return errors.Join(errs...)
}

// Transcribe stages audioPath in Cloud Storage, runs a long-running
// recognition with word offsets, and maps the results to a timeline.
func (g *Google) Transcribe(ctx context.Context, audioPath string) (captions.Timeline, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, g.logger)

	file, err := os.Open(audioPath)
	if err != nil {
		return nil, failed("open audio", audioPath, err)
	}
	defer file.Close()

	client, err := g.newClient(ctx, g.cfg.CredentialsFile)
	if err != nil {
		return nil, failed("connect", "create speech client", err)
	}

	object := path.Join(strings.Trim(g.cfg.ObjectPrefix, "/"), g.newObject()+"."+string(audio.FormatForPath(audioPath)))
	if err := client.Upload(ctx, g.cfg.Bucket, object, file); err != nil {
		return nil, failed("upload audio", fmt.Sprintf("gs://%s/%s", g.cfg.Bucket, object), err)
	}
	defer g.deleteObject(ctx, client, object)
	logger.Debug("audio staged", logging.String("object", object))

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	op, err := client.Recognize(ctx, g.recognizeRequest(object, audio.FormatForPath(audioPath)))
	if err != nil {
		return nil, g.contextOr(ctx, failed("recognize", "start long-running recognition", err))
	}
	logger.Info("recognition started", logging.String("operation", op.Name))

	op, err = g.wait(ctx, client, op)
	if err != nil {
		return nil, err
	}

	var response speech.LongRunningRecognizeResponse
	if len(op.Response) > 0 {
		if err := json.Unmarshal(op.Response, &response); err != nil {
			return nil, failed("decode response", "malformed recognition response", err)
		}
	}
	timeline, err := timelineFromResults(response.Results)
	if err != nil {
		return nil, failed("decode response", "malformed word offsets", err)
	}
	result, err := finalize(timeline, g.cfg.OverlapPolicy)
	if err != nil {
		return nil, err
	}
	logger.Info("recognition complete", logging.Int("segments", len(result)), logging.Int("words", result.WordCount()))
	return result, nil
}

func (g *Google) recognizeRequest(object string, format audio.Format) *speech.LongRunningRecognizeRequest {
	encoding := "FLAC"
	switch format {
	case audio.FormatWAV:
		encoding = "LINEAR16"
	case audio.FormatMP3:
		encoding = "MP3"
	}
	return &speech.LongRunningRecognizeRequest{
		Audio: &speech.RecognitionAudio{Uri: fmt.Sprintf("gs://%s/%s", g.cfg.Bucket, object)},
		Config: &speech.RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            audio.SampleRateHertz,
			AudioChannelCount:          1,
			LanguageCode:               g.cfg.Language,
			EnableWordTimeOffsets:      true,
			EnableAutomaticPunctuation: true,
		},
	}
}

func (g *Google) wait(ctx context.Context, client SpeechClient, op *speech.Operation) (*speech.Operation, error) {
	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if op.Done {
			if op.Error != nil {
				return nil, failed("recognize", fmt.Sprintf("operation %s failed: code %d: %s", op.Name, op.Error.Code, op.Error.Message), nil)
			}
			return op, nil
		}
		select {
		case <-ctx.Done():
			return nil, g.contextOr(ctx, nil)
		case <-ticker.C:
		}
		next, err := client.Operation(ctx, op.Name)
		if err != nil {
			return nil, g.contextOr(ctx, failed("poll", op.Name, err))
		}
		op = next
	}
}

func (g *Google) contextOr(ctx context.Context, err error) error {
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, stageName, "recognize", "recognition did not finish in time", ctxErr)
	case ctxErr != nil:
		return fmt.Errorf("transcribe: %w", ctxErr)
	default:
		return err
	}
}

func (g *Google) deleteObject(ctx context.Context, client SpeechClient, object string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := client.Delete(cleanupCtx, g.cfg.Bucket, object); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, g.logger), "staged audio cleanup failed", "storage_cleanup",
			logging.String("object", object),
			logging.Error(err),
			logging.String(logging.FieldImpact, "audio object remains in the bucket"),
			logging.String(logging.FieldErrorHint, "delete it manually or add a bucket lifecycle rule"),
		)
	}
}

// timelineFromResults maps each result's top alternative to one segment.
// Results without words span from the previous result end to their own end.
func timelineFromResults(results []*speech.SpeechRecognitionResult) (captions.Timeline, error) {
	timeline := captions.Timeline{}
	var cursor float64
	for _, result := range results {
		if result == nil || len(result.Alternatives) == 0 || result.Alternatives[0] == nil {
			continue
		}
		alt := result.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		resultEnd, err := parseOffset(result.ResultEndTime)
		if err != nil {
			return nil, err
		}
		if text == "" {
			if resultEnd > cursor {
				cursor = resultEnd
			}
			continue
		}
		seg := captions.Segment{Text: text, StartTime: cursor, EndTime: resultEnd}
		for _, info := range alt.Words {
			if info == nil || strings.TrimSpace(info.Word) == "" {
				continue
			}
			start, err := parseOffset(info.StartTime)
			if err != nil {
				return nil, err
			}
			end, err := parseOffset(info.EndTime)
			if err != nil {
				return nil, err
			}
			seg.Words = append(seg.Words, captions.Word{Word: info.Word, StartTime: start, EndTime: end})
		}
		if len(seg.Words) > 0 {
			seg.StartTime = seg.Words[0].StartTime
			if last := seg.Words[len(seg.Words)-1].EndTime; last > seg.EndTime {
				seg.EndTime = last
			}
		}
		if seg.EndTime <= seg.StartTime {
			continue
		}
		timeline = append(timeline, seg)
		cursor = seg.EndTime
	}
	return timeline, nil
}

// parseOffset reads protobuf Duration JSON ("1.500s").
func parseOffset(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse offset %q: %w", value, err)
	}
	return d.Seconds(), nil
}

type googleClient struct {
	speech  *speech.Service
	storage *storage.Service
}

func newGoogleClient(ctx context.Context, credentialsFile string) (SpeechClient, error) {
	opts := []option.ClientOption{option.WithCredentialsFile(credentialsFile)}
	speechSvc, err := speech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	storageSvc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &googleClient{speech: speechSvc, storage: storageSvc}, nil
}

func (c *googleClient) Upload(ctx context.Context, bucket, object string, media io.Reader) error {
	_, err := c.storage.Objects.Insert(bucket, &storage.Object{Name: object}).Media(media).Context(ctx).Do()
	return err
}

func (c *googleClient) Delete(ctx context.Context, bucket, object string) error {
	return c.storage.Objects.Delete(bucket, object).Context(ctx).Do()
}

func (c *googleClient) Recognize(ctx context.Context, req *speech.LongRunningRecognizeRequest) (*speech.Operation, error) {
	return c.speech.Speech.Longrunningrecognize(req).Context(ctx).Do()
}

func (c *googleClient) Operation(ctx context.Context, name string) (*speech.Operation, error) {
	return c.speech.Operations.Get(name).Context(ctx).Do()
}
