package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"captioner/internal/config"
)

// Event names a job lifecycle milestone.
type Event string

const (
	EventCaptionsReady   Event = "captions_ready"
	EventCaptionsFailed  Event = "captions_failed"
	EventRenderStarted   Event = "render_started"
	EventRenderCompleted Event = "render_completed"
	EventRenderFailed    Event = "render_failed"
	EventTest            Event = "test"
)

// Payload carries event fields. Well-known keys are jobId, video, output,
// segments, kind, error, and url.
type Payload map[string]any

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds notifiers for every configured transport. The returned
// closer releases transport resources.
func NewService(cfg *config.Config) (Service, func() error, error) {
	if cfg == nil {
		return noopService{}, func() error { return nil }, nil
	}
	n := cfg.Notifications
	timeout := time.Duration(n.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var services []Service
	closers := []func() error{}
	if topic := strings.TrimSpace(n.NtfyTopic); topic != "" {
		services = append(services, &ntfyService{endpoint: topic, client: &http.Client{Timeout: timeout}})
	}
	if len(n.KafkaBrokers) > 0 {
		kafka, err := NewKafkaService(n.KafkaBrokers, n.KafkaTopic, timeout)
		if err != nil {
			return nil, nil, err
		}
		services = append(services, kafka)
		closers = append(closers, kafka.Close)
	}
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}
	switch len(services) {
	case 0:
		return noopService{}, closeAll, nil
	case 1:
		return services[0], closeAll, nil
	default:
		return &multiService{services: services}, closeAll, nil
	}
}

type multiService struct {
	services []Service
}

// Publish delivers to every transport and joins their errors.
func (m *multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range m.services {
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// NewNoop returns a Service that drops every event.
func NewNoop() Service { return noopService{} }
