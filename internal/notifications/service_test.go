package notifications_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"captioner/internal/config"
	"captioner/internal/notifications"
)

func TestNewServiceReturnsNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	svc, closer, err := notifications.NewService(&cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer closer()
	if err := svc.Publish(context.Background(), notifications.EventRenderCompleted, notifications.Payload{"output": "x"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "captions ready",
			event:         notifications.EventCaptionsReady,
			payload:       notifications.Payload{"video": "/uploads/talk.mp4", "segments": 12},
			expectTitle:   "Captioner - Captions Ready",
			expectMessage: "📝 Captions ready: /uploads/talk.mp4 (12 segments)",
			expectTags:    "captioner,captions,completed",
		},
		{
			name:           "render completed",
			event:          notifications.EventRenderCompleted,
			payload:        notifications.Payload{"output": "/renders/output-1.mp4", "url": "s3://bucket/output-1.mp4"},
			expectTitle:    "Captioner - Render Complete",
			expectMessage:  "✅ Render complete: /renders/output-1.mp4\ns3://bucket/output-1.mp4",
			expectTags:     "captioner,render,completed",
			expectPriority: "high",
		},
		{
			name:           "render failed",
			event:          notifications.EventRenderFailed,
			payload:        notifications.Payload{"kind": "RenderFailed", "error": "ffmpeg exited"},
			expectTitle:    "Captioner - Render Failed",
			expectMessage:  "❌ Render failed (RenderFailed): ffmpeg exited",
			expectTags:     "captioner,render,error",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotTitle, gotTags, gotPriority, gotBody string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				gotBody = string(body)
				gotTitle = r.Header.Get("Title")
				gotTags = r.Header.Get("Tags")
				gotPriority = r.Header.Get("Priority")
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			svc, closer, err := notifications.NewService(&cfg)
			if err != nil {
				t.Fatal(err)
			}
			defer closer()

			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if gotTitle != tc.expectTitle || gotBody != tc.expectMessage || gotTags != tc.expectTags || gotPriority != tc.expectPriority {
				t.Fatalf("got title=%q body=%q tags=%q priority=%q", gotTitle, gotBody, gotTags, gotPriority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic disabled", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc, closer, _ := notifications.NewService(&cfg)
	defer closer()
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestKafkaServicePublishesRecord(t *testing.T) {
	producer := mocks.NewSyncProducer(t, producerConfig())
	var captured []byte
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		captured = value
		return nil
	})
	svc := notifications.NewKafkaServiceWithProducer(producer, "captioner.events")
	defer svc.Close()

	err := svc.Publish(context.Background(), notifications.EventRenderStarted, notifications.Payload{"jobId": "job-1", "video": "/uploads/a.mp4"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	var record notifications.Record
	if err := json.Unmarshal(captured, &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.Event != notifications.EventRenderStarted || record.JobID != "job-1" {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestKafkaServiceReportsSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, producerConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	svc := notifications.NewKafkaServiceWithProducer(producer, "captioner.events")
	defer svc.Close()
	if err := svc.Publish(context.Background(), notifications.EventRenderFailed, nil); err == nil {
		t.Fatal("expected send failure")
	}
}

func producerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	return cfg
}
