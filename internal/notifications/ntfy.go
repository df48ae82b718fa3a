package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const userAgent = "captioner/0.1.0"

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, p Payload) error {
	data, ok := formatNtfy(event, p)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func formatNtfy(event Event, p Payload) (payload, bool) {
	switch event {
	case EventCaptionsReady:
		return payload{
			title:   "Captioner - Captions Ready",
			message: fmt.Sprintf("📝 Captions ready: %s (%s segments)", p.str("video"), p.str("segments")),
			tags:    []string{"captioner", "captions", "completed"},
		}, true
	case EventCaptionsFailed:
		return payload{
			title:    "Captioner - Transcription Failed",
			message:  fmt.Sprintf("❌ Transcription failed for %s: %s", p.str("video"), p.str("error")),
			tags:     []string{"captioner", "captions", "error"},
			priority: "high",
		}, true
	case EventRenderStarted:
		return payload{
			title:   "Captioner - Render Started",
			message: fmt.Sprintf("Started rendering: %s", p.str("video")),
			tags:    []string{"captioner", "render", "started"},
		}, true
	case EventRenderCompleted:
		message := fmt.Sprintf("✅ Render complete: %s", p.str("output"))
		if url := p.str("url"); url != "" {
			message += "\n" + url
		}
		return payload{
			title:    "Captioner - Render Complete",
			message:  message,
			tags:     []string{"captioner", "render", "completed"},
			priority: "high",
		}, true
	case EventRenderFailed:
		return payload{
			title:    "Captioner - Render Failed",
			message:  fmt.Sprintf("❌ Render failed (%s): %s", p.str("kind"), p.str("error")),
			tags:     []string{"captioner", "render", "error"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Captioner - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"captioner", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
