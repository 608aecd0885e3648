package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dealdesk/internal/config"
)

const userAgent = "dealdesk/0.1.0"

// Event identifies a notification milestone.
type Event string

const (
	EventExtractionCompleted Event = "extraction_completed"
	EventExportCompleted     Event = "export_completed"
	EventError               Event = "error"
	EventTest                Event = "test"
)

// Payload carries event fields such as "fileName", "docType", "sheetURL",
// "error", and "context".
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: cfg.NotifyTimeout()},
		enabled: map[Event]bool{
			EventExtractionCompleted: cfg.Notifications.Extraction,
			EventExportCompleted:     cfg.Notifications.Export,
			EventError:               cfg.Notifications.Errors,
			EventTest:                true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
	click    string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	fileName := payloadString(payload, "fileName")
	switch event {
	case EventExtractionCompleted:
		docType := payloadString(payload, "docType")
		if docType == "" {
			docType = "unknown"
		}
		return message{
			title: "dealdesk - Extraction Complete",
			body:  fmt.Sprintf("📄 Extracted %s (%s)", fileName, docType),
			tags:  []string{"dealdesk", "extract", "completed"},
		}, true
	case EventExportCompleted:
		sheetURL := payloadString(payload, "sheetURL")
		body := fmt.Sprintf("📊 Exported %s", fileName)
		if summary := payloadString(payload, "message"); summary != "" {
			body = fmt.Sprintf("%s: %s", body, summary)
		}
		if sheetURL != "" {
			body = fmt.Sprintf("%s\n%s", body, sheetURL)
		}
		return message{
			title: "dealdesk - Export Complete",
			body:  body,
			tags:  []string{"dealdesk", "export", "completed"},
			click: sheetURL,
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payloadString(payload, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if reason := payloadString(payload, "error"); reason != "" {
			builder.WriteString(reason)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "dealdesk - Error",
			body:     builder.String(),
			tags:     []string{"dealdesk", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "dealdesk - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"dealdesk", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case time.Duration:
		return v.Round(time.Second).String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}
	if msg.click != "" {
		req.Header.Set("Click", msg.click)
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
