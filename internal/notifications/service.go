package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"contentfactory/internal/config"
)

const (
	userAgent   = "contentfactory/0.1.0"
	defaultHost = "https://ntfy.sh/"
)

// Event names a pipeline milestone worth telling someone about.
type Event string

const (
	EventJobCompleted    Event = "job_completed"
	EventImportCompleted Event = "import_completed"
	EventError           Event = "error"
	EventTest            Event = "test"
)

// Payload carries event-specific values keyed by name.
type Payload map[string]any

// Service publishes pipeline events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed notifier. When no topic is configured a
// noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	endpoint := resolveEndpoint(cfg.Notifications.NtfyTopic)
	if endpoint == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  endpoint,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		errors:    cfg.Notifications.Errors,
	}
}

// resolveEndpoint accepts either a full URL or a bare ntfy.sh topic name.
func resolveEndpoint(topic string) string {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "http://"), strings.HasPrefix(topic, "https://"):
		return topic
	default:
		return defaultHost + strings.TrimPrefix(topic, "/")
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	errors    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if n == nil {
		return nil
	}
	message, ok := n.format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, message)
}

func (n *ntfyService) format(event Event, data Payload) (payload, bool) {
	switch event {
	case EventJobCompleted:
		if !n.completed {
			return payload{}, false
		}
		title := stringValue(data, "title")
		message := fmt.Sprintf("✅ Video ready: %s", title)
		if channel := stringValue(data, "channel"); channel != "" {
			message = fmt.Sprintf("%s [%s]", message, channel)
		}
		if video := stringValue(data, "video"); video != "" {
			message = fmt.Sprintf("%s\nFile: %s", message, video)
		}
		return payload{
			title:    "Content Factory - Video Ready",
			message:  message,
			tags:     []string{"contentfactory", "render", "completed"},
			priority: "high",
		}, true
	case EventImportCompleted:
		if !n.completed {
			return payload{}, false
		}
		return payload{
			title: "Content Factory - Import Complete",
			message: fmt.Sprintf("📥 Imported %s: %s new, %s duplicates",
				stringValue(data, "source"), stringValue(data, "inserted"), stringValue(data, "duplicates")),
			tags: []string{"contentfactory", "ingest", "completed"},
		}, true
	case EventError:
		if !n.errors {
			return payload{}, false
		}
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := stringValue(data, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if msg := stringValue(data, "error"); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "Content Factory - Error",
			message:  builder.String(),
			tags:     []string{"contentfactory", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Content Factory - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"contentfactory", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func stringValue(data Payload, key string) string {
	value, ok := data[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n.client == nil {
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
