// Package notify delivers outbound task notifications to configured
// webhooks. Delivery is fire-and-forget: failures are logged by callers and
// never abort the operation that triggered them.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TaskEvent is the payload posted to webhooks when a task finishes.
type TaskEvent struct {
	Event     string `json:"event"` // task_completed or task_failed
	ProjectID string `json:"projectId"`
	TaskID    string `json:"taskId"`
	Title     string `json:"title"`
	AgentID   string `json:"agentId"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WebhookNotifier posts task events to one webhook URL, optionally filtered
// by event type.
type WebhookNotifier struct {
	URL    string
	Events []string // empty means all events
	client *http.Client
}

// NewWebhookNotifier creates a notifier for the given URL and event filter.
func NewWebhookNotifier(url string, eventFilter []string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Events: eventFilter,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the event, applying the event filter. A filtered-out event is
// not an error.
func (w *WebhookNotifier) Send(ev TaskEvent) error {
	if !w.accepts(ev.Event) {
		return nil
	}
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}

	resp, err := w.client.Post(w.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *WebhookNotifier) accepts(event string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}
