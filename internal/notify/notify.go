// Package notify delivers human-handoff notices to the clinic staff webhook.
// Delivery is fire-and-forget: a failed notice is logged, never surfaced to
// the patient.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Notice describes a conversation that needs human attention.
type Notice struct {
	ConversationID string    `json:"conversation_id"`
	Phone          string    `json:"phone"`
	Reason         string    `json:"reason"`
	At             time.Time `json:"at"`
}

// Notifier posts handoff notices. The zero-value URL disables delivery.
type Notifier struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a notifier pointed at the staff webhook. An empty URL yields a
// notifier that only logs.
func New(url string, logger *slog.Logger) *Notifier {
	return &Notifier{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Handoff sends the notice without blocking the turn. Failures are logged.
func (n *Notifier) Handoff(notice Notice) {
	if notice.At.IsZero() {
		notice.At = time.Now()
	}
	if n.url == "" {
		n.logger.Info("human handoff requested",
			"conversation", notice.ConversationID, "reason", notice.Reason)
		return
	}
	go n.post(notice)
}

func (n *Notifier) post(notice Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), n.httpClient.Timeout)
	defer cancel()

	payload, err := json.Marshal(notice)
	if err != nil {
		n.logger.Error("marshal handoff notice", "error", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		n.logger.Error("create handoff request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("deliver handoff notice",
			"conversation", notice.ConversationID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logger.Error("handoff webhook rejected notice",
			"conversation", notice.ConversationID, "status", resp.Status)
		return
	}
	n.logger.Info("handoff notice delivered", "conversation", notice.ConversationID)
}
