// Package calendar talks to the clinic's external calendar backend. The
// orchestration core only needs three operations: list upcoming events,
// create an event, and delete an event. Backend failures surface as external
// service faults so callers can decide between retry and apology.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/raphaelgruber/secretary-go/internal/faults"
)

// Event is a single calendar entry as the backend reports it.
type Event struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// Client is the calendar backend surface the scheduling executor depends on.
type Client interface {
	// ListEvents returns up to max upcoming events, soonest first.
	ListEvents(ctx context.Context, max int) ([]Event, error)
	// CreateEvent books the event and returns it with the backend-assigned ID.
	CreateEvent(ctx context.Context, ev Event) (Event, error)
	// DeleteEvent removes the event with the given backend ID.
	DeleteEvent(ctx context.Context, id string) error
}

// HTTPClient implements Client against the clinic's calendar HTTP API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a calendar client with a bounded request timeout.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return faults.Externalf("calendar: marshal request: %v", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return faults.Externalf("calendar: create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return faults.Externalf("calendar: %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return faults.Externalf("calendar: read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return faults.Externalf("calendar: %s %s: %s - %s", method, path, resp.Status, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return faults.Externalf("calendar: unmarshal response: %v", err)
		}
	}
	return nil
}

func (c *HTTPClient) ListEvents(ctx context.Context, max int) ([]Event, error) {
	var events []Event
	path := fmt.Sprintf("/events?limit=%d", max)
	if err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *HTTPClient) CreateEvent(ctx context.Context, ev Event) (Event, error) {
	var created Event
	if err := c.do(ctx, http.MethodPost, "/events", ev, &created); err != nil {
		return Event{}, err
	}
	if created.ID == "" {
		return Event{}, faults.Externalf("calendar: create returned no event id")
	}
	return created, nil
}

func (c *HTTPClient) DeleteEvent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/events/"+id, nil, nil)
}
