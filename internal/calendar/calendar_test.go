package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/secretary-go/internal/faults"
)

func TestHTTPClientCreateAndDelete(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/events":
			var ev Event
			require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
			ev.ID = "evt-1"
			json.NewEncoder(w).Encode(ev)
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "secret", 5*time.Second)

	start := time.Date(2026, 9, 3, 9, 30, 0, 0, time.UTC)
	created, err := client.CreateEvent(context.Background(), Event{
		Subject: "Maria Souza (insurance)",
		StartAt: start,
		EndAt:   start.Add(30 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", created.ID)

	require.NoError(t, client.DeleteEvent(context.Background(), created.ID))
	assert.Equal(t, "/events/evt-1", deleted)
}

func TestHTTPClientServerErrorIsExternalFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", time.Second)
	_, err := client.ListEvents(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrExternalService))
}

func TestFakeInjectedFailureResets(t *testing.T) {
	fake := NewFake()
	fake.FailCreate = true

	_, err := fake.CreateEvent(context.Background(), Event{Subject: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrExternalService))

	created, err := fake.CreateEvent(context.Background(), Event{Subject: "x"})
	require.NoError(t, err)
	assert.True(t, fake.Has(created.ID))
}
