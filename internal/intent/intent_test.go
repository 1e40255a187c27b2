package intent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/secretary-go/internal/models"
)

type stubModel struct {
	answer string
	err    error
	prompt string
}

func (s *stubModel) Classify(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.prompt = userPrompt
	return s.answer, s.err
}

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want Intent
	}{
		{"CREATE", Create},
		{"cancel", Cancel},
		{"  Reschedule\n", Reschedule},
		{"HUMAN", Human},
		{"QUERY", Query},
		{"OTHER", Other},
		{"CREATE an appointment", Other},
		{"", Other},
		{"AGENDAR", Other},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Parse(tt.raw), "raw %q", tt.raw)
	}
}

func TestClassifyWindowsHistoryAndSkipsAuditEntries(t *testing.T) {
	stub := &stubModel{answer: "CREATE"}
	c := NewClassifier(stub, 2, slog.New(slog.DiscardHandler))

	history := []models.Message{
		{Role: models.RoleUser, Content: "old message outside the window"},
		{Role: models.RoleReception, Content: "[AGENDA_REQUEST] {...}"},
		{Role: models.RoleAssistant, Content: "What date works for you?"},
	}

	it, err := c.Classify(context.Background(), "book me in please", history)
	require.NoError(t, err)
	assert.Equal(t, Create, it)

	assert.NotContains(t, stub.prompt, "old message outside the window")
	assert.NotContains(t, stub.prompt, "AGENDA_REQUEST")
	assert.Contains(t, stub.prompt, "What date works for you?")
	assert.True(t, strings.HasSuffix(stub.prompt, "book me in please"))
}

func TestClassifyErrorDefaultsToOther(t *testing.T) {
	stub := &stubModel{err: errors.New("model unavailable")}
	c := NewClassifier(stub, 0, slog.New(slog.DiscardHandler))

	it, err := c.Classify(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, Other, it)
}
