package cli

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/raphaelgruber/secretary-go/internal/calendar"
	"github.com/raphaelgruber/secretary-go/internal/config"
)

func TestNewCalendarClientMemorySentinel(t *testing.T) {
	log := slog.New(slog.DiscardHandler)

	cal := newCalendarClient(config.Config{CalendarBaseURL: "memory"}, log)
	assert.IsType(t, &calendar.Fake{}, cal)

	cal = newCalendarClient(config.Config{}, log)
	assert.IsType(t, &calendar.Fake{}, cal)

	cal = newCalendarClient(config.Config{
		CalendarBaseURL: "http://localhost:9090",
		CalendarTimeout: time.Second,
	}, log)
	assert.IsType(t, &calendar.HTTPClient{}, cal)
}
