package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raphaelgruber/secretary-go/internal/intent"
	"github.com/raphaelgruber/secretary-go/internal/models"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		status     models.ConversationStatus
		intent     intent.Intent
		collecting bool
		want       Route
	}{
		{"guard beats everything", models.StatusHuman, intent.Human, true, RouteGuarded},
		{"closed is guarded too", models.StatusClosed, intent.Create, false, RouteGuarded},
		{"handoff beats collection", models.StatusAutomated, intent.Human, true, RouteHandoff},
		{"collection absorbs create", models.StatusAutomated, intent.Create, true, RouteCollect},
		{"collection absorbs other", models.StatusAutomated, intent.Other, true, RouteCollect},
		{"create starts collection", models.StatusAutomated, intent.Create, false, RouteBeginCreate},
		{"cancel starts collection", models.StatusAutomated, intent.Cancel, false, RouteBeginCancel},
		{"reschedule starts collection", models.StatusAutomated, intent.Reschedule, false, RouteBeginReschedule},
		{"query is read-only", models.StatusAutomated, intent.Query, false, RouteQuery},
		{"other goes to the persona", models.StatusAutomated, intent.Other, false, RouteFreeReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.status, tt.intent, tt.collecting))
		})
	}
}
