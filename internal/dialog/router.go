// Package dialog runs one conversation turn end to end: guard, intent
// classification, routing, slot collection or execution, and response
// dispatch. Turns within one conversation are serialized; the conversation
// record is the single source of truth for routing decisions.
package dialog

import (
	"github.com/raphaelgruber/secretary-go/internal/intent"
	"github.com/raphaelgruber/secretary-go/internal/models"
)

// Route names the component that owns the rest of the turn.
type Route int

const (
	// RouteGuarded drops the turn: a human owns the conversation.
	RouteGuarded Route = iota
	// RouteHandoff transfers the conversation to a human attendant.
	RouteHandoff
	// RouteCollect continues an in-flight slot collection.
	RouteCollect
	// RouteBeginCreate, RouteBeginCancel and RouteBeginReschedule start a
	// fresh collection for the named operation.
	RouteBeginCreate
	RouteBeginCancel
	RouteBeginReschedule
	// RouteQuery answers availability and appointment questions read-only.
	RouteQuery
	// RouteFreeReply hands everything else to the LLM receptionist persona.
	RouteFreeReply
)

func (r Route) String() string {
	switch r {
	case RouteGuarded:
		return "guarded"
	case RouteHandoff:
		return "handoff"
	case RouteCollect:
		return "collect"
	case RouteBeginCreate:
		return "begin-create"
	case RouteBeginCancel:
		return "begin-cancel"
	case RouteBeginReschedule:
		return "begin-reschedule"
	case RouteQuery:
		return "query"
	case RouteFreeReply:
		return "free-reply"
	default:
		return "unknown"
	}
}

// Decide picks the route for a turn. A handoff request wins over everything
// except the guard; an active collection absorbs every other intent so a
// half-answered question is not mistaken for a new request.
func Decide(status models.ConversationStatus, it intent.Intent, collecting bool) Route {
	if status != models.StatusAutomated {
		return RouteGuarded
	}
	if it == intent.Human {
		return RouteHandoff
	}
	if collecting {
		return RouteCollect
	}
	switch it {
	case intent.Create:
		return RouteBeginCreate
	case intent.Cancel:
		return RouteBeginCancel
	case intent.Reschedule:
		return RouteBeginReschedule
	case intent.Query:
		return RouteQuery
	default:
		return RouteFreeReply
	}
}
