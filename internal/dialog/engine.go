package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/secretary-go/internal/config"
	"github.com/raphaelgruber/secretary-go/internal/faults"
	"github.com/raphaelgruber/secretary-go/internal/intent"
	"github.com/raphaelgruber/secretary-go/internal/metrics"
	"github.com/raphaelgruber/secretary-go/internal/models"
	"github.com/raphaelgruber/secretary-go/internal/notify"
	"github.com/raphaelgruber/secretary-go/internal/protocol"
	"github.com/raphaelgruber/secretary-go/internal/reception"
	"github.com/raphaelgruber/secretary-go/internal/schedule"
)

// HandoffNotice is the fixed message sent when a conversation is transferred
// to a human. The transfer is terminal for the core.
const HandoffNotice = "I am transferring you to one of our attendants, who will continue from here. Thank you!"

const personaPrompt = `You are the front-desk assistant of a medical clinic.
Answer briefly and warmly. You can book, move and cancel appointments and
answer questions about the clinic. If the patient seems to want any of those,
invite them to say so plainly. Never invent appointment details.`

// Store is the persistence surface the engine needs. *db.Client satisfies it.
type Store interface {
	GetOrCreateContact(ctx context.Context, phone string) (*models.Contact, error)
	GetOrCreateConversation(ctx context.Context, contact surrealmodels.RecordID) (*models.Conversation, error)
	SaveTurnState(ctx context.Context, conv *models.Conversation) error
	SetConversationStatus(ctx context.Context, id surrealmodels.RecordID, status models.ConversationStatus) error
	AppendMessage(ctx context.Context, conv surrealmodels.RecordID, role, content, intentName string) error
	RecentMessages(ctx context.Context, conv surrealmodels.RecordID, limit int) ([]models.Message, error)
	RecordIncident(ctx context.Context, conv surrealmodels.RecordID, detail, raw string) error
}

// classifier is the slice of intent.Classifier the engine needs.
type classifier interface {
	Classify(ctx context.Context, utterance string, history []models.Message) (intent.Intent, error)
}

// replier is the slice of llm.Model the engine needs for free-form turns.
type replier interface {
	Reply(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Store      Store
	Classifier classifier
	Replier    replier
	Collector  *reception.Collector
	Tools      *reception.Tools
	Executor   *schedule.Executor
	Notifier   *notify.Notifier
	Metrics    *metrics.Collector
	Policy     config.Policy
	Logger     *slog.Logger
}

// Engine runs conversation turns to completion, one at a time per
// conversation.
type Engine struct {
	deps Deps

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates a turn engine.
func NewEngine(deps Deps) *Engine {
	return &Engine{deps: deps, locks: make(map[string]*sync.Mutex)}
}

// lockFor serializes turns per channel identity. Contact and conversation
// creation race under the same lock, so one phone never spawns two open
// conversations.
func (e *Engine) lockFor(phone string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[phone]
	if !ok {
		l = &sync.Mutex{}
		e.locks[phone] = l
	}
	return l
}

// Handle processes one inbound message and returns the outbound reply. An
// empty reply with a nil error means the guard dropped the turn.
func (e *Engine) Handle(ctx context.Context, phone, text string) (string, error) {
	l := e.lockFor(phone)
	l.Lock()
	defer l.Unlock()

	started := time.Now()
	turnID := uuid.NewString()
	d := e.deps
	logger := d.Logger.With("turn", turnID, "phone", phone)

	contact, err := d.Store.GetOrCreateContact(ctx, phone)
	if err != nil {
		return "", fmt.Errorf("resolve contact: %w", err)
	}
	conv, err := d.Store.GetOrCreateConversation(ctx, contact.ID)
	if err != nil {
		return "", fmt.Errorf("resolve conversation: %w", err)
	}

	// Guard: once a human owns the conversation the core stays silent. The
	// inbound message is still recorded for the operator.
	if conv.Status != models.StatusAutomated {
		d.Metrics.RecordGuarded()
		if err := d.Store.AppendMessage(ctx, conv.ID, models.RoleUser, text, ""); err != nil {
			logger.Error("persist guarded message", "error", err)
		}
		logger.Info("turn guarded", "status", string(conv.Status))
		return "", nil
	}

	history, err := d.Store.RecentMessages(ctx, conv.ID, 12)
	if err != nil {
		logger.Warn("load transcript context", "error", err)
	}
	if err := d.Store.AppendMessage(ctx, conv.ID, models.RoleUser, text, ""); err != nil {
		return "", fmt.Errorf("persist user message: %w", err)
	}

	classifyStart := time.Now()
	it, err := d.Classifier.Classify(ctx, text, history)
	d.Metrics.RecordTiming(metrics.OpLLMClassify, time.Since(classifyStart))
	if err != nil {
		// Classify already degraded to OTHER; keep the turn alive.
		logger.Warn("intent classification degraded", "error", err)
	}
	d.Metrics.RecordIntent(string(it))

	conv.TurnCount++
	conv.LastIntent = string(it)

	collecting := conv.Collection != nil && conv.Collection.State != models.StateDispatched
	route := Decide(conv.Status, it, collecting)
	logger.Info("turn routed", "intent", string(it), "route", route.String())

	var reply string
	switch route {
	case RouteHandoff:
		reply = e.handoff(ctx, conv, contact, string(it))
	case RouteCollect:
		reply, err = e.collect(ctx, conv, contact, d.Collector.Advance(conv, text))
	case RouteBeginCreate:
		reply, err = e.collect(ctx, conv, contact, d.Collector.Begin(conv, contact, models.PendingCreate, text))
	case RouteBeginCancel:
		reply, err = e.collect(ctx, conv, contact, d.Collector.Begin(conv, contact, models.PendingCancel, text))
	case RouteBeginReschedule:
		reply, err = e.collect(ctx, conv, contact, d.Collector.Begin(conv, contact, models.PendingReschedule, text))
	case RouteQuery:
		reply = e.query(ctx, conv, contact, text)
	default:
		reply = e.freeReply(ctx, text, contact, history)
	}
	if err != nil {
		return "", err
	}

	if reply != "" {
		if err := d.Store.AppendMessage(ctx, conv.ID, models.RoleAssistant, reply, string(it)); err != nil {
			logger.Error("persist assistant reply", "error", err)
		}
	}
	if err := d.Store.SaveTurnState(ctx, conv); err != nil {
		return "", fmt.Errorf("save turn state: %w", err)
	}

	d.Metrics.RecordTiming(metrics.OpTurn, time.Since(started))
	return reply, nil
}

// handoff flips the conversation to human mode and notifies the staff. The
// notice text never varies.
func (e *Engine) handoff(ctx context.Context, conv *models.Conversation, contact *models.Contact, reason string) string {
	d := e.deps
	conv.Status = models.StatusHuman
	conv.Collection = nil
	if err := d.Store.SetConversationStatus(ctx, conv.ID, models.StatusHuman); err != nil {
		d.Logger.Error("set conversation status", "error", err)
	}
	d.Metrics.RecordHandoff()
	d.Notifier.Handoff(notify.Notice{
		ConversationID: fmt.Sprint(conv.ID.ID),
		Phone:          contact.Phone,
		Reason:         reason,
	})
	return HandoffNotice
}

// collect continues or finishes a slot collection; a Ready result dispatches
// the pending operation to the agenda role.
func (e *Engine) collect(ctx context.Context, conv *models.Conversation, contact *models.Contact, res reception.Result) (string, error) {
	if !res.Ready {
		return res.Reply, nil
	}
	return e.dispatch(ctx, conv, contact)
}

// dispatch runs the confirmed pending operation through the cross-role
// protocol and turns the literal outcome into a patient-facing reply.
func (e *Engine) dispatch(ctx context.Context, conv *models.Conversation, contact *models.Contact) (string, error) {
	d := e.deps
	col := conv.Collection
	if col == nil || !col.Complete() {
		return "", faults.Protocolf("dispatch without a complete collection")
	}

	if col.Name != "" && contact.Name == "" {
		if err := d.Tools.RememberName(ctx, contact, col.Name); err != nil {
			d.Logger.Warn("remember contact name", "error", err)
		}
	}
	if col.Category != "" {
		fact := fmt.Sprintf("%s patient", col.Category)
		if err := d.Tools.RememberSummary(ctx, contact, fact); err != nil {
			d.Logger.Warn("remember contact summary", "error", err)
		}
	}

	base := protocol.CorrelationKey(fmt.Sprint(conv.ID.ID), conv.TurnCount)
	cycle := d.Executor.NewCycle()

	switch col.Pending {
	case models.PendingCreate:
		resp, err := e.run(ctx, cycle, conv, protocol.Request{
			Op: protocol.OpCreate,
			Fields: map[string]string{
				protocol.FieldName:     col.Name,
				protocol.FieldCategory: col.Category,
				protocol.FieldDate:     col.Date,
				protocol.FieldTime:     col.Time,
			},
			CorrelationKey: base,
		})
		if err != nil {
			return e.operationFailure(ctx, conv, err), nil
		}
		return e.settle(conv, resp, "Your appointment is booked: %s."), nil

	case models.PendingCancel:
		resp, err := e.run(ctx, cycle, conv, protocol.Request{
			Op: protocol.OpCancel,
			Fields: map[string]string{
				protocol.FieldDate: col.Date,
				protocol.FieldTime: col.Time,
			},
			CorrelationKey: base,
		})
		if err != nil {
			return e.operationFailure(ctx, conv, err), nil
		}
		return e.settle(conv, resp, "Done, %s."), nil

	case models.PendingReschedule:
		return e.reschedule(ctx, cycle, conv, contact, base)

	default:
		return "", faults.Protocolf("unknown pending operation %q", col.Pending)
	}
}

// reschedule is a cancel of the old slot followed by a create of the new
// one, each with its own correlation key.
func (e *Engine) reschedule(ctx context.Context, cycle *schedule.Cycle, conv *models.Conversation, contact *models.Contact, base string) (string, error) {
	col := conv.Collection

	cancelResp, err := e.run(ctx, cycle, conv, protocol.Request{
		Op: protocol.OpCancel,
		Fields: map[string]string{
			protocol.FieldDate: col.OldDate,
			protocol.FieldTime: col.OldTime,
		},
		CorrelationKey: base + ":cancel",
	})
	if err != nil {
		return e.operationFailure(ctx, conv, err), nil
	}
	switch cancelResp.Outcome {
	case protocol.OutcomeOK, protocol.OutcomeDuplicate:
	case protocol.OutcomeRejected:
		// The old slot does not exist; nothing to move.
		conv.Collection = nil
		return fmt.Sprintf("I could not find that appointment: %s. Would you like to book a new one instead?",
			cancelResp.Reason), nil
	default:
		return e.backendApology(conv), nil
	}

	createResp, err := e.run(ctx, cycle, conv, protocol.Request{
		Op: protocol.OpCreate,
		Fields: map[string]string{
			protocol.FieldName:     col.Name,
			protocol.FieldCategory: col.Category,
			protocol.FieldDate:     col.Date,
			protocol.FieldTime:     col.Time,
		},
		CorrelationKey: base + ":create",
	})
	if err != nil {
		return e.operationFailure(ctx, conv, err), nil
	}
	if createResp.Outcome == protocol.OutcomeRejected {
		// The old slot is already gone; reopen the new-slot questions so
		// the patient is not left unbooked silently.
		e.reopenSlot(conv)
		return fmt.Sprintf("I cancelled the old appointment, but could not book the new slot: %s. What other date works for you?",
			createResp.Reason), nil
	}
	return e.settle(conv, createResp, "All moved: %s."), nil
}

// run sends one cross-role request, records both wire messages on the
// transcript, and counts the outcome.
func (e *Engine) run(ctx context.Context, cycle *schedule.Cycle, conv *models.Conversation, req protocol.Request) (protocol.Response, error) {
	d := e.deps

	reqWire, err := protocol.EncodeRequest(req)
	if err != nil {
		return protocol.Response{}, err
	}
	if err := d.Store.AppendMessage(ctx, conv.ID, models.RoleReception, reqWire, ""); err != nil {
		d.Logger.Error("persist cross-role request", "error", err)
	}

	calStart := time.Now()
	resp, err := cycle.Execute(ctx, conv.Contact, req)
	d.Metrics.RecordTiming(metrics.OpCalendar, time.Since(calStart))
	if err != nil {
		return protocol.Response{}, err
	}

	respWire, err := protocol.EncodeResponse(resp)
	if err != nil {
		return protocol.Response{}, err
	}
	if err := d.Store.AppendMessage(ctx, conv.ID, models.RoleAgenda, respWire, ""); err != nil {
		d.Logger.Error("persist cross-role response", "error", err)
	}

	d.Metrics.RecordOperation(string(req.Op), string(resp.Outcome))
	return resp, nil
}

// settle turns a terminal executor response into the reply for the patient.
// Success ends the collection; a rejection reopens the date and time
// questions.
func (e *Engine) settle(conv *models.Conversation, resp protocol.Response, okFormat string) string {
	switch resp.Outcome {
	case protocol.OutcomeOK, protocol.OutcomeDuplicate:
		conv.Collection = nil
		return fmt.Sprintf(okFormat, resp.Result)
	case protocol.OutcomeRejected:
		e.reopenSlot(conv)
		return fmt.Sprintf("I could not do that: %s. What other date works for you?", resp.Reason)
	default:
		return e.backendApology(conv)
	}
}

// reopenSlot clears the slot fields after a rejection so collection resumes
// at the date question.
func (e *Engine) reopenSlot(conv *models.Conversation) {
	col := conv.Collection
	if col == nil {
		return
	}
	col.Date, col.Time = "", ""
	col.ProposedDate, col.ProposedTime = "", ""
	col.State = models.StateAwaitingDate
	col.IdleTurns = 0
}

// backendApology keeps the confirmed collection alive but clears the standing
// proposal, so the patient can simply confirm again once the backend is back.
func (e *Engine) backendApology(conv *models.Conversation) string {
	if col := conv.Collection; col != nil {
		col.ProposedDate, col.ProposedTime = "", ""
		col.State = models.StateAwaitingConfirmation
	}
	return "I am sorry, our scheduling system is not responding right now. " +
		"We can try again in a moment, or you can ask for a human attendant."
}

// operationFailure handles errors the executor could not express as an
// outcome. Protocol violations are persisted as incidents.
func (e *Engine) operationFailure(ctx context.Context, conv *models.Conversation, err error) string {
	d := e.deps
	if errors.Is(err, faults.ErrProtocol) {
		d.Metrics.RecordIncident()
		if recErr := d.Store.RecordIncident(ctx, conv.ID, faults.Reason(err), err.Error()); recErr != nil {
			d.Logger.Error("persist incident", "error", recErr)
		}
		d.Logger.Error("cross-role protocol violation", "error", err)
	} else {
		d.Logger.Error("agenda operation failed", "error", err)
	}
	return e.backendApology(conv)
}

// query answers availability and appointment questions without mutating
// anything.
func (e *Engine) query(ctx context.Context, conv *models.Conversation, contact *models.Contact, text string) string {
	d := e.deps
	lower := strings.ToLower(text)

	if strings.Contains(lower, "my appointment") || strings.Contains(lower, "my booking") {
		listing, err := d.Executor.ListContactAppointments(ctx, contact.ID)
		if err != nil {
			d.Logger.Error("list contact appointments", "error", err)
			return e.backendApology(conv)
		}
		return listing
	}

	if date := reception.ExtractDate(text, d.Policy.Location()); date != "" {
		return e.readOnly(ctx, conv, protocol.Request{
			Op:     protocol.OpCheckAvailability,
			Fields: map[string]string{protocol.FieldDate: date},
		}, "")
	}

	// "What Thursdays do you have?" lists upcoming dates for that weekday.
	if day := reception.ExtractWeekday(text); day != "" {
		return e.readOnly(ctx, conv, protocol.Request{
			Op:     protocol.OpFindNextWeekday,
			Fields: map[string]string{protocol.FieldDay: day},
		}, fmt.Sprintf("The next %ss are ", day))
	}

	if strings.Contains(lower, "agenda") {
		return e.readOnly(ctx, conv, protocol.Request{Op: protocol.OpListSlots},
			"On the agenda:\n")
	}

	return "Which date would you like me to check? Please use DD/MM/YYYY, " +
		"or ask about \"my appointments\"."
}

// readOnly runs one non-mutating agenda operation and phrases its literal
// result, with an optional lead-in.
func (e *Engine) readOnly(ctx context.Context, conv *models.Conversation, req protocol.Request, prefix string) string {
	resp, err := e.run(ctx, e.deps.Executor.NewCycle(), conv, req)
	if err != nil {
		return e.operationFailure(ctx, conv, err)
	}
	if resp.Outcome == protocol.OutcomeRejected {
		return fmt.Sprintf("I could not check that: %s.", resp.Reason)
	}
	if resp.Outcome != protocol.OutcomeOK {
		return e.backendApology(conv)
	}
	if prefix != "" {
		if strings.Contains(resp.Result, "\n") {
			return prefix + resp.Result
		}
		return prefix + resp.Result + "."
	}
	return strings.ToUpper(resp.Result[:1]) + resp.Result[1:] + "."
}

// freeReply hands small talk to the LLM with the receptionist persona. Known
// contact facts travel along so returning patients are not greeted cold.
func (e *Engine) freeReply(ctx context.Context, text string, contact *models.Contact, history []models.Message) string {
	d := e.deps

	var b strings.Builder
	if contact.Name != "" || contact.Summary != "" {
		fmt.Fprintf(&b, "Known patient facts: %s\n\n", strings.TrimSpace(contact.Name+" "+contact.Summary))
	}
	for _, msg := range history {
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	fmt.Fprintf(&b, "user: %s", text)

	start := time.Now()
	reply, err := d.Replier.Reply(ctx, personaPrompt, b.String())
	d.Metrics.RecordTiming(metrics.OpLLMReply, time.Since(start))
	if err != nil {
		d.Logger.Warn("free-form reply degraded", "error", err)
		return "I can help you book, move or cancel appointments at our clinic. How can I help?"
	}
	return strings.TrimSpace(reply)
}
