// Package protocol defines the typed cross-role message contract between the
// reception role and the agenda role: a tagged request carrying one calendar
// operation with its fields, and a tagged response carrying the literal
// outcome. Malformed instances are rejected, never interpreted loosely.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/secretary-go/internal/faults"
)

// Wire tags distinguishing the two message kinds.
const (
	RequestTag  = "[AGENDA_REQUEST]"
	ResponseTag = "[AGENDA_RESPONSE]"
)

// Operation names the agenda role accepts.
type Operation string

const (
	OpListSlots         Operation = "list-slots"
	OpCheckAvailability Operation = "check-availability"
	OpFindNextWeekday   Operation = "find-next-weekday"
	OpCreate            Operation = "create"
	OpCancel            Operation = "cancel"
)

// Field names used in request payloads.
const (
	FieldName     = "name"
	FieldCategory = "category"
	FieldDate     = "date" // DD/MM/YYYY
	FieldTime     = "time" // HH:MM
	FieldDay      = "day"  // weekday name for find-next-weekday
)

// requiredFields per operation; a request missing any of them is rejected
// before dispatch.
var requiredFields = map[Operation][]string{
	OpListSlots:         {},
	OpCheckAvailability: {FieldDate},
	OpFindNextWeekday:   {FieldDay},
	OpCreate:            {FieldName, FieldCategory, FieldDate, FieldTime},
	OpCancel:            {FieldDate, FieldTime},
}

// Request is a cross-role request from reception to agenda. Mutating
// operations carry a correlation key for idempotent retry detection.
type Request struct {
	Op             Operation         `json:"operation"`
	Fields         map[string]string `json:"fields,omitempty"`
	CorrelationKey string            `json:"correlation_key,omitempty"`
}

// Outcome of executing a request.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeRejected  Outcome = "rejected"  // validation / business rule / conflict
	OutcomeFailed    Outcome = "failed"    // external service failure
	OutcomeDuplicate Outcome = "duplicate" // replayed correlation key
)

// Response is a cross-role response from agenda to reception, carrying the
// literal result of the operation. It exists only when the agenda role
// actually invoked the operation (or replayed a recorded fulfillment).
type Response struct {
	Op             Operation `json:"operation"`
	Outcome        Outcome   `json:"outcome"`
	Result         string    `json:"result,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	CorrelationKey string    `json:"correlation_key,omitempty"`
}

// OK reports whether the operation succeeded.
func (r Response) OK() bool { return r.Outcome == OutcomeOK }

// Mutating reports whether the operation changes calendar state.
func (op Operation) Mutating() bool {
	return op == OpCreate || op == OpCancel
}

// Validate checks that the request names a known operation, carries every
// required field, and — for mutating operations — a correlation key.
func (r Request) Validate() error {
	required, ok := requiredFields[r.Op]
	if !ok {
		return faults.Protocolf("unknown operation %q", r.Op)
	}
	for _, field := range required {
		if strings.TrimSpace(r.Fields[field]) == "" {
			return faults.Protocolf("operation %s missing field %q", r.Op, field)
		}
	}
	if r.Op.Mutating() && r.CorrelationKey == "" {
		return faults.Protocolf("operation %s requires a correlation key", r.Op)
	}
	return nil
}

// EncodeRequest renders the request in wire form: tag plus JSON payload.
func EncodeRequest(r Request) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return "", faults.Protocolf("encode request: %v", err)
	}
	return RequestTag + " " + string(payload), nil
}

// ParseRequest parses and validates a wire-form request. Any deviation from
// the contract is a protocol error.
func ParseRequest(s string) (Request, error) {
	payload, err := stripTag(s, RequestTag)
	if err != nil {
		return Request{}, err
	}
	var r Request
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return Request{}, faults.Protocolf("malformed request payload: %v", err)
	}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// EncodeResponse renders the response in wire form.
func EncodeResponse(r Response) (string, error) {
	if r.Op == "" || r.Outcome == "" {
		return "", faults.Protocolf("response missing operation or outcome")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return "", faults.Protocolf("encode response: %v", err)
	}
	return ResponseTag + " " + string(payload), nil
}

// ParseResponse parses and validates a wire-form response.
func ParseResponse(s string) (Response, error) {
	payload, err := stripTag(s, ResponseTag)
	if err != nil {
		return Response{}, err
	}
	var r Response
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return Response{}, faults.Protocolf("malformed response payload: %v", err)
	}
	if r.Op == "" || r.Outcome == "" {
		return Response{}, faults.Protocolf("response missing operation or outcome")
	}
	switch r.Outcome {
	case OutcomeOK, OutcomeRejected, OutcomeFailed, OutcomeDuplicate:
	default:
		return Response{}, faults.Protocolf("unknown outcome %q", r.Outcome)
	}
	return r, nil
}

func stripTag(s, tag string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, tag) {
		return "", faults.Protocolf("missing %s tag", tag)
	}
	payload := strings.TrimSpace(strings.TrimPrefix(trimmed, tag))
	if payload == "" {
		return "", faults.Protocolf("%s carries no payload", tag)
	}
	return payload, nil
}

// CorrelationKey derives the idempotency key for a mutating request from the
// conversation identity and turn sequence.
func CorrelationKey(conversationID string, turn int) string {
	return fmt.Sprintf("%s:%d", conversationID, turn)
}
