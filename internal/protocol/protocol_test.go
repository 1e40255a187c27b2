package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/secretary-go/internal/faults"
)

func TestRequestRoundTrip(t *testing.T) {
	req := Request{
		Op: OpCreate,
		Fields: map[string]string{
			FieldName:     "Maria Souza",
			FieldCategory: "insurance",
			FieldDate:     "03/09/2026",
			FieldTime:     "09:30",
		},
		CorrelationKey: "conversation:abc:4",
	}

	wire, err := EncodeRequest(req)
	require.NoError(t, err)
	assert.Contains(t, wire, RequestTag)

	parsed, err := ParseRequest(wire)
	require.NoError(t, err)
	assert.Equal(t, req, parsed)
}

func TestParseRequestRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		wire string
	}{
		{"no tag", `{"operation":"create"}`},
		{"empty payload", RequestTag + "   "},
		{"bad json", RequestTag + ` {"operation":`},
		{"unknown op", RequestTag + ` {"operation":"destroy"}`},
		{"create without time", RequestTag + ` {"operation":"create","fields":{"name":"Ana","category":"self-pay","date":"03/09/2026"},"correlation_key":"c:1"}`},
		{"cancel without key", RequestTag + ` {"operation":"cancel","fields":{"date":"03/09/2026","time":"09:30"}}`},
		{"blank required field", RequestTag + ` {"operation":"check-availability","fields":{"date":"  "}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(tt.wire)
			require.Error(t, err)
			assert.True(t, errors.Is(err, faults.ErrProtocol))
		})
	}
}

func TestReadOnlyOpsNeedNoCorrelationKey(t *testing.T) {
	wire, err := EncodeRequest(Request{Op: OpListSlots})
	require.NoError(t, err)

	parsed, err := ParseRequest(wire)
	require.NoError(t, err)
	assert.Equal(t, OpListSlots, parsed.Op)
	assert.False(t, parsed.Op.Mutating())
}

func TestResponseRoundTrip(t *testing.T) {
	resp := Response{
		Op:             OpCancel,
		Outcome:        OutcomeOK,
		Result:         "appointment on 03/09/2026 at 09:30 cancelled",
		CorrelationKey: "conversation:abc:7",
	}

	wire, err := EncodeResponse(resp)
	require.NoError(t, err)
	assert.Contains(t, wire, ResponseTag)

	parsed, err := ParseResponse(wire)
	require.NoError(t, err)
	assert.Equal(t, resp, parsed)
	assert.True(t, parsed.OK())
}

func TestParseResponseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		wire string
	}{
		{"request tag on response", RequestTag + ` {"operation":"create","outcome":"ok"}`},
		{"missing outcome", ResponseTag + ` {"operation":"create"}`},
		{"unknown outcome", ResponseTag + ` {"operation":"create","outcome":"maybe"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.wire)
			require.Error(t, err)
			assert.True(t, errors.Is(err, faults.ErrProtocol))
		})
	}
}

func TestCorrelationKey(t *testing.T) {
	assert.Equal(t, "conversation:abc:12", CorrelationKey("conversation:abc", 12))
}
