package normalize

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 123_000_000, time.UTC)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	d := json.NewDecoder(strings.NewReader(s))
	d.UseNumber()
	require.NoError(t, d.Decode(&m))
	return m
}

func TestString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"  L1 ", "L1"},
		{"[object Object]", ""},
		{float64(42), "42"},
		{1.5, "1.5"},
		{true, "true"},
		{map[string]any{"id": "abc", "name": "Main"}, "abc"},
		{map[string]any{"name": "Main"}, "Main"},
		{map[string]any{"value": 7.0}, "7"},
		{map[string]any{"other": "x"}, ""},
		{map[string]any{"id": map[string]any{"name": "deep"}}, "deep"},
		{[]any{"a"}, ""},
		{math.NaN(), ""},
		{"Café", "Café"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, String(tc.in), "input %#v", tc.in)
	}
}

func TestNumber(t *testing.T) {
	assert.Equal(t, 90.0, Number(90.0, 0))
	assert.Equal(t, 99.5, Number(" 99.5 ", 0))
	assert.Equal(t, 99.5, Number("99.5%", 0))
	assert.Equal(t, 0.0, Number("", 0))
	assert.Equal(t, 3.0, Number("n/a", 3))
	assert.Equal(t, 0.0, Number(nil, 0))
	assert.Equal(t, 0.0, Number(true, 0))
	assert.Equal(t, 12.0, Number(json.Number("12"), 0))
	assert.Equal(t, 4.0, Number(map[string]any{"value": "4"}, 0))
	assert.Equal(t, 0.0, Number("NaN", 0))
	assert.Equal(t, 0.0, Number("Inf", 0))
}

func TestIntegrity(t *testing.T) {
	cases := map[any]models.Integrity{
		"ok":       models.IntegrityOK,
		" OK ":     models.IntegrityOK,
		"Optimal":  models.IntegrityOK,
		"degraded": models.IntegrityDegraded,
		"CRITICAL": models.IntegrityCritical,
		"broken":   models.IntegrityUnknown,
		"":         models.IntegrityUnknown,
		"unknown":  models.IntegrityUnknown,
		float64(1): models.IntegrityUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, Integrity(in), "input %#v", in)
	}
	assert.Equal(t, models.IntegrityUnknown, Integrity(nil))
}

func TestEventDefaults(t *testing.T) {
	ev := New("ACX").Event(nil, fixedNow, "agent")

	assert.Equal(t, "2026-03-04T05:06:07.123Z", ev.TS)
	assert.Equal(t, "ACX", ev.Account)
	assert.Equal(t, "", ev.Location)
	assert.Equal(t, 0.0, ev.Uptime)
	assert.Equal(t, models.IntegrityUnknown, ev.Integrity)
	assert.Equal(t, "run-1772600767123", ev.RunID)
	assert.Equal(t, "agent", ev.Source)
}

func TestEventAgentPayload(t *testing.T) {
	raw := decode(t, `{
		"account": "A", "location": "L1", "uptime": 99.9, "conversion": "0.12",
		"response_ms": 240, "quotes_recovered": 3, "integrity": "Optimal", "run_id": "run-7"
	}`)
	ev := New("ACX").Event(raw, fixedNow, "agent")

	assert.Equal(t, "A", ev.Account)
	assert.Equal(t, "L1", ev.Location)
	assert.Equal(t, 99.9, ev.Uptime)
	assert.Equal(t, 0.12, ev.Conversion)
	assert.Equal(t, 240.0, ev.ResponseMS)
	assert.Equal(t, 3.0, ev.QuotesRecovered)
	assert.Equal(t, models.IntegrityOK, ev.Integrity)
	assert.Equal(t, "run-7", ev.RunID)
}

func TestEventCRMWebhookPayload(t *testing.T) {
	raw := decode(t, `{
		"type": "OpportunityStageUpdate",
		"location": {"id": "loc_9", "name": "Downtown"},
		"contact": {"id": "c_1", "name": "Pat"},
		"opportunityId": "op_3",
		"pipelineStage": "Quoted",
		"customData": {"account": "ACME", "uptime": "97", "integrity": "degraded"},
		"source": "crm"
	}`)
	ev := New("ACX").Event(raw, fixedNow, "webhook")

	assert.Equal(t, "ACME", ev.Account)
	assert.Equal(t, "loc_9", ev.Location)
	assert.Equal(t, "c_1", ev.ContactID)
	assert.Equal(t, "op_3", ev.OpportunityID)
	assert.Equal(t, "Quoted", ev.Stage)
	assert.Equal(t, "OpportunityStageUpdate", ev.EventName)
	assert.Equal(t, 97.0, ev.Uptime)
	assert.Equal(t, models.IntegrityDegraded, ev.Integrity)
	assert.Equal(t, "crm", ev.Source)
}

func TestEventLocationNeverObjectPlaceholder(t *testing.T) {
	for _, body := range []string{
		`{"location": "[object Object]"}`,
		`{"location": {}}`,
		`{"location": {"address": "1 Main"}}`,
		`{"location": ["L1"]}`,
	} {
		ev := New("ACX").Event(decode(t, body), fixedNow, "")
		assert.Equal(t, "", ev.Location, body)
	}
}

func TestEventEmptyLocationObjectFallsThrough(t *testing.T) {
	ev := New("ACX").Event(decode(t, `{"location": {}, "locationId": "L2"}`), fixedNow, "")
	assert.Equal(t, "L2", ev.Location)
}

func TestLookupOrder(t *testing.T) {
	raw := decode(t, `{"location_id": "second", "customData": {"location": "third"}}`)
	v, ok := Lookup(raw, FieldLocation)
	require.True(t, ok)
	assert.Equal(t, "second", v)

	_, ok = Lookup(map[string]any{"location": "  "}, FieldLocation)
	assert.False(t, ok)
}

func TestLookupSkipsFalsyValues(t *testing.T) {
	ev := New("ACX").Event(decode(t, `{"location": [], "locationId": "L2"}`), fixedNow, "")
	assert.Equal(t, "L2", ev.Location)

	ev = New("ACX").Event(decode(t, `{"uptime": 0, "customData": {"uptime": 97}}`), fixedNow, "")
	assert.Equal(t, 97.0, ev.Uptime)

	ev = New("ACX").Event(decode(t, `{"location": false, "location_id": "L3"}`), fixedNow, "")
	assert.Equal(t, "L3", ev.Location)

	_, ok := Lookup(decode(t, `{"uptime": 0}`), FieldUptime)
	assert.False(t, ok)
}

func TestEventKeepsLargeNumericIDsExact(t *testing.T) {
	ev := New("ACX").Event(decode(t, `{"location": 9007199254740993, "contact_id": 12345678901234567890}`), fixedNow, "")
	assert.Equal(t, "9007199254740993", ev.Location)
	assert.Equal(t, "12345678901234567890", ev.ContactID)
}
