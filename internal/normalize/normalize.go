// Package normalize turns the heterogeneous payloads sent by the CRM webhook and
// the monitoring agent into one canonical models.Event.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// TimeLayout is the ISO-8601 form used for ts and last_seen (millisecond precision, UTC).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Field names the canonical event fields resolved through Aliases.
type Field string

const (
	FieldAccount         Field = "account"
	FieldLocation        Field = "location"
	FieldUptime          Field = "uptime"
	FieldConversion      Field = "conversion"
	FieldResponseMS      Field = "response_ms"
	FieldQuotesRecovered Field = "quotes_recovered"
	FieldIntegrity       Field = "integrity"
	FieldRunID           Field = "run_id"
	FieldSource          Field = "source"
	FieldEventName       Field = "event_name"
	FieldStage           Field = "stage"
	FieldPriority        Field = "priority"
	FieldEventAt         Field = "event_at"
	FieldContactID       Field = "contact_id"
	FieldOpportunityID   Field = "opportunity_id"
)

// Aliases lists, per canonical field, the payload paths tried in order. Dotted paths
// descend into nested objects; the first present value wins.
var Aliases = map[Field][]string{
	FieldAccount:         {"account", "account_id", "accountId", "customData.account"},
	FieldLocation:        {"location", "location_id", "locationId", "customData.location", "customData.location_id"},
	FieldUptime:          {"uptime", "uptime_pct", "customData.uptime"},
	FieldConversion:      {"conversion", "conversion_rate", "customData.conversion"},
	FieldResponseMS:      {"response_ms", "responseMs", "response_time_ms", "latency_ms", "customData.response_ms"},
	FieldQuotesRecovered: {"quotes_recovered", "quotesRecovered", "recovered_quotes", "customData.quotes_recovered"},
	FieldIntegrity:       {"integrity", "integrity_status", "status", "customData.integrity"},
	FieldRunID:           {"run_id", "runId", "customData.run_id"},
	FieldSource:          {"source", "customData.source"},
	FieldEventName:       {"event_name", "eventName", "event", "type", "customData.event_name"},
	FieldStage:           {"stage", "pipeline_stage", "pipelineStage", "customData.stage"},
	FieldPriority:        {"priority", "customData.priority"},
	FieldEventAt:         {"event_at", "eventAt", "timestamp", "customData.event_at"},
	FieldContactID:       {"contact_id", "contactId", "contact", "customData.contact_id"},
	FieldOpportunityID:   {"opportunity_id", "opportunityId", "opportunity", "customData.opportunity_id"},
}

// Lookup returns the first present value among the aliases of f.
// A value is present when it is not null, not false, not numerically zero and, for
// strings, objects and arrays, coerces to a non-empty string. An empty location
// object or a zero metric therefore falls through to the next alias.
func Lookup(raw map[string]any, f Field) (any, bool) {
	for _, path := range Aliases[f] {
		v, ok := resolve(raw, path)
		if !ok || !present(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64, int, int64, json.Number:
		return Number(v, 0) != 0
	default:
		return String(v) != ""
	}
}

func resolve(raw map[string]any, path string) (any, bool) {
	cur := any(raw)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Normalizer builds canonical events. It never fails: worst case every field takes its default.
type Normalizer struct {
	DefaultAccount string
}

func New(defaultAccount string) *Normalizer {
	return &Normalizer{DefaultAccount: defaultAccount}
}

// Event normalizes raw as received at now from the caller tagged source.
func (n *Normalizer) Event(raw map[string]any, now time.Time, source string) models.Event {
	if raw == nil {
		raw = map[string]any{}
	}
	str := func(f Field) string {
		v, _ := Lookup(raw, f)
		return String(v)
	}
	num := func(f Field) float64 {
		v, _ := Lookup(raw, f)
		return Number(v, 0)
	}

	ev := models.Event{
		TS:              now.UTC().Format(TimeLayout),
		Account:         str(FieldAccount),
		Location:        str(FieldLocation),
		Uptime:          num(FieldUptime),
		Conversion:      num(FieldConversion),
		ResponseMS:      num(FieldResponseMS),
		QuotesRecovered: num(FieldQuotesRecovered),
		RunID:           str(FieldRunID),
		Source:          str(FieldSource),
		EventName:       str(FieldEventName),
		Stage:           str(FieldStage),
		Priority:        str(FieldPriority),
		EventAt:         str(FieldEventAt),
		ContactID:       str(FieldContactID),
		OpportunityID:   str(FieldOpportunityID),
	}
	iv, _ := Lookup(raw, FieldIntegrity)
	ev.Integrity = Integrity(iv)

	if ev.Account == "" {
		ev.Account = n.DefaultAccount
	}
	if ev.RunID == "" {
		ev.RunID = fmt.Sprintf("run-%d", now.UnixMilli())
	}
	if ev.Source == "" {
		ev.Source = source
	}
	if ev.Source == "" {
		ev.Source = "api"
	}
	return ev
}
