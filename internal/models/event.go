package models

// Integrity is the enumerated health status of a monitored location.
type Integrity string

const (
	IntegrityOK       Integrity = "ok"
	IntegrityDegraded Integrity = "degraded"
	IntegrityCritical Integrity = "critical"
	IntegrityUnknown  Integrity = "unknown"
)

// Known reports whether the status carries information (anything but unknown).
func (i Integrity) Known() bool {
	return i == IntegrityOK || i == IntegrityDegraded || i == IntegrityCritical
}

// Event is one immutable ingested telemetry record.
// It is written once under its event key and never mutated.
type Event struct {
	TS              string    `json:"ts"`
	Account         string    `json:"account"`
	Location        string    `json:"location"`
	Uptime          float64   `json:"uptime"`
	Conversion      float64   `json:"conversion"`
	ResponseMS      float64   `json:"response_ms"`
	QuotesRecovered float64   `json:"quotes_recovered"`
	Integrity       Integrity `json:"integrity"`
	RunID           string    `json:"run_id"`
	Source          string    `json:"source"`

	// Optional telemetry forwarded by the CRM webhook.
	EventName     string `json:"event_name,omitempty"`
	Stage         string `json:"stage,omitempty"`
	Priority      string `json:"priority,omitempty"`
	EventAt       string `json:"event_at,omitempty"`
	ContactID     string `json:"contact_id,omitempty"`
	OpportunityID string `json:"opportunity_id,omitempty"`
}

// StoredEvent pairs an event body with the key it was read from.
type StoredEvent struct {
	Key string `json:"key"`
	Event
}

// IngestResponse is returned by POST /ingest.
type IngestResponse struct {
	OK     bool   `json:"ok"`
	Stored bool   `json:"stored"`
	Key    string `json:"key"`
}

// ErrorResponse is the body of every failed request. Message is short and never a raw error.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
