package models

// LocationSummary is the latest merged state for one (account, location) pair.
// Fields are merged, never replaced wholesale: absent incoming values keep the prior ones.
type LocationSummary struct {
	Account         string    `json:"account"`
	Location        string    `json:"location"`
	LastSeen        string    `json:"last_seen"`
	Uptime          float64   `json:"uptime"`
	Conversion      float64   `json:"conversion"`
	ResponseMS      float64   `json:"response_ms"`
	QuotesRecovered float64   `json:"quotes_recovered"`
	Integrity       Integrity `json:"integrity"`
	RunID           string    `json:"run_id,omitempty"`
	Source          string    `json:"source,omitempty"`
	EventName       string    `json:"event_name,omitempty"`
	Stage           string    `json:"stage,omitempty"`
	Priority        string    `json:"priority,omitempty"`
	ContactID       string    `json:"contact_id,omitempty"`
	OpportunityID   string    `json:"opportunity_id,omitempty"`
}

// LocationListEntry is the denormalized projection kept under locations:<account>.
type LocationListEntry struct {
	Account         string    `json:"account"`
	Location        string    `json:"location"`
	LastSeen        string    `json:"last_seen"`
	Uptime          float64   `json:"uptime"`
	Conversion      float64   `json:"conversion"`
	ResponseMS      float64   `json:"response_ms"`
	QuotesRecovered float64   `json:"quotes_recovered"`
	Integrity       Integrity `json:"integrity"`
}

// Entry projects a summary into its list form.
func (s LocationSummary) Entry() LocationListEntry {
	return LocationListEntry{
		Account:         s.Account,
		Location:        s.Location,
		LastSeen:        s.LastSeen,
		Uptime:          s.Uptime,
		Conversion:      s.Conversion,
		ResponseMS:      s.ResponseMS,
		QuotesRecovered: s.QuotesRecovered,
		Integrity:       s.Integrity,
	}
}

// SeriesPoint is one chart sample for a location.
type SeriesPoint struct {
	TS              string    `json:"ts"`
	Uptime          float64   `json:"uptime"`
	Conversion      float64   `json:"conversion"`
	ResponseMS      float64   `json:"response_ms"`
	QuotesRecovered float64   `json:"quotes_recovered"`
	Integrity       Integrity `json:"integrity"`
}

// SeriesStats summarizes the response time distribution of one location's series.
type SeriesStats struct {
	Points        int     `json:"points"`
	ResponseP50MS float64 `json:"response_p50_ms"`
	ResponseP95MS float64 `json:"response_p95_ms"`
}

// DashboardMeta describes how a dashboard response was assembled.
type DashboardMeta struct {
	Account       string                 `json:"account"`
	Limit         int                    `json:"limit"`
	IndexSize     int                    `json:"index_size"`
	Dropped       int                    `json:"dropped"`
	LocationsFrom string                 `json:"locations_from"`
	Series        map[string]SeriesStats `json:"series,omitempty"`
	GeneratedAt   string                 `json:"generated_at"`
}

// Dashboard is the full read model served by GET /summary.
type Dashboard struct {
	OK        bool                     `json:"ok"`
	Recent    []StoredEvent            `json:"recent"`
	Locations []LocationListEntry      `json:"locations"`
	Series    map[string][]SeriesPoint `json:"series"`
	Meta      DashboardMeta            `json:"meta"`
}
