// Package summary maintains the latest merged state of each location and the
// denormalized per-account location list.
//
// Merge never regresses known state: a metric is only overwritten by a non-zero
// incoming value, and integrity only by a known one. Concurrent merges against
// the same stale prior both succeed at the store and the later write wins.
package summary

import (
	"github.com/PratikDhanave/telemetry-ingest-service/internal/index"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// Merge folds ev into prior (nil for a first sighting) and returns the new summary.
func Merge(prior *models.LocationSummary, ev models.Event) models.LocationSummary {
	var out models.LocationSummary
	if prior != nil {
		out = *prior
	}

	out.Account = pickString(ev.Account, out.Account)
	out.Location = pickString(ev.Location, out.Location)
	out.LastSeen = ev.TS

	out.Uptime = pickMetric(ev.Uptime, out.Uptime)
	out.Conversion = pickMetric(ev.Conversion, out.Conversion)
	out.ResponseMS = pickMetric(ev.ResponseMS, out.ResponseMS)
	out.QuotesRecovered = pickMetric(ev.QuotesRecovered, out.QuotesRecovered)

	switch {
	case ev.Integrity.Known():
		out.Integrity = ev.Integrity
	case out.Integrity == "":
		out.Integrity = models.IntegrityUnknown
	}

	out.RunID = pickString(ev.RunID, out.RunID)
	out.Source = pickString(ev.Source, out.Source)
	out.EventName = pickString(ev.EventName, out.EventName)
	out.Stage = pickString(ev.Stage, out.Stage)
	out.Priority = pickString(ev.Priority, out.Priority)
	out.ContactID = pickString(ev.ContactID, out.ContactID)
	out.OpportunityID = pickString(ev.OpportunityID, out.OpportunityID)
	return out
}

func pickMetric(incoming, prior float64) float64 {
	if incoming != 0 {
		return incoming
	}
	return prior
}

func pickString(incoming, prior string) string {
	if incoming != "" {
		return incoming
	}
	return prior
}

// UpsertList replaces the entry for s's location in place, or inserts it at the
// front, then drops any later duplicates of the same account:location.
func UpsertList(list []models.LocationListEntry, s models.LocationSummary) []models.LocationListEntry {
	entry := s.Entry()
	id := index.LocationID(s.Account, s.Location)

	out := make([]models.LocationListEntry, 0, len(list)+1)
	found := false
	for _, e := range list {
		if !found && index.LocationID(e.Account, e.Location) == id {
			out = append(out, entry)
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		out = append([]models.LocationListEntry{entry}, out...)
	}
	return Dedupe(out)
}

// Dedupe keeps the first entry per account:location.
func Dedupe(list []models.LocationListEntry) []models.LocationListEntry {
	seen := make(map[string]struct{}, len(list))
	out := list[:0:0]
	for _, e := range list {
		id := index.LocationID(e.Account, e.Location)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, e)
	}
	return out
}
