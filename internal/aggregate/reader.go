// Package aggregate assembles the dashboard read models by resolving indexes
// into event bodies.
//
// Individual keys that cannot be fetched or parsed are skipped; a dangling
// index entry never fails a response. Only a failure to read the global index
// itself is surfaced.
package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/apperr"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/config"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/index"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/kv"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/logging"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/normalize"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/observability"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/summary"
)

// Sources of the locations snapshot, reported in meta.locations_from.
const (
	LocationsFromSummaries = "summaries"
	LocationsFromRecent    = "recent"
)

type Reader struct {
	store   kv.Store
	cfg     config.Config
	metrics *observability.Metrics
	log     *slog.Logger
	now     func() time.Time
}

func NewReader(st kv.Store, cfg config.Config, metrics *observability.Metrics) *Reader {
	return &Reader{
		store:   st,
		cfg:     cfg,
		metrics: metrics,
		log:     logging.Component("aggregate"),
		now:     time.Now,
	}
}

// RecentResult is the newest-first slice of the global index, resolved.
type RecentResult struct {
	Events    []models.StoredEvent
	Limit     int
	IndexSize int
	Dropped   int
}

// Recent resolves the first limit keys of the global index (limit is clamped).
// A missing global index yields an empty result.
func (r *Reader) Recent(ctx context.Context, limit int) (RecentResult, error) {
	limit = r.cfg.ClampLimit(limit)
	keys, err := index.Load(ctx, r.store, index.GlobalKey)
	if err != nil {
		return RecentResult{}, apperr.Store("read global index", err)
	}
	head := index.Head(keys, limit)
	events := r.fetch(ctx, head)
	return RecentResult{
		Events:    events,
		Limit:     limit,
		IndexSize: len(keys),
		Dropped:   len(head) - len(events),
	}, nil
}

// Event fetches one event body by key.
func (r *Reader) Event(ctx context.Context, key string) (models.StoredEvent, error) {
	if !strings.HasPrefix(key, index.EventPrefix) {
		return models.StoredEvent{}, apperr.Validation("key must be an event key")
	}
	b, err := r.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return models.StoredEvent{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.StoredEvent{}, apperr.Store("read event", err)
	}
	var ev models.Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return models.StoredEvent{}, apperr.ErrNotFound
	}
	return models.StoredEvent{Key: key, Event: ev}, nil
}

// Locations returns one row per location of account. The stored location list is
// preferred; when it is absent or unreadable the rows are derived from the newest
// event per location in recent.
func (r *Reader) Locations(ctx context.Context, account string, recent []models.StoredEvent) ([]models.LocationListEntry, string) {
	if list, ok := r.storedList(ctx, account); ok {
		return list, LocationsFromSummaries
	}
	return FromRecent(account, recent), LocationsFromRecent
}

// AccountLocations is Locations for callers without a recent window at hand. The
// recent events (limit is clamped) are only fetched when the stored list is unusable.
func (r *Reader) AccountLocations(ctx context.Context, account string, limit int) ([]models.LocationListEntry, string) {
	if list, ok := r.storedList(ctx, account); ok {
		return list, LocationsFromSummaries
	}
	res, err := r.Recent(ctx, limit)
	if err != nil {
		r.log.Warn("recent events unavailable for locations fallback", "account", account, "error", err)
	}
	return FromRecent(account, res.Events), LocationsFromRecent
}

func (r *Reader) storedList(ctx context.Context, account string) ([]models.LocationListEntry, bool) {
	list, ok, err := summary.LoadList(ctx, r.store, account)
	if err != nil {
		r.log.Warn("location list unavailable, deriving from recent events", "account", account, "error", err)
	}
	if !ok || len(list) == 0 {
		return nil, false
	}
	list = summary.Dedupe(list)
	for i := range list {
		list[i].Integrity = models.Integrity(strings.ToLower(string(list[i].Integrity)))
	}
	return list, true
}

// FromRecent keeps the newest event per location of account (recent is newest first).
func FromRecent(account string, recent []models.StoredEvent) []models.LocationListEntry {
	out := []models.LocationListEntry{}
	seen := map[string]struct{}{}
	for _, ev := range recent {
		if ev.Location == "" || ev.Account != account {
			continue
		}
		if _, dup := seen[ev.Location]; dup {
			continue
		}
		seen[ev.Location] = struct{}{}
		out = append(out, models.LocationListEntry{
			Account:         ev.Account,
			Location:        ev.Location,
			LastSeen:        ev.TS,
			Uptime:          ev.Uptime,
			Conversion:      ev.Conversion,
			ResponseMS:      ev.ResponseMS,
			QuotesRecovered: ev.QuotesRecovered,
			Integrity:       normalize.Integrity(string(ev.Integrity)),
		})
	}
	return out
}

// Series resolves up to SeriesCap keys of each location's index into chronological
// points. A location whose index cannot be read is left out.
func (r *Reader) Series(ctx context.Context, account string, locations []string) (map[string][]models.SeriesPoint, map[string]models.SeriesStats) {
	var (
		mu     sync.Mutex
		series = make(map[string][]models.SeriesPoint, len(locations))
		stats  = make(map[string]models.SeriesStats, len(locations))
	)

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.FetchConcurrency)
	for _, loc := range locations {
		g.Go(func() error {
			keys, err := index.Load(ctx, r.store, index.LocationIndexKey(account, loc))
			if err != nil {
				r.log.Warn("location index unavailable", "account", account, "location", loc, "error", err)
				return nil
			}
			events := r.fetch(ctx, index.Head(keys, r.cfg.SeriesCap))
			points := Points(events)

			mu.Lock()
			series[loc] = points
			stats[loc] = Stats(points)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return series, stats
}

// Points converts newest-first events into oldest-first chart points.
func Points(events []models.StoredEvent) []models.SeriesPoint {
	out := make([]models.SeriesPoint, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		out = append(out, models.SeriesPoint{
			TS:              ev.TS,
			Uptime:          ev.Uptime,
			Conversion:      ev.Conversion,
			ResponseMS:      ev.ResponseMS,
			QuotesRecovered: ev.QuotesRecovered,
			Integrity:       ev.Integrity,
		})
	}
	return out
}

// Dashboard assembles recent events, the locations snapshot and per-location series.
func (r *Reader) Dashboard(ctx context.Context, account string, limit int) (models.Dashboard, error) {
	if account == "" {
		account = r.cfg.DefaultAccount
	}
	recent, err := r.Recent(ctx, limit)
	if err != nil {
		return models.Dashboard{}, err
	}
	locations, from := r.Locations(ctx, account, recent.Events)

	names := make([]string, 0, len(locations))
	for _, l := range locations {
		names = append(names, l.Location)
	}
	series, stats := r.Series(ctx, account, names)

	return models.Dashboard{
		OK:        true,
		Recent:    recent.Events,
		Locations: locations,
		Series:    series,
		Meta: models.DashboardMeta{
			Account:       account,
			Limit:         recent.Limit,
			IndexSize:     recent.IndexSize,
			Dropped:       recent.Dropped,
			LocationsFrom: from,
			Series:        stats,
			GeneratedAt:   r.now().UTC().Format(normalize.TimeLayout),
		},
	}, nil
}

// fetch reads keys in parallel and returns the parseable bodies in key order.
func (r *Reader) fetch(ctx context.Context, keys []string) []models.StoredEvent {
	slots := make([]*models.StoredEvent, len(keys))

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.FetchConcurrency)
	for i, key := range keys {
		g.Go(func() error {
			b, err := r.store.Get(ctx, key)
			if err != nil {
				r.log.Debug("skipping index entry", "key", key, "error", err)
				return nil
			}
			var ev models.Event
			if err := json.Unmarshal(b, &ev); err != nil {
				r.log.Debug("skipping unreadable event", "key", key, "error", err)
				return nil
			}
			slots[i] = &models.StoredEvent{Key: key, Event: ev}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.StoredEvent, 0, len(keys))
	for _, ev := range slots {
		if ev != nil {
			out = append(out, *ev)
		}
	}
	r.metrics.EntriesDropped(len(keys) - len(out))
	return out
}
