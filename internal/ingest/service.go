// Package ingest turns one inbound payload into a stored event and the index and
// summary updates that follow it.
//
// Within one ingestion the event write happens before the global index update,
// which happens before the per-location index and summary writes. Nothing is
// atomic across ingestions: in lock-free mode two concurrent ingestions for the
// same location race on the shared keys and the last store write wins.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/apperr"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/config"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/index"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/kv"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/logging"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/normalize"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/observability"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/publish"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/summary"
)

// Notifier receives the merged summary after each ingestion that updated one.
type Notifier interface {
	NotifyIntegrity(ctx context.Context, s models.LocationSummary) error
}

// Secondary write stages, used as log fields and metric labels.
const (
	stageGlobalIndex   = "global_index"
	stageLocationIndex = "location_index"
	stageSummary       = "summary"
	stageLocationList  = "location_list"
)

// notifyTimeout bounds the best-effort fan-out after an ingestion.
const notifyTimeout = 10 * time.Second

type Service struct {
	store       kv.Store
	norm        *normalize.Normalizer
	indexMaxLen int
	locks       *keyLocks

	publisher publish.Publisher
	notifier  Notifier
	metrics   *observability.Metrics
	log       *slog.Logger
	now       func() time.Time

	pending sync.WaitGroup
}

type Option func(*Service)

func WithPublisher(p publish.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds the ingestion service. In config.WriteModeSerialized each shared key
// is guarded by an in-process mutex; otherwise writers race freely.
func New(st kv.Store, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		store:       st,
		norm:        normalize.New(cfg.DefaultAccount),
		indexMaxLen: cfg.IndexMaxLen,
		publisher:   publish.Nop{},
		log:         logging.Component("ingest"),
		now:         time.Now,
	}
	if cfg.WriteMode == config.WriteModeSerialized {
		s.locks = newKeyLocks()
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ingest stores one event. Only a failure to write the event record itself is
// returned; later index and summary failures are logged and counted because the
// record is already durable.
func (s *Service) Ingest(ctx context.Context, raw map[string]any, source string) (models.StoredEvent, error) {
	now := s.now()
	ev := s.norm.Event(raw, now, source)
	key := index.EventKey(now)

	body, err := json.Marshal(ev)
	if err != nil {
		return models.StoredEvent{}, err
	}
	if err := s.store.Set(ctx, key, body); err != nil {
		s.log.Error("event write failed", "key", key, "error", err)
		return models.StoredEvent{}, apperr.Store("write event", err)
	}
	s.metrics.EventIngested(ev.Source)

	s.guard(stageGlobalIndex, index.GlobalKey, func() error {
		_, err := index.Prepend(ctx, s.store, index.GlobalKey, key, s.indexMaxLen)
		return err
	})

	if ev.Location != "" {
		s.guard(stageLocationIndex, index.LocationIndexKey(ev.Account, ev.Location), func() error {
			_, err := index.Prepend(ctx, s.store, index.LocationIndexKey(ev.Account, ev.Location), key, s.indexMaxLen)
			return err
		})

		// The summary key stays held until the location list carries this merge,
		// so a slower writer cannot put an older summary back into the list.
		sumKey := index.SummaryKey(ev.Account, ev.Location)
		unlock := s.lock(sumKey)
		var merged models.LocationSummary
		ok := s.check(stageSummary, sumKey, func() error {
			var err error
			merged, err = summary.Apply(ctx, s.store, ev)
			return err
		})
		if ok {
			s.guard(stageLocationList, index.LocationsKey(ev.Account), func() error {
				return summary.ApplyList(ctx, s.store, merged)
			})
		}
		unlock()
		if ok {
			s.notify(ctx, merged)
		}
	}

	stored := models.StoredEvent{Key: key, Event: ev}
	s.publish(ctx, stored)
	return stored, nil
}

// guard runs one read-modify-write of key, serialized when locks are enabled.
// It reports whether the write succeeded.
func (s *Service) guard(stage, key string, fn func() error) bool {
	unlock := s.lock(key)
	defer unlock()
	return s.check(stage, key, fn)
}

// lock takes key's mutex in serialized mode; in lock-free mode it is a no-op.
func (s *Service) lock(key string) func() {
	if s.locks == nil {
		return func() {}
	}
	return s.locks.lock(key)
}

// check runs fn, logging and counting a failure.
func (s *Service) check(stage, key string, fn func() error) bool {
	if err := fn(); err != nil {
		s.log.Warn("secondary write failed", "stage", stage, "key", key, "error", err)
		s.metrics.SecondaryWriteFailed(stage)
		return false
	}
	return true
}

func (s *Service) publish(ctx context.Context, ev models.StoredEvent) {
	s.background(ctx, func(ctx context.Context) {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.metrics.PublishFailed()
		}
	})
}

func (s *Service) notify(ctx context.Context, merged models.LocationSummary) {
	if s.notifier == nil || merged.ContactID == "" {
		return
	}
	s.background(ctx, func(ctx context.Context) {
		if err := s.notifier.NotifyIntegrity(ctx, merged); err != nil {
			s.log.Warn("integrity notification failed", "location", merged.Location, "contact", merged.ContactID, "error", err)
		}
	})
}

// background runs fn detached from the request's cancellation but bounded by notifyTimeout.
func (s *Service) background(ctx context.Context, fn func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until every background publication and notification has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}
