package summary

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/index"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/kv"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// Load returns the stored summary, or nil when none exists or the blob is unreadable.
func Load(ctx context.Context, st kv.Store, account, location string) (*models.LocationSummary, error) {
	b, err := st.Get(ctx, index.SummaryKey(account, location))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s models.LocationSummary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, nil
	}
	return &s, nil
}

// Save overwrites the summary key.
func Save(ctx context.Context, st kv.Store, s models.LocationSummary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return st.Set(ctx, index.SummaryKey(s.Account, s.Location), b)
}

// Apply reads the prior summary, merges ev into it and writes it back. Not atomic.
func Apply(ctx context.Context, st kv.Store, ev models.Event) (models.LocationSummary, error) {
	prior, err := Load(ctx, st, ev.Account, ev.Location)
	if err != nil {
		return models.LocationSummary{}, err
	}
	merged := Merge(prior, ev)
	if err := Save(ctx, st, merged); err != nil {
		return models.LocationSummary{}, err
	}
	return merged, nil
}

// LoadList reads locations:<account>; missing or unreadable reads as empty.
func LoadList(ctx context.Context, st kv.Store, account string) ([]models.LocationListEntry, bool, error) {
	b, err := st.Get(ctx, index.LocationsKey(account))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var list []models.LocationListEntry
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, false, nil
	}
	return list, true, nil
}

// ApplyList upserts s into the account's location list and writes it back. Not atomic.
func ApplyList(ctx context.Context, st kv.Store, s models.LocationSummary) error {
	list, _, err := LoadList(ctx, st, s.Account)
	if err != nil {
		return err
	}
	b, err := json.Marshal(UpsertList(list, s))
	if err != nil {
		return err
	}
	return st.Set(ctx, index.LocationsKey(s.Account), b)
}
