// Package crm is the outbound client for the CRM API used to push location state
// back onto contacts. Only the calls this service makes are modelled.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/apperr"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/cache"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// Custom field keys written on contacts.
const (
	FieldIntegrity       = "telemetry_integrity"
	FieldUptime          = "telemetry_uptime"
	FieldConversion      = "telemetry_conversion"
	FieldResponseMS      = "telemetry_response_ms"
	FieldQuotesRecovered = "telemetry_quotes_recovered"
	FieldLastSeen        = "telemetry_last_seen"
)

// maxErrorBody bounds how much of an upstream error body is kept for passthrough.
const maxErrorBody = 64 << 10

type Observer interface {
	cache.Observer
	CRMRequest(op string, err error)
}

type customField struct {
	ID  string `json:"id"`
	Key string `json:"fieldKey"`
}

type fieldValue struct {
	ID    string `json:"id"`
	Value string `json:"field_value"`
}

type Client struct {
	base   string
	token  string
	h      *http.Client
	fields *cache.Cache[string]
	group  singleflight.Group
	obs    Observer
}

// New builds a client. fieldTTL bounds how long resolved custom field ids are reused.
func New(base, token string, timeout, fieldTTL time.Duration, obs Observer) *Client {
	var cobs cache.Observer
	if obs != nil {
		cobs = obs
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		token:  token,
		h:      &http.Client{Timeout: timeout},
		fields: cache.New[string](fieldTTL, cobs),
		obs:    obs,
	}
}

// FieldID resolves the CRM id of a custom field key for an account (CRM location).
// Results are cached with a TTL; concurrent misses share one upstream call.
func (c *Client) FieldID(ctx context.Context, account, key string) (string, error) {
	ck := account + "|" + key
	if id, ok := c.fields.Get(ck); ok {
		return id, nil
	}
	v, err, _ := c.group.Do(ck, func() (any, error) {
		fields, err := c.listFields(ctx, account)
		if err != nil {
			return "", err
		}
		for _, f := range fields {
			c.fields.Set(account+"|"+f.Key, f.ID)
		}
		for _, f := range fields {
			if f.Key == key {
				return f.ID, nil
			}
		}
		return "", fmt.Errorf("crm: custom field %q not defined for %s: %w", key, account, apperr.ErrUpstream)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) listFields(ctx context.Context, account string) ([]customField, error) {
	u := c.base + "/locations/" + url.PathEscape(account) + "/customFields"
	var payload struct {
		CustomFields []customField `json:"customFields"`
	}
	err := c.do(ctx, "list_fields", http.MethodGet, u, nil, &payload)
	return payload.CustomFields, err
}

// UpdateContact writes the given custom field values (keyed by field key) onto a contact.
func (c *Client) UpdateContact(ctx context.Context, account, contactID string, values map[string]string) error {
	var body struct {
		CustomFields []fieldValue `json:"customFields"`
	}
	for key, val := range values {
		id, err := c.FieldID(ctx, account, key)
		if err != nil {
			return err
		}
		body.CustomFields = append(body.CustomFields, fieldValue{ID: id, Value: val})
	}
	u := c.base + "/contacts/" + url.PathEscape(contactID)
	return c.do(ctx, "update_contact", http.MethodPut, u, body, nil)
}

// PushSummary writes the location's merged metrics onto a contact.
func (c *Client) PushSummary(ctx context.Context, contactID string, s models.LocationSummary) error {
	return c.UpdateContact(ctx, s.Account, contactID, map[string]string{
		FieldIntegrity:       string(s.Integrity),
		FieldUptime:          formatFloat(s.Uptime),
		FieldConversion:      formatFloat(s.Conversion),
		FieldResponseMS:      formatFloat(s.ResponseMS),
		FieldQuotesRecovered: formatFloat(s.QuotesRecovered),
		FieldLastSeen:        s.LastSeen,
	})
}

// NotifyIntegrity posts the derived integrity state for the summary's contact.
func (c *Client) NotifyIntegrity(ctx context.Context, s models.LocationSummary) error {
	if s.ContactID == "" {
		return nil
	}
	return c.UpdateContact(ctx, s.Account, s.ContactID, map[string]string{
		FieldIntegrity: string(s.Integrity),
	})
}

// do performs one JSON request. Non-2xx responses become *apperr.UpstreamError
// carrying the upstream status and body.
func (c *Client) do(ctx context.Context, op, method, u string, in, out any) (err error) {
	defer func() {
		if c.obs != nil {
			c.obs.CRMRequest(op, err)
		}
	}()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.h.Do(req)
	if err != nil {
		return fmt.Errorf("crm %s: %w: %w", op, apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apperr.UpstreamError{Status: resp.StatusCode, Body: b}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("crm %s: decode: %w: %w", op, apperr.ErrUpstream, err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
