package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/ingest"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// maxIngestBody bounds the payload read from callers.
const maxIngestBody = 1 << 20

// RegisterIngestRoutes registers the ingestion-path endpoints.
//
// POST /ingest and POST /ingest/:source
// - Requires the shared secret
// - Durable: returns success only after the event record write completes
// - A malformed body is ingested as an empty object, never rejected
func RegisterIngestRoutes(r gin.IRoutes, svc *ingest.Service) {
	h := func(c *gin.Context) {
		raw := decodeObject(c.Request)

		source := strings.TrimSpace(c.Param("source"))
		if source == "" {
			source = strings.TrimSpace(c.GetHeader("X-Source"))
		}

		stored, err := svc.Ingest(c.Request.Context(), raw, source)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, models.IngestResponse{
			OK:     true,
			Stored: true,
			Key:    stored.Key,
		})
	}
	r.POST("/ingest", h)
	r.POST("/ingest/:source", h)
}

// decodeObject reads a JSON object body. Anything else reads as an empty object.
// Numbers stay json.Number so numeric ids above 2^53 keep every digit.
func decodeObject(req *http.Request) map[string]any {
	b, err := io.ReadAll(io.LimitReader(req.Body, maxIngestBody))
	if err != nil {
		return map[string]any{}
	}
	var raw map[string]any
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	if err := d.Decode(&raw); err != nil || raw == nil {
		return map[string]any{}
	}
	return raw
}
