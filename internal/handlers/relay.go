package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/apperr"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/kv"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/summary"
)

// SummaryPusher writes a location summary onto a CRM contact.
type SummaryPusher interface {
	PushSummary(ctx context.Context, contactID string, s models.LocationSummary) error
}

type relayRequest struct {
	Account   string `json:"account" form:"account"`
	Location  string `json:"location" form:"location"`
	ContactID string `json:"contact_id" form:"contact_id"`
}

// RegisterRelayRoutes registers the form-relay endpoint.
//
// POST /crm/relay (JSON or form: account, location, optional contact_id)
// - Pushes the location's merged summary onto a CRM contact
// - CRM errors are passed through with their status and body
func RegisterRelayRoutes(r gin.IRoutes, st kv.Store, crm SummaryPusher) {
	r.POST("/crm/relay", func(c *gin.Context) {
		if crm == nil {
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "crm not configured"})
			return
		}

		var req relayRequest
		if err := c.ShouldBind(&req); err != nil {
			fail(c, apperr.Malformed("body must be JSON or form encoded"))
			return
		}
		req.Account = strings.TrimSpace(req.Account)
		req.Location = strings.TrimSpace(req.Location)
		if req.Account == "" || req.Location == "" {
			fail(c, apperr.Validation("account and location required"))
			return
		}

		s, err := summary.Load(c.Request.Context(), st, req.Account, req.Location)
		if err != nil {
			fail(c, apperr.Store("read summary", err))
			return
		}
		if s == nil {
			fail(c, apperr.ErrNotFound)
			return
		}

		contact := strings.TrimSpace(req.ContactID)
		if contact == "" {
			contact = s.ContactID
		}
		if contact == "" {
			fail(c, apperr.Validation("contact_id required"))
			return
		}

		if err := crm.PushSummary(c.Request.Context(), contact, *s); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "pushed": true, "contact_id": contact})
	})
}
