package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/aggregate"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/config"
)

// RegisterDashboardRoutes registers the serving-path endpoints.
//
// GET /summary?limit=&account=   full dashboard (recent, locations, series, meta)
// GET /recent?limit=             newest events from the global index
// GET /locations?account=        one row per location
// GET /series?account=           per-location chronological points
// GET /events/:key               a single event body
func RegisterDashboardRoutes(r gin.IRoutes, rd *aggregate.Reader, cfg config.Config) {
	account := func(c *gin.Context) string {
		if a := strings.TrimSpace(c.Query("account")); a != "" {
			return a
		}
		return cfg.DefaultAccount
	}

	r.GET("/summary", func(c *gin.Context) {
		d, err := rd.Dashboard(c.Request.Context(), account(c), queryLimit(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.GET("/recent", func(c *gin.Context) {
		res, err := rd.Recent(c.Request.Context(), queryLimit(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":     true,
			"recent": res.Events,
			"meta": gin.H{
				"limit":      res.Limit,
				"index_size": res.IndexSize,
				"dropped":    res.Dropped,
			},
		})
	})

	r.GET("/locations", func(c *gin.Context) {
		acct := account(c)
		rows, from := rd.AccountLocations(c.Request.Context(), acct, queryLimit(c))
		c.JSON(http.StatusOK, gin.H{
			"ok":        true,
			"locations": rows,
			"meta":      gin.H{"account": acct, "locations_from": from},
		})
	})

	r.GET("/series", func(c *gin.Context) {
		acct := account(c)
		rows, _ := rd.AccountLocations(c.Request.Context(), acct, queryLimit(c))
		names := make([]string, 0, len(rows))
		for _, row := range rows {
			names = append(names, row.Location)
		}
		series, stats := rd.Series(c.Request.Context(), acct, names)
		c.JSON(http.StatusOK, gin.H{
			"ok":     true,
			"series": series,
			"meta":   gin.H{"account": acct, "series": stats},
		})
	})

	r.GET("/events/:key", func(c *gin.Context) {
		ev, err := rd.Event(c.Request.Context(), c.Param("key"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "event": ev})
	})
}
