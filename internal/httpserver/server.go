package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/aggregate"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/auth"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/config"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/handlers"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/ingest"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/kv"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/logging"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/observability"
)

// Deps are the components the router serves.
type Deps struct {
	Store   kv.Store
	Ingest  *ingest.Service
	Reader  *aggregate.Reader
	Metrics *observability.Metrics
	// CRM is nil when no CRM is configured.
	CRM handlers.SummaryPusher
}

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready, /prometheus
// Shared secret: /ingest, /crm/relay
// Shared secret or session cookie: /summary, /recent, /locations, /series, /events/:key
func NewRouter(cfg config.Config, d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(handlers.MethodNotAllowed)
	r.Use(gin.Recovery(), requestLogger(logging.Component("http")), d.Metrics.Middleware())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the store is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := d.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/prometheus", gin.WrapH(d.Metrics.Handler()))

	var sessions auth.SessionVerifier
	if cfg.SessionSecret != "" {
		sessions = auth.NewHMACSessions(cfg.SessionSecret)
	}

	writeGroup := r.Group("/")
	writeGroup.Use(auth.RequireSecret(cfg.IngestSecrets))
	handlers.RegisterIngestRoutes(writeGroup, d.Ingest)
	handlers.RegisterRelayRoutes(writeGroup, d.Store, d.CRM)

	readGroup := r.Group("/")
	readGroup.Use(auth.RequireSecretOrSession(cfg.IngestSecrets, sessions))
	handlers.RegisterDashboardRoutes(readGroup, d.Reader, cfg)

	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"principal", auth.Principal(c),
		)
	}
}
