package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.StoreOp("get", time.Millisecond, nil)
	m.EventIngested("agent")
	m.SecondaryWriteFailed("global_index")
	m.EntriesDropped(3)
	m.CacheHit()
	m.CacheMiss()
	m.PublishFailed()
	m.CRMRequest("update_contact", errors.New("x"))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()
	m.StoreOp("set", time.Millisecond, errors.New("down"))
	m.EventIngested("agent")

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/prometheus", gin.WrapH(m.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/prometheus", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `http_requests_total{route="/ping",status="204"} 1`)
	assert.Contains(t, string(body), `kv_operations_total{op="set",result="error"} 1`)
	assert.Contains(t, string(body), `events_ingested_total{source="agent"} 1`)
}
