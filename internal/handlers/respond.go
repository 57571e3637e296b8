package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/apperr"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// fail writes the short error body for err. Upstream errors pass the CRM's status and body through.
func fail(c *gin.Context, err error) {
	var up *apperr.UpstreamError
	if errors.As(err, &up) && len(up.Body) > 0 {
		c.Data(apperr.StatusOf(err), "application/json; charset=utf-8", up.Body)
		return
	}
	c.JSON(apperr.StatusOf(err), models.ErrorResponse{Error: apperr.Message(err)})
}

// MethodNotAllowed is installed as the engine's NoMethod handler.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{Error: "method not allowed"})
}

// queryLimit parses ?limit=; absent or invalid means "use the default".
func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return n
}
