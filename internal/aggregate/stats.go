package aggregate

import (
	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// sketchAccuracy is the relative accuracy of the response time quantiles.
const sketchAccuracy = 0.01

// Stats summarizes the response times of points. Zero response times are absent
// readings and are not counted.
func Stats(points []models.SeriesPoint) models.SeriesStats {
	st := models.SeriesStats{Points: len(points)}

	sketch, err := ddsketch.NewDefaultDDSketch(sketchAccuracy)
	if err != nil {
		return st
	}
	n := 0
	for _, p := range points {
		if p.ResponseMS > 0 && sketch.Add(p.ResponseMS) == nil {
			n++
		}
	}
	if n == 0 {
		return st
	}
	st.ResponseP50MS, _ = sketch.GetValueAtQuantile(0.50)
	st.ResponseP95MS, _ = sketch.GetValueAtQuantile(0.95)
	return st
}
