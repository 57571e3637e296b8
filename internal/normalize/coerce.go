package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

// objectPlaceholder is what a nested object turns into when a caller stringifies it
// carelessly. It is never a real value.
const objectPlaceholder = "[object Object]"

// collapseFields are tried in order when an object appears where a scalar is expected.
var collapseFields = []string{"id", "name", "value"}

// String coerces v to a trimmed, NFC-normalized string. Objects collapse to their
// id, name or value sub-field; anything else that is not a scalar becomes "".
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(x)
		if s == objectPlaceholder {
			return ""
		}
		return norm.NFC.String(s)
	case json.Number:
		return x.String()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case map[string]any:
		for _, f := range collapseFields {
			if s := String(x[f]); s != "" {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}

// Number parses v as a float. Empty, unparseable or non-finite input yields def.
// A trailing percent sign is accepted ("99.5%").
func Number(v any, def float64) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return def
		}
		f = p
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(x), "%")
		if s == "" {
			return def
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return def
		}
		f = p
	case map[string]any:
		return Number(x["value"], def)
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// Integrity maps free-form status text onto the enumeration. "optimal" is a
// historical alias for ok; anything unrecognized, including empty, is unknown.
func Integrity(v any) models.Integrity {
	switch strings.ToLower(String(v)) {
	case "ok", "optimal":
		return models.IntegrityOK
	case "degraded":
		return models.IntegrityDegraded
	case "critical":
		return models.IntegrityCritical
	default:
		return models.IntegrityUnknown
	}
}
