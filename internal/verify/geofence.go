package verify

import (
	"math"

	"github.com/your-org/presence/internal/models"
)

// earthRadiusM is the mean Earth radius used for great-circle distances.
const earthRadiusM = 6371000.0

// Haversine returns the great-circle distance in meters between two
// coordinates.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dlat := radians(lat2 - lat1)
	dlng := radians(lng2 - lng1)
	a := sq(math.Sin(dlat/2)) + math.Cos(radians(lat1))*math.Cos(radians(lat2))*sq(math.Sin(dlng/2))
	return 2 * math.Asin(math.Sqrt(a)) * earthRadiusM
}

// GeofenceResult is the outcome of a proximity check.
type GeofenceResult struct {
	OK             bool
	DistanceM      float64
	AllowedRadiusM float64
}

// WithinBounds decides whether a reported coordinate lies inside the
// department's tolerance circle. The allowed radius is the department's base
// radius (defaultRadiusM when unset) widened by the reported accuracy.
// Accuracy ceiling checks happen before this is called; they are a
// precondition, not a geofence failure.
func WithinBounds(lat, lng float64, dep *models.Department, accuracy *float64, defaultRadiusM float64) GeofenceResult {
	dist := Haversine(dep.Lat, dep.Lng, lat, lng)

	radius := dep.RadiusM
	if radius == 0 {
		radius = defaultRadiusM
	}
	if accuracy != nil {
		radius += *accuracy
	}

	return GeofenceResult{
		OK:             dist <= radius,
		DistanceM:      dist,
		AllowedRadiusM: radius,
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func sq(x float64) float64 {
	return x * x
}
