package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/presence/internal/models"
)

func TestHaversineSamePoint(t *testing.T) {
	assert.InDelta(t, 0, Haversine(10.762622, 106.660172, 10.762622, 106.660172), 1e-6)
}

func TestHaversineSymmetry(t *testing.T) {
	pairs := [][4]float64{
		{10.762622, 106.660172, 10.776889, 106.700806},
		{10.0, 106.0, 11.0, 107.0},
		{-33.868820, 151.209290, 51.507351, -0.127758}, // cross-hemisphere
		{0, 0, 0, 180},
	}
	for _, p := range pairs {
		assert.Equal(t, Haversine(p[0], p[1], p[2], p[3]), Haversine(p[2], p[3], p[0], p[1]))
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// One degree of latitude is ~111.19 km on a 6371 km sphere.
	d := Haversine(10.0, 106.0, 11.0, 106.0)
	assert.InDelta(t, 111195, d, 50)
}

func TestWithinBoundsInsideDefaultRadius(t *testing.T) {
	dep := &models.Department{Lat: 10.0, Lng: 106.0}

	res := WithinBounds(10.001, 106.0, dep, nil, 200)
	assert.True(t, res.OK)
	assert.InDelta(t, 111.2, res.DistanceM, 2)
	assert.Equal(t, 200.0, res.AllowedRadiusM)
}

func TestWithinBoundsDepartmentRadiusWins(t *testing.T) {
	dep := &models.Department{Lat: 10.0, Lng: 106.0, RadiusM: 50}

	res := WithinBounds(10.001, 106.0, dep, nil, 200)
	assert.False(t, res.OK)
	assert.Equal(t, 50.0, res.AllowedRadiusM)
}

func TestWithinBoundsAccuracyWidensRadius(t *testing.T) {
	dep := &models.Department{Lat: 10.0, Lng: 106.0, RadiusM: 100}
	acc := 20.0

	// ~111m out: fails at 100m, passes at 100+20m.
	tight := WithinBounds(10.001, 106.0, dep, nil, 200)
	assert.False(t, tight.OK)

	widened := WithinBounds(10.001, 106.0, dep, &acc, 200)
	assert.True(t, widened.OK)
	assert.Equal(t, 120.0, widened.AllowedRadiusM)
}
