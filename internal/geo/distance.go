// Package geo computes great-circle distances between candidate and
// nursery coordinates.
package geo

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/plutoskio/BDD-grandir2.0/internal/model"
)

// EarthRadiusKM is the mean Earth radius used by the spherical
// approximation.
const EarthRadiusKM = 6371.0

// ErrInvalidCoordinate marks an out-of-range latitude or longitude. It
// is fatal to the single distance computation only; callers mark the
// pair's distance absent and keep going.
var ErrInvalidCoordinate = eris.New("geo: invalid coordinate")

// Validate checks that a coordinate is within latitude [-90,90] and
// longitude [-180,180].
func Validate(c model.Coordinate) error {
	if c.Lat < -90 || c.Lat > 90 {
		return eris.Wrapf(ErrInvalidCoordinate, "latitude %.6f out of range [-90,90]", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return eris.Wrapf(ErrInvalidCoordinate, "longitude %.6f out of range [-180,180]", c.Lon)
	}
	return nil
}

// Haversine returns the great-circle distance in kilometers between two
// points on a spherical Earth. It is symmetric and returns zero for
// identical points.
func Haversine(a, b model.Coordinate) (float64, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}

	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Min(1, math.Sqrt(h)))

	return EarthRadiusKM * c, nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
