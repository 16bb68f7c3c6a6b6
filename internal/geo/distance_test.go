package geo

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plutoskio/BDD-grandir2.0/internal/model"
)

var (
	paris     = model.Coordinate{Lat: 48.8566, Lon: 2.3522}
	lyon      = model.Coordinate{Lat: 45.7640, Lon: 4.8357}
	marseille = model.Coordinate{Lat: 43.2965, Lon: 5.3698}
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name string
		a, b model.Coordinate
		want float64
	}{
		{"paris lyon", paris, lyon, 391.5},
		{"paris marseille", paris, marseille, 660.5},
		{"equator degree of longitude", model.Coordinate{}, model.Coordinate{Lon: 1}, 111.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Haversine(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1.0)
		})
	}
}

func TestHaversineIdenticalPoints(t *testing.T) {
	d, err := Haversine(paris, paris)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)
}

func TestHaversineSymmetry(t *testing.T) {
	ab, err := Haversine(paris, lyon)
	require.NoError(t, err)
	ba, err := Haversine(lyon, paris)
	require.NoError(t, err)
	assert.InDelta(t, ab, ba, 1e-9)
}

func TestHaversineAntipodal(t *testing.T) {
	// Antipodal points must not produce NaN from a rounding excursion
	// above 1 inside the asin.
	a := model.Coordinate{Lat: 0, Lon: 0}
	b := model.Coordinate{Lat: 0, Lon: 180}
	d, err := Haversine(a, b)
	require.NoError(t, err)
	assert.False(t, d != d, "distance is NaN")
	assert.InDelta(t, 20015, d, 5)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       model.Coordinate
		wantErr bool
	}{
		{"valid", paris, false},
		{"lat at bound", model.Coordinate{Lat: 90, Lon: 0}, false},
		{"lon at bound", model.Coordinate{Lat: 0, Lon: -180}, false},
		{"lat too high", model.Coordinate{Lat: 90.001, Lon: 0}, true},
		{"lat too low", model.Coordinate{Lat: -91, Lon: 0}, true},
		{"lon too high", model.Coordinate{Lat: 0, Lon: 180.5}, true},
		{"lon too low", model.Coordinate{Lat: 0, Lon: -181}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.c)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, eris.Is(err, ErrInvalidCoordinate))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestHaversineRejectsBadInput(t *testing.T) {
	_, err := Haversine(model.Coordinate{Lat: 100}, paris)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidCoordinate))

	_, err = Haversine(paris, model.Coordinate{Lon: 999})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidCoordinate))
}
