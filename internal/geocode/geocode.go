package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/fieldops/backend/internal/models"
)

var ErrNotFound = errors.New("geocode not found")

type Geocoder interface {
	Geocode(ctx context.Context, query string) (lat float64, lon float64, displayName string, confidence float64, err error)
	Reverse(ctx context.Context, lat, lon float64) (displayName string, err error)
}

// BuildLocationQuery joins the address parts of a ticket location into a
// single free-text query.
func BuildLocationQuery(loc models.Location) string {
	parts := []string{}
	for _, p := range []string{loc.Address, loc.City, loc.State, loc.ZipCode} {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// ShouldGeocode reports whether a location still needs coordinates.
func ShouldGeocode(loc models.Location, force bool) bool {
	if force {
		return true
	}
	return loc.Latitude == 0 && loc.Longitude == 0
}
