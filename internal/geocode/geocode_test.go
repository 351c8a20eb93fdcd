package geocode

import (
	"testing"

	"github.com/fieldops/backend/internal/models"
)

func TestBuildLocationQuery(t *testing.T) {
	q := BuildLocationQuery(models.Location{
		Address: "12 Jalan Ampang",
		City:    "Kuala Lumpur",
		State:   "WP",
		ZipCode: "50450",
	})
	if q != "12 Jalan Ampang, Kuala Lumpur, WP, 50450" {
		t.Fatalf("unexpected query: %s", q)
	}
}

func TestBuildLocationQuerySkipsBlanks(t *testing.T) {
	q := BuildLocationQuery(models.Location{Address: "12 Jalan Ampang", State: "  "})
	if q != "12 Jalan Ampang" {
		t.Fatalf("unexpected query: %s", q)
	}
}

func TestShouldGeocodeSkipWhenCoordinatesExist(t *testing.T) {
	loc := models.Location{Address: "somewhere", Latitude: 3.14, Longitude: 101.69}
	if ShouldGeocode(loc, false) {
		t.Fatalf("expected geocode to be skipped when coordinates exist")
	}
	if !ShouldGeocode(loc, true) {
		t.Fatalf("expected geocode when force is true")
	}
}
