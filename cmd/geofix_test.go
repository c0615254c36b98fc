package main

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type fakeGeocoder struct {
	lat, lng float64
	ok       bool
	err      error
	queries  []string
}

func (f *fakeGeocoder) Geocode(ctx context.Context, query string) (float64, float64, bool, error) {
	f.queries = append(f.queries, query)
	return f.lat, f.lng, f.ok, f.err
}

func TestResolveCoords(t *testing.T) {
	ctx := context.Background()

	t.Run("geocodes a concrete venue", func(t *testing.T) {
		geo := &fakeGeocoder{lat: 52.5109, lng: 13.4429, ok: true}
		lat, lng := resolveCoords(ctx, geo, "Berghain", "Friedrichshain")
		assert.InDelta(t, 52.5109, lat, 1e-6)
		assert.InDelta(t, 13.4429, lng, 1e-6)
		assert.Equal(t, []string{"Berghain, Friedrichshain, Berlin, Germany"}, geo.queries)
	})

	t.Run("various venues skip the geocoder", func(t *testing.T) {
		geo := &fakeGeocoder{}
		lat, lng := resolveCoords(ctx, geo, "Various Venues", "Neukoelln")
		assert.InDelta(t, berlinCenterLat, lat, 1e-6)
		assert.InDelta(t, berlinCenterLng, lng, 1e-6)
		assert.Empty(t, geo.queries)
	})

	t.Run("empty venue falls back to center", func(t *testing.T) {
		geo := &fakeGeocoder{}
		lat, lng := resolveCoords(ctx, geo, "", "Mitte")
		assert.InDelta(t, berlinCenterLat, lat, 1e-6)
		assert.InDelta(t, berlinCenterLng, lng, 1e-6)
	})

	t.Run("lookup miss falls back to center", func(t *testing.T) {
		geo := &fakeGeocoder{ok: false}
		lat, lng := resolveCoords(ctx, geo, "Unheard-of Keller", "Wedding")
		assert.InDelta(t, berlinCenterLat, lat, 1e-6)
		assert.InDelta(t, berlinCenterLng, lng, 1e-6)
	})

	t.Run("lookup error falls back to center", func(t *testing.T) {
		geo := &fakeGeocoder{err: eris.New("nominatim: unexpected status 429")}
		lat, lng := resolveCoords(ctx, geo, "Berghain", "Friedrichshain")
		assert.InDelta(t, berlinCenterLat, lat, 1e-6)
		assert.InDelta(t, berlinCenterLng, lng, 1e-6)
	})

	t.Run("missing district defaults to Berlin", func(t *testing.T) {
		geo := &fakeGeocoder{ok: true, lat: 1, lng: 2}
		resolveCoords(ctx, geo, "Kraftwerk", "")
		assert.Equal(t, []string{"Kraftwerk, Berlin, Berlin, Germany"}, geo.queries)
	})
}
