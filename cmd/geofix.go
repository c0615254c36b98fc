package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namratade97/berlin-kultur-intel/internal/model"
	"github.com/namratade97/berlin-kultur-intel/internal/vault"
	"github.com/namratade97/berlin-kultur-intel/pkg/gemini"
	"github.com/namratade97/berlin-kultur-intel/pkg/nominatim"
	"github.com/namratade97/berlin-kultur-intel/pkg/qdrant"
)

// Fallback coordinates for "various venues" and failed lookups.
const (
	berlinCenterLat = 52.5200
	berlinCenterLng = 13.4050
)

var geofixAll bool

var geofixCmd = &cobra.Command{
	Use:   "geofix",
	Short: "Backfill coordinates on stored events",
	Long:  "Scrolls the vault, geocodes each event venue via Nominatim, and writes lat/lng into the payload. Events at unspecific venues get Berlin-center coordinates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("geofix"); err != nil {
			return err
		}

		geocoder := nominatim.NewClient(
			nominatim.WithBaseURL(cfg.Nominatim.BaseURL),
			nominatim.WithUserAgent(cfg.Nominatim.UserAgent),
		)

		qdrantOpts := []qdrant.Option{qdrant.WithBaseURL(cfg.Qdrant.URL)}
		if cfg.Qdrant.APIKey != "" {
			qdrantOpts = append(qdrantOpts, qdrant.WithAPIKey(cfg.Qdrant.APIKey))
		}
		embedClient := gemini.NewClient(cfg.Gemini.Key, gemini.WithModel(cfg.Gemini.Model))
		v := vault.New(qdrant.NewClient(qdrantOpts...), embedClient, zap.L()).
			WithCollection(cfg.Qdrant.Collection)

		points, err := v.ScrollAll(ctx, 100)
		if err != nil {
			return err
		}

		var updated, skipped int
		for _, p := range points {
			var payload model.EventPayload
			if err := json.Unmarshal(p.Payload, &payload); err != nil {
				zap.L().Warn("geofix: skipping malformed payload", zap.Any("id", p.ID))
				continue
			}
			if !geofixAll && (payload.Lat != 0 || payload.Lng != 0) {
				skipped++
				continue
			}

			lat, lng := resolveCoords(ctx, geocoder, payload.VenueName, payload.District)
			id := fmt.Sprintf("%v", p.ID)
			if err := v.SetCoordinates(ctx, lat, lng, []string{id}); err != nil {
				zap.L().Warn("geofix: payload update failed",
					zap.String("event", payload.EventName),
					zap.Error(err),
				)
				continue
			}
			updated++
			zap.L().Info("geofix: coordinates set",
				zap.String("event", payload.EventName),
				zap.Float64("lat", lat),
				zap.Float64("lng", lng),
			)
		}

		zap.L().Info("geofix: complete", zap.Int("updated", updated), zap.Int("skipped", skipped))
		return nil
	},
}

// resolveCoords geocodes a venue, falling back to Berlin center for
// unspecific venues and failed lookups.
func resolveCoords(ctx context.Context, geocoder nominatim.Client, venue, district string) (float64, float64) {
	if venue == "" || strings.Contains(strings.ToLower(venue), "various") {
		return berlinCenterLat, berlinCenterLng
	}
	if district == "" {
		district = "Berlin"
	}

	query := fmt.Sprintf("%s, %s, Berlin, Germany", venue, district)
	lat, lng, ok, err := geocoder.Geocode(ctx, query)
	if err != nil {
		zap.L().Warn("geofix: geocoding failed, using center fallback",
			zap.String("venue", venue),
			zap.Error(err),
		)
		return berlinCenterLat, berlinCenterLng
	}
	if !ok {
		return berlinCenterLat, berlinCenterLng
	}
	return lat, lng
}

func init() {
	geofixCmd.Flags().BoolVar(&geofixAll, "all", false, "re-geocode events that already have coordinates")
	rootCmd.AddCommand(geofixCmd)
}
