package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDossierValidate(t *testing.T) {
	valid := CulturalDossier{
		EventName:       "CTM Festival",
		VenueName:       "Berghain",
		District:        "Friedrichshain",
		VibeProfile:     []string{"experimental", "techno"},
		InfluenceScore:  88,
		ConfidenceScore: 9,
		Summary:         "A pillar of Berlin's experimental music calendar.",
	}

	tests := []struct {
		name    string
		mutate  func(*CulturalDossier)
		wantErr string
	}{
		{name: "valid", mutate: func(d *CulturalDossier) {}},
		{
			name:    "missing_event_name",
			mutate:  func(d *CulturalDossier) { d.EventName = "" },
			wantErr: "eventName is required",
		},
		{
			name:    "missing_summary",
			mutate:  func(d *CulturalDossier) { d.Summary = "" },
			wantErr: "summary is required",
		},
		{
			name:    "influence_too_high",
			mutate:  func(d *CulturalDossier) { d.InfluenceScore = 101 },
			wantErr: "influenceScore 101 outside [0,100]",
		},
		{
			name:    "influence_negative",
			mutate:  func(d *CulturalDossier) { d.InfluenceScore = -1 },
			wantErr: "outside [0,100]",
		},
		{
			name:    "confidence_too_high",
			mutate:  func(d *CulturalDossier) { d.ConfidenceScore = 11 },
			wantErr: "confidenceScore 11 outside [0,10]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDossierJSONKeys(t *testing.T) {
	d := CulturalDossier{EventName: "Gallery Weekend", VibeProfile: []string{"art"}}
	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))

	// The payload contract is camelCase and shared with external tooling.
	for _, key := range []string{"eventName", "venueName", "district", "vibeProfile", "influenceScore", "confidenceScore", "summary"} {
		assert.Contains(t, m, key)
	}
}

func TestSearchableText(t *testing.T) {
	p := EventPayload{
		CulturalDossier: CulturalDossier{
			EventName:   "Fête de la Musique",
			VenueName:   "Mauerpark",
			VibeProfile: []string{"open-air", "community"},
			Summary:     "Free music across the city for one day.",
		},
	}
	assert.Equal(t,
		"Fête de la Musique at Mauerpark. Vibe: open-air, community. Free music across the city for one day.",
		p.SearchableText(),
	)

	// No vibe profile and no summary still yields a stable prefix.
	bare := EventPayload{CulturalDossier: CulturalDossier{EventName: "X", VenueName: "Y"}}
	assert.Equal(t, "X at Y.", bare.SearchableText())
}

func TestSourceText(t *testing.T) {
	r := RawEventRecord{
		EventName:   "Christopher Street Day",
		VenueName:   "Various venues",
		District:    "Mitte",
		Description: "Annual pride parade.",
	}
	got := r.SourceText()
	assert.Contains(t, got, "eventName: Christopher Street Day")
	assert.Contains(t, got, "venueName: Various venues")
	assert.Contains(t, got, "description: Annual pride parade.")
	assert.NotContains(t, got, "url:")
}

func TestAuditStatus(t *testing.T) {
	assert.Equal(t, QualityStatusVerified, QualityAudit{Passed: true}.Status())
	assert.Equal(t, QualityStatusFlagged, QualityAudit{Passed: false}.Status())
}

func TestPipelineResultJSONShapes(t *testing.T) {
	t.Run("rejected carries only status and reason", func(t *testing.T) {
		result := PipelineResult{
			Status: RunStatusRejected,
			Reason: "Event could not be verified via Tavily search.",
		}

		data, err := json.Marshal(result)
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(data, &body))
		assert.Equal(t, "rejected", body["status"])
		assert.Equal(t, "Event could not be verified via Tavily search.", body["reason"])
		assert.NotContains(t, body, "quality_passed")
		assert.NotContains(t, body, "quality_score")
		assert.NotContains(t, body, "data")
	})

	t.Run("processed carries quality fields and payload", func(t *testing.T) {
		result := PipelineResult{
			Status:        RunStatusProcessed,
			QualityPassed: true,
			QualityScore:  0.9,
			Data:          &EventPayload{CulturalDossier: CulturalDossier{EventName: "CTM Festival"}},
		}

		data, err := json.Marshal(result)
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(data, &body))
		assert.Equal(t, "processed", body["status"])
		assert.Equal(t, true, body["quality_passed"])
		assert.InDelta(t, 0.9, body["quality_score"].(float64), 1e-9)
		assert.NotContains(t, body, "reason")
		require.Contains(t, body, "data")
	})

	t.Run("error_shielded reports permissive quality fields", func(t *testing.T) {
		result := PipelineResult{
			Status:        RunStatusErrorShielded,
			QualityPassed: true,
			QualityScore:  1.0,
			Data:          &EventPayload{CulturalDossier: CulturalDossier{EventName: "CTM Festival"}},
		}

		data, err := json.Marshal(result)
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(data, &body))
		assert.Equal(t, "error_shielded", body["status"])
		assert.Equal(t, true, body["quality_passed"])
		assert.InDelta(t, 1.0, body["quality_score"].(float64), 1e-9)
		assert.NotContains(t, body, "reason")
	})
}
