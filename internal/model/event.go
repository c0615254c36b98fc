// Package model defines the core types that flow through the event
// verification and enrichment pipeline.
package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// RawEventRecord is the untrusted input to a pipeline run. It is never
// mutated after receipt; every downstream stage works on derived data.
type RawEventRecord struct {
	EventName   string `json:"eventName"`
	VenueName   string `json:"venueName"`
	District    string `json:"district"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Collection  string `json:"collection,omitempty"`
}

// SourceText renders the raw record as the reference text the quality gate
// scores the generated summary against.
func (r RawEventRecord) SourceText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "eventName: %s; venueName: %s; district: %s", r.EventName, r.VenueName, r.District)
	if r.Description != "" {
		fmt.Fprintf(&b, "; description: %s", r.Description)
	}
	if r.URL != "" {
		fmt.Fprintf(&b, "; url: %s", r.URL)
	}
	return b.String()
}

// VerificationResult is the outcome of the verification gate. It is a
// transient decision artifact, consumed once and never persisted.
type VerificationResult struct {
	IsVerified bool `json:"is_verified"`
	Iterations int  `json:"iterations"`
}

// CulturalDossier is the structured enrichment output. JSON keys match the
// payload contract of the vector store collection, which predates this
// service and is shared with the sync and frontend tooling.
type CulturalDossier struct {
	EventName       string   `json:"eventName"`
	VenueName       string   `json:"venueName"`
	District        string   `json:"district"`
	VibeProfile     []string `json:"vibeProfile"`
	InfluenceScore  int      `json:"influenceScore"`
	ConfidenceScore int      `json:"confidenceScore"`
	Summary         string   `json:"summary"`
}

// Validate checks required fields and documented numeric ranges. A failing
// dossier is treated like a malformed refinement response: the caller runs
// the repair path rather than propagating the error.
func (d CulturalDossier) Validate() error {
	if d.EventName == "" {
		return eris.New("dossier: eventName is required")
	}
	if d.Summary == "" {
		return eris.New("dossier: summary is required")
	}
	if d.InfluenceScore < 0 || d.InfluenceScore > 100 {
		return eris.Errorf("dossier: influenceScore %d outside [0,100]", d.InfluenceScore)
	}
	if d.ConfidenceScore < 0 || d.ConfidenceScore > 10 {
		return eris.Errorf("dossier: confidenceScore %d outside [0,10]", d.ConfidenceScore)
	}
	return nil
}

// Quality status values recorded on persisted payloads.
const (
	QualityStatusVerified = "verified"
	QualityStatusFlagged  = "flagged"
	QualityStatusRescued  = "rescued"
)

// QualityAudit is the faithfulness verdict attached to a dossier before
// persistence. It never exists independently of a dossier.
type QualityAudit struct {
	Score  float64 `json:"score"`
	Passed bool    `json:"passed"`
	Reason string  `json:"reason"`
}

// Status derives the stored quality_status value from the audit verdict.
func (a QualityAudit) Status() string {
	if a.Passed {
		return QualityStatusVerified
	}
	return QualityStatusFlagged
}

// EventPayload is the terminal, durable form written to the vector store:
// the dossier plus quality metadata and optional coordinates. Once written
// it is immutable from the pipeline's perspective; only out-of-band backfill
// jobs (sync, geofix) overwrite it.
type EventPayload struct {
	CulturalDossier

	QualityScore  float64 `json:"quality_score"`
	QualityReason string  `json:"quality_reason"`
	QualityStatus string  `json:"quality_status"`

	Lat float64 `json:"lat,omitempty"`
	Lng float64 `json:"lng,omitempty"`

	URL        string `json:"url,omitempty"`
	Collection string `json:"collection,omitempty"`
}

// SearchableText builds the text block that gets embedded for similarity
// search. Format is shared with the sync job and must stay stable: existing
// vectors in the collection were produced from it.
func (p EventPayload) SearchableText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s.", p.EventName, p.VenueName)
	if len(p.VibeProfile) > 0 {
		fmt.Fprintf(&b, " Vibe: %s.", strings.Join(p.VibeProfile, ", "))
	}
	if p.Summary != "" {
		b.WriteString(" " + p.Summary)
	}
	return b.String()
}

// RunStatus tracks a pipeline run through its state machine.
type RunStatus string

// Pipeline run states. Rejected, Processed, Rescued and ErrorShielded are
// terminal.
const (
	RunStatusReceived      RunStatus = "received"
	RunStatusVerifying     RunStatus = "verifying"
	RunStatusRejected      RunStatus = "rejected"
	RunStatusEnriching     RunStatus = "enriching"
	RunStatusScoring       RunStatus = "scoring"
	RunStatusPersisting    RunStatus = "persisting"
	RunStatusProcessed     RunStatus = "processed"
	RunStatusRescued       RunStatus = "rescued"
	RunStatusErrorShielded RunStatus = "error_shielded"
)

// PipelineResult is the boundary-shaped outcome of a run. The HTTP layer
// serializes it verbatim and always delivers it with a success status so
// upstream automation never halts on pipeline-internal errors.
type PipelineResult struct {
	Status        RunStatus     `json:"status"`
	Reason        string        `json:"reason,omitempty"`
	QualityPassed bool          `json:"quality_passed"`
	QualityScore  float64       `json:"quality_score"`
	Data          *EventPayload `json:"data,omitempty"`
}

// MarshalJSON shapes the body per terminal status: a rejection carries
// only status and reason, everything else carries the quality fields and
// the payload.
func (r PipelineResult) MarshalJSON() ([]byte, error) {
	if r.Status == RunStatusRejected {
		return json.Marshal(struct {
			Status RunStatus `json:"status"`
			Reason string    `json:"reason"`
		}{Status: r.Status, Reason: r.Reason})
	}

	return json.Marshal(struct {
		Status        RunStatus     `json:"status"`
		QualityPassed bool          `json:"quality_passed"`
		QualityScore  float64       `json:"quality_score"`
		Data          *EventPayload `json:"data,omitempty"`
	}{
		Status:        r.Status,
		QualityPassed: r.QualityPassed,
		QualityScore:  r.QualityScore,
		Data:          r.Data,
	})
}
