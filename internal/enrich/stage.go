// Package enrich turns a verified raw event record into a structured
// cultural dossier via a two-step generation exchange: a free-text
// corroboration pass followed by a structured refinement pass.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/namratade97/berlin-kultur-intel/internal/model"
	"github.com/namratade97/berlin-kultur-intel/pkg/tavily"
)

// Generator is the text-generation surface the stage needs. The provider
// fallback chain satisfies it.
type Generator interface {
	Complete(ctx context.Context, prompt, systemInstruction string) (string, error)
}

const corroborateSystem = `You are a Berlin cultural research assistant. Given a local event and ` +
	`web search evidence, write a short factual briefing about the event: what it is, ` +
	`who attends, and how it fits the city's cultural landscape. Plain prose, no lists.`

const refineSystem = `You are a cultural analyst producing structured event dossiers. ` +
	`Respond with a single JSON object and nothing else, using exactly these keys: ` +
	`"eventName" (string), "venueName" (string), "district" (string), ` +
	`"vibeProfile" (array of 2-4 short strings), "influenceScore" (integer 0-100), ` +
	`"confidenceScore" (integer 0-10), "summary" (string, 1-2 sentences).`

// Stage runs the two-step enrichment exchange.
type Stage struct {
	generator Generator
	search    tavily.Client
	logger    *zap.Logger
}

// NewStage creates an enrichment stage. The search client is optional;
// without it corroboration runs on the record text alone.
func NewStage(generator Generator, search tavily.Client, logger *zap.Logger) *Stage {
	if logger == nil {
		logger = zap.L()
	}
	return &Stage{generator: generator, search: search, logger: logger}
}

// Enrich produces a dossier for a verified record. Generation failures
// propagate; malformed or out-of-range structured output never does, the
// repair path and finally the sentinel dossier absorb it.
func (s *Stage) Enrich(ctx context.Context, record model.RawEventRecord) (model.CulturalDossier, error) {
	corroboration, err := s.corroborate(ctx, record)
	if err != nil {
		return model.CulturalDossier{}, err
	}

	raw, err := s.generator.Complete(ctx, refinePrompt(record, corroboration), refineSystem)
	if err != nil {
		return model.CulturalDossier{}, err
	}

	dossier, ok := parseDossier(raw)
	if !ok {
		s.logger.Warn("enrich: refinement output unusable after repair, issuing sentinel",
			zap.String("event", record.EventName),
		)
		return SentinelDossier(record), nil
	}
	return dossier, nil
}

// corroborate gathers fresh search evidence and asks for a free-text
// briefing. The briefing is advisory context for refinement, never parsed.
func (s *Stage) corroborate(ctx context.Context, record model.RawEventRecord) (string, error) {
	evidence := s.searchEvidence(ctx, record)

	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\nVenue: %s\nDistrict: %s\n", record.EventName, record.VenueName, record.District)
	if record.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", record.Description)
	}
	if evidence != "" {
		fmt.Fprintf(&b, "\nWeb evidence:\n%s", evidence)
	}

	return s.generator.Complete(ctx, b.String(), corroborateSystem)
}

// searchEvidence is best-effort: a search failure degrades the briefing,
// it does not fail the stage.
func (s *Stage) searchEvidence(ctx context.Context, record model.RawEventRecord) string {
	if s.search == nil {
		return ""
	}
	query := fmt.Sprintf("%s %s Berlin", record.EventName, record.VenueName)
	resp, err := s.search.Search(ctx, tavily.SearchRequest{Query: query})
	if err != nil {
		s.logger.Warn("enrich: evidence search failed, continuing without",
			zap.String("event", record.EventName),
			zap.Error(err),
		)
		return ""
	}
	var b strings.Builder
	for _, r := range resp.Results {
		fmt.Fprintf(&b, "- %s: %s\n", r.Title, r.Content)
	}
	return b.String()
}

func refinePrompt(record model.RawEventRecord, corroboration string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Produce the dossier for this event.\n\nEvent: %s\nVenue: %s\nDistrict: %s\n",
		record.EventName, record.VenueName, record.District)
	if corroboration != "" {
		fmt.Fprintf(&b, "\nResearch briefing:\n%s\n", corroboration)
	}
	return b.String()
}

// parseDossier parses the refinement output, falling through the repair
// path on failure. The second return is false only when even the repaired
// text is unusable.
func parseDossier(raw string) (model.CulturalDossier, bool) {
	var dossier model.CulturalDossier
	if err := json.Unmarshal([]byte(raw), &dossier); err == nil && dossier.Validate() == nil {
		return dossier, true
	}

	cleaned := cleanJSON(raw)
	dossier = model.CulturalDossier{}
	if err := json.Unmarshal([]byte(cleaned), &dossier); err != nil {
		return model.CulturalDossier{}, false
	}
	if err := dossier.Validate(); err != nil {
		return model.CulturalDossier{}, false
	}
	return dossier, true
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// SentinelDossier is the placeholder persisted when refinement output is
// unusable. The fixed eventName flags the record for human review in the
// curation tooling.
func SentinelDossier(record model.RawEventRecord) model.CulturalDossier {
	return model.CulturalDossier{
		EventName:   "Manual Recovery Required",
		VenueName:   record.VenueName,
		District:    record.District,
		VibeProfile: []string{},
		Summary: fmt.Sprintf("Automated enrichment could not produce a valid dossier for %q at %q. "+
			"The record was verified but needs manual curation.", record.EventName, record.VenueName),
	}
}
