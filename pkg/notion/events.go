package notion

import (
	"strings"

	"github.com/jomei/notionapi"

	"github.com/namratade97/berlin-kultur-intel/internal/model"
)

// Curated-table column names. The table predates this service; editors keep
// maintaining it under these headings.
const (
	colEvent       = "Event"
	colVenue       = "Venue"
	colDistrict    = "District"
	colSummary     = "Summary"
	colVibeScore   = "VibeScore"
	colVibeProfile = "VibeProfile"
	colQuality     = "QualityScore"
	colAuditReason = "AuditReason"
	colAuditStatus = "AuditStatus"
	colCollection  = "Collection"
	colURL         = "URL"
)

// EventFromPage maps one curated-table row to an event payload. Rows with
// an empty Event column are skipped by returning ok=false. Quality fields
// default to verified values when the editors left them blank, matching
// what the pipeline would have written for a clean run.
func EventFromPage(page notionapi.Page) (model.EventPayload, bool) {
	name := textProp(page, colEvent)
	if name == "" {
		return model.EventPayload{}, false
	}

	payload := model.EventPayload{
		CulturalDossier: model.CulturalDossier{
			EventName:       name,
			VenueName:       textProp(page, colVenue),
			District:        textProp(page, colDistrict),
			Summary:         textProp(page, colSummary),
			InfluenceScore:  int(numberProp(page, colVibeScore)),
			ConfidenceScore: 10,
			VibeProfile:     splitProfile(textProp(page, colVibeProfile)),
		},
		QualityScore:  numberProp(page, colQuality),
		QualityReason: textProp(page, colAuditReason),
		QualityStatus: textProp(page, colAuditStatus),
		Collection:    textProp(page, colCollection),
		URL:           urlProp(page, colURL),
	}

	// A 0.00 score means the row was hand-curated before auditing existed.
	if payload.QualityScore == 0 {
		payload.QualityScore = 1.0
	}
	if payload.QualityReason == "" {
		payload.QualityReason = "Verified via local fallback."
	}
	if payload.QualityStatus == "" {
		payload.QualityStatus = model.QualityStatusVerified
	}

	return payload, true
}

func splitProfile(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// textProp extracts a plain string from title, rich text, select, or
// multi-select properties so editors are free to retype columns.
func textProp(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name]
	if !ok {
		return ""
	}
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		return joinRichText(p.Title)
	case *notionapi.RichTextProperty:
		return joinRichText(p.RichText)
	case *notionapi.SelectProperty:
		return p.Select.Name
	case *notionapi.MultiSelectProperty:
		names := make([]string, 0, len(p.MultiSelect))
		for _, opt := range p.MultiSelect {
			names = append(names, opt.Name)
		}
		return strings.Join(names, ", ")
	default:
		return ""
	}
}

func numberProp(page notionapi.Page, name string) float64 {
	if p, ok := page.Properties[name].(*notionapi.NumberProperty); ok {
		return p.Number
	}
	return 0
}

func urlProp(page notionapi.Page, name string) string {
	if p, ok := page.Properties[name].(*notionapi.URLProperty); ok {
		return p.URL
	}
	return textProp(page, name)
}

func joinRichText(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		b.WriteString(r.PlainText)
	}
	return strings.TrimSpace(b.String())
}
