// Package verify implements the existence gate: a single web search per
// incoming record that decides whether the event is real enough to spend
// enrichment tokens on.
package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/namratade97/berlin-kultur-intel/internal/model"
	"github.com/namratade97/berlin-kultur-intel/pkg/tavily"
)

// Gate checks a raw event record against live web evidence.
type Gate struct {
	search tavily.Client
	logger *zap.Logger
}

// NewGate creates a verification gate backed by the given search client.
func NewGate(search tavily.Client, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.L()
	}
	return &Gate{search: search, logger: logger}
}

// Query builds the search query for a record. Name and venue are NFC
// normalized first so visually identical umlaut spellings produce the same
// query bytes.
func Query(record model.RawEventRecord) string {
	name := norm.NFC.String(strings.TrimSpace(record.EventName))
	venue := norm.NFC.String(strings.TrimSpace(record.VenueName))
	return fmt.Sprintf("Berlin event %s at %s date verification", name, venue)
}

// Check runs exactly one search for the record. The event counts as
// verified when the search returns at least one result; relevance of the
// hits is not inspected. A search transport failure is an error, not a
// rejection.
func (g *Gate) Check(ctx context.Context, record model.RawEventRecord) (model.VerificationResult, error) {
	query := Query(record)

	resp, err := g.search.Search(ctx, tavily.SearchRequest{Query: query})
	if err != nil {
		return model.VerificationResult{}, eris.Wrap(err, "verify: search")
	}

	result := model.VerificationResult{
		IsVerified: len(resp.Results) > 0,
		Iterations: 1,
	}
	g.logger.Info("verify: gate decision",
		zap.String("event", record.EventName),
		zap.Bool("verified", result.IsVerified),
		zap.Int("results", len(resp.Results)),
	)
	return result, nil
}
