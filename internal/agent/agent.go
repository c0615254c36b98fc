// Package agent answers free-form questions about the stored events,
// routing analytical questions to SQL over the archive mirror and
// narrative ones to retrieval-augmented generation over the vault.
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/namratade97/berlin-kultur-intel/internal/vault"
)

// DegradedAnswer is returned when every generation path fails. The matches
// still go out, so the frontend has locations to show.
const DegradedAnswer = "Sorry, at this moment my analytical brain is offline (all LLMs rate-limited), but I've pulled these locations for you!"

// matchLimit is how many vector matches accompany every answer.
const matchLimit = 3

// schemaInfo is handed to the SQL-writing model verbatim.
const schemaInfo = `Table: historical_events
Columns: eventName, district, venueName, collection, url, quality_status
Note: The 'collection' column contains strings like 'FebruaryEvents' or 'MarchEvents', the type of event can be found here also, like 'FestivalEvents' or 'ExhibitionEvents'.`

// defaultTriggers route a question down the analytical path.
var defaultTriggers = []string{"how many", "count", "total", "average", "history"}

// Classifier decides whether a question is analytical.
type Classifier func(question string) bool

// KeywordClassifier returns a Classifier matching any of the given
// substrings, case-insensitively.
func KeywordClassifier(triggers ...string) Classifier {
	return func(question string) bool {
		q := strings.ToLower(question)
		for _, t := range triggers {
			if strings.Contains(q, t) {
				return true
			}
		}
		return false
	}
}

// Generator is the text-generation surface behind both answer paths.
type Generator interface {
	Complete(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// Searcher is the vault similarity-search surface.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]vault.Match, error)
}

// Archive is the read-only SQL surface over the relational mirror.
type Archive interface {
	Query(ctx context.Context, query string) ([]map[string]any, error)
}

// Response is an answer plus the vector matches that informed it.
type Response struct {
	Answer  string        `json:"answer"`
	Matches []vault.Match `json:"matches"`
}

// Agent routes and answers questions.
type Agent struct {
	searcher   Searcher
	archive    Archive
	generator  Generator
	classifier Classifier
	logger     *zap.Logger
}

// New creates an agent with the default keyword classifier.
func New(searcher Searcher, archive Archive, generator Generator, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.L()
	}
	return &Agent{
		searcher:   searcher,
		archive:    archive,
		generator:  generator,
		classifier: KeywordClassifier(defaultTriggers...),
		logger:     logger,
	}
}

// WithClassifier overrides the routing predicate.
func (a *Agent) WithClassifier(c Classifier) *Agent {
	if c != nil {
		a.classifier = c
	}
	return a
}

// Ask answers a question. Matches are fetched first regardless of route,
// tolerating search failures; any failure in the generation paths degrades
// to a fixed answer rather than an error. Ask never fails.
func (a *Agent) Ask(ctx context.Context, question string) Response {
	matches, err := a.searcher.Search(ctx, question, matchLimit)
	if err != nil {
		a.logger.Warn("agent: match retrieval failed, answering without context", zap.Error(err))
		matches = nil
	}

	var answer string
	if a.classifier(question) {
		answer, err = a.answerAnalytical(ctx, question)
	} else {
		answer, err = a.answerNarrative(ctx, question, matches)
	}
	if err != nil {
		a.logger.Warn("agent: generation failed, degrading",
			zap.String("question", question),
			zap.Error(err),
		)
		answer = DegradedAnswer
	}

	return Response{Answer: answer, Matches: matches}
}

// answerAnalytical has the model write SQL against the mirror, runs it,
// and has the model summarize the rows.
func (a *Agent) answerAnalytical(ctx context.Context, question string) (string, error) {
	sqlPrompt := fmt.Sprintf("Given %s, write a SQLite query for: %s. Output raw SQL only.", schemaInfo, question)
	rawSQL, err := a.generator.Complete(ctx, sqlPrompt, "You are a SQL expert.")
	if err != nil {
		return "", err
	}

	rows, err := a.archive.Query(ctx, stripSQLFences(rawSQL))
	if err != nil {
		return "", err
	}

	summaryPrompt := fmt.Sprintf("User asked: %s. Data: %v. Summarize shortly.", question, rows)
	return a.generator.Complete(ctx, summaryPrompt, "You are a data assistant.")
}

// answerNarrative answers over the retrieved matches.
func (a *Agent) answerNarrative(ctx context.Context, question string, matches []vault.Match) (string, error) {
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "- %s: %s\n", m.Payload.EventName, m.Payload.Summary)
	}
	prompt := fmt.Sprintf("Context:\n%s\nQuestion: %s", b.String(), question)
	return a.generator.Complete(ctx, prompt, "You are a witty Berlin guide.")
}

// stripSQLFences removes markdown fencing from model-written SQL.
func stripSQLFences(s string) string {
	s = strings.ReplaceAll(s, "```sql", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
