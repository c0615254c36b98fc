// Package pipeline sequences verification, enrichment, quality audit and
// persistence for a single event record, shielding callers from every
// internal failure past the verification gate.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/namratade97/berlin-kultur-intel/internal/model"
)

// RejectionReason is returned for events the verification gate turned away.
const RejectionReason = "Event could not be verified via Tavily search."

// errTruncateLen bounds the error text written into quality_reason.
const errTruncateLen = 100

// Verifier is the existence gate.
type Verifier interface {
	Check(ctx context.Context, record model.RawEventRecord) (model.VerificationResult, error)
}

// Enricher produces a dossier for a verified record.
type Enricher interface {
	Enrich(ctx context.Context, record model.RawEventRecord) (model.CulturalDossier, error)
}

// Auditor scores dossier faithfulness. It cannot fail; degraded verdicts
// are its problem, not the orchestrator's.
type Auditor interface {
	Evaluate(ctx context.Context, record model.RawEventRecord, dossier model.CulturalDossier) model.QualityAudit
}

// Store persists the terminal payload.
type Store interface {
	Save(ctx context.Context, payload model.EventPayload) (string, error)
}

// Orchestrator runs the pipeline state machine.
type Orchestrator struct {
	verifier Verifier
	enricher Enricher
	auditor  Auditor
	store    Store
	logger   *zap.Logger
}

// New wires the pipeline stages together.
func New(verifier Verifier, enricher Enricher, auditor Auditor, store Store, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.L()
	}
	return &Orchestrator{
		verifier: verifier,
		enricher: enricher,
		auditor:  auditor,
		store:    store,
		logger:   logger,
	}
}

// Run takes a raw record through the full pipeline. It never returns an
// error: rejection is a structured outcome, and everything after the gate
// is covered by the shield. Callers always get a result they can serialize
// with a success status.
func (o *Orchestrator) Run(ctx context.Context, record model.RawEventRecord) model.PipelineResult {
	o.logger.Info("pipeline: run received", zap.String("event", record.EventName))

	verification, err := o.verifier.Check(ctx, record)
	if err != nil {
		// A broken evidence search must not crash the run. Without
		// evidence the event cannot be verified, so it is rejected the
		// same way an unfindable one would be.
		o.logger.Warn("pipeline: verification search failed, treating as unverified",
			zap.String("event", record.EventName),
			zap.Error(err),
		)
		verification = model.VerificationResult{IsVerified: false, Iterations: 1}
	}
	if !verification.IsVerified {
		o.logger.Info("pipeline: event rejected",
			zap.String("event", record.EventName),
			zap.Int("iterations", verification.Iterations),
		)
		return model.PipelineResult{
			Status: model.RunStatusRejected,
			Reason: RejectionReason,
		}
	}

	return o.runShielded(ctx, record)
}

// runShielded covers enrichment through persistence. Any error or panic
// inside becomes a rescued payload and a success-shaped result.
func (o *Orchestrator) runShielded(ctx context.Context, record model.RawEventRecord) (result model.PipelineResult) {
	// Partial dossier for the shield to rescue; stages overwrite it as
	// they make progress.
	partial := model.CulturalDossier{EventName: record.EventName}

	defer func() {
		if r := recover(); r != nil {
			result = o.shield(ctx, record, partial, fmt.Errorf("panic: %v", r))
		}
	}()

	dossier, err := o.enricher.Enrich(ctx, record)
	if err != nil {
		return o.shield(ctx, record, partial, err)
	}
	partial = dossier

	audit := o.auditor.Evaluate(ctx, record, dossier)

	payload := assemblePayload(record, dossier)
	payload.QualityScore = audit.Score
	payload.QualityReason = audit.Reason
	payload.QualityStatus = audit.Status()

	if _, err := o.store.Save(ctx, payload); err != nil {
		return o.shield(ctx, record, partial, err)
	}

	o.logger.Info("pipeline: run processed",
		zap.String("event", payload.EventName),
		zap.Bool("quality_passed", audit.Passed),
		zap.Float64("quality_score", audit.Score),
	)
	return model.PipelineResult{
		Status:        model.RunStatusProcessed,
		QualityPassed: audit.Passed,
		QualityScore:  audit.Score,
		Data:          &payload,
	}
}

// shield downgrades a failed run to neutral quality metadata and attempts
// a best-effort persist of whatever the stages produced. Persistence
// failing here is tolerated data loss; the caller still gets a
// success-shaped response either way.
func (o *Orchestrator) shield(ctx context.Context, record model.RawEventRecord, partial model.CulturalDossier, cause error) model.PipelineResult {
	o.logger.Warn("pipeline: shielding run from error",
		zap.String("event", record.EventName),
		zap.Error(cause),
	)

	payload := assemblePayload(record, partial)
	payload.QualityScore = 0.5
	payload.QualityStatus = model.QualityStatusRescued
	payload.QualityReason = "Pipeline Error: " + truncate(cause.Error(), errTruncateLen)

	if _, err := o.store.Save(ctx, payload); err != nil {
		o.logger.Error("pipeline: rescue persistence failed, record lost",
			zap.String("event", record.EventName),
			zap.Error(err),
		)
	} else {
		o.logger.Info("pipeline: partial data committed", zap.String("event", record.EventName))
	}

	return model.PipelineResult{
		Status:        model.RunStatusErrorShielded,
		QualityPassed: true,
		QualityScore:  1.0,
		Data:          &payload,
	}
}

// assemblePayload merges the dossier with record fields that bypass
// enrichment.
func assemblePayload(record model.RawEventRecord, dossier model.CulturalDossier) model.EventPayload {
	return model.EventPayload{
		CulturalDossier: dossier,
		URL:             record.URL,
		Collection:      record.Collection,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
