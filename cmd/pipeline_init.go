package main

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/namratade97/berlin-kultur-intel/internal/agent"
	"github.com/namratade97/berlin-kultur-intel/internal/archive"
	"github.com/namratade97/berlin-kultur-intel/internal/enrich"
	"github.com/namratade97/berlin-kultur-intel/internal/llm"
	"github.com/namratade97/berlin-kultur-intel/internal/model"
	"github.com/namratade97/berlin-kultur-intel/internal/pipeline"
	"github.com/namratade97/berlin-kultur-intel/internal/quality"
	"github.com/namratade97/berlin-kultur-intel/internal/vault"
	"github.com/namratade97/berlin-kultur-intel/internal/verify"
	"github.com/namratade97/berlin-kultur-intel/pkg/gemini"
	"github.com/namratade97/berlin-kultur-intel/pkg/qdrant"
	"github.com/namratade97/berlin-kultur-intel/pkg/tavily"
)

// pipelineEnv holds the initialized clients and stages the serve/ingest
// commands need.
type pipelineEnv struct {
	Vault    *vault.Vault
	Archive  archive.Store
	Chain    *llm.FallbackClient
	Pipeline *pipeline.Orchestrator
	Agent    *agent.Agent
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Archive != nil {
		_ = pe.Archive.Close()
	}
}

// initPipeline sets up the clients, stages, and the orchestrator. Callers
// should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	chain, err := initChain()
	if err != nil {
		return nil, err
	}

	searchClient := tavily.NewClient(cfg.Tavily.Key, tavily.WithRateLimit(cfg.Tavily.MaxRPM))
	embedClient := gemini.NewClient(cfg.Gemini.Key, gemini.WithModel(cfg.Gemini.Model))

	qdrantOpts := []qdrant.Option{qdrant.WithBaseURL(cfg.Qdrant.URL)}
	if cfg.Qdrant.APIKey != "" {
		qdrantOpts = append(qdrantOpts, qdrant.WithAPIKey(cfg.Qdrant.APIKey))
	}
	vectorStore := qdrant.NewClient(qdrantOpts...)

	v := vault.New(vectorStore, embedClient, zap.L()).WithCollection(cfg.Qdrant.Collection)
	if err := v.EnsureReady(ctx); err != nil {
		return nil, err
	}

	mirror, err := initArchive(ctx)
	if err != nil {
		return nil, err
	}

	gate := verify.NewGate(searchClient, zap.L())
	enricher := enrich.NewStage(chain, searchClient, zap.L())
	auditor := quality.NewGate(chain, zap.L()).WithThreshold(cfg.Quality.Threshold)
	orchestrator := pipeline.New(gate, enricher, auditor, v, zap.L())

	return &pipelineEnv{
		Vault:    v,
		Archive:  mirror,
		Chain:    chain,
		Pipeline: orchestrator,
		Agent:    agent.New(v, mirror, chain, zap.L()),
	}, nil
}

// initChain builds the provider fallback chain, from the configured yaml
// file when present, the built-in default otherwise.
func initChain() (*llm.FallbackClient, error) {
	chainCfg := llm.DefaultChainConfig()
	if cfg.LLM.ChainFile != "" {
		loaded, err := llm.LoadChainConfig(cfg.LLM.ChainFile)
		if err != nil {
			return nil, err
		}
		chainCfg = loaded
	}
	return chainCfg.Build(), nil
}

// initArchive opens the relational mirror with the configured driver.
func initArchive(ctx context.Context) (archive.Store, error) {
	switch cfg.Archive.Driver {
	case "sqlite", "":
		return archive.NewSQLite(cfg.Archive.SQLitePath)
	case "postgres":
		if cfg.Archive.DatabaseURL == "" {
			return nil, eris.New("archive.database_url is required for the postgres driver")
		}
		return archive.NewPostgres(ctx, cfg.Archive.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown archive driver %q", cfg.Archive.Driver)
	}
}

// rebuildArchive mirrors the full vault contents into the relational
// archive. Points whose payloads no longer parse are skipped.
func rebuildArchive(ctx context.Context, v *vault.Vault, mirror archive.Store) error {
	points, err := v.ScrollAll(ctx, 100)
	if err != nil {
		return err
	}

	events := make([]model.EventPayload, 0, len(points))
	for _, p := range points {
		var payload model.EventPayload
		if err := json.Unmarshal(p.Payload, &payload); err != nil {
			zap.L().Warn("archive rebuild: skipping malformed payload", zap.Any("id", p.ID), zap.Error(err))
			continue
		}
		events = append(events, payload)
	}

	if err := mirror.Rebuild(ctx, events); err != nil {
		return err
	}
	zap.L().Info("archive mirror rebuilt", zap.Int("events", len(events)))
	return nil
}
