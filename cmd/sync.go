package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/namratade97/berlin-kultur-intel/internal/resilience"
	"github.com/namratade97/berlin-kultur-intel/internal/vault"
	"github.com/namratade97/berlin-kultur-intel/pkg/gemini"
	"github.com/namratade97/berlin-kultur-intel/pkg/notion"
	"github.com/namratade97/berlin-kultur-intel/pkg/qdrant"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Backfill the vault from the curated Notion events table",
	Long:  "Reads every row of the curated events database, maps it to a dossier payload with defaulted quality metadata, embeds it and upserts it into the vault.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		notionClient := notion.NewClient(cfg.Notion.Token)
		embedClient := gemini.NewClient(cfg.Gemini.Key, gemini.WithModel(cfg.Gemini.Model))

		qdrantOpts := []qdrant.Option{qdrant.WithBaseURL(cfg.Qdrant.URL)}
		if cfg.Qdrant.APIKey != "" {
			qdrantOpts = append(qdrantOpts, qdrant.WithAPIKey(cfg.Qdrant.APIKey))
		}
		v := vault.New(qdrant.NewClient(qdrantOpts...), embedClient, zap.L()).
			WithCollection(cfg.Qdrant.Collection)
		if err := v.EnsureReady(ctx); err != nil {
			return err
		}

		pages, err := notion.QueryAll(ctx, notionClient, cfg.Notion.EventsDB)
		if err != nil {
			return err
		}
		zap.L().Info("sync: curated rows fetched", zap.Int("rows", len(pages)))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Sync.Concurrency)

		var queued, skipped int
		for _, page := range pages {
			payload, ok := notion.EventFromPage(page)
			if !ok {
				skipped++
				continue
			}

			g.Go(func() error {
				retryCfg := resilience.DefaultRetryConfig()
				retryCfg.OnRetry = resilience.RetryLogger("qdrant", "upsert")
				return resilience.Do(gctx, retryCfg, func(ctx context.Context) error {
					_, err := v.Save(ctx, payload)
					return err
				})
			})
			queued++
		}

		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("sync: complete",
			zap.Int("upserted", queued),
			zap.Int("skipped", skipped),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
