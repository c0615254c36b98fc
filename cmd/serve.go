package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namratade97/berlin-kultur-intel/internal/agent"
	"github.com/namratade97/berlin-kultur-intel/internal/model"
	"github.com/namratade97/berlin-kultur-intel/internal/vault"
)

var servePort int

// The router depends on these narrow surfaces so handlers can be driven
// with fakes in tests.
type eventPipeline interface {
	Run(ctx context.Context, record model.RawEventRecord) model.PipelineResult
}

type questionAgent interface {
	Ask(ctx context.Context, question string) agent.Response
}

type vaultSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]vault.Match, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the event ingestion and query server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		// The mirror serves analytical questions; rebuild it from the vault
		// before accepting any.
		if err := rebuildArchive(ctx, env.Vault, env.Archive); err != nil {
			return eris.Wrap(err, "rebuild archive mirror")
		}

		r := newRouter(env.Pipeline, env.Agent, env.Vault, cfg.Server.AllowedOrigin)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(p eventPipeline, qa questionAgent, vs vaultSearcher, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Pipeline outcomes always go out with HTTP 200 so orchestrating
	// callers never halt on an internal failure. Only a body that is
	// not JSON earns a 400.
	r.Post("/validate-and-store", func(w http.ResponseWriter, req *http.Request) {
		var record model.RawEventRecord
		if err := json.NewDecoder(req.Body).Decode(&record); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		result := p.Run(req.Context(), record)
		writeJSON(w, http.StatusOK, result)
	})

	r.Post("/ask", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Question == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
			return
		}

		writeJSON(w, http.StatusOK, qa.Ask(req.Context(), body.Question))
	})

	r.Get("/search", func(w http.ResponseWriter, req *http.Request) {
		query := req.URL.Query().Get("q")
		if query == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
			return
		}

		matches, err := vs.Search(req.Context(), query, 5)
		if err != nil {
			zap.L().Error("search failed", zap.String("query", query), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "search unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, matches)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
