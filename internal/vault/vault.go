// Package vault is the durable home for enriched event payloads: a vector
// collection keyed by embeddings of the dossier's searchable text.
package vault

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/namratade97/berlin-kultur-intel/internal/model"
	"github.com/namratade97/berlin-kultur-intel/pkg/gemini"
	"github.com/namratade97/berlin-kultur-intel/pkg/qdrant"
)

const (
	// DefaultCollection is the shared collection name. Other tooling
	// (frontend, sync, geofix) addresses the same collection by this name.
	DefaultCollection = "berlin_events"

	// VectorSize matches the Gemini embedding model output.
	VectorSize = 3072
)

// Vault stores and searches enriched event payloads.
type Vault struct {
	store      qdrant.Client
	embedder   gemini.Client
	collection string
	logger     *zap.Logger
}

// New creates a vault over the given vector store and embedder.
func New(store qdrant.Client, embedder gemini.Client, logger *zap.Logger) *Vault {
	if logger == nil {
		logger = zap.L()
	}
	return &Vault{
		store:      store,
		embedder:   embedder,
		collection: DefaultCollection,
		logger:     logger,
	}
}

// WithCollection overrides the collection name.
func (v *Vault) WithCollection(name string) *Vault {
	if name != "" {
		v.collection = name
	}
	return v
}

// Collection returns the collection name the vault writes to.
func (v *Vault) Collection() string { return v.collection }

// EnsureReady creates the collection if it does not exist. Called once at
// startup before any pipeline run.
func (v *Vault) EnsureReady(ctx context.Context) error {
	if err := v.store.EnsureCollection(ctx, v.collection, VectorSize, qdrant.DistanceCosine); err != nil {
		return eris.Wrap(err, "vault: ensure collection")
	}
	return nil
}

// Embed produces the document vector for a text. Embedding failures
// degrade to the zero vector rather than failing the caller: a payload
// with a useless vector is still retrievable by scroll and by the archive
// mirror, which beats losing it.
func (v *Vault) Embed(ctx context.Context, text, taskType string) []float64 {
	vector, err := v.embedder.Embed(ctx, text, taskType)
	if err != nil || len(vector) != VectorSize {
		v.logger.Warn("vault: embedding failed, storing zero vector",
			zap.Int("got_dims", len(vector)),
			zap.Error(err),
		)
		return make([]float64, VectorSize)
	}
	return vector
}

// Save embeds the payload's searchable text and upserts it under a fresh
// point ID. Every save writes a new point; the vault never overwrites.
func (v *Vault) Save(ctx context.Context, payload model.EventPayload) (string, error) {
	vector := v.Embed(ctx, payload.SearchableText(), gemini.TaskRetrievalDocument)

	id := uuid.NewString()
	err := v.store.Upsert(ctx, v.collection, []qdrant.Point{{
		ID:      id,
		Vector:  vector,
		Payload: payload,
	}})
	if err != nil {
		return "", eris.Wrap(err, "vault: upsert")
	}

	v.logger.Info("vault: payload stored",
		zap.String("id", id),
		zap.String("event", payload.EventName),
		zap.String("quality_status", payload.QualityStatus),
	)
	return id, nil
}

// Match is a search hit: the stored payload plus its similarity score.
type Match struct {
	ID      string             `json:"id"`
	Score   float64            `json:"score"`
	Payload model.EventPayload `json:"payload"`
}

// Search embeds the query and returns the top-limit similar payloads.
// Points whose payload no longer parses as an event are skipped.
func (v *Vault) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	vector := v.Embed(ctx, query, gemini.TaskRetrievalQuery)

	points, err := v.store.Query(ctx, v.collection, vector, limit)
	if err != nil {
		return nil, eris.Wrap(err, "vault: query")
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		var payload model.EventPayload
		if err := json.Unmarshal(p.Payload, &payload); err != nil {
			v.logger.Warn("vault: skipping point with malformed payload", zap.Any("id", p.ID), zap.Error(err))
			continue
		}
		matches = append(matches, Match{ID: pointID(p.ID), Score: p.Score, Payload: payload})
	}
	return matches, nil
}

// ScrollAll pages through every point in the collection. Used by the
// archive rebuild and the backfill jobs.
func (v *Vault) ScrollAll(ctx context.Context, pageSize int) ([]qdrant.ScoredPoint, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	var all []qdrant.ScoredPoint
	var offset any
	for {
		points, next, err := v.store.Scroll(ctx, v.collection, pageSize, offset)
		if err != nil {
			return nil, eris.Wrap(err, "vault: scroll")
		}
		all = append(all, points...)
		if next == nil {
			return all, nil
		}
		offset = next
	}
}

// SetCoordinates merges lat/lng into existing points.
func (v *Vault) SetCoordinates(ctx context.Context, lat, lng float64, ids []string) error {
	payload := map[string]any{"lat": lat, "lng": lng}
	if err := v.store.SetPayload(ctx, v.collection, payload, ids); err != nil {
		return eris.Wrap(err, "vault: set coordinates")
	}
	return nil
}

// pointID renders a scrolled or queried point ID as a string. Qdrant
// returns uuid IDs as JSON strings and legacy numeric IDs as numbers.
func pointID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	default:
		b, _ := json.Marshal(id)
		return string(b)
	}
}
