package vault

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/namratade97/berlin-kultur-intel/internal/model"
	"github.com/namratade97/berlin-kultur-intel/pkg/qdrant"
)

type fakeEmbedder struct {
	vector []float64
	err    error
	texts  []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text, taskType string) ([]float64, error) {
	f.texts = append(f.texts, text)
	return f.vector, f.err
}

type fakeStore struct {
	ensured     []string
	upserted    []qdrant.Point
	queryResult []qdrant.ScoredPoint
	scrollPages [][]qdrant.ScoredPoint
	scrollCalls int
	setPayloads []map[string]any
	setIDs      [][]string
	err         error
}

func (f *fakeStore) EnsureCollection(ctx context.Context, name string, vectorSize int, distance string) error {
	f.ensured = append(f.ensured, name)
	return f.err
}

func (f *fakeStore) Upsert(ctx context.Context, collection string, points []qdrant.Point) error {
	f.upserted = append(f.upserted, points...)
	return f.err
}

func (f *fakeStore) Query(ctx context.Context, collection string, vector []float64, limit int) ([]qdrant.ScoredPoint, error) {
	return f.queryResult, f.err
}

func (f *fakeStore) Scroll(ctx context.Context, collection string, limit int, offset any) ([]qdrant.ScoredPoint, any, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	page := f.scrollPages[f.scrollCalls]
	f.scrollCalls++
	if f.scrollCalls < len(f.scrollPages) {
		return page, f.scrollCalls, nil
	}
	return page, nil, nil
}

func (f *fakeStore) SetPayload(ctx context.Context, collection string, payload map[string]any, ids []string) error {
	f.setPayloads = append(f.setPayloads, payload)
	f.setIDs = append(f.setIDs, ids)
	return f.err
}

func fullVector(value float64) []float64 {
	v := make([]float64, VectorSize)
	for i := range v {
		v[i] = value
	}
	return v
}

func testPayload() model.EventPayload {
	return model.EventPayload{
		CulturalDossier: model.CulturalDossier{
			EventName:   "Atonal",
			VenueName:   "Kraftwerk",
			VibeProfile: []string{"industrial", "avant-garde"},
			Summary:     "A cavernous festival of experimental sound and light.",
		},
		QualityScore:  0.9,
		QualityReason: "Verified via local fallback.",
		QualityStatus: model.QualityStatusVerified,
	}
}

func TestVaultSave(t *testing.T) {
	t.Run("embeds searchable text and upserts under a uuid", func(t *testing.T) {
		embedder := &fakeEmbedder{vector: fullVector(0.1)}
		store := &fakeStore{}
		v := New(store, embedder, zap.NewNop())

		id, err := v.Save(context.Background(), testPayload())
		require.NoError(t, err)
		_, parseErr := uuid.Parse(id)
		assert.NoError(t, parseErr)

		require.Len(t, store.upserted, 1)
		assert.Equal(t, id, store.upserted[0].ID)
		require.Len(t, embedder.texts, 1)
		assert.Contains(t, embedder.texts[0], "Atonal at Kraftwerk.")
		assert.Contains(t, embedder.texts[0], "Vibe: industrial, avant-garde.")
	})

	t.Run("embedding failure stores zero vector", func(t *testing.T) {
		embedder := &fakeEmbedder{err: eris.New("gemini: unexpected status 500")}
		store := &fakeStore{}
		v := New(store, embedder, zap.NewNop())

		_, err := v.Save(context.Background(), testPayload())
		require.NoError(t, err)
		require.Len(t, store.upserted, 1)
		vec := store.upserted[0].Vector
		require.Len(t, vec, VectorSize)
		for _, x := range vec {
			if x != 0 {
				t.Fatalf("expected zero vector, found %v", x)
			}
		}
	})

	t.Run("upsert failure propagates", func(t *testing.T) {
		v := New(&fakeStore{err: eris.New("qdrant: unexpected status 502")}, &fakeEmbedder{vector: fullVector(0.1)}, zap.NewNop())
		_, err := v.Save(context.Background(), testPayload())
		assert.Error(t, err)
	})
}

func TestVaultSearch(t *testing.T) {
	payload, err := json.Marshal(testPayload())
	require.NoError(t, err)

	store := &fakeStore{queryResult: []qdrant.ScoredPoint{
		{ID: "a1", Score: 0.98, Payload: payload},
		{ID: "b2", Score: 0.55, Payload: json.RawMessage(`"not an object"`)},
	}}
	v := New(store, &fakeEmbedder{vector: fullVector(0.2)}, zap.NewNop())

	matches, err := v.Search(context.Background(), "industrial techno festival", 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a1", matches[0].ID)
	assert.Equal(t, "Atonal", matches[0].Payload.EventName)
	assert.InDelta(t, 0.98, matches[0].Score, 1e-9)
}

func TestVaultScrollAll(t *testing.T) {
	store := &fakeStore{scrollPages: [][]qdrant.ScoredPoint{
		{{ID: "a"}, {ID: "b"}},
		{{ID: "c"}},
	}}
	v := New(store, &fakeEmbedder{}, zap.NewNop())

	points, err := v.ScrollAll(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, points, 3)
	assert.Equal(t, 2, store.scrollCalls)
}

func TestVaultEnsureReady(t *testing.T) {
	store := &fakeStore{}
	v := New(store, &fakeEmbedder{}, zap.NewNop())
	require.NoError(t, v.EnsureReady(context.Background()))
	assert.Equal(t, []string{DefaultCollection}, store.ensured)
}

func TestVaultSetCoordinates(t *testing.T) {
	store := &fakeStore{}
	v := New(store, &fakeEmbedder{}, zap.NewNop())
	require.NoError(t, v.SetCoordinates(context.Background(), 52.52, 13.405, []string{"a1"}))
	require.Len(t, store.setPayloads, 1)
	assert.Equal(t, 52.52, store.setPayloads[0]["lat"])
	assert.Equal(t, []string{"a1"}, store.setIDs[0])
}
