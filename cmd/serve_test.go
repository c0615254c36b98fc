package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namratade97/berlin-kultur-intel/internal/agent"
	"github.com/namratade97/berlin-kultur-intel/internal/model"
	"github.com/namratade97/berlin-kultur-intel/internal/vault"
)

type fakePipeline struct {
	result model.PipelineResult
	got    *model.RawEventRecord
}

func (p *fakePipeline) Run(ctx context.Context, record model.RawEventRecord) model.PipelineResult {
	p.got = &record
	return p.result
}

type fakeAgent struct {
	response agent.Response
}

func (a *fakeAgent) Ask(ctx context.Context, question string) agent.Response {
	return a.response
}

type fakeSearcher struct {
	matches []vault.Match
	err     error
}

func (s *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]vault.Match, error) {
	return s.matches, s.err
}

func testRouter(p eventPipeline) http.Handler {
	return newRouter(p, &fakeAgent{}, &fakeSearcher{}, []string{"http://localhost:3000"})
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestValidateAndStoreHandler(t *testing.T) {
	t.Run("rejected outcome is HTTP 200 with status and reason only", func(t *testing.T) {
		p := &fakePipeline{result: model.PipelineResult{
			Status: model.RunStatusRejected,
			Reason: "Event could not be verified via Tavily search.",
		}}

		req := httptest.NewRequest(http.MethodPost, "/validate-and-store",
			strings.NewReader(`{"eventName":"Ghost Festival","venueName":"Nowhere Club"}`))
		rr := httptest.NewRecorder()
		testRouter(p).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "rejected", body["status"])
		assert.Equal(t, "Event could not be verified via Tavily search.", body["reason"])
		assert.NotContains(t, body, "quality_passed")
		assert.NotContains(t, body, "quality_score")

		require.NotNil(t, p.got)
		assert.Equal(t, "Ghost Festival", p.got.EventName)
	})

	t.Run("processed outcome is HTTP 200 with quality fields and data", func(t *testing.T) {
		p := &fakePipeline{result: model.PipelineResult{
			Status:        model.RunStatusProcessed,
			QualityPassed: true,
			QualityScore:  0.9,
			Data:          &model.EventPayload{CulturalDossier: model.CulturalDossier{EventName: "CTM Festival"}},
		}}

		req := httptest.NewRequest(http.MethodPost, "/validate-and-store",
			strings.NewReader(`{"eventName":"CTM Festival","venueName":"Berghain"}`))
		rr := httptest.NewRecorder()
		testRouter(p).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "processed", body["status"])
		assert.Equal(t, true, body["quality_passed"])
		assert.InDelta(t, 0.9, body["quality_score"].(float64), 1e-9)
		require.Contains(t, body, "data")
		data := body["data"].(map[string]any)
		assert.Equal(t, "CTM Festival", data["eventName"])
	})

	t.Run("shielded outcome is HTTP 200 with permissive quality fields", func(t *testing.T) {
		p := &fakePipeline{result: model.PipelineResult{
			Status:        model.RunStatusErrorShielded,
			QualityPassed: true,
			QualityScore:  1.0,
			Data:          &model.EventPayload{CulturalDossier: model.CulturalDossier{EventName: "CTM Festival"}},
		}}

		req := httptest.NewRequest(http.MethodPost, "/validate-and-store",
			strings.NewReader(`{"eventName":"CTM Festival","venueName":"Berghain"}`))
		rr := httptest.NewRecorder()
		testRouter(p).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "error_shielded", body["status"])
		assert.Equal(t, true, body["quality_passed"])
		assert.InDelta(t, 1.0, body["quality_score"].(float64), 1e-9)
	})

	t.Run("non-JSON body is HTTP 400 and the pipeline never runs", func(t *testing.T) {
		p := &fakePipeline{}

		req := httptest.NewRequest(http.MethodPost, "/validate-and-store",
			strings.NewReader("not json at all"))
		rr := httptest.NewRecorder()
		testRouter(p).ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Nil(t, p.got)
	})
}

func TestAskHandler(t *testing.T) {
	t.Run("answers with matches", func(t *testing.T) {
		qa := &fakeAgent{response: agent.Response{
			Answer:  "Three festivals in Friedrichshain.",
			Matches: []vault.Match{{ID: "a1", Score: 0.8}},
		}}
		r := newRouter(&fakePipeline{}, qa, &fakeSearcher{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/ask",
			strings.NewReader(`{"question":"how many festivals?"}`))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "Three festivals in Friedrichshain.", body["answer"])
		assert.Len(t, body["matches"], 1)
	})

	t.Run("missing question is HTTP 400", func(t *testing.T) {
		r := newRouter(&fakePipeline{}, &fakeAgent{}, &fakeSearcher{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSearchHandler(t *testing.T) {
	t.Run("returns matches", func(t *testing.T) {
		vs := &fakeSearcher{matches: []vault.Match{{ID: "a1", Score: 0.9}}}
		r := newRouter(&fakePipeline{}, &fakeAgent{}, vs, nil)

		req := httptest.NewRequest(http.MethodGet, "/search?q=techno", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var matches []vault.Match
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &matches))
		require.Len(t, matches, 1)
		assert.Equal(t, "a1", matches[0].ID)
	})

	t.Run("missing q is HTTP 400", func(t *testing.T) {
		r := newRouter(&fakePipeline{}, &fakeAgent{}, &fakeSearcher{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/search", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("search failure is HTTP 500", func(t *testing.T) {
		vs := &fakeSearcher{err: eris.New("qdrant: unexpected status 503")}
		r := newRouter(&fakePipeline{}, &fakeAgent{}, vs, nil)

		req := httptest.NewRequest(http.MethodGet, "/search?q=techno", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestHealthHandler(t *testing.T) {
	r := newRouter(&fakePipeline{}, &fakeAgent{}, &fakeSearcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])
}
