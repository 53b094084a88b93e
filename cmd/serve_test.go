package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chem-advisor/internal/model"
)

func serveRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNewServer_WithoutSearch(t *testing.T) {
	cfg = testConfig(t)
	cfg.Server.ReadTimeoutSecs = 15
	cfg.Server.WriteTimeoutSecs = 60

	env, err := initEnv(context.Background(), true)
	require.NoError(t, err)
	defer env.Close()
	assert.Nil(t, env.Search)
	assert.Nil(t, env.Chat)
	require.NotNil(t, env.Discovery)

	srv := newServer(env, 9090)
	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 15*time.Second, srv.ReadTimeout)
	assert.Equal(t, 60*time.Second, srv.WriteTimeout)

	rr := serveRequest(t, srv.Handler, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	rr = serveRequest(t, srv.Handler, http.MethodPost, "/v1/search", `{"query":"silica"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = serveRequest(t, srv.Handler, http.MethodGet, "/v1/products", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewServer_DiscoverAndFetchRun(t *testing.T) {
	cfg = testConfig(t)
	seedProducts(t,
		model.Product{ID: "orig", Name: "Klenz-All", Manufacturer: "Acme", ChemicalName: "sodium hydroxide", Category: "degreaser", IsActive: true},
		model.Product{ID: "alt1", Name: "Caustic Pro", Manufacturer: "Delta", ChemicalName: "sodium hydroxide", Category: "degreaser", IsActive: true},
		model.Product{ID: "alt2", Name: "Citra Clean", Manufacturer: "Gamma", ChemicalName: "d-limonene", Category: "degreaser", IsActive: true},
	)

	env, err := initEnv(context.Background(), true)
	require.NoError(t, err)
	defer env.Close()
	h := newServer(env, 8080).Handler

	rr := serveRequest(t, h, http.MethodPost, "/v1/replacements", `{"original_product_id":"orig","reason_codes":["supply"]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var run model.ReplacementRun
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotEmpty(t, run.Candidates)
	for _, c := range run.Candidates {
		assert.NotEqual(t, "Klenz-All", c.Product.Name)
	}

	rr = serveRequest(t, h, http.MethodGet, "/v1/replacements/"+run.ID, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewServer_SearchThroughRAG(t *testing.T) {
	var calls int
	rag := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/search", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"content":"SIPERNAT 22 is a precipitated silica."},"sources":[{"title":"Datasheet","url":"https://example.com/ds"}]}`))
	}))
	defer rag.Close()

	cfg = testConfig(t)
	cfg.RAG.BaseURL = rag.URL

	env, err := initEnv(context.Background(), false)
	require.NoError(t, err)
	defer env.Close()
	assert.Nil(t, env.Store)
	require.NotNil(t, env.Search)
	require.NotNil(t, env.Chat)

	h := newServer(env, 8080).Handler

	rr := serveRequest(t, h, http.MethodPost, "/v1/search", `{"query":"sipernat 22"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res model.SearchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "SIPERNAT 22 is a precipitated silica.", res.Content)
	require.Len(t, res.Sources, 1)

	rr = serveRequest(t, h, http.MethodPost, "/v1/chat", `{"question":"sipernat 22"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var ans model.ChatAnswer
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ans))
	assert.Equal(t, "search", ans.Mode)
	assert.Equal(t, "SIPERNAT 22 is a precipitated silica.", ans.Answer)

	// The second identical query is served from the memory cache.
	assert.Equal(t, 1, calls)

	rr = serveRequest(t, h, http.MethodGet, "/health", "")
	var health map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, map[string]any{"rag": "closed"}, health["circuits"])
}

func TestInitEnv_BadProfile(t *testing.T) {
	cfg = testConfig(t)
	cfg.Replacement.ProfilePath = "/nonexistent/profile.yaml"

	_, err := initEnv(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read profile")
}

func TestReplacementConfig_ProfileKeepsExclusions(t *testing.T) {
	cfg = testConfig(t)
	cfg.Replacement.ProfilePath = writeFile(t, "profile.yaml", `replacement:
  weights:
    chemical: 0.5
    functional: 0.2
    performance: 0.1
    availability: 0.1
    cost: 0.05
    sustainability: 0.05
`)

	rc, err := replacementConfig()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rc.Weights.Chemical, 0.0001)
	assert.Contains(t, rc.ReasonExclusions, "regulatory")
	assert.Equal(t, cfg.Replacement.ProfilePath, rc.ProfilePath)
}
