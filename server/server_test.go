package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiteki-lab/kotae/ai"
	"github.com/kaiteki-lab/kotae/ai/mock"
	"github.com/kaiteki-lab/kotae/cache"
	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/ingest"
	"github.com/kaiteki-lab/kotae/retrieval"
	badgerstore "github.com/kaiteki-lab/kotae/storage/badger"
	"github.com/kaiteki-lab/kotae/synth"
)

type testEnv struct {
	server   *Server
	repos    *badgerstore.Repositories
	provider ai.Provider
}

func newTestServer(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	repos, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	layer, err := cache.NewLayer(
		badgerstore.NewSharedCacheStore(repos.Backend()),
		badgerstore.NewDurableCacheStore(repos.Backend()),
	)
	require.NoError(t, err)
	t.Cleanup(layer.Close)

	provider := mock.NewMockProvider()

	engine, err := retrieval.NewEngine(repos.Chunks, repos.Documents, provider,
		retrieval.WithCache(layer))
	require.NoError(t, err)

	synthesizer, err := synth.NewSynthesizer(repos.Templates, repos.Documents)
	require.NoError(t, err)

	pipeline, err := ingest.NewPipeline(repos.Chunks, repos.Documents, provider)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	srv, err := New(Deps{
		Engine:      engine,
		Synthesizer: synthesizer,
		Pipeline:    pipeline,
		Documents:   repos.Documents,
		Templates:   repos.Templates,
		Chunks:      repos.Chunks,
		System:      repos.System,
		Cache:       layer,
	}, opts...)
	require.NoError(t, err)

	return &testEnv{server: srv, repos: repos, provider: provider}
}

// seedDocument ingests a document through the pipeline so chunks and
// embeddings exist for search.
func (e *testEnv) seedDocument(t *testing.T, id, category, content string, language core.Language) {
	t.Helper()
	_, err := e.server.deps.Pipeline.ProcessDocument(context.Background(), &core.Document{
		ID:       id,
		Title:    id,
		Content:  content,
		Category: category,
		Language: language,
	}, ingest.ProcessOptions{GenerateEmbeddings: true})
	require.NoError(t, err)
}

func (e *testEnv) get(t *testing.T, params url.Values) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec, decodeEnvelope(t, rec)
}

func (e *testEnv) post(t *testing.T, body map[string]any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec, decodeEnvelope(t, rec)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return env
}

func dataMap(t *testing.T, env envelope) map[string]any {
	t.Helper()
	m, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is %T", env.Data)
	return m
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Deps{})
	assert.ErrorIs(t, err, ErrEngineRequired)
}

func TestHandleRPC_UnknownType(t *testing.T) {
	env := newTestServer(t)
	rec, resp := env.get(t, url.Values{"type": {"bogus"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, codeBadRequest, resp.Error.Code)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestHandleRPC_RequiresAPIKey(t *testing.T) {
	env := newTestServer(t, WithAPIKeys("secret", "admin-secret"))

	rec, resp := env.get(t, url.Values{"type": {"get_categories"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, codeForbidden, resp.Error.Code)

	rec, resp = env.get(t, url.Values{"type": {"get_categories"}, "api_key": {"secret"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	// Admin key is accepted for regular operations too.
	rec, _ = env.get(t, url.Values{"type": {"get_categories"}, "api_key": {"admin-secret"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearch_EndToEnd(t *testing.T) {
	env := newTestServer(t)
	env.seedDocument(t, "doc-budget", "billing",
		"予算の変更は管理画面から行います。予算変更の申請は部門長の承認が必要です。", core.LanguageJapanese)
	env.seedDocument(t, "doc-vacation", "hr",
		"休暇の申請は前日までに上長へ提出してください。", core.LanguageJapanese)

	rec, resp := env.get(t, url.Values{"type": {"search"}, "query": {"予算 変更"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data := dataMap(t, resp)
	results, ok := data["results"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, results)

	top := results[0].(map[string]any)
	assert.Equal(t, "doc-budget", top["document_id"])
	assert.NotEmpty(t, data["result_id"])
}

func TestSearch_NegativeWeightsStillReturnScores(t *testing.T) {
	env := newTestServer(t)
	env.seedDocument(t, "doc-budget", "billing",
		"予算の変更は管理画面から行います。", core.LanguageJapanese)

	rec, resp := env.get(t, url.Values{
		"type":            {"search"},
		"query":           {"予算"},
		"semantic_weight": {"-0.3"},
		"keyword_weight":  {"0.3"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success, "body: %s", rec.Body.String())

	data := dataMap(t, resp)
	results, ok := data["results"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, results)

	// Clamped weights keep every fused score a real number.
	top := results[0].(map[string]any)
	score, ok := top["score"].(float64)
	require.True(t, ok)
	assert.False(t, math.IsNaN(score))
	assert.False(t, math.IsInf(score, 0))
}

func TestSearch_MissingQuery(t *testing.T) {
	env := newTestServer(t)
	rec, resp := env.get(t, url.Values{"type": {"search"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeBadRequest, resp.Error.Code)
}

func TestSearch_TruncatesLongContent(t *testing.T) {
	env := newTestServer(t)
	long := "予算" + strings.Repeat("あ", 900)
	env.seedDocument(t, "doc-long", "billing", long, core.LanguageJapanese)

	_, resp := env.get(t, url.Values{"type": {"search"}, "query": {"予算"}})
	require.True(t, resp.Success)

	data := dataMap(t, resp)
	results := data["results"].([]any)
	require.NotEmpty(t, results)
	top := results[0].(map[string]any)
	content := top["content"].(string)
	assert.LessOrEqual(t, len([]rune(content)), transportContentLimit)
}

func TestTruncateForTransport_LeavesShortContentAlone(t *testing.T) {
	resp := &retrieval.SearchResponse{
		Results: []*core.SearchResult{{ChunkID: "c1", Content: "short"}},
	}
	out := truncateForTransport(resp)
	assert.Same(t, resp, out)
}

func TestGenerateResponse_ViaResultID(t *testing.T) {
	env := newTestServer(t)
	env.seedDocument(t, "doc-budget", "billing",
		"予算の変更は管理画面から行います。", core.LanguageJapanese)

	_, searchResp := env.get(t, url.Values{"type": {"search"}, "query": {"予算"}})
	require.True(t, searchResp.Success)
	resultID := dataMap(t, searchResp)["result_id"].(string)
	require.NotEmpty(t, resultID)

	rec, resp := env.post(t, map[string]any{
		"type":              "generate_response",
		"search_results_id": resultID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data := dataMap(t, resp)
	assert.NotEmpty(t, data["content"])
	assert.Equal(t, true, data["success"])
}

func TestGenerateResponse_UnknownResultID(t *testing.T) {
	env := newTestServer(t)
	rec, resp := env.post(t, map[string]any{
		"type":              "generate_response",
		"search_results_id": "missing",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, resp.Error.Code)
}

func TestGenerateResponse_InlineResults(t *testing.T) {
	env := newTestServer(t)
	rec, resp := env.post(t, map[string]any{
		"type":  "generate_response",
		"query": "予算の変更",
		"search_results": []map[string]any{
			{
				"chunk_id":    "c1",
				"document_id": "doc-budget",
				"category":    "billing",
				"content":     "予算の変更は管理画面から行います。",
				"title":       "予算ガイド",
				"score":       0.9,
			},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data := dataMap(t, resp)
	content := data["content"].(string)
	assert.Contains(t, content, "予算の変更")
}

func TestGenerateResponse_MissingResults(t *testing.T) {
	env := newTestServer(t)
	rec, resp := env.post(t, map[string]any{"type": "generate_response"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeBadRequest, resp.Error.Code)
}

func TestGetDocument(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, env.repos.Documents.PutDocument(ctx, &core.Document{
		ID:       "doc-1",
		Title:    "FAQ",
		Content:  "content",
		Category: "faq",
		Language: core.LanguageEnglish,
	}))

	rec, resp := env.get(t, url.Values{"type": {"get_document"}, "id": {"doc-1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "FAQ", dataMap(t, resp)["title"])

	rec, resp = env.get(t, url.Values{"type": {"get_document"}, "id": {"missing"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, resp.Error.Code)
}

func TestGetTemplatesAndCategories(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, env.repos.Templates.PutTemplate(ctx, &core.Template{
		ID:       "tpl-1",
		Name:     "standard",
		Type:     core.ResponseStandard,
		Language: core.LanguageJapanese,
		Content:  "{query}",
	}))
	require.NoError(t, env.repos.Documents.PutDocument(ctx, &core.Document{
		ID: "doc-1", Title: "t", Content: "c", Category: "billing",
		Language: core.LanguageJapanese,
	}))

	_, resp := env.get(t, url.Values{"type": {"get_templates"}})
	templates := dataMap(t, resp)["templates"].([]any)
	assert.Len(t, templates, 1)

	_, resp = env.get(t, url.Values{"type": {"get_categories"}})
	categories := dataMap(t, resp)["categories"].([]any)
	assert.Contains(t, categories, "billing")
}

func TestProcessDocument_RequiresAdminKey(t *testing.T) {
	env := newTestServer(t, WithAPIKeys("secret", "admin-secret"))

	rec, resp := env.post(t, map[string]any{
		"type":    "process_document",
		"api_key": "secret",
		"file_id": "guides/faq.md",
		"content": "some content",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, codeForbidden, resp.Error.Code)
}

func TestProcessDocument(t *testing.T) {
	env := newTestServer(t, WithAPIKeys("secret", "admin-secret"))

	rec, resp := env.post(t, map[string]any{
		"type":                "process_document",
		"api_key":             "admin-secret",
		"file_id":             "guides/budget.md",
		"title":               "予算ガイド",
		"category":            "billing",
		"content":             "予算の変更は管理画面から行います。",
		"generate_embeddings": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, resp.Success)

	data := dataMap(t, resp)
	assert.Equal(t, float64(1), data["chunk_count"])
	assert.Equal(t, true, data["deferred"])

	// The document landed under its derived id.
	docID := data["document_id"].(string)
	doc, err := env.repos.Documents.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, "予算ガイド", doc.Title)
}

func TestProcessDocument_MissingContent(t *testing.T) {
	env := newTestServer(t)
	rec, resp := env.post(t, map[string]any{
		"type":    "process_document",
		"file_id": "guides/faq.md",
	})

	// Admin gate first: with no admin key configured the operation is closed.
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, codeForbidden, resp.Error.Code)
}

func TestHealthCheck(t *testing.T) {
	env := newTestServer(t)

	rec, resp := env.get(t, url.Values{"type": {"health_check"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data := dataMap(t, resp)
	assert.Equal(t, true, data["storage"])
	assert.Equal(t, true, data["retrieval"])
	assert.Nil(t, data["detail"])
}

func TestHealthCheck_DetailedRequiresAdmin(t *testing.T) {
	env := newTestServer(t, WithAPIKeys("secret", "admin-secret"))

	rec, _ := env.get(t, url.Values{
		"type": {"health_check"}, "api_key": {"secret"}, "detailed": {"true"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	env.seedDocument(t, "doc-1", "faq", "short document content", core.LanguageEnglish)

	rec, resp := env.get(t, url.Values{
		"type": {"health_check"}, "api_key": {"admin-secret"}, "detailed": {"true"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	detail := dataMap(t, resp)["detail"].(map[string]any)
	assert.Equal(t, float64(1), detail["document_count"])
	assert.Equal(t, float64(1), detail["chunk_count"])
}

func TestAppendLog_RecordsOperations(t *testing.T) {
	env := newTestServer(t)
	env.get(t, url.Values{"type": {"get_categories"}})

	logs, err := env.repos.System.RecentLogs(context.Background(), 5)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "rpc get_categories", logs[0].Message)
}

func TestParams_BodyOverridesQuery(t *testing.T) {
	env := newTestServer(t)
	data, err := json.Marshal(map[string]any{"type": "get_categories"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api?type=bogus", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
