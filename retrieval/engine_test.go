package retrieval

import (
	"context"
	"testing"

	"github.com/kaiteki-lab/kotae/ai"
	"github.com/kaiteki-lab/kotae/ai/mock"
	"github.com/kaiteki-lab/kotae/cache"
	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/storage/badger"
	"github.com/kaiteki-lab/kotae/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *badger.Repositories, ai.Provider) {
	t.Helper()

	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	provider := mock.NewMockProvider()
	engine, err := NewEngine(repos.Chunks, repos.Documents, provider, opts...)
	require.NoError(t, err)
	return engine, repos, provider
}

func newTestCache(t *testing.T, repos *badger.Repositories) *cache.Layer {
	t.Helper()

	layer, err := cache.NewLayer(
		badger.NewSharedCacheStore(repos.Backend()),
		badger.NewDurableCacheStore(repos.Backend()),
	)
	require.NoError(t, err)
	t.Cleanup(layer.Close)
	return layer
}

// seedChunk stores a chunk together with an embedding produced by the
// provider's embedder, mirroring what ingestion does.
func seedChunk(t *testing.T, repos *badger.Repositories, provider ai.Provider, docID string, index int, category, content string, language core.Language) *core.Chunk {
	t.Helper()

	ctx := context.Background()
	chunk := &core.Chunk{
		ID:         core.ChunkID(docID, index),
		DocumentID: docID,
		Category:   category,
		Content:    content,
		Language:   language,
	}
	require.NoError(t, repos.Chunks.AddChunks(ctx, chunk))

	embedder := provider.Embedder()
	v, err := embedder.EmbedText(ctx, content)
	require.NoError(t, err)

	record := &core.EmbeddingRecord{
		ChunkID:      chunk.ID,
		DocumentID:   docID,
		Category:     category,
		Encoded:      vector.CompressAndEncode(v),
		Dim:          len(v),
		ModelVersion: embedder.ModelVersion(),
	}
	require.NoError(t, repos.Chunks.AddEmbeddings(ctx, record))
	return chunk
}

func TestNewEngine(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	provider := mock.NewMockProvider()

	t.Run("valid configuration", func(t *testing.T) {
		engine, err := NewEngine(repos.Chunks, repos.Documents, provider)
		require.NoError(t, err)
		assert.NotNil(t, engine)
	})

	t.Run("nil chunk repository", func(t *testing.T) {
		_, err := NewEngine(nil, repos.Documents, provider)
		assert.Equal(t, ErrChunkRepositoryRequired, err)
	})

	t.Run("nil document repository", func(t *testing.T) {
		_, err := NewEngine(repos.Chunks, nil, provider)
		assert.Equal(t, ErrDocumentRepositoryRequired, err)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewEngine(repos.Chunks, repos.Documents, nil)
		assert.Equal(t, ErrAIProviderRequired, err)
	})
}

func TestSearch_EmptyQuery(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Search(context.Background(), "   ", DefaultSearchOptions())
	assert.Equal(t, ErrEmptyQuery, err)
}

func TestSearch_EmptyCorpus(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	resp, err := engine.Search(context.Background(), "anything at all", DefaultSearchOptions())
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 0, resp.Meta.TotalCount)
	assert.False(t, resp.Meta.CacheHit)
}

func TestSearch_JapaneseBillingQuery(t *testing.T) {
	engine, repos, provider := newTestEngine(t)
	ctx := context.Background()

	target := seedChunk(t, repos, provider, "doc-billing", 0, "Billing",
		"今すぐ予算を変更する方法", core.LanguageJapanese)
	seedChunk(t, repos, provider, "doc-misc", 0, "General",
		"オフィスの営業時間について", core.LanguageJapanese)

	require.NoError(t, repos.Documents.PutDocument(ctx, &core.Document{
		ID: "doc-billing", Title: "請求ガイド", Content: "x", Category: "Billing",
		Language: core.LanguageJapanese,
	}))

	opts := DefaultSearchOptions()
	opts.Language = core.LanguageJapanese
	opts.SemanticWeight = 0.7
	opts.KeywordWeight = 0.3
	opts.UseCache = false

	resp, err := engine.Search(ctx, "予算 変更", opts)
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	top := resp.Results[0]
	assert.Equal(t, target.ID, top.ChunkID)
	assert.Equal(t, "請求ガイド", top.Title)

	hasBudgetKeyword := false
	for _, kw := range top.MatchedKeywords {
		if kw == "予算" || kw == "変更" {
			hasBudgetKeyword = true
		}
	}
	assert.True(t, hasBudgetKeyword, "matched keywords %v should include 予算 or 変更", top.MatchedKeywords)
	assert.Greater(t, top.KeywordScore, 0.0)
	assert.Equal(t, top.Score, top.RelevanceScore)
}

func TestSearch_CacheHit(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	layer := newTestCache(t, repos)
	provider := mock.NewMockProvider()
	engine, err := NewEngine(repos.Chunks, repos.Documents, provider, WithCache(layer))
	require.NoError(t, err)

	ctx := context.Background()
	seedChunk(t, repos, provider, "doc-1", 0, "faq", "how to change the account budget", core.LanguageEnglish)

	opts := DefaultSearchOptions()
	opts.Language = core.LanguageEnglish

	first, err := engine.Search(ctx, "change budget", opts)
	require.NoError(t, err)
	assert.False(t, first.Meta.CacheHit)

	second, err := engine.Search(ctx, "change budget", opts)
	require.NoError(t, err)
	assert.True(t, second.Meta.CacheHit)

	require.Equal(t, len(first.Results), len(second.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].ChunkID, second.Results[i].ChunkID)
		assert.InDelta(t, first.Results[i].Score, second.Results[i].Score, 1e-9)
	}
}

func TestSearch_Deterministic(t *testing.T) {
	engine, repos, provider := newTestEngine(t)
	ctx := context.Background()

	seedChunk(t, repos, provider, "doc-1", 0, "faq", "budget change steps for admins", core.LanguageEnglish)
	seedChunk(t, repos, provider, "doc-1", 1, "faq", "changing your budget later", core.LanguageEnglish)
	seedChunk(t, repos, provider, "doc-2", 0, "faq", "budget, budget, budget basics", core.LanguageEnglish)

	opts := DefaultSearchOptions()
	opts.Language = core.LanguageEnglish
	opts.UseCache = false

	first, err := engine.Search(ctx, "budget change", opts)
	require.NoError(t, err)
	second, err := engine.Search(ctx, "budget change", opts)
	require.NoError(t, err)

	require.Equal(t, len(first.Results), len(second.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].ChunkID, second.Results[i].ChunkID)
		assert.Equal(t, first.Results[i].Score, second.Results[i].Score)
	}
}

func TestSearch_CategoryFilter(t *testing.T) {
	engine, repos, provider := newTestEngine(t)
	ctx := context.Background()

	seedChunk(t, repos, provider, "doc-1", 0, "Billing", "budget management for billing", core.LanguageEnglish)
	seedChunk(t, repos, provider, "doc-2", 0, "General", "budget overview for everyone", core.LanguageEnglish)

	opts := DefaultSearchOptions()
	opts.Language = core.LanguageEnglish
	opts.Category = "Billing"
	opts.UseCache = false

	resp, err := engine.Search(ctx, "budget", opts)
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, "Billing", r.Category)
	}
}

func TestCombineAndRank(t *testing.T) {
	chunkA := &core.Chunk{ID: "doc-1_chunk_0", DocumentID: "doc-1", Content: "a"}
	chunkB := &core.Chunk{ID: "doc-1_chunk_1", DocumentID: "doc-1", Content: "b"}
	chunkC := &core.Chunk{ID: "doc-1_chunk_2", DocumentID: "doc-1", Content: "c"}

	semantic := []*core.ScoredChunk{
		{Chunk: chunkA, Score: 0.9},
		{Chunk: chunkB, Score: 0.4},
	}
	keyword := []*core.ScoredChunk{
		{Chunk: chunkA, Score: 2.0, MatchedKeywords: []string{"a"}},
		{Chunk: chunkC, Score: 1.0, MatchedKeywords: []string{"c"}},
	}

	results := combineAndRank(semantic, keyword, 0.7, 0.3)
	require.Len(t, results, 3)

	byID := make(map[string]*core.SearchResult)
	for _, r := range results {
		byID[r.ChunkID] = r
	}

	// Present in both sets: s*w_s + k*w_k.
	assert.InDelta(t, 0.9*0.7+2.0*0.3, byID["doc-1_chunk_0"].Score, 1e-9)
	// Semantic only: the keyword side contributes zero.
	assert.InDelta(t, 0.4*0.7, byID["doc-1_chunk_1"].Score, 1e-9)
	// Keyword only.
	assert.InDelta(t, 1.0*0.3, byID["doc-1_chunk_2"].Score, 1e-9)

	// Descending by combined score.
	assert.Equal(t, "doc-1_chunk_0", results[0].ChunkID)
}

func TestCombineAndRank_TieBreak(t *testing.T) {
	chunkB := &core.Chunk{ID: "doc-1_chunk_1", DocumentID: "doc-1", Content: "b"}
	chunkA := &core.Chunk{ID: "doc-1_chunk_0", DocumentID: "doc-1", Content: "a"}

	semantic := []*core.ScoredChunk{
		{Chunk: chunkB, Score: 0.5},
		{Chunk: chunkA, Score: 0.5},
	}

	results := combineAndRank(semantic, nil, 0.7, 0.3)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-1_chunk_0", results[0].ChunkID)
	assert.Equal(t, "doc-1_chunk_1", results[1].ChunkID)
}

func TestLocateDocumentCaching(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	layer := newTestCache(t, repos)
	provider := mock.NewMockProvider()
	engine, err := NewEngine(repos.Chunks, repos.Documents, provider, WithCache(layer))
	require.NoError(t, err)

	ctx := context.Background()
	seedChunk(t, repos, provider, "doc-1", 0, "faq", "some content here", core.LanguageEnglish)

	first, err := engine.LocateDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A second lookup is served from cache and agrees.
	second, err := engine.LocateDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
