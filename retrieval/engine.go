package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kaiteki-lab/kotae/ai"
	"github.com/kaiteki-lab/kotae/cache"
	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/lang"
	"github.com/kaiteki-lab/kotae/storage"
)

// Cache TTLs for search results and location lookups.
const (
	searchResultTTL = 600 * time.Second
	locationTTL     = time.Hour
)

// Engine orchestrates hybrid semantic and keyword search over the chunk corpus.
type Engine struct {
	chunks    storage.ChunkRepository
	documents storage.DocumentRepository
	embedder  ai.Embedder
	detector  *lang.Detector
	expander  *lang.Expander
	cache     *cache.Layer
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithCache sets the cache layer backing search-result and location caching.
// Without one, every call goes to storage.
func WithCache(layer *cache.Layer) Option {
	return func(e *Engine) error {
		e.cache = layer
		return nil
	}
}

// WithDetector sets a custom language detector.
func WithDetector(detector *lang.Detector) Option {
	return func(e *Engine) error {
		e.detector = detector
		return nil
	}
}

// WithExpander sets a custom query expander.
func WithExpander(expander *lang.Expander) Option {
	return func(e *Engine) error {
		e.expander = expander
		return nil
	}
}

// NewEngine creates a new retrieval engine.
func NewEngine(
	chunks storage.ChunkRepository,
	documents storage.DocumentRepository,
	provider ai.Provider,
	opts ...Option,
) (*Engine, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Engine{
		chunks:    chunks,
		documents: documents,
		embedder:  provider.Embedder(),
		detector:  lang.NewDetector(lang.WithIdentifier(provider.LanguageIdentifier())),
		expander:  lang.NewExpander(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Search runs the full hybrid search pipeline: cache check, language
// resolution, preprocessing and expansion, concurrent semantic and keyword
// retrieval, score fusion, enrichment, and cache write.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	opts.Normalize()

	// 1. Language resolution.
	language := opts.Language
	if !language.Supported() {
		detection := e.detector.Detect(ctx, query)
		language = detection.Language
	}

	// 2. Preprocessing and expansion.
	processed := lang.Preprocess(query, language)
	var expanded []string
	if opts.ExpandQuery {
		expanded = e.expander.Expand(processed, language)
	}

	// 3. Cache check.
	cacheKey := e.searchCacheKey(processed, &opts, expanded)
	if opts.UseCache && e.cache != nil {
		if data, ok := e.cache.Get(ctx, cacheKey, cache.ScopeProcess); ok {
			var cached SearchResponse
			if err := json.Unmarshal(data, &cached); err == nil {
				cached.Meta.CacheHit = true
				cached.Meta.Timing.TotalMS = time.Since(start).Milliseconds()
				return &cached, nil
			}
			e.logger.Warn("discarding undecodable cached search response", "key", cacheKey)
		}
	}

	keywords := e.searchKeywords(processed, expanded, language)

	// 4. Shard discovery.
	shards, err := e.chunks.ListShards(ctx, opts.Category, core.ShardChunks)
	if err != nil {
		return nil, fmt.Errorf("listing shards: %w", err)
	}

	// 5. Dual retrieval, run concurrently. Each side degrades to an empty
	// result list on failure; only both failing aborts the search.
	candidateCap := opts.candidateCap()
	scanOpts := storage.ScanOptions{Language: opts.Language, Limit: candidateCap}

	var semanticResults, keywordResults []*core.ScoredChunk
	var semanticErr, keywordErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		semanticResults, semanticErr = e.semanticSearch(ctx, processed, shards, scanOpts)
	}()

	go func() {
		defer wg.Done()
		keywordResults, keywordErr = e.keywordSearch(ctx, keywords, shards, scanOpts)
	}()

	wg.Wait()

	if semanticErr != nil && keywordErr != nil {
		e.logger.Warn("both semantic and keyword searches failed",
			"semanticErr", semanticErr, "keywordErr", keywordErr)
		return nil, fmt.Errorf("hybrid search: semantic=%w, keyword=%w", semanticErr, keywordErr)
	}
	if semanticErr != nil {
		e.logger.Warn("semantic search failed, using keyword results only", "err", semanticErr)
		semanticResults = nil
	}
	if keywordErr != nil {
		e.logger.Warn("keyword search failed, using semantic results only", "err", keywordErr)
		keywordResults = nil
	}

	// 6. Score fusion, ranking, truncation.
	fused := combineAndRank(semanticResults, keywordResults, opts.SemanticWeight, opts.KeywordWeight)
	if len(fused) > opts.Limit {
		fused = fused[:opts.Limit]
	}

	// 7. Enrich with document metadata and snippets.
	results := e.enrich(ctx, fused, keywords)

	response := &SearchResponse{
		Success:        true,
		Query:          query,
		ProcessedQuery: processed,
		Language:       language,
		ExpandedTerms:  expanded,
		Results:        results,
		Meta: SearchMeta{
			TotalCount:    len(results),
			SemanticCount: len(semanticResults),
			KeywordCount:  len(keywordResults),
			Timing:        SearchTiming{TotalMS: time.Since(start).Milliseconds()},
		},
	}

	// 8. Cache write.
	if opts.UseCache && e.cache != nil {
		if data, err := json.Marshal(response); err == nil {
			if err := e.cache.Set(ctx, cacheKey, data, searchResultTTL, cache.ScopeProcess); err != nil {
				e.logger.Warn("failed to cache search response", "err", err)
			}
		}
	}

	return response, nil
}

// semanticSearch embeds the processed query and fans out across the shard
// set. A failing shard scan is logged and contributes zero results.
func (e *Engine) semanticSearch(ctx context.Context, processed string, shards []core.ShardInfo, opts storage.ScanOptions) ([]*core.ScoredChunk, error) {
	queryVector, err := e.embedder.EmbedText(ctx, processed)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var all []*core.ScoredChunk
	for _, shard := range shards {
		hits, err := e.chunks.FindSimilarInShard(ctx, shard, queryVector, opts)
		if err != nil {
			e.logger.Warn("similarity scan failed, skipping shard", "shard", shard.Name, "err", err)
			continue
		}
		all = append(all, hits...)
	}

	sortByScoreDesc(all)
	if len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, nil
}

// keywordSearch fans the keyword scan out across the shard set. A failing
// shard scan is logged and contributes zero results.
func (e *Engine) keywordSearch(ctx context.Context, keywords []string, shards []core.ShardInfo, opts storage.ScanOptions) ([]*core.ScoredChunk, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	var all []*core.ScoredChunk
	for _, shard := range shards {
		hits, err := e.chunks.FindKeywordMatchesInShard(ctx, shard, keywords, KeywordMatchScore, opts)
		if err != nil {
			e.logger.Warn("keyword scan failed, skipping shard", "shard", shard.Name, "err", err)
			continue
		}
		all = append(all, hits...)
	}

	sortByScoreDesc(all)
	if len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, nil
}

// searchKeywords builds the deduplicated keyword set: query tokens longer
// than one rune plus the expansion terms.
func (e *Engine) searchKeywords(processed string, expanded []string, language core.Language) []string {
	seen := make(map[string]bool)
	var keywords []string

	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if len([]rune(term)) <= 1 || seen[term] {
			return
		}
		seen[term] = true
		keywords = append(keywords, term)
	}

	for _, token := range lang.Tokenize(processed, language) {
		add(token)
	}
	for _, term := range expanded {
		add(term)
	}
	return keywords
}

// searchCacheKey derives the deterministic cache key of a search call.
func (e *Engine) searchCacheKey(processed string, opts *SearchOptions, expanded []string) string {
	return fmt.Sprintf("search:%016x", core.ContentHash(processed+"|"+opts.fingerprint(expanded)))
}

// combineAndRank fuses the two result sets. Weights must already be
// normalized to sum to 1. A chunk present in only one set contributes only
// that side's weighted term. Ties break by ascending chunk ID.
func combineAndRank(semantic, keyword []*core.ScoredChunk, semanticWeight, keywordWeight float64) []*core.SearchResult {
	type fusedHit struct {
		chunk           *core.Chunk
		semanticScore   float64
		keywordScore    float64
		matchedKeywords []string
	}

	fused := make(map[string]*fusedHit)
	order := make([]string, 0, len(semantic)+len(keyword))

	for _, hit := range semantic {
		id := hit.Chunk.ID
		if _, ok := fused[id]; !ok {
			fused[id] = &fusedHit{chunk: hit.Chunk}
			order = append(order, id)
		}
		fused[id].semanticScore = hit.Score
	}
	for _, hit := range keyword {
		id := hit.Chunk.ID
		if _, ok := fused[id]; !ok {
			fused[id] = &fusedHit{chunk: hit.Chunk}
			order = append(order, id)
		}
		fused[id].keywordScore = hit.Score
		fused[id].matchedKeywords = hit.MatchedKeywords
	}

	results := make([]*core.SearchResult, 0, len(order))
	for _, id := range order {
		hit := fused[id]
		combined := hit.semanticScore*semanticWeight + hit.keywordScore*keywordWeight
		results = append(results, &core.SearchResult{
			ChunkID:         hit.chunk.ID,
			DocumentID:      hit.chunk.DocumentID,
			Category:        hit.chunk.Category,
			Content:         hit.chunk.Content,
			Metadata:        hit.chunk.Metadata,
			Language:        hit.chunk.Language,
			Score:           combined,
			SemanticScore:   hit.semanticScore,
			KeywordScore:    hit.keywordScore,
			MatchedKeywords: hit.matchedKeywords,
			RelevanceScore:  combined,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results
}

// enrich batch-loads owning documents and attaches their metadata plus a
// keyword-aware snippet to each result. Enrichment failures degrade to
// unenriched results.
func (e *Engine) enrich(ctx context.Context, results []*core.SearchResult, keywords []string) []*core.SearchResult {
	if len(results) == 0 {
		return []*core.SearchResult{}
	}

	seen := make(map[string]bool)
	var ids []string
	for _, r := range results {
		if !seen[r.DocumentID] {
			seen[r.DocumentID] = true
			ids = append(ids, r.DocumentID)
		}
	}

	docs := make(map[string]*core.Document)
	loaded, err := e.documents.GetDocuments(ctx, ids...)
	if err != nil {
		e.logger.Warn("failed to load documents for enrichment", "err", err)
	} else {
		for _, doc := range loaded {
			docs[doc.ID] = doc
		}
	}

	for _, r := range results {
		snippetKeywords := r.MatchedKeywords
		if len(snippetKeywords) == 0 {
			snippetKeywords = keywords
		}
		r.Snippet = Snippet(r.Content, snippetKeywords)

		if doc := docs[r.DocumentID]; doc != nil {
			r.Title = doc.Title
			r.Path = doc.Path
			r.Format = doc.Format
			if r.Language == "" {
				r.Language = doc.Language
			}
		}
	}
	return results
}

// sortByScoreDesc orders scored chunks by descending score with ascending
// chunk ID as the tie-break.
func sortByScoreDesc(hits []*core.ScoredChunk) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
}

// LocateChunk resolves the shard holding a chunk, caching the lookup for an
// hour since it is backed by a storage scan.
func (e *Engine) LocateChunk(ctx context.Context, chunkID string) (core.ShardInfo, error) {
	cacheKey := "loc:chunk:" + chunkID
	if e.cache != nil {
		if data, ok := e.cache.Get(ctx, cacheKey, cache.ScopeDocument); ok {
			var info core.ShardInfo
			if err := json.Unmarshal(data, &info); err == nil {
				return info, nil
			}
		}
	}

	info, err := e.chunks.LocateChunk(ctx, chunkID)
	if err != nil {
		return core.ShardInfo{}, err
	}

	if e.cache != nil {
		if data, err := json.Marshal(info); err == nil {
			if err := e.cache.Set(ctx, cacheKey, data, locationTTL, cache.ScopeDocument); err != nil {
				e.logger.Warn("failed to cache chunk location", "err", err)
			}
		}
	}
	return info, nil
}

// LocateDocument resolves every shard holding chunks of a document, caching
// the lookup for an hour.
func (e *Engine) LocateDocument(ctx context.Context, documentID string) ([]core.ShardInfo, error) {
	cacheKey := "loc:doc:" + documentID
	if e.cache != nil {
		if data, ok := e.cache.Get(ctx, cacheKey, cache.ScopeDocument); ok {
			var infos []core.ShardInfo
			if err := json.Unmarshal(data, &infos); err == nil {
				return infos, nil
			}
		}
	}

	infos, err := e.chunks.LocateDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if data, err := json.Marshal(infos); err == nil {
			if err := e.cache.Set(ctx, cacheKey, data, locationTTL, cache.ScopeDocument); err != nil {
				e.logger.Warn("failed to cache document locations", "err", err)
			}
		}
	}
	return infos, nil
}

// InvalidateDocument drops cached locations and search results touching a
// document. Called by ingestion after a re-ingest.
func (e *Engine) InvalidateDocument(ctx context.Context, documentID string) {
	if e.cache == nil {
		return
	}
	e.cache.Remove(ctx, "loc:doc:"+documentID, cache.ScopeDocument)
	e.cache.RemoveByPrefix(ctx, "loc:chunk:"+documentID, cache.ScopeDocument)
	e.cache.RemoveByPrefix(ctx, "search:", cache.ScopeProcess)
}
