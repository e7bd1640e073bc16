// Copyright 2025 Kaiteki Lab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kaiteki-lab/kotae/cache"
	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/faults"
	"github.com/kaiteki-lab/kotae/ingest"
	"github.com/kaiteki-lab/kotae/retrieval"
	"github.com/kaiteki-lab/kotae/storage"
	"github.com/kaiteki-lab/kotae/synth"
)

// transportContentLimit truncates result content for transport; the full
// results stay retrievable via result_id.
const transportContentLimit = 500

// Deps holds the components a Server dispatches to.
type Deps struct {
	Engine      *retrieval.Engine
	Synthesizer *synth.Synthesizer
	Pipeline    *ingest.Pipeline
	Documents   storage.DocumentRepository
	Templates   storage.TemplateRepository
	Chunks      storage.ChunkRepository
	System      storage.SystemRepository
	Cache       *cache.Layer
}

// Server dispatches the RPC operations.
type Server struct {
	deps     Deps
	results  *resultStore
	reporter *faults.Reporter
	logger   *slog.Logger
	handlers map[string]rpcHandler

	apiKey   string
	adminKey string
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKeys sets the general and admin API keys. An empty general key
// leaves non-admin operations open; admin operations always require the
// admin key.
func WithAPIKeys(apiKey, adminKey string) Option {
	return func(s *Server) {
		s.apiKey = apiKey
		s.adminKey = adminKey
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReporter sets the fault reporter.
func WithReporter(reporter *faults.Reporter) Option {
	return func(s *Server) {
		if reporter != nil {
			s.reporter = reporter
		}
	}
}

// New creates a Server over its dependencies.
func New(deps Deps, opts ...Option) (*Server, error) {
	if deps.Engine == nil {
		return nil, ErrEngineRequired
	}
	if deps.Synthesizer == nil {
		return nil, ErrSynthesizerRequired
	}
	if deps.Documents == nil || deps.Templates == nil || deps.Chunks == nil || deps.System == nil {
		return nil, ErrRepositoriesRequired
	}

	s := &Server{
		deps:     deps,
		results:  &resultStore{cache: deps.Cache},
		reporter: faults.NewReporter(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handlers = map[string]rpcHandler{
		"search":            s.handleSearch,
		"generate_response": s.handleGenerateResponse,
		"get_document":      s.handleGetDocument,
		"get_templates":     s.handleGetTemplates,
		"get_categories":    s.handleGetCategories,
		"process_document":  s.handleProcessDocument,
		"health_check":      s.handleHealthCheck,
	}
	return s, nil
}

// Router builds the HTTP router: one RPC endpoint, GET or POST.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api", s.handleRPC)
	r.Post("/api", s.handleRPC)
	return r
}

// rpcHandler handles one operation type.
type rpcHandler func(ctx context.Context, params Params, w http.ResponseWriter)

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	params, err := parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	opType := params.String("type")
	handler, ok := s.handlers[opType]
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, "unknown request type: "+opType)
		return
	}

	if !s.authorize(params, opType) {
		writeError(w, http.StatusForbidden, codeForbidden, "invalid API key")
		return
	}

	s.appendLog(r.Context(), opType)
	handler(r.Context(), params, w)
}

// authorize checks the api_key parameter. Admin-only operations require
// the admin key; everything else accepts the general key (or anything,
// when no general key is configured).
func (s *Server) authorize(params Params, opType string) bool {
	key := params.String("api_key")

	if opType == "process_document" {
		return s.adminKey != "" && key == s.adminKey
	}
	if s.apiKey == "" {
		return true
	}
	return key == s.apiKey || (s.adminKey != "" && key == s.adminKey)
}

// isAdmin reports whether the request carries the admin key.
func (s *Server) isAdmin(params Params) bool {
	return s.adminKey != "" && params.String("api_key") == s.adminKey
}

func (s *Server) handleSearch(ctx context.Context, params Params, w http.ResponseWriter) {
	query := params.String("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "query is required")
		return
	}

	opts := retrieval.DefaultSearchOptions()
	opts.Category = params.String("category")
	opts.Language = core.Language(params.String("language"))
	opts.Limit = params.Int("limit", opts.Limit)
	opts.ExpandQuery = params.Bool("expand_query", opts.ExpandQuery)
	opts.SemanticWeight = params.Float("semantic_weight", opts.SemanticWeight)
	opts.KeywordWeight = params.Float("keyword_weight", opts.KeywordWeight)
	opts.UseCache = params.Bool("use_cache", opts.UseCache)

	resp, err := s.deps.Engine.Search(ctx, query, opts)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, codeBadRequest, "query is required")
			return
		}
		s.fail(ctx, w, "search", err, params)
		return
	}

	resultID := s.results.Save(ctx, resp)
	writeSuccess(w, searchPayload{
		SearchResponse: truncateForTransport(resp),
		ResultID:       resultID,
	})
}

// searchPayload adds the result id to the wire form of a search response.
type searchPayload struct {
	*retrieval.SearchResponse
	ResultID string `json:"result_id,omitempty"`
}

// truncateForTransport caps result content at the transport limit without
// touching the cached full response.
func truncateForTransport(resp *retrieval.SearchResponse) *retrieval.SearchResponse {
	needed := false
	for _, r := range resp.Results {
		if len([]rune(r.Content)) > transportContentLimit {
			needed = true
			break
		}
	}
	if !needed {
		return resp
	}

	out := *resp
	out.Results = make([]*core.SearchResult, len(resp.Results))
	for i, r := range resp.Results {
		if runes := []rune(r.Content); len(runes) > transportContentLimit {
			clipped := *r
			clipped.Content = string(runes[:transportContentLimit])
			out.Results[i] = &clipped
		} else {
			out.Results[i] = r
		}
	}
	return &out
}

func (s *Server) handleGenerateResponse(ctx context.Context, params Params, w http.ResponseWriter) {
	searchResp, ok := s.resolveSearchResults(ctx, params, w)
	if !ok {
		return
	}

	opts := synth.GenerateOptions{
		ResponseType: core.ParseResponseType(params.String("response_type")),
		Language:     core.Language(params.String("language")),
		TemplateID:   params.String("template_id"),
		CustomParams: params.Map("custom_params"),
		Enhance:      params.Bool("enhance_with_gemini", false),
	}

	resp, err := s.deps.Synthesizer.GenerateResponse(ctx, searchResp, opts)
	if err != nil {
		if errors.Is(err, synth.ErrInvalidSearchResults) {
			writeError(w, http.StatusBadRequest, codeBadRequest, "search results are invalid")
			return
		}
		s.fail(ctx, w, "generate_response", err, params)
		return
	}
	writeSuccess(w, resp)
}

// resolveSearchResults materializes the search response from either the
// inline search_results parameter or a saved search_results_id.
func (s *Server) resolveSearchResults(ctx context.Context, params Params, w http.ResponseWriter) (*retrieval.SearchResponse, bool) {
	if id := params.String("search_results_id"); id != "" {
		resp, ok := s.results.Load(ctx, id)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "search results expired or unknown")
			return nil, false
		}
		return resp, true
	}

	raw, ok := params["search_results"]
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, "search_results or search_results_id is required")
		return nil, false
	}

	resp, err := decodeSearchResults(raw, params.String("query"), core.Language(params.String("language")))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return nil, false
	}
	return resp, true
}

func (s *Server) handleGetDocument(ctx context.Context, params Params, w http.ResponseWriter) {
	id := params.String("id")
	if id == "" {
		id = params.String("document_id")
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "id is required")
		return
	}

	doc, err := s.deps.Documents.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, codeNotFound, "document not found")
			return
		}
		s.fail(ctx, w, "get_document", err, params)
		return
	}
	writeSuccess(w, doc)
}

func (s *Server) handleGetTemplates(ctx context.Context, params Params, w http.ResponseWriter) {
	templates, err := s.deps.Templates.ListTemplates(ctx)
	if err != nil {
		s.fail(ctx, w, "get_templates", err, params)
		return
	}
	writeSuccess(w, map[string]any{"templates": templates})
}

func (s *Server) handleGetCategories(ctx context.Context, params Params, w http.ResponseWriter) {
	categories, err := s.deps.Documents.ListCategories(ctx)
	if err != nil {
		s.fail(ctx, w, "get_categories", err, params)
		return
	}
	writeSuccess(w, map[string]any{"categories": categories})
}

func (s *Server) handleProcessDocument(ctx context.Context, params Params, w http.ResponseWriter) {
	if s.deps.Pipeline == nil {
		writeError(w, http.StatusInternalServerError, codeInternal, "ingestion is not configured")
		return
	}

	fileID := params.String("file_id")
	content := params.String("content")
	if fileID == "" || content == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "file_id and content are required")
		return
	}

	doc := &core.Document{
		ID:       core.DocumentIDFromSource(fileID),
		Title:    params.String("title"),
		Content:  content,
		Category: params.String("category"),
		Language: core.Language(params.String("language")),
		Path:     fileID,
		Format:   params.String("format"),
	}
	if doc.Title == "" {
		doc.Title = fileID
	}
	if doc.Category == "" {
		doc.Category = "general"
	}

	result, err := s.deps.Pipeline.ProcessDocument(ctx, doc, ingest.ProcessOptions{
		GenerateEmbeddings: params.Bool("generate_embeddings", false),
		Deferred:           true,
	})
	if err != nil {
		s.fail(ctx, w, "process_document", err, params)
		return
	}
	writeSuccess(w, result)
}

func (s *Server) handleHealthCheck(ctx context.Context, params Params, w http.ResponseWriter) {
	status := map[string]any{
		"storage":     true,
		"retrieval":   s.deps.Engine != nil,
		"synthesizer": s.deps.Synthesizer != nil,
		"ingestion":   s.deps.Pipeline != nil,
		"cache":       s.deps.Cache != nil,
	}

	if _, err := s.deps.Documents.CountDocuments(ctx); err != nil {
		status["storage"] = false
	}

	if params.Bool("detailed", false) {
		if !s.isAdmin(params) {
			writeError(w, http.StatusForbidden, codeForbidden, "detailed health requires the admin key")
			return
		}
		status["detail"] = s.healthDetail(ctx)
	}

	writeSuccess(w, status)
}

// healthDetail gathers row counts for the detailed health view. Individual
// failures degrade to absent fields.
func (s *Server) healthDetail(ctx context.Context) map[string]any {
	detail := make(map[string]any)

	if n, err := s.deps.Documents.CountDocuments(ctx); err == nil {
		detail["document_count"] = n
	}
	if shards, err := s.deps.Chunks.ListShards(ctx, "", core.ShardChunks); err == nil {
		total := 0
		for _, shard := range shards {
			total += shard.RowCount
		}
		detail["chunk_count"] = total
		detail["chunk_shards"] = len(shards)
	}
	if shards, err := s.deps.Chunks.ListShards(ctx, "", core.ShardEmbeddings); err == nil {
		total := 0
		for _, shard := range shards {
			total += shard.RowCount
		}
		detail["embedding_count"] = total
		detail["embedding_shards"] = len(shards)
	}
	if logs, err := s.deps.System.RecentLogs(ctx, 1); err == nil && len(logs) > 0 {
		detail["last_log_seq"] = logs[0].Seq
	}
	return detail
}

// fail reports an internal error and writes the safe envelope. Raw error
// text stays out of the response body.
func (s *Server) fail(ctx context.Context, w http.ResponseWriter, operation string, err error, params Params) {
	class := s.reporter.Report(ctx, operation, err, faults.SeverityHigh)

	language := core.Language(params.String("language"))
	if !language.Supported() {
		language = core.LanguageJapanese
	}
	writeError(w, http.StatusInternalServerError, codeInternal, faults.UserMessage(class, language))
}

// appendLog records the operation in the persisted log ring. Failures are
// ignored: request logging must never block a request.
func (s *Server) appendLog(ctx context.Context, opType string) {
	_ = s.deps.System.AppendLog(ctx, &core.LogRecord{
		Level:   "INFO",
		Message: "rpc " + opType,
		Context: map[string]any{"type": opType},
	})
}

// decodeSearchResults converts an inline search_results parameter into a
// search response the synthesizer accepts.
func decodeSearchResults(raw any, query string, language core.Language) (*retrieval.SearchResponse, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.New("search_results must be an array")
	}

	results := make([]*core.SearchResult, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errors.New("search_results entries must be objects")
		}
		r := &core.SearchResult{}
		if v, ok := m["chunk_id"].(string); ok {
			r.ChunkID = v
		}
		if v, ok := m["document_id"].(string); ok {
			r.DocumentID = v
		}
		if v, ok := m["category"].(string); ok {
			r.Category = v
		}
		if v, ok := m["content"].(string); ok {
			r.Content = v
		}
		if v, ok := m["title"].(string); ok {
			r.Title = v
		}
		if v, ok := m["snippet"].(string); ok {
			r.Snippet = v
		}
		if v, ok := m["score"].(float64); ok {
			r.Score = v
		}
		if v, ok := m["matched_keywords"].([]any); ok {
			for _, kw := range v {
				if s, ok := kw.(string); ok {
					r.MatchedKeywords = append(r.MatchedKeywords, s)
				}
			}
		}
		results = append(results, r)
	}

	return &retrieval.SearchResponse{
		Success:        true,
		Query:          query,
		ProcessedQuery: query,
		Language:       language,
		Results:        results,
	}, nil
}

// ListenAndServe runs the HTTP server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
