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

package synth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kaiteki-lab/kotae/ai"
	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/lang"
	"github.com/kaiteki-lab/kotae/retrieval"
	"github.com/kaiteki-lab/kotae/storage"
	"github.com/kaiteki-lab/kotae/synth/template"
)

const (
	// templateCatalogTTL bounds how long the in-memory template catalog is
	// trusted before re-listing from storage.
	templateCatalogTTL = 5 * time.Minute

	// enhanceMaxChars gates the optional model polish: longer drafts are
	// returned as rendered.
	enhanceMaxChars = 1000

	// enhanceResultCap bounds raw result contents fed to the model.
	enhanceResultCap = 5
)

// GenerateOptions controls one GenerateResponse call.
type GenerateOptions struct {
	ResponseType core.ResponseType
	Language     core.Language
	TemplateID   string
	CustomParams map[string]any
	Enhance      bool
}

// Response is the rendered synthesis result.
type Response struct {
	Success          bool          `json:"success"`
	Content          string        `json:"content"`
	TemplateID       string        `json:"template_id"`
	TemplateName     string        `json:"template_name"`
	ResponseType     string        `json:"response_type"`
	Language         core.Language `json:"language"`
	GenerationTimeMS int64         `json:"generation_time_ms"`
}

// Synthesizer renders ranked search results into a response through the
// template catalog.
type Synthesizer struct {
	templates storage.TemplateRepository
	documents storage.DocumentRepository
	generator ai.Generator
	expander  *lang.Expander
	logger    *slog.Logger

	mu       sync.Mutex
	catalog  []*core.Template
	loadedAt time.Time
	parsed   map[string]*template.Template
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGenerator attaches a generative model for the optional enhancement
// and translation steps. Without one, both steps are skipped.
func WithGenerator(generator ai.Generator) Option {
	return func(s *Synthesizer) {
		s.generator = generator
	}
}

// WithExpander sets the synonym expander used for related-query suggestions.
func WithExpander(expander *lang.Expander) Option {
	return func(s *Synthesizer) {
		if expander != nil {
			s.expander = expander
		}
	}
}

// NewSynthesizer creates a synthesizer over the template and document
// repositories.
func NewSynthesizer(templates storage.TemplateRepository, documents storage.DocumentRepository, opts ...Option) (*Synthesizer, error) {
	if templates == nil {
		return nil, ErrTemplateRepositoryRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}

	s := &Synthesizer{
		templates: templates,
		documents: documents,
		expander:  lang.NewExpander(),
		logger:    slog.Default(),
		parsed:    make(map[string]*template.Template),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GenerateResponse renders a response for the given search results. The
// only hard failure is an invalid search response; everything downstream
// degrades: a broken template falls back to a snippet summary, failed
// enhancement or translation keeps the prior draft.
func (s *Synthesizer) GenerateResponse(ctx context.Context, searchResp *retrieval.SearchResponse, opts GenerateOptions) (*Response, error) {
	start := time.Now()

	if searchResp == nil || !searchResp.Success {
		return nil, ErrInvalidSearchResults
	}

	language := opts.Language
	if !language.Supported() {
		language = searchResp.Language
	}
	if !language.Supported() {
		language = core.LanguageJapanese
	}

	rt := opts.ResponseType
	if rt == 0 {
		rt = core.ResponseStandard
	}

	if len(searchResp.Results) == 0 {
		return s.generateNoResults(ctx, searchResp, language, start)
	}

	rc := buildResponseContext(searchResp.Results, searchResp.Query, language, s.expander)
	tpl := s.resolveTemplate(ctx, rt, language, searchResp.Query, opts.TemplateID, rc)

	data := s.templateData(searchResp, language, rc.data, opts.CustomParams)
	content := s.render(tpl, data, rc)

	if opts.Enhance && s.generator != nil && len([]rune(content)) <= enhanceMaxChars {
		content = s.enhance(ctx, content, searchResp.Results, language)
	}
	if opts.Language.Supported() && opts.Language != searchResp.Language {
		content = s.translate(ctx, content, opts.Language)
	}

	return &Response{
		Success:          true,
		Content:          content,
		TemplateID:       tpl.ID,
		TemplateName:     tpl.Name,
		ResponseType:     rt.String(),
		Language:         language,
		GenerationTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

// generateNoResults renders the guidance message for an empty result set:
// reformulation suggestions plus the searchable category list.
func (s *Synthesizer) generateNoResults(ctx context.Context, searchResp *retrieval.SearchResponse, language core.Language, start time.Time) (*Response, error) {
	rc := &responseContext{data: map[string]any{
		"related_queries": toAnySlice(relatedQueries(searchResp.Query, language, s.expander)),
	}}

	if categories, err := s.documents.ListCategories(ctx); err != nil {
		s.logger.Warn("listing categories for no-results guidance failed", "error", err)
	} else if len(categories) > 0 {
		rc.data["category_list"] = toAnySlice(categories)
	}

	tpl := s.resolveTemplate(ctx, core.ResponseNoResults, language, searchResp.Query, "", rc)
	data := s.templateData(searchResp, language, rc.data, nil)

	return &Response{
		Success:          true,
		Content:          s.render(tpl, data, rc),
		TemplateID:       tpl.ID,
		TemplateName:     tpl.Name,
		ResponseType:     core.ResponseNoResults.String(),
		Language:         language,
		GenerationTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

// resolveTemplate picks the template: explicit ID first, then the catalog
// selection funnel, then the built-in skeleton.
func (s *Synthesizer) resolveTemplate(ctx context.Context, rt core.ResponseType, language core.Language, query, templateID string, rc *responseContext) *core.Template {
	if templateID != "" {
		tpl, err := s.templates.GetTemplate(ctx, templateID)
		if err == nil {
			return tpl
		}
		s.logger.Warn("explicit template not found, falling back to selection",
			"template_id", templateID, "error", err)
	}

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		s.logger.Warn("listing templates failed, using built-in", "error", err)
		return builtinTemplate(rt, language)
	}
	return selectTemplate(catalog, rt, language, query, rc)
}

// loadCatalog lists templates, reusing the previous listing within the TTL.
func (s *Synthesizer) loadCatalog(ctx context.Context) ([]*core.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.catalog != nil && time.Since(s.loadedAt) < templateCatalogTTL {
		return s.catalog, nil
	}

	catalog, err := s.templates.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	s.catalog = catalog
	s.loadedAt = time.Now()
	return catalog, nil
}

// templateData assembles the root data map for template rendering.
func (s *Synthesizer) templateData(searchResp *retrieval.SearchResponse, language core.Language, contextData map[string]any, params map[string]any) map[string]any {
	if params == nil {
		params = map[string]any{}
	}
	return map[string]any{
		"query":           searchResp.Query,
		"processed_query": searchResp.ProcessedQuery,
		"language":        string(language),
		"params":          params,
		"context":         contextData,
	}
}

// render parses and renders the template, degrading to a snippet summary on
// parse failure. Parsed trees are cached per template ID and content.
func (s *Synthesizer) render(tpl *core.Template, data map[string]any, rc *responseContext) string {
	parsed, err := s.parseTemplate(tpl)
	if err != nil {
		s.logger.Warn("template parse failed, using fallback content",
			"template_id", tpl.ID, "error", err)
		return fallbackContent(data, rc)
	}
	return parsed.Render(data)
}

func (s *Synthesizer) parseTemplate(tpl *core.Template) (*template.Template, error) {
	key := fmt.Sprintf("%s:%016x", tpl.ID, core.ContentHash(tpl.Content))

	s.mu.Lock()
	cached, ok := s.parsed[key]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	parsed, err := template.Parse(tpl.Content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.parsed[key] = parsed
	s.mu.Unlock()
	return parsed, nil
}

// fallbackContent is the minimal best-effort response when rendering is
// impossible: the query followed by the collected snippets.
func fallbackContent(data map[string]any, rc *responseContext) string {
	var b strings.Builder
	if query, ok := data["query"].(string); ok {
		b.WriteString(query)
		b.WriteString("\n\n")
	}
	if snippets, ok := rc.data["snippets"].([]any); ok {
		for _, item := range snippets {
			snippet, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := snippet["text"].(string); ok && text != "" {
				b.WriteString("- ")
				b.WriteString(text)
				b.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// enhance asks the generative model to polish a short draft using the raw
// result contents as grounding. Failure keeps the draft.
func (s *Synthesizer) enhance(ctx context.Context, draft string, results []*core.SearchResult, language core.Language) string {
	var sources strings.Builder
	for i, r := range results {
		if i >= enhanceResultCap {
			break
		}
		fmt.Fprintf(&sources, "[%d] %s\n", i+1, r.Content)
	}

	languageName := "English"
	if language == core.LanguageJapanese {
		languageName = "Japanese"
	}

	prompt := fmt.Sprintf(`Improve the readability and completeness of the draft below using only facts from the source passages. Do not invent information that is not in the sources. Answer in %s.

Draft:
%s

Sources:
%s`, languageName, draft, sources.String())

	enhanced, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("response enhancement failed, keeping draft", "error", err)
		return draft
	}
	if strings.TrimSpace(enhanced) == "" {
		return draft
	}
	return enhanced
}

// translate converts the final content to the requested language. Failure
// keeps the untranslated content.
func (s *Synthesizer) translate(ctx context.Context, content string, target core.Language) string {
	if s.generator == nil {
		return content
	}

	languageName := "English"
	if target == core.LanguageJapanese {
		languageName = "Japanese"
	}
	prompt := fmt.Sprintf("Translate the following text into %s. Preserve formatting and do not add commentary.\n\n%s", languageName, content)

	translated, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("translation failed, keeping original content", "error", err)
		return content
	}
	if strings.TrimSpace(translated) == "" {
		return content
	}
	return translated
}
