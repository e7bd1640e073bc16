package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiteki-lab/kotae/ai/mock"
	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/retrieval"
	badgerstore "github.com/kaiteki-lab/kotae/storage/badger"
)

func newTestSynthesizer(t *testing.T, opts ...Option) (*Synthesizer, *badgerstore.Repositories) {
	t.Helper()
	repos, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	s, err := NewSynthesizer(repos.Templates, repos.Documents, opts...)
	require.NoError(t, err)
	return s, repos
}

func searchResponse(query string, language core.Language, results ...*core.SearchResult) *retrieval.SearchResponse {
	return &retrieval.SearchResponse{
		Success:        true,
		Query:          query,
		ProcessedQuery: query,
		Language:       language,
		Results:        results,
	}
}

func TestNewSynthesizer_Validation(t *testing.T) {
	repos, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	_, err = NewSynthesizer(nil, repos.Documents)
	assert.ErrorIs(t, err, ErrTemplateRepositoryRequired)

	_, err = NewSynthesizer(repos.Templates, nil)
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)
}

func TestGenerateResponse_InvalidSearchResults(t *testing.T) {
	s, _ := newTestSynthesizer(t)

	_, err := s.GenerateResponse(context.Background(), nil, GenerateOptions{})
	assert.ErrorIs(t, err, ErrInvalidSearchResults)

	_, err = s.GenerateResponse(context.Background(), &retrieval.SearchResponse{Success: false}, GenerateOptions{})
	assert.ErrorIs(t, err, ErrInvalidSearchResults)
}

func TestGenerateResponse_NoResults(t *testing.T) {
	s, repos := newTestSynthesizer(t)
	ctx := context.Background()

	require.NoError(t, repos.Documents.PutDocument(ctx, &core.Document{
		ID:       "d1",
		Title:    "請求ガイド",
		Content:  "請求に関する説明",
		Category: "billing",
		Language: core.LanguageJapanese,
	}))

	resp, err := s.GenerateResponse(ctx, searchResponse("予算 変更", core.LanguageJapanese), GenerateOptions{})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "no_results", resp.ResponseType)
	assert.Equal(t, "builtin-no_results-ja", resp.TemplateID)
	assert.Contains(t, resp.Content, "予算 変更")
	assert.Contains(t, resp.Content, "見つかりませんでした")
	assert.Contains(t, resp.Content, "billing")
	assert.GreaterOrEqual(t, resp.GenerationTimeMS, int64(0))
}

func TestGenerateResponse_StandardBuiltin(t *testing.T) {
	s, _ := newTestSynthesizer(t)

	result := testResult("d1", "billing", "予算は管理画面から変更できます。", "予算")
	result.Title = "請求ガイド"

	resp, err := s.GenerateResponse(context.Background(),
		searchResponse("予算 変更", core.LanguageJapanese, result), GenerateOptions{})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "standard", resp.ResponseType)
	assert.Equal(t, core.LanguageJapanese, resp.Language)
	assert.Contains(t, resp.Content, "予算 変更")
	assert.Contains(t, resp.Content, "請求ガイド")
	assert.Contains(t, resp.Content, "予算は管理画面から変更できます。")
}

func TestGenerateResponse_ExplicitTemplateID(t *testing.T) {
	s, repos := newTestSynthesizer(t)
	ctx := context.Background()

	require.NoError(t, repos.Templates.PutTemplate(ctx, &core.Template{
		ID:       "greeting",
		Name:     "Greeting",
		Type:     core.ResponseStandard,
		Content:  "HELLO {query}",
		Language: core.LanguageEnglish,
	}))

	resp, err := s.GenerateResponse(ctx,
		searchResponse("budget", core.LanguageEnglish, testResult("d1", "billing", "budget info")),
		GenerateOptions{TemplateID: "greeting"})
	require.NoError(t, err)

	assert.Equal(t, "greeting", resp.TemplateID)
	assert.Equal(t, "Greeting", resp.TemplateName)
	assert.Equal(t, "HELLO budget", resp.Content)
}

func TestGenerateResponse_CatalogSelection(t *testing.T) {
	s, repos := newTestSynthesizer(t)
	ctx := context.Background()

	require.NoError(t, repos.Templates.PutTemplate(ctx, &core.Template{
		ID:       "std-ja",
		Name:     "Standard JA",
		Type:     core.ResponseStandard,
		Content:  "結果: {for s in context.snippets}{s.text}{endfor}",
		Language: core.LanguageJapanese,
	}))
	require.NoError(t, repos.Templates.PutTemplate(ctx, &core.Template{
		ID:       "std-en",
		Name:     "Standard EN",
		Type:     core.ResponseStandard,
		Content:  "results: {query}",
		Language: core.LanguageEnglish,
	}))

	resp, err := s.GenerateResponse(ctx,
		searchResponse("予算", core.LanguageJapanese, testResult("d1", "billing", "予算の説明")),
		GenerateOptions{})
	require.NoError(t, err)

	assert.Equal(t, "std-ja", resp.TemplateID)
	assert.Equal(t, "結果: 予算の説明", resp.Content)
}

func TestGenerateResponse_BrokenTemplateFallsBack(t *testing.T) {
	s, repos := newTestSynthesizer(t)
	ctx := context.Background()

	require.NoError(t, repos.Templates.PutTemplate(ctx, &core.Template{
		ID:       "broken",
		Name:     "Broken",
		Type:     core.ResponseStandard,
		Content:  "{if something}never closed",
		Language: core.LanguageEnglish,
	}))

	resp, err := s.GenerateResponse(ctx,
		searchResponse("budget", core.LanguageEnglish, testResult("d1", "billing", "budget details")),
		GenerateOptions{TemplateID: "broken"})
	require.NoError(t, err)

	// Degrades to the minimal query-plus-snippets summary.
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Content, "budget")
	assert.Contains(t, resp.Content, "budget details")
}

func TestGenerateResponse_CustomParams(t *testing.T) {
	s, repos := newTestSynthesizer(t)
	ctx := context.Background()

	require.NoError(t, repos.Templates.PutTemplate(ctx, &core.Template{
		ID:       "toned",
		Name:     "Toned",
		Type:     core.ResponseStandard,
		Content:  "tone={param.tone}",
		Language: core.LanguageEnglish,
	}))

	resp, err := s.GenerateResponse(ctx,
		searchResponse("q", core.LanguageEnglish, testResult("d1", "faq", "x")),
		GenerateOptions{
			TemplateID:   "toned",
			CustomParams: map[string]any{"tone": "formal"},
		})
	require.NoError(t, err)
	assert.Equal(t, "tone=formal", resp.Content)
}

func TestGenerateResponse_Enhancement(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(_ context.Context, prompt string) (string, error) {
		return "ENHANCED", nil
	}
	s, _ := newTestSynthesizer(t, WithGenerator(gen))

	resp, err := s.GenerateResponse(context.Background(),
		searchResponse("budget", core.LanguageEnglish, testResult("d1", "billing", "budget details")),
		GenerateOptions{Enhance: true})
	require.NoError(t, err)

	assert.Equal(t, "ENHANCED", resp.Content)
	assert.Equal(t, 1, gen.CallCount())
	assert.Contains(t, gen.Prompts()[0], "budget details")
}

func TestGenerateResponse_EnhancementSkippedForLongDraft(t *testing.T) {
	gen := mock.NewMockGenerator()
	s, repos := newTestSynthesizer(t, WithGenerator(gen))
	ctx := context.Background()

	long := strings.Repeat("long content ", 100)
	require.NoError(t, repos.Templates.PutTemplate(ctx, &core.Template{
		ID:       "long",
		Name:     "Long",
		Type:     core.ResponseStandard,
		Content:  long,
		Language: core.LanguageEnglish,
	}))

	resp, err := s.GenerateResponse(ctx,
		searchResponse("q", core.LanguageEnglish, testResult("d1", "faq", "x")),
		GenerateOptions{TemplateID: "long", Enhance: true})
	require.NoError(t, err)

	assert.Zero(t, gen.CallCount())
	assert.Equal(t, long, resp.Content)
}

func TestGenerateResponse_EnhancementFailureKeepsDraft(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(_ context.Context, _ string) (string, error) {
		return "", errors.New("model unavailable")
	}
	s, _ := newTestSynthesizer(t, WithGenerator(gen))

	resp, err := s.GenerateResponse(context.Background(),
		searchResponse("budget", core.LanguageEnglish, testResult("d1", "billing", "budget details")),
		GenerateOptions{Enhance: true})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Contains(t, resp.Content, "budget details")
}

func TestGenerateResponse_Translation(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(_ context.Context, prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Translate") {
			return "TRANSLATED", nil
		}
		return "", errors.New("unexpected prompt")
	}
	s, _ := newTestSynthesizer(t, WithGenerator(gen))

	resp, err := s.GenerateResponse(context.Background(),
		searchResponse("予算", core.LanguageJapanese, testResult("d1", "billing", "予算の説明")),
		GenerateOptions{Language: core.LanguageEnglish})
	require.NoError(t, err)

	assert.Equal(t, "TRANSLATED", resp.Content)
	assert.Equal(t, 1, gen.CallCount())
}

func TestGenerateResponse_EmailUsesProcedures(t *testing.T) {
	s, _ := newTestSynthesizer(t)

	content := "変更手順\n1. 管理画面を開く\n2. 予算を編集する"
	resp, err := s.GenerateResponse(context.Background(),
		searchResponse("予算 変更", core.LanguageJapanese, testResult("d1", "billing", content)),
		GenerateOptions{ResponseType: core.ResponseEmail})
	require.NoError(t, err)

	assert.Equal(t, "email", resp.ResponseType)
	assert.Contains(t, resp.Content, "件名")
	assert.Contains(t, resp.Content, "管理画面を開く")
}
