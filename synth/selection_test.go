package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/synth/template"
)

func tpl(id string, rt core.ResponseType, language core.Language, category string, metadata map[string]any) *core.Template {
	return &core.Template{
		ID:       id,
		Name:     id,
		Type:     rt,
		Content:  "{query}",
		Language: language,
		Category: category,
		Metadata: metadata,
	}
}

func emptyContext() *responseContext {
	return &responseContext{data: map[string]any{}}
}

func TestSelectTemplate_EmptyCatalogUsesBuiltin(t *testing.T) {
	selected := selectTemplate(nil, core.ResponsePrep, core.LanguageJapanese, "q", emptyContext())
	require.NotNil(t, selected)
	assert.Equal(t, "builtin-prep-ja", selected.ID)
	assert.Equal(t, core.ResponsePrep, selected.Type)
}

func TestSelectTemplate_FallsBackToStandardType(t *testing.T) {
	catalog := []*core.Template{
		tpl("std-ja", core.ResponseStandard, core.LanguageJapanese, "", nil),
	}
	selected := selectTemplate(catalog, core.ResponseEmail, core.LanguageJapanese, "q", emptyContext())
	assert.Equal(t, "std-ja", selected.ID)
}

func TestSelectTemplate_PrefersLanguageMatch(t *testing.T) {
	catalog := []*core.Template{
		tpl("std-en", core.ResponseStandard, core.LanguageEnglish, "", nil),
		tpl("std-ja", core.ResponseStandard, core.LanguageJapanese, "", nil),
	}
	selected := selectTemplate(catalog, core.ResponseStandard, core.LanguageJapanese, "q", emptyContext())
	assert.Equal(t, "std-ja", selected.ID)
}

func TestSelectTemplate_LanguageMismatchKeepsPool(t *testing.T) {
	catalog := []*core.Template{
		tpl("std-en", core.ResponseStandard, core.LanguageEnglish, "", nil),
	}
	selected := selectTemplate(catalog, core.ResponseStandard, core.LanguageJapanese, "q", emptyContext())
	assert.Equal(t, "std-en", selected.ID)
}

func TestSelectTemplate_CategoryOverlap(t *testing.T) {
	catalog := []*core.Template{
		tpl("std-faq", core.ResponseStandard, core.LanguageJapanese, "faq", nil),
		tpl("std-billing", core.ResponseStandard, core.LanguageJapanese, "billing", nil),
	}
	rc := &responseContext{categories: []string{"billing"}}

	selected := selectTemplate(catalog, core.ResponseStandard, core.LanguageJapanese, "q", rc)
	assert.Equal(t, "std-billing", selected.ID)
}

func TestSelectTemplate_EmailUrgencyAndComplexity(t *testing.T) {
	catalog := []*core.Template{
		tpl("email-plain", core.ResponseEmail, core.LanguageJapanese, "", nil),
		tpl("email-urgent", core.ResponseEmail, core.LanguageJapanese, "",
			map[string]any{"urgency": "high", "complexity": "simple"}),
	}
	rc := emptyContext()

	// Urgent query with no procedures: urgency=high, complexity=simple.
	selected := selectTemplate(catalog, core.ResponseEmail, core.LanguageJapanese, "至急、予算を変更したい", rc)
	assert.Equal(t, "email-urgent", selected.ID)
}

func TestSelectTemplate_EmailPartialMatch(t *testing.T) {
	catalog := []*core.Template{
		tpl("email-a", core.ResponseEmail, core.LanguageEnglish, "",
			map[string]any{"urgency": "normal", "complexity": "complex"}),
		tpl("email-b", core.ResponseEmail, core.LanguageEnglish, "",
			map[string]any{"urgency": "high", "complexity": "moderate"}),
	}
	// 7 total steps: moderate complexity, normal urgency. Neither template
	// matches both; email-a matches urgency first.
	rc := &responseContext{totalSteps: 7}

	selected := selectTemplate(catalog, core.ResponseEmail, core.LanguageEnglish, "change budget", rc)
	assert.Equal(t, "email-a", selected.ID)
}

func TestSelectTemplate_PrepKind(t *testing.T) {
	catalog := []*core.Template{
		tpl("prep-general", core.ResponsePrep, core.LanguageJapanese, "",
			map[string]any{"kind": "general"}),
		tpl("prep-ts", core.ResponsePrep, core.LanguageJapanese, "",
			map[string]any{"kind": "troubleshooting"}),
	}

	selected := selectTemplate(catalog, core.ResponsePrep, core.LanguageJapanese, "支払いエラーが発生する", emptyContext())
	assert.Equal(t, "prep-ts", selected.ID)
}

func TestSelectTemplate_DetailedPrimaryCategory(t *testing.T) {
	catalog := []*core.Template{
		tpl("det-deep", core.ResponseDetailed, core.LanguageEnglish, "",
			map[string]any{"detail_level": "high"}),
		tpl("det-billing", core.ResponseDetailed, core.LanguageEnglish, "billing", nil),
	}
	rc := &responseContext{categories: []string{"billing", "faq"}}

	selected := selectTemplate(catalog, core.ResponseDetailed, core.LanguageEnglish, "explain budgets in detail", rc)
	assert.Equal(t, "det-billing", selected.ID)
}

func TestSelectTemplate_DetailedDetailLevel(t *testing.T) {
	catalog := []*core.Template{
		tpl("det-std", core.ResponseDetailed, core.LanguageEnglish, "",
			map[string]any{"detail_level": "standard"}),
		tpl("det-deep", core.ResponseDetailed, core.LanguageEnglish, "",
			map[string]any{"detail_level": "high"}),
	}

	selected := selectTemplate(catalog, core.ResponseDetailed, core.LanguageEnglish, "step by step billing setup", emptyContext())
	assert.Equal(t, "det-deep", selected.ID)
}

func TestClassifyUrgency(t *testing.T) {
	assert.Equal(t, urgencyHigh, classifyUrgency("至急対応してほしい"))
	assert.Equal(t, urgencyHigh, classifyUrgency("need this ASAP"))
	assert.Equal(t, urgencyNormal, classifyUrgency("予算の確認"))
}

func TestClassifyComplexity(t *testing.T) {
	assert.Equal(t, complexitySimple, classifyComplexity(5))
	assert.Equal(t, complexityModerate, classifyComplexity(6))
	assert.Equal(t, complexityModerate, classifyComplexity(10))
	assert.Equal(t, complexityComplex, classifyComplexity(11))
}

func TestClassifyPrepKind(t *testing.T) {
	assert.Equal(t, prepTroubleshooting, classifyPrepKind("login error on the console"))
	assert.Equal(t, prepExplanation, classifyPrepKind("予算とは何ですか"))
	assert.Equal(t, prepPolicy, classifyPrepKind("会社の経費ポリシー"))
	assert.Equal(t, prepGeneral, classifyPrepKind("来週の打ち合わせ"))
}

func TestBuiltinTemplatesParse(t *testing.T) {
	types := []core.ResponseType{
		core.ResponseStandard, core.ResponseEmail, core.ResponsePrep,
		core.ResponseDetailed, core.ResponseNoResults,
	}
	for _, rt := range types {
		for _, language := range core.SupportedLanguages {
			tpl := builtinTemplate(rt, language)
			_, err := template.Parse(tpl.Content)
			assert.NoError(t, err, "builtin %s/%s must parse", rt, language)
		}
	}
}
