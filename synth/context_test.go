package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/lang"
)

func testResult(docID, category, content string, matched ...string) *core.SearchResult {
	return &core.SearchResult{
		ChunkID:         docID + "_chunk_0",
		DocumentID:      docID,
		Category:        category,
		Content:         content,
		MatchedKeywords: matched,
		Title:           "Doc " + docID,
		Snippet:         content,
		Score:           0.8,
	}
}

func TestBuildResponseContext_Topics(t *testing.T) {
	results := []*core.SearchResult{
		testResult("d1", "billing", "budget budget budget settings"),
		testResult("d2", "faq", "budget account"),
	}

	rc := buildResponseContext(results, "budget", core.LanguageEnglish, lang.NewExpander())

	topics, ok := rc.data["topics"].([]any)
	require.True(t, ok)
	assert.Contains(t, topics, "billing")
	assert.Contains(t, topics, "faq")
	// "budget" appears most often and is longer than three characters.
	assert.Contains(t, topics, "budget")
}

func TestBuildResponseContext_KeyConcepts(t *testing.T) {
	results := []*core.SearchResult{
		testResult("d1", "billing", "To change your budget, open the billing console and edit the monthly cap.", "budget"),
	}

	rc := buildResponseContext(results, "change budget", core.LanguageEnglish, nil)

	concepts, ok := rc.data["key_concepts"].([]any)
	require.True(t, ok)
	require.Len(t, concepts, 1)

	concept := concepts[0].(map[string]any)
	assert.Equal(t, "budget", concept["name"])
	assert.Equal(t, conceptWeight, concept["weight"])
	assert.Contains(t, concept["description"], "budget")
}

func TestBuildResponseContext_CategorizedDocuments(t *testing.T) {
	results := []*core.SearchResult{
		testResult("d1", "billing", "a"),
		testResult("d1", "billing", "b"), // same doc, deduplicated
		testResult("d2", "faq", "c"),
	}

	rc := buildResponseContext(results, "q", core.LanguageEnglish, nil)

	assert.Equal(t, []string{"billing", "faq"}, rc.categories)

	categorized, ok := rc.data["categories"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"d1"}, categorized["billing"])
	assert.Equal(t, []any{"d2"}, categorized["faq"])
}

func TestExtractProcedures(t *testing.T) {
	content := `予算の変更手順
1. 管理画面を開く
2. 予算タブを選択する
3. 金額を更新する

備考: 反映には数分かかります`

	results := []*core.SearchResult{testResult("d1", "billing", content)}
	procedures, total := extractProcedures(results)

	require.Len(t, procedures, 1)
	assert.Equal(t, 3, total)

	proc := procedures[0].(map[string]any)
	assert.Equal(t, "予算の変更手順", proc["title"])
	steps := proc["steps"].([]any)
	require.Len(t, steps, 3)
	assert.Equal(t, "管理画面を開く", steps[0])
}

func TestExtractProcedures_SingleItemIgnored(t *testing.T) {
	results := []*core.SearchResult{
		testResult("d1", "faq", "note\n1. only one item\nplain text"),
	}
	procedures, total := extractProcedures(results)
	assert.Empty(t, procedures)
	assert.Zero(t, total)
}

func TestExtractActionItems_Japanese(t *testing.T) {
	content := "予算は毎月確認してください。設定画面の説明です。変更後は保存する必要があります。"
	results := []*core.SearchResult{testResult("d1", "billing", content)}

	items := extractActionItems(results, core.LanguageJapanese)
	require.Len(t, items, 2)
	assert.Contains(t, items[0], "確認してください")
	assert.Contains(t, items[1], "必要があります")
}

func TestExtractActionItems_English(t *testing.T) {
	content := "You should review the budget monthly. This page describes settings. Please save after editing."
	results := []*core.SearchResult{testResult("d1", "billing", content)}

	items := extractActionItems(results, core.LanguageEnglish)
	assert.Len(t, items, 2)
}

func TestCollectSnippets_TopThree(t *testing.T) {
	var results []*core.SearchResult
	for _, id := range []string{"d1", "d2", "d3", "d4"} {
		results = append(results, testResult(id, "faq", "content of "+id))
	}

	snippets := collectSnippets(results)
	require.Len(t, snippets, snippetCap)
	first := snippets[0].(map[string]any)
	assert.Equal(t, "Doc d1", first["title"])
	assert.Equal(t, "content of d1", first["text"])
}

func TestRelatedQueries(t *testing.T) {
	queries := relatedQueries("予算 変更", core.LanguageJapanese, lang.NewExpander())
	require.Len(t, queries, relatedQueryCap)
	for _, q := range queries {
		assert.NotEqual(t, "予算 変更", q)
		assert.NotEmpty(t, q)
	}
}

func TestRelatedQueries_EmptyQuery(t *testing.T) {
	assert.Empty(t, relatedQueries("  ", core.LanguageEnglish, nil))
}

func TestBuildResponseContext_CapsResults(t *testing.T) {
	var results []*core.SearchResult
	for i := 0; i < 8; i++ {
		results = append(results, testResult("d"+string(rune('0'+i)), "c"+string(rune('0'+i)), "x"))
	}

	rc := buildResponseContext(results, "q", core.LanguageEnglish, nil)
	assert.Len(t, rc.categories, contextResultCap)
}
