package retrieval

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordMatchScore(t *testing.T) {
	t.Run("single keyword near the start", func(t *testing.T) {
		content := "budget planning guide for new campaigns"
		score, matched := KeywordMatchScore(content, []string{"budget"})

		// One occurrence at index 0: (1 + sqrt(1)*0.5) * (sqrt(6)/2) * 1.5,
		// times the diversity bonus (1 + sqrt(1)*0.2).
		expected := (1 + 0.5) * (math.Sqrt(6) / 2) * 1.5 * 1.2
		assert.InDelta(t, expected, score, 1e-9)
		assert.Equal(t, []string{"budget"}, matched)
	})

	t.Run("case insensitive occurrence counting", func(t *testing.T) {
		content := "Budget review: the budget and the BUDGET"
		score, matched := KeywordMatchScore(content, []string{"budget"})

		expected := (1 + math.Sqrt(3)*0.5) * (math.Sqrt(6) / 2) * 1.5 * 1.2
		assert.InDelta(t, expected, score, 1e-9)
		assert.Len(t, matched, 1)
	})

	t.Run("position weight tiers", func(t *testing.T) {
		near := strings.Repeat("x", 50) + " budget"
		mid := strings.Repeat("x", 150) + " budget"
		far := strings.Repeat("x", 350) + " budget"

		nearScore, _ := KeywordMatchScore(near, []string{"budget"})
		midScore, _ := KeywordMatchScore(mid, []string{"budget"})
		farScore, _ := KeywordMatchScore(far, []string{"budget"})

		assert.Greater(t, nearScore, midScore)
		assert.Greater(t, midScore, farScore)
		assert.InDelta(t, nearScore/farScore, 1.5, 1e-9)
		assert.InDelta(t, midScore/farScore, 1.2, 1e-9)
	})

	t.Run("diversity bonus for multiple keywords", func(t *testing.T) {
		content := "change the budget settings"
		single, _ := KeywordMatchScore(content, []string{"budget"})
		double, matched := KeywordMatchScore(content, []string{"budget", "change"})

		assert.Greater(t, double, single)
		assert.ElementsMatch(t, []string{"budget", "change"}, matched)
	})

	t.Run("japanese keywords measured in runes", func(t *testing.T) {
		content := "今すぐ予算を変更する方法"
		score, matched := KeywordMatchScore(content, []string{"予算", "変更"})

		assert.Greater(t, score, 0.0)
		assert.ElementsMatch(t, []string{"予算", "変更"}, matched)
	})

	t.Run("no match", func(t *testing.T) {
		score, matched := KeywordMatchScore("completely unrelated text", []string{"budget"})
		assert.Zero(t, score)
		assert.Empty(t, matched)
	})

	t.Run("empty inputs", func(t *testing.T) {
		score, _ := KeywordMatchScore("", []string{"budget"})
		assert.Zero(t, score)

		score, _ = KeywordMatchScore("content", nil)
		assert.Zero(t, score)
	})
}

func TestSnippet(t *testing.T) {
	t.Run("short content returned as-is", func(t *testing.T) {
		content := "short answer"
		assert.Equal(t, content, Snippet(content, []string{"answer"}))
	})

	t.Run("keyword window with both ellipses", func(t *testing.T) {
		content := strings.Repeat("a", 300) + "budget" + strings.Repeat("b", 300)
		snippet := Snippet(content, []string{"budget"})

		assert.True(t, strings.HasPrefix(snippet, "..."))
		assert.True(t, strings.HasSuffix(snippet, "..."))
		assert.Contains(t, snippet, "budget")
		// 80 before + keyword + 120 after, plus the two ellipses.
		assert.Equal(t, 80+len("budget")+120+6, len(snippet))
	})

	t.Run("keyword near the start omits leading ellipsis", func(t *testing.T) {
		content := "budget" + strings.Repeat("b", 400)
		snippet := Snippet(content, []string{"budget"})

		assert.True(t, strings.HasPrefix(snippet, "budget"))
		assert.True(t, strings.HasSuffix(snippet, "..."))
	})

	t.Run("no keyword falls back to head", func(t *testing.T) {
		content := strings.Repeat("y", 400)
		snippet := Snippet(content, []string{"missing"})
		assert.Equal(t, strings.Repeat("y", 200)+"...", snippet)
	})

	t.Run("first matching keyword wins", func(t *testing.T) {
		content := strings.Repeat("a", 250) + "second and first" + strings.Repeat("b", 250)
		snippet := Snippet(content, []string{"absent", "second", "first"})
		assert.Contains(t, snippet, "second")
	})
}
