package lang

import (
	"strings"
	"unicode"

	"github.com/kaiteki-lab/kotae/core"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// japanesePunct folds punctuation variants before NFKC so that the ideographic
// forms survive normalization: NFKC would otherwise map the fullwidth comma
// and full stop to their ASCII forms.
var japanesePunct = strings.NewReplacer(
	"，", "、",
	"．", "。",
)

// Preprocess normalizes text for indexing and matching in the given language.
//
// The Japanese path applies NFKC normalization, folds full-width ASCII
// (！ through ～) to half-width, normalizes comma/full-stop variants to 、 and
// 。, and collapses whitespace runs. The English path applies NFKC, lowercases,
// strips punctuation, and collapses whitespace.
func Preprocess(text string, language core.Language) string {
	if text == "" {
		return ""
	}

	switch language {
	case core.LanguageJapanese:
		s := japanesePunct.Replace(text)
		s = norm.NFKC.String(s)
		s = width.Fold.String(s)
		return collapseWhitespace(s)
	default:
		s := norm.NFKC.String(text)
		s = strings.ToLower(s)
		s = stripPunctuation(s)
		return collapseWhitespace(s)
	}
}

// StripStopwords removes common English stop words from preprocessed text.
// Optional step: retrieval quality on short queries is usually better with
// stop words kept, so the engine does not apply it by default.
func StripStopwords(text string) string {
	words := strings.Fields(text)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if !englishStopwords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

var englishStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
