package lang

import (
	"math"
	"strings"
	"unicode"

	"github.com/kaiteki-lab/kotae/core"
)

// runeClass classifies a rune for Japanese run segmentation.
type runeClass int

const (
	classAlnum runeClass = iota
	classHiragana
	classKatakana
	classKanji
	classOther
)

func classify(r rune) runeClass {
	switch {
	case r >= 0x3040 && r <= 0x309F:
		return classHiragana
	case r >= 0x30A0 && r <= 0x30FF || r == 0x30FC: // katakana incl. prolonged sound mark
		return classKatakana
	case unicode.Is(unicode.Han, r):
		return classKanji
	case unicode.IsLetter(r) || unicode.IsDigit(r):
		return classAlnum
	default:
		return classOther
	}
}

func isSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return false // handled by the whitespace split
	}
	return unicode.IsPunct(r) || unicode.IsSymbol(r) ||
		strings.ContainsRune("「」『』（）()[]{}【】〈〉《》、。・…", r)
}

// Tokenize splits text into tokens for keyword matching.
//
// English text splits on whitespace. Japanese text first splits on whitespace,
// then on punctuation and bracket runs, and finally within each segment emits
// one token per contiguous run of the same character class (alphanumeric,
// hiragana, katakana, kanji). A character outside those classes forces a token
// boundary on both sides and becomes its own token.
func Tokenize(text string, language core.Language) []string {
	if language != core.LanguageJapanese {
		return strings.Fields(text)
	}

	var tokens []string
	for _, segment := range strings.Fields(text) {
		for _, part := range splitOnSeparators(segment) {
			tokens = append(tokens, splitClassRuns(part)...)
		}
	}
	return tokens
}

// splitOnSeparators breaks a segment on runs of punctuation and brackets.
func splitOnSeparators(segment string) []string {
	var parts []string
	var current strings.Builder

	for _, r := range segment {
		if isSeparator(r) {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			continue
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// splitClassRuns emits one token per contiguous same-class rune run.
// Other-class runes each become a single token.
func splitClassRuns(part string) []string {
	var tokens []string
	var current strings.Builder
	currentClass := classOther
	started := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range part {
		c := classify(r)
		if c == classOther {
			flush()
			tokens = append(tokens, string(r))
			started = false
			continue
		}
		if started && c != currentClass {
			flush()
		}
		current.WriteRune(r)
		currentClass = c
		started = true
	}
	flush()

	return tokens
}

// EstimateTokenCount approximates the number of model tokens in text.
// Japanese counts roughly one token per two characters; other languages
// roughly 1.3 tokens per word.
func EstimateTokenCount(text string, language core.Language) int {
	if text == "" {
		return 0
	}
	if language == core.LanguageJapanese {
		return int(math.Ceil(float64(len([]rune(text))) * 0.5))
	}
	return int(math.Ceil(float64(len(strings.Fields(text))) * 1.3))
}
